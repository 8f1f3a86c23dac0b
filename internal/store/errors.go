package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert violates a unique index,
	// for example two live device codes drawing the same user code.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDeviceCodeNotPending is returned by AuthorizeDeviceCode when the
	// conditional update matched no row: the code is unknown, expired or
	// was already authorized by a concurrent request.
	ErrDeviceCodeNotPending = errors.New("device code is not pending")
)
