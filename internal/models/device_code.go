package models

import (
	"time"
)

// DeviceCodeStatus is the stored state of a linking request. Expired and
// consumed requests are deleted rather than given a status of their own.
type DeviceCodeStatus string

const (
	DeviceCodeStatusPending    DeviceCodeStatus = "pending"
	DeviceCodeStatusAuthorized DeviceCodeStatus = "authorized"
)

type DeviceCode struct {
	ID         int64            `gorm:"primaryKey;autoIncrement"`
	DeviceCode string           `gorm:"type:varchar(36);uniqueIndex;not null"`
	UserCode   string           `gorm:"type:varchar(9);uniqueIndex;not null"`
	DeviceID   string           `gorm:"type:varchar(64);index;not null"`
	DeviceName string           `gorm:"type:varchar(255)"`
	Status     DeviceCodeStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	UserID     *string          `gorm:"type:varchar(64)"` // set only once authorized
	ExpiresAt  time.Time        `gorm:"index;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpired reports whether the request is no longer usable at now.
// A request whose expiry equals now is already expired.
func (d *DeviceCode) IsExpired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}

func (d *DeviceCode) IsPending() bool {
	return d.Status == DeviceCodeStatusPending
}

func (d *DeviceCode) IsAuthorized() bool {
	return d.Status == DeviceCodeStatusAuthorized
}

// RemainingSeconds is the whole number of seconds left before expiry, never negative.
func (d *DeviceCode) RemainingSeconds(now time.Time) int {
	remaining := d.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}
