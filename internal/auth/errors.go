package auth

import "errors"

var (
	ErrIdentityAPIConnection  = errors.New("failed to connect to identity API")
	ErrIdentityAPIInvalidResp = errors.New("invalid response from identity API")
	ErrIdentityAPIUnavailable = errors.New("identity API unavailable")
)
