package models

import (
	"time"
)

// RefreshTokenRecord is the metadata kept in the KV store for every live
// refresh token. Its presence is what makes a signed refresh token usable.
type RefreshTokenRecord struct {
	CreatedAt  time.Time `json:"createdAt"`
	DeviceID   string    `json:"deviceId,omitempty"`
	DeviceName string    `json:"deviceName,omitempty"`
}
