package models

import (
	"time"
)

// DeviceTypeHeadUnit is the type recorded for devices linked through the device-code flow.
const DeviceTypeHeadUnit = "head_unit"

// Device is a linked device. The same physical device may be linked to
// several accounts, so the key is the (id, user_id) pair.
type Device struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"          json:"id"`
	UserID    string    `gorm:"primaryKey;type:varchar(64);index"    json:"-"`
	Name      string    `gorm:"type:varchar(255)"                    json:"name"`
	Type      string    `gorm:"type:varchar(32);default:'head_unit'" json:"type"`
	LastSync  time.Time `json:"last_sync"`
	CreatedAt time.Time `json:"created_at"`
}
