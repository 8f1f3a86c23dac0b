package models

import (
	"time"
)

type User struct {
	ID         string `gorm:"primaryKey;type:varchar(64)"`
	Email      string `gorm:"index"`
	Name       string
	Picture    string
	Provider   string `gorm:"type:varchar(32);index:idx_users_provider_subject"`
	ProviderID string `gorm:"type:varchar(255);index:idx_users_provider_subject"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the public view of a user returned to devices.
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
	}
}
