package models

import (
	"testing"
	"time"
)

func TestDeviceCode_IsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "not expired",
			expiresAt: now.Add(1 * time.Second),
			want:      false,
		},
		{
			name:      "already expired",
			expiresAt: now.Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expiry equal to now is expired",
			expiresAt: now,
			want:      true,
		},
		{
			name:      "zero time is expired",
			expiresAt: time.Time{},
			want:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := &DeviceCode{ExpiresAt: tt.expiresAt}
			if got := dc.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceCode_RemainingSeconds(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{name: "full ttl", expiresAt: now.Add(600 * time.Second), want: 600},
		{name: "partial seconds truncate", expiresAt: now.Add(90*time.Second + 900*time.Millisecond), want: 90},
		{name: "expired clamps to zero", expiresAt: now.Add(-time.Minute), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := &DeviceCode{ExpiresAt: tt.expiresAt}
			if got := dc.RemainingSeconds(now); got != tt.want {
				t.Errorf("RemainingSeconds() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceCode_Status(t *testing.T) {
	tests := []struct {
		name       string
		status     DeviceCodeStatus
		pending    bool
		authorized bool
	}{
		{name: "pending", status: DeviceCodeStatusPending, pending: true},
		{name: "authorized", status: DeviceCodeStatusAuthorized, authorized: true},
		{name: "empty", status: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := &DeviceCode{Status: tt.status}
			if got := dc.IsPending(); got != tt.pending {
				t.Errorf("IsPending() = %v, want %v", got, tt.pending)
			}
			if got := dc.IsAuthorized(); got != tt.authorized {
				t.Errorf("IsAuthorized() = %v, want %v", got, tt.authorized)
			}
		})
	}
}

func TestUser_Profile(t *testing.T) {
	u := &User{
		ID:         "user-12345678",
		Email:      "rider@example.com",
		Name:       "Rider",
		Picture:    "https://example.com/a.png",
		Provider:   "google",
		ProviderID: "g-1",
	}

	p := u.Profile()
	if p.ID != u.ID || p.Email != u.Email || p.Name != u.Name || p.Picture != u.Picture {
		t.Errorf("Profile() = %+v, want fields copied from %+v", p, u)
	}
}
