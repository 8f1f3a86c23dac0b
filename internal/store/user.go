package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pedalsync/linkgate/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

// UpsertProviderUser finds a user by identity-provider subject and refreshes
// the profile fields, or creates the user with a fresh id.
func (s *Store) UpsertProviderUser(ctx context.Context, in *models.User) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("provider = ? AND provider_id = ?", in.Provider, in.ProviderID).First(&user).Error
	if err == nil {
		user.Email = in.Email
		user.Name = in.Name
		user.Picture = in.Picture
		if err := db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update provider user: %w", err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query provider user: %w", err)
	}

	user = *in
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create provider user: %w", translate(err))
	}
	return &user, nil
}
