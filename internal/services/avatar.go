package services

import (
	"context"
	"errors"

	"github.com/taskapp/accounts/internal/storage"
	"github.com/taskapp/accounts/internal/store"
)

// SetAvatar stores the avatar bytes for an existing user.
func (s *AccountService) SetAvatar(ctx context.Context, userID int, data []byte) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.avatars.Put(ctx, userID, data)
}

// ClearAvatar removes the user's avatar.
func (s *AccountService) ClearAvatar(ctx context.Context, userID int) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	err := s.avatars.Delete(ctx, userID)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	return err
}

// GetAvatar returns the avatar bytes for a user. It fails with
// store.ErrNotFound when the user or the avatar is absent.
func (s *AccountService) GetAvatar(ctx context.Context, userID int) ([]byte, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	data, err := s.avatars.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
