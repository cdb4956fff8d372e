package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrObjectNotFound is returned when a stored object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

const avatarContentType = "image/jpeg"

// AvatarObjectStore keeps avatar bytes in an object-storage bucket, keyed by
// user id. It is the alternative to the inline Postgres backend.
type AvatarObjectStore struct {
	backend ObjectStorage
}

// NewAvatarObjectStore constructs an avatar store for the provided backend.
func NewAvatarObjectStore(backend ObjectStorage) *AvatarObjectStore {
	return &AvatarObjectStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *AvatarObjectStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put stores the avatar bytes for a user, replacing any previous avatar.
func (s *AvatarObjectStore) Put(ctx context.Context, userID int, data []byte) error {
	return s.backend.Put(ctx, avatarKey(userID), bytes.NewReader(data), int64(len(data)), avatarContentType)
}

// Get returns the avatar bytes for a user.
func (s *AvatarObjectStore) Get(ctx context.Context, userID int) ([]byte, error) {
	reader, err := s.backend.Get(ctx, avatarKey(userID))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// Delete removes the avatar for a user.
func (s *AvatarObjectStore) Delete(ctx context.Context, userID int) error {
	return s.backend.Delete(ctx, avatarKey(userID))
}

func avatarKey(userID int) string {
	return fmt.Sprintf("avatars/%d.jpg", userID)
}
