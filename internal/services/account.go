package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/taskapp/accounts/internal/auth"
	"github.com/taskapp/accounts/internal/mq"
	"github.com/taskapp/accounts/internal/storage"
	"github.com/taskapp/accounts/internal/store"
	"github.com/taskapp/accounts/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a login password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetBySessionToken(ctx context.Context, id int, token string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// SessionRepository defines persistence operations for session tokens.
type SessionRepository interface {
	Create(ctx context.Context, userID int, token string) error
	Delete(ctx context.Context, userID int, token string) error
	DeleteAllForUser(ctx context.Context, userID int) error
}

// TaskRepository covers the task-store contract the account service needs.
type TaskRepository interface {
	DeleteByOwner(ctx context.Context, ownerID int) error
}

// AvatarStore stores avatar image bytes, either inline in Postgres or in an
// object-storage bucket.
type AvatarStore interface {
	Put(ctx context.Context, userID int, data []byte) error
	Get(ctx context.Context, userID int) ([]byte, error)
	Delete(ctx context.Context, userID int) error
}

// EventPublisher publishes account lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event mq.Event) (string, error)
}

// AccountStores groups the repositories participating in the cascading
// account delete.
type AccountStores struct {
	Users    UserRepository
	Sessions SessionRepository
	Tasks    TaskRepository
}

// TxRunner executes fn atomically against transaction-bound repositories:
// either every write in fn is persisted or none is.
type TxRunner func(ctx context.Context, fn func(ctx context.Context, stores AccountStores) error) error

// RegisterParams are the validated, normalized inputs for Register.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Age      int
}

// ProfileUpdate carries the allow-listed profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Age      *int
}

// AccountService encapsulates account use-cases: registration, credential
// verification, session issuance and revocation, profile updates, cascading
// deletion, and avatar storage.
type AccountService struct {
	users     UserRepository
	sessions  SessionRepository
	avatars   AvatarStore
	runTx     TxRunner
	events    EventPublisher
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewAccountService(
	users UserRepository,
	sessions SessionRepository,
	avatars AvatarStore,
	runTx TxRunner,
	events EventPublisher,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:     users,
		sessions:  sessions,
		avatars:   avatars,
		runTx:     runTx,
		events:    events,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// Register creates a new user account. The plaintext password is hashed
// before anything is persisted and never stored.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         strings.TrimSpace(params.Name),
		Email:        NormalizeEmail(params.Email),
		Age:          params.Age,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, mq.Event{Type: mq.EventAccountRegistered, UserID: user.ID, Email: user.Email})
	return user, nil
}

// VerifyLogin checks an email/password pair. It returns store.ErrNotFound
// when no user has that email and ErrInvalidCredentials when the password
// does not match. It has no side effects.
func (s *AccountService) VerifyLogin(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// IssueSession mints a signed token for the user and records it as a live
// session. Each call yields an independent, individually revocable token.
func (s *AccountService) IssueSession(ctx context.Context, user types.User) (string, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, user.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

// RevokeSession removes exactly the presented token from the user's live
// sessions. Revoking an absent token is a no-op.
func (s *AccountService) RevokeSession(ctx context.Context, user types.User, token string) error {
	return s.sessions.Delete(ctx, user.ID, token)
}

// RevokeAllSessions invalidates every token issued to the user.
func (s *AccountService) RevokeAllSessions(ctx context.Context, user types.User) error {
	return s.sessions.DeleteAllForUser(ctx, user.ID)
}

// Authenticate resolves a verified token subject to a user record, requiring
// the exact token to still be a live session.
func (s *AccountService) Authenticate(ctx context.Context, userID int, token string) (types.User, error) {
	return s.users.GetBySessionToken(ctx, userID, token)
}

// GetByID returns the user with the given id.
func (s *AccountService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies the allow-listed profile fields. A changed password
// is re-hashed before persisting.
func (s *AccountService) UpdateProfile(ctx context.Context, user types.User, update ProfileUpdate) (types.User, error) {
	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil {
		user.Email = NormalizeEmail(*update.Email)
	}
	if update.Age != nil {
		user.Age = *update.Age
	}
	if update.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hashed)
	}
	return s.users.Update(ctx, user)
}

// DeleteAccount removes the user's tasks, sessions, and record in one
// transaction. Either the cascade and the deletion both complete or neither
// is observable. The stored avatar is removed after the transaction commits;
// with an object-storage backend this is what prevents an orphaned blob.
func (s *AccountService) DeleteAccount(ctx context.Context, user types.User) error {
	err := s.runTx(ctx, func(ctx context.Context, stores AccountStores) error {
		if err := stores.Tasks.DeleteByOwner(ctx, user.ID); err != nil {
			return err
		}
		if err := stores.Sessions.DeleteAllForUser(ctx, user.ID); err != nil {
			return err
		}
		return stores.Users.Delete(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	if err := s.avatars.Delete(ctx, user.ID); err != nil &&
		!errors.Is(err, store.ErrNotFound) && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("failed to remove avatar for deleted account", "user_id", user.ID, "error", err)
	}

	s.publish(ctx, mq.Event{Type: mq.EventAccountDeleted, UserID: user.ID, Email: user.Email})
	return nil
}

func (s *AccountService) publish(ctx context.Context, event mq.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish account event", "type", event.Type, "user_id", event.UserID, "error", err)
	}
}

// NormalizeEmail trims and lowercases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
