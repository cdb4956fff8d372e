package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskapp/accounts/internal/mq"
	"github.com/taskapp/accounts/internal/store"
	"github.com/taskapp/accounts/types"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type capturingPublisher struct {
	events []mq.Event
}

func (p *capturingPublisher) PublishEvent(ctx context.Context, event mq.Event) (string, error) {
	p.events = append(p.events, event)
	return "msg-1", nil
}

func newTestService(t *testing.T, s *fakeStore) (*AccountService, *capturingPublisher) {
	t.Helper()
	publisher := &capturingPublisher{}
	svc := NewAccountService(
		s,
		fakeSessions{s},
		fakeAvatars{s},
		snapshotTxRunner(s),
		publisher,
		testSecret,
		time.Hour,
		nil,
	)
	return svc, publisher
}

func register(t *testing.T, svc *AccountService) types.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "longpass1",
		Age:      30,
	})
	require.NoError(t, err)
	return user
}

func TestRegister_HashesPassword(t *testing.T) {
	s := newFakeStore()
	svc, publisher := newTestService(t, s)

	user := register(t, svc)

	assert.NotEqual(t, "longpass1", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longpass1")))
	require.Len(t, publisher.events, 1)
	assert.Equal(t, mq.EventAccountRegistered, publisher.events[0].Type)
}

func TestRegister_NormalizesFields(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)

	user, err := svc.Register(context.Background(), RegisterParams{
		Name:     "  Bob  ",
		Email:    "  Bob@Example.COM ",
		Password: "longpass1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", user.Name)
	assert.Equal(t, "bob@example.com", user.Email)
	assert.Equal(t, 0, user.Age)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	register(t, svc)

	_, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Other",
		Email:    "ALICE@example.com",
		Password: "longpass1",
	})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)
	assert.Equal(t, 1, s.userCount())
}

func TestVerifyLogin(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)

	got, err := svc.VerifyLogin(context.Background(), "Alice@Example.com", "longpass1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.VerifyLogin(context.Background(), "alice@example.com", "wrongpass1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.VerifyLogin(context.Background(), "nobody@example.com", "longpass1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIssueSession_DistinctRevocableTokens(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)

	ctx := context.Background()
	first, err := svc.IssueSession(ctx, user)
	require.NoError(t, err)
	second, err := svc.IssueSession(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.Equal(t, 2, s.sessionCount(user.ID))

	// Revoking one token leaves the other valid.
	require.NoError(t, svc.RevokeSession(ctx, user, first))
	assert.False(t, s.hasSession(user.ID, first))
	assert.True(t, s.hasSession(user.ID, second))

	_, err = svc.Authenticate(ctx, user.ID, first)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.Authenticate(ctx, user.ID, second)
	require.NoError(t, err)
}

func TestRevokeSession_AbsentTokenIsNoop(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)

	require.NoError(t, svc.RevokeSession(context.Background(), user, "never-issued"))
}

func TestRevokeAllSessions(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)

	ctx := context.Background()
	var tokens []string
	for range 3 {
		token, err := svc.IssueSession(ctx, user)
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	require.NoError(t, svc.RevokeAllSessions(ctx, user))
	assert.Equal(t, 0, s.sessionCount(user.ID))
	for _, token := range tokens {
		_, err := svc.Authenticate(ctx, user.ID, token)
		require.ErrorIs(t, err, store.ErrNotFound)
	}
}

func TestUpdateProfile_RehashesPassword(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)

	newPassword := "brandnew1"
	updated, err := svc.UpdateProfile(context.Background(), user, ProfileUpdate{Password: &newPassword})
	require.NoError(t, err)
	assert.NotEqual(t, user.PasswordHash, updated.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(newPassword)))

	_, err = svc.VerifyLogin(context.Background(), user.Email, "longpass1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.VerifyLogin(context.Background(), user.Email, newPassword)
	require.NoError(t, err)
}

func TestUpdateProfile_NormalizesEmail(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)

	email := " New@Example.COM "
	updated, err := svc.UpdateProfile(context.Background(), user, ProfileUpdate{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
}

func TestDeleteAccount_CascadesAtomically(t *testing.T) {
	s := newFakeStore()
	svc, publisher := newTestService(t, s)
	user := register(t, svc)
	s.tasks[user.ID] = 5

	ctx := context.Background()
	_, err := svc.IssueSession(ctx, user)
	require.NoError(t, err)
	require.NoError(t, svc.SetAvatar(ctx, user.ID, []byte{0xFF, 0xD8, 0xFF}))

	require.NoError(t, svc.DeleteAccount(ctx, user))
	assert.Equal(t, 0, s.userCount())
	assert.Equal(t, 0, s.taskCount(user.ID))
	assert.Equal(t, 0, s.sessionCount(user.ID))
	assert.Empty(t, s.avatars, "avatar must not outlive the account")

	require.Len(t, publisher.events, 2)
	assert.Equal(t, mq.EventAccountDeleted, publisher.events[1].Type)
}

func TestDeleteAccount_FaultLeavesNothingHalfDeleted(t *testing.T) {
	s := newFakeStore()
	svc, publisher := newTestService(t, s)
	user := register(t, svc)
	s.tasks[user.ID] = 3

	// Tasks delete succeeds inside the transaction, then the user delete
	// fails; the whole cascade must roll back.
	s.failUserDelete = true
	err := svc.DeleteAccount(context.Background(), user)
	require.Error(t, err)

	assert.Equal(t, 1, s.userCount())
	assert.Equal(t, 3, s.taskCount(user.ID))
	require.Len(t, publisher.events, 1, "no deletion event after a failed cascade")
}

func TestDeleteAccount_TaskFaultKeepsUser(t *testing.T) {
	s := newFakeStore()
	svc, _ := newTestService(t, s)
	user := register(t, svc)
	s.tasks[user.ID] = 2

	s.failTaskDelete = true
	err := svc.DeleteAccount(context.Background(), user)
	require.Error(t, err)
	assert.Equal(t, 1, s.userCount())
	assert.Equal(t, 2, s.taskCount(user.ID))
}
