package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taskapp/accounts/internal/store"
	"github.com/taskapp/accounts/types"
)

// fakeStore is an in-memory stand-in for the Postgres repositories. Failure
// flags let tests simulate mid-cascade faults.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	users   map[int]types.User
	session map[int]map[string]bool
	tasks   map[int]int
	avatars map[int][]byte

	failUserDelete bool
	failTaskDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int]types.User),
		session: make(map[int]map[string]bool),
		tasks:   make(map[int]int),
		avatars: make(map[int][]byte),
	}
}

func (f *fakeStore) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeStore) GetBySessionToken(ctx context.Context, id int, token string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok || !f.session[id][token] {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	f.nextID++
	user.ID = f.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) Update(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range f.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUserDelete {
		return errors.New("injected user delete failure")
	}
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) CreateSession(ctx context.Context, userID int, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session[userID] == nil {
		f.session[userID] = make(map[string]bool)
	}
	f.session[userID][token] = true
	return nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, userID int, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.session[userID], token)
	return nil
}

func (f *fakeStore) DeleteAllSessionsForUser(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.session, userID)
	return nil
}

func (f *fakeStore) DeleteTasksByOwner(ctx context.Context, ownerID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTaskDelete {
		return errors.New("injected task delete failure")
	}
	delete(f.tasks, ownerID)
	return nil
}

func (f *fakeStore) Put(ctx context.Context, userID int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return store.ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.avatars[userID] = buf
	return nil
}

func (f *fakeStore) Get(ctx context.Context, userID int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.avatars[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) DeleteAvatar(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.avatars, userID)
	return nil
}

func (f *fakeStore) sessionCount(userID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.session[userID])
}

func (f *fakeStore) hasSession(userID int, token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session[userID][token]
}

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeStore) taskCount(ownerID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[ownerID]
}

// adapters binding fakeStore methods to the service interfaces

type fakeSessions struct{ s *fakeStore }

func (a fakeSessions) Create(ctx context.Context, userID int, token string) error {
	return a.s.CreateSession(ctx, userID, token)
}

func (a fakeSessions) Delete(ctx context.Context, userID int, token string) error {
	return a.s.DeleteSession(ctx, userID, token)
}

func (a fakeSessions) DeleteAllForUser(ctx context.Context, userID int) error {
	return a.s.DeleteAllSessionsForUser(ctx, userID)
}

type fakeTasks struct{ s *fakeStore }

func (a fakeTasks) DeleteByOwner(ctx context.Context, ownerID int) error {
	return a.s.DeleteTasksByOwner(ctx, ownerID)
}

type fakeAvatars struct{ s *fakeStore }

func (a fakeAvatars) Put(ctx context.Context, userID int, data []byte) error {
	return a.s.Put(ctx, userID, data)
}

func (a fakeAvatars) Get(ctx context.Context, userID int) ([]byte, error) {
	return a.s.Get(ctx, userID)
}

func (a fakeAvatars) Delete(ctx context.Context, userID int) error {
	return a.s.DeleteAvatar(ctx, userID)
}

// snapshotTxRunner mimics transaction semantics over the fake store: state is
// snapshotted before fn runs and restored when fn fails, so a mid-cascade
// fault leaves nothing half-deleted.
func snapshotTxRunner(s *fakeStore) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context, stores AccountStores) error) error {
		s.mu.Lock()
		usersCopy := make(map[int]types.User, len(s.users))
		for k, v := range s.users {
			usersCopy[k] = v
		}
		sessionsCopy := make(map[int]map[string]bool, len(s.session))
		for k, v := range s.session {
			inner := make(map[string]bool, len(v))
			for t := range v {
				inner[t] = true
			}
			sessionsCopy[k] = inner
		}
		tasksCopy := make(map[int]int, len(s.tasks))
		for k, v := range s.tasks {
			tasksCopy[k] = v
		}
		s.mu.Unlock()

		err := fn(ctx, AccountStores{
			Users:    s,
			Sessions: fakeSessions{s},
			Tasks:    fakeTasks{s},
		})
		if err != nil {
			s.mu.Lock()
			s.users = usersCopy
			s.session = sessionsCopy
			s.tasks = tasksCopy
			s.mu.Unlock()
			return err
		}
		return nil
	}
}
