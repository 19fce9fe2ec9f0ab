package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/CesarCrz/cEatssFB/pkg/repository"
)

// accountRecord is the stored form of a local account.
type accountRecord struct {
	Email    string `json:"email"`
	Hash     string `json:"passwordHash"`
	Disabled bool   `json:"disabled,omitempty"`
}

// accountStore persists local accounts. Lookups return a nil record when the
// account does not exist.
type accountStore interface {
	byEmail(ctx context.Context, email string) (string, *accountRecord, error)
	byUID(ctx context.Context, uid string) (*accountRecord, error)
	// insert fails with CodeEmailAlreadyExists when email is taken.
	insert(ctx context.Context, uid string, rec *accountRecord) error
	put(ctx context.Context, uid string, rec *accountRecord) error
	remove(ctx context.Context, uid string) error
}

type mapAccounts struct {
	mu      sync.RWMutex
	byMail  map[string]string
	records map[string]accountRecord
}

func newMapAccounts() *mapAccounts {
	return &mapAccounts{
		byMail:  make(map[string]string),
		records: make(map[string]accountRecord),
	}
}

func (m *mapAccounts) byEmail(_ context.Context, email string) (string, *accountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.byMail[email]
	if !ok {
		return "", nil, nil
	}
	rec := m.records[uid]
	return uid, &rec, nil
}

func (m *mapAccounts) byUID(_ context.Context, uid string) (*accountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[uid]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mapAccounts) insert(_ context.Context, uid string, rec *accountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byMail[rec.Email]; exists {
		return newError(CodeEmailAlreadyExists, "email %q already registered", rec.Email)
	}
	m.byMail[rec.Email] = uid
	m.records[uid] = *rec
	return nil
}

func (m *mapAccounts) put(_ context.Context, uid string, rec *accountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[uid] = *rec
	return nil
}

func (m *mapAccounts) remove(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[uid]
	if !ok {
		return newError(CodeUserNotFound, "no account %s", uid)
	}
	delete(m.records, uid)
	delete(m.byMail, rec.Email)
	return nil
}

// storeAccounts keeps accounts in the realtime store. The email check and
// the write are not atomic across processes; two concurrent sign-ups with
// one email from different processes can both succeed.
type storeAccounts struct {
	store repository.Store
	// mu serializes inserts within this process.
	mu sync.Mutex
}

func newStoreAccounts(store repository.Store) *storeAccounts {
	return &storeAccounts{store: store}
}

func (s *storeAccounts) byEmail(ctx context.Context, email string) (string, *accountRecord, error) {
	children, err := s.store.List(ctx, repository.Query{
		Path:   repository.AccountsPath(),
		Child:  "email",
		Equals: email,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up account: %w", err)
	}
	decoded, err := repository.DecodeChildren[accountRecord](children)
	if err != nil {
		return "", nil, err
	}
	for uid, rec := range decoded {
		rec := rec
		return uid, &rec, nil
	}
	return "", nil, nil
}

func (s *storeAccounts) byUID(ctx context.Context, uid string) (*accountRecord, error) {
	if repository.ValidateKey(uid) != nil {
		return nil, nil
	}
	var rec accountRecord
	found, err := s.store.Get(ctx, repository.AccountPath(uid), &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

func (s *storeAccounts) insert(ctx context.Context, uid string, rec *accountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existing, err := s.byEmail(ctx, rec.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return newError(CodeEmailAlreadyExists, "email %q already registered", rec.Email)
	}
	return s.put(ctx, uid, rec)
}

func (s *storeAccounts) put(ctx context.Context, uid string, rec *accountRecord) error {
	if err := s.store.Set(ctx, repository.AccountPath(uid), rec); err != nil {
		return fmt.Errorf("failed to write account: %w", err)
	}
	return nil
}

func (s *storeAccounts) remove(ctx context.Context, uid string) error {
	rec, err := s.byUID(ctx, uid)
	if err != nil {
		return err
	}
	if rec == nil {
		return newError(CodeUserNotFound, "no account %s", uid)
	}
	if err := s.store.Set(ctx, repository.AccountPath(uid), nil); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
