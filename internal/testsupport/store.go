// Package testsupport holds in-memory doubles shared by service, handler and
// router tests.
package testsupport

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/pkg/database"
)

var errNoSQL = errors.New("testsupport: memory session does not run SQL")

// MemoryStore is an in-memory repository.Manager. Records are copied in and
// out so callers never alias stored state.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]domain.User
	properties map[string]domain.Property
	seq        int

	// Err, when set, is returned by every repository call wrapped as a
	// persistence failure.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[string]domain.User{},
		properties: map[string]domain.Property{},
	}
}

func (m *MemoryStore) Users(database.DBTX) domain.UserRepository {
	return memUsers{m}
}

func (m *MemoryStore) Properties(database.DBTX) domain.PropertyRepository {
	return memProperties{m}
}

// User returns the stored copy of id.
func (m *MemoryStore) User(id string) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

// PropertyCount returns the number of stored properties.
func (m *MemoryStore) PropertyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.properties)
}

func (m *MemoryStore) failure(op string) error {
	if m.Err == nil {
		return nil
	}
	return domain.WrapError(domain.ErrCodePersistence, op, m.Err)
}

// tick hands out strictly increasing timestamps so newest-first ordering is
// deterministic.
func (m *MemoryStore) tick() time.Time {
	m.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func (m *MemoryStore) snapshot() (map[string]domain.User, map[string]domain.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.users), maps.Clone(m.properties)
}

func (m *MemoryStore) restore(users map[string]domain.User, properties map[string]domain.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users, m.properties = users, properties
}

type memUsers struct{ m *MemoryStore }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("create user"); err != nil {
		return err
	}
	for _, existing := range r.m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = r.m.tick()
	u.UpdatedAt = u.CreatedAt
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("get user by id"); err != nil {
		return nil, err
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("get user by email"); err != nil {
		return nil, err
	}
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) Update(_ context.Context, u *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("update user"); err != nil {
		return err
	}
	if _, ok := r.m.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	u.UpdatedAt = r.m.tick()
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) List(_ context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("list users"); err != nil {
		return nil, err
	}
	out := []*domain.User{}
	for _, u := range r.m.users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, &u)
	}
	slices.SortFunc(out, func(a, b *domain.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r memUsers) CountByStatus(_ context.Context) (map[domain.UserStatus]int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("count users"); err != nil {
		return nil, err
	}
	counts := map[domain.UserStatus]int{
		domain.StatusActive:    0,
		domain.StatusPending:   0,
		domain.StatusSuspended: 0,
	}
	for _, u := range r.m.users {
		counts[u.Status]++
	}
	return counts, nil
}

type memProperties struct{ m *MemoryStore }

func (r memProperties) Create(_ context.Context, p *domain.Property) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("create property"); err != nil {
		return err
	}
	if _, ok := r.m.users[p.OwnerID]; !ok {
		return domain.Invalid("owner %s does not exist", p.OwnerID)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.m.tick()
	p.UpdatedAt = p.CreatedAt
	r.m.properties[p.ID] = *p
	return nil
}

func (r memProperties) GetByID(_ context.Context, id string) (*domain.Property, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("get property"); err != nil {
		return nil, err
	}
	p, ok := r.m.properties[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	return &p, nil
}

func (r memProperties) List(_ context.Context, filter domain.PropertyFilter) ([]*domain.Property, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failure("list properties"); err != nil {
		return nil, err
	}
	out := []*domain.Property{}
	for _, p := range r.m.properties {
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.City != "" && !strings.EqualFold(p.City, filter.City) {
			continue
		}
		if filter.AvailableOnly && !p.IsAvailable {
			continue
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *domain.Property) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Runner is a database.Runner over a MemoryStore. Sessions run one at a time;
// work that returns an error, panics or never commits is undone.
type Runner struct {
	Store *MemoryStore

	mu       sync.Mutex
	sessions int
	commits  int
}

func NewRunner(store *MemoryStore) *Runner {
	return &Runner{Store: store}
}

func (r *Runner) WithSession(ctx context.Context, work func(ctx context.Context, s database.Session) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++

	users, properties := r.Store.snapshot()
	sess := &memSession{}
	defer func() {
		if p := recover(); p != nil {
			r.Store.restore(users, properties)
			panic(p)
		}
		if sess.committed {
			r.commits++
			return
		}
		r.Store.restore(users, properties)
	}()

	return work(ctx, sess)
}

// Sessions returns how many sessions were opened.
func (r *Runner) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions
}

// Commits returns how many sessions committed.
func (r *Runner) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

type memSession struct {
	committed bool
	closed    bool
}

func (s *memSession) Commit() error {
	if s.closed {
		return database.ErrSessionClosed
	}
	s.committed, s.closed = true, true
	return nil
}

func (s *memSession) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (s *memSession) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (s *memSession) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}
