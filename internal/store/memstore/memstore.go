// Package memstore is an in-memory Store used by every other package's
// unit tests. It has no transaction engine of its own — Mongo sessions
// aren't embeddable inside `go test` — so WithinTransaction just holds a
// transaction mutex (separate from the one every method takes) for the
// duration of fn, serializing transactions against each other, which is
// transactional enough for exercising Reconciler/NotificationPlanner/
// Dispatcher business logic against.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	classes      map[string]model.StoredClass
	cursors      map[string]model.ParserCursor
	users        map[string]model.User
	pendingSends map[string]model.PendingSend
}

// New creates an empty Store. Seed users via SeedUser and classes via
// InsertClasses before exercising it.
func New() *Store {
	return &Store{
		classes:      map[string]model.StoredClass{},
		cursors:      map[string]model.ParserCursor{},
		users:        map[string]model.User{},
		pendingSends: map[string]model.PendingSend{},
	}
}

// SeedUser inserts a user directly, bypassing any notification side
// effects — for test setup only.
func (s *Store) SeedUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *Store) DayClasses(ctx context.Context, day time.Time) ([]model.StoredClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var out []model.StoredClass
	for _, sc := range s.classes {
		if !sc.Class.Range.Start.Before(start) && sc.Class.Range.Start.Before(end) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class.Range.Start.Before(out[j].Class.Range.Start) })
	return out, nil
}

func (s *Store) InsertClasses(ctx context.Context, classes []model.Class) ([]model.StoredClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.StoredClass, 0, len(classes))
	for _, c := range classes {
		sc := model.StoredClass{ID: uuid.NewString(), Class: c}
		s.classes[sc.ID] = sc
		out = append(out, sc)
	}
	return out, nil
}

func (s *Store) DeleteClasses(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.classes, id)
	}
	return nil
}

func (s *Store) ClassByID(ctx context.Context, id string) (model.StoredClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.classes[id]
	if !ok {
		return model.StoredClass{}, store.ErrNotFound
	}
	return sc, nil
}

func (s *Store) Cursor(ctx context.Context, name string) (model.ParserCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[name]
	if !ok {
		return model.ParserCursor{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) SaveCursor(ctx context.Context, cursor model.ParserCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.Name] = cursor
	return nil
}

func (s *Store) UsersInGroup(ctx context.Context, groupCode string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		if u.InGroup(groupCode) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) User(ctx context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) ClassesInGroups(ctx context.Context, groups []string, after time.Time) ([]model.StoredClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.StoredClass
	for _, sc := range s.classes {
		if !sc.Class.Range.Start.After(after) {
			continue
		}
		for _, code := range groups {
			if sc.Class.HasGroup(code) {
				out = append(out, sc)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class.Range.Start.Before(out[j].Class.Range.Start) })
	return out, nil
}

func (s *Store) FullResyncPairs(ctx context.Context, now time.Time) ([]store.ResyncPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.ResyncPair
	for _, sc := range s.classes {
		if sc.Class.Range.Start.Before(now) {
			continue
		}
		for _, u := range s.users {
			for _, g := range sc.Class.Groups {
				if u.InGroup(g.Code) {
					out = append(out, store.ResyncPair{User: u, Class: sc})
					break
				}
			}
		}
	}
	return out, nil
}

func pendingSendKey(userID, classID string, leadTime time.Duration) string {
	return fmt.Sprintf("%s|%s|%d", userID, classID, leadTime)
}

func (s *Store) UpsertPendingSend(ctx context.Context, ps model.PendingSend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pendingSendKey(ps.UserID, ps.ClassID, ps.LeadTime)
	if ps.ID == "" {
		ps.ID = key
	}
	s.pendingSends[key] = ps
	return nil
}

func (s *Store) DeletePendingSendsForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ps := range s.pendingSends {
		if ps.UserID == userID {
			delete(s.pendingSends, k)
		}
	}
	return nil
}

func (s *Store) DeletePendingSendsForClass(ctx context.Context, classID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var affected []string
	for k, ps := range s.pendingSends {
		if ps.ClassID != classID {
			continue
		}
		if _, ok := seen[ps.UserID]; !ok {
			seen[ps.UserID] = struct{}{}
			affected = append(affected, ps.UserID)
		}
		delete(s.pendingSends, k)
	}
	return affected, nil
}

func (s *Store) DueSends(ctx context.Context, asOf time.Time) ([]model.PendingSend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PendingSend
	for _, ps := range s.pendingSends {
		if !ps.FireAt.After(asOf) {
			out = append(out, ps)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (s *Store) DeleteSends(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.pendingSends, id)
	}
	return nil
}

func (s *Store) DeleteStaleSends(ctx context.Context, olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ps := range s.pendingSends {
		if ps.FireAt.Before(olderThan) {
			delete(s.pendingSends, k)
		}
	}
	return nil
}
