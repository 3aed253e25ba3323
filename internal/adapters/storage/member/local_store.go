package member

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/member"
)

// LocalStore keeps the member collection as one JSON array under a single key.
// Every write rewrites the whole collection.
type LocalStore struct {
	kv    storage.KV
	key   string
	mu    sync.Mutex // serialises read-modify-write of the collection
	now   func() time.Time
	newID func() string
}

// Compile-time check that *LocalStore satisfies Store.
var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore over kv.
// An unwritten key reads as an empty collection.
func NewLocalStore(kv storage.KV) *LocalStore {
	return &LocalStore{
		kv:    kv,
		key:   CollectionKey,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// load reads the collection. A corrupt payload is logged and read as empty.
func (s *LocalStore) load(ctx context.Context) ([]domain.Member, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	members := []domain.Member{}
	if len(data) == 0 {
		return members, nil
	}
	if err := json.Unmarshal(data, &members); err != nil {
		slog.Warn("local_store_corrupt", "key", s.key, "error", err)
		return []domain.Member{}, nil
	}
	if members == nil {
		members = []domain.Member{}
	}
	return members, nil
}

func (s *LocalStore) save(ctx context.Context, members []domain.Member) error {
	data, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save members: %w", err)
	}
	return nil
}

// List returns the whole local collection in stored order.
func (s *LocalStore) List(ctx context.Context) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// ListByCategory classifies the whole local collection at the current time.
func (s *LocalStore) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Member, error) {
	members, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Classify(members, category, s.now()), nil
}

// Get returns the member with id.
// POST: Returns domain.ErrNotFound if absent
func (s *LocalStore) Get(ctx context.Context, id string) (domain.Member, error) {
	members, err := s.List(ctx)
	if err != nil {
		return domain.Member{}, err
	}
	for _, m := range members {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Member{}, domain.ErrNotFound
}

// Create assigns an id and timestamps, appends m and persists the collection.
// PRE: m passed CheckRequired (re-checked here; contents are not validated)
// POST: the returned record is present in a following List
func (s *LocalStore) Create(ctx context.Context, m domain.Member) (domain.Member, error) {
	if err := m.CheckRequired(); err != nil {
		return domain.Member{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.load(ctx)
	if err != nil {
		return domain.Member{}, err
	}

	created := m.Clone()
	created.ID = s.newID()
	now := s.now().UTC()
	created.CreatedAt = &now
	updated := now
	created.UpdatedAt = &updated

	members = append(members, created)
	if err := s.save(ctx, members); err != nil {
		return domain.Member{}, err
	}
	return created.Clone(), nil
}

// Update merges p into the member with id and refreshes updated_at.
// POST: Returns domain.ErrNotFound and writes nothing if id is absent
func (s *LocalStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.load(ctx)
	if err != nil {
		return domain.Member{}, err
	}
	for i := range members {
		if members[i].ID != id {
			continue
		}
		p.Apply(&members[i])
		now := s.now().UTC()
		members[i].UpdatedAt = &now
		if err := s.save(ctx, members); err != nil {
			return domain.Member{}, err
		}
		return members[i].Clone(), nil
	}
	return domain.Member{}, domain.ErrNotFound
}

// Delete removes the member with id.
// POST: Returns false and writes nothing if id is absent
func (s *LocalStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	kept := members[:0]
	for _, m := range members {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(members) {
		return false, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}
