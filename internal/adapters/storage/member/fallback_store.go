package member

import (
	"context"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/member"
)

// storeName labels this collection in fallback logs and metrics.
const storeName = "members"

// FallbackStore tries the remote store first and answers from the local store
// when the remote call fails. Each call decides independently.
type FallbackStore struct {
	remote Store
	local  Store
	hook   storage.FallbackHook
}

var _ Store = (*FallbackStore)(nil)

// NewFallbackStore creates a FallbackStore. hook may be nil.
func NewFallbackStore(remote, local Store, hook storage.FallbackHook) *FallbackStore {
	return &FallbackStore{remote: remote, local: local, hook: hook}
}

// List returns the remote collection, or the whole local collection.
func (s *FallbackStore) List(ctx context.Context) ([]domain.Member, error) {
	return storage.WithFallback(ctx, storeName, "list", s.hook, s.remote.List, s.local.List)
}

// ListByCategory returns the remote filtered list, or the local collection
// classified at the current time.
func (s *FallbackStore) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Member, error) {
	return storage.WithFallback(ctx, storeName, "list_by_category", s.hook,
		func(ctx context.Context) ([]domain.Member, error) { return s.remote.ListByCategory(ctx, category) },
		func(ctx context.Context) ([]domain.Member, error) { return s.local.ListByCategory(ctx, category) },
	)
}

// Get returns one member from whichever store answers.
func (s *FallbackStore) Get(ctx context.Context, id string) (domain.Member, error) {
	return storage.WithFallback(ctx, storeName, "get", s.hook,
		func(ctx context.Context) (domain.Member, error) { return s.remote.Get(ctx, id) },
		func(ctx context.Context) (domain.Member, error) { return s.local.Get(ctx, id) },
	)
}

// Create stores a new member.
// POST: a missing required field is returned before any store is called
func (s *FallbackStore) Create(ctx context.Context, m domain.Member) (domain.Member, error) {
	if err := m.CheckRequired(); err != nil {
		return domain.Member{}, err
	}
	return storage.WithFallback(ctx, storeName, "create", s.hook,
		func(ctx context.Context) (domain.Member, error) { return s.remote.Create(ctx, m) },
		func(ctx context.Context) (domain.Member, error) { return s.local.Create(ctx, m) },
	)
}

// Update patches a member.
func (s *FallbackStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Member, error) {
	return storage.WithFallback(ctx, storeName, "update", s.hook,
		func(ctx context.Context) (domain.Member, error) { return s.remote.Update(ctx, id, p) },
		func(ctx context.Context) (domain.Member, error) { return s.local.Update(ctx, id, p) },
	)
}

// Delete removes a member and reports whether one was removed.
func (s *FallbackStore) Delete(ctx context.Context, id string) (bool, error) {
	return storage.WithFallback(ctx, storeName, "delete", s.hook,
		func(ctx context.Context) (bool, error) { return s.remote.Delete(ctx, id) },
		func(ctx context.Context) (bool, error) { return s.local.Delete(ctx, id) },
	)
}
