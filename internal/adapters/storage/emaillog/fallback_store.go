package emaillog

import (
	"context"
	"time"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/emaillog"
)

const storeName = "email_logs"

// FallbackStore tries the remote log first and the local log on remote failure.
type FallbackStore struct {
	remote Store
	local  Store
	hook   storage.FallbackHook
	now    func() time.Time
}

var _ Store = (*FallbackStore)(nil)

// NewFallbackStore creates a FallbackStore. hook may be nil.
func NewFallbackStore(remote, local Store, hook storage.FallbackHook) *FallbackStore {
	return &FallbackStore{remote: remote, local: local, hook: hook, now: time.Now}
}

// Append records l in whichever store accepts it.
// POST: an invalid entry is rejected before either store is called
func (s *FallbackStore) Append(ctx context.Context, l domain.EmailLog) (domain.EmailLog, error) {
	if l.SentDate.IsZero() {
		l.SentDate = s.now().UTC()
	}
	if err := l.Validate(); err != nil {
		return domain.EmailLog{}, err
	}
	return storage.WithFallback(ctx, storeName, "append", s.hook,
		func(ctx context.Context) (domain.EmailLog, error) { return s.remote.Append(ctx, l) },
		func(ctx context.Context) (domain.EmailLog, error) { return s.local.Append(ctx, l) },
	)
}

// List returns the remote log, or the local one.
func (s *FallbackStore) List(ctx context.Context) ([]domain.EmailLog, error) {
	return storage.WithFallback(ctx, storeName, "list", s.hook, s.remote.List, s.local.List)
}
