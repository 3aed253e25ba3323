package emaillog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/emaillog"
)

// LocalStore keeps the email log as one JSON array under a single key.
type LocalStore struct {
	kv    storage.KV
	key   string
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore over kv.
func NewLocalStore(kv storage.KV) *LocalStore {
	return &LocalStore{
		kv:    kv,
		key:   CollectionKey,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *LocalStore) load(ctx context.Context) ([]domain.EmailLog, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load email logs: %w", err)
	}
	logs := []domain.EmailLog{}
	if len(data) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(data, &logs); err != nil {
		slog.Warn("local_store_corrupt", "key", s.key, "error", err)
		return []domain.EmailLog{}, nil
	}
	if logs == nil {
		logs = []domain.EmailLog{}
	}
	return logs, nil
}

// Append records l.
// PRE: l.MemberID, l.EmailType and l.Status are set
// POST: l has an id and sent date and appears in a following List
func (s *LocalStore) Append(ctx context.Context, l domain.EmailLog) (domain.EmailLog, error) {
	if l.SentDate.IsZero() {
		l.SentDate = s.now().UTC()
	}
	if err := l.Validate(); err != nil {
		return domain.EmailLog{}, err
	}
	if l.ID == "" {
		l.ID = s.newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.load(ctx)
	if err != nil {
		return domain.EmailLog{}, err
	}
	logs = append(logs, l)
	data, err := json.Marshal(logs)
	if err != nil {
		return domain.EmailLog{}, fmt.Errorf("encode email logs: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return domain.EmailLog{}, fmt.Errorf("save email logs: %w", err)
	}
	return l, nil
}

// List returns the local log, newest first.
func (s *LocalStore) List(ctx context.Context) ([]domain.EmailLog, error) {
	s.mu.Lock()
	logs, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(logs)
	return logs, nil
}
