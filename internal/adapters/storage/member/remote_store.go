package member

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/member"
)

// API is the slice of the remote backend client the member store needs.
// *remote.Client satisfies it.
type API interface {
	ListMembers(ctx context.Context, category domain.Category) ([]domain.Member, error)
	GetMember(ctx context.Context, id string) (domain.Member, error)
	CreateMember(ctx context.Context, m domain.Member) (domain.Member, error)
	UpdateMember(ctx context.Context, id string, p domain.Patch) (domain.Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// RemoteStore implements Store against the backend REST API.
// Every error it returns is a remote failure.
type RemoteStore struct {
	api API
	now func() time.Time
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore creates a RemoteStore over api.
func NewRemoteStore(api API) *RemoteStore {
	return &RemoteStore{api: api, now: time.Now}
}

// List fetches every member.
func (s *RemoteStore) List(ctx context.Context) ([]domain.Member, error) {
	return s.api.ListMembers(ctx, domain.CategoryAll)
}

// ListByCategory forwards category to the backend and classifies the
// result again, so a backend that ignores the filter still yields only
// members of category.
func (s *RemoteStore) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Member, error) {
	members, err := s.api.ListMembers(ctx, category)
	if err != nil {
		return nil, err
	}
	return domain.Classify(members, category, s.now()), nil
}

// Get fetches one member.
func (s *RemoteStore) Get(ctx context.Context, id string) (domain.Member, error) {
	return s.api.GetMember(ctx, id)
}

// Create posts a new member.
func (s *RemoteStore) Create(ctx context.Context, m domain.Member) (domain.Member, error) {
	if err := m.CheckRequired(); err != nil {
		return domain.Member{}, err
	}
	return s.api.CreateMember(ctx, m)
}

// Update patches a member.
func (s *RemoteStore) Update(ctx context.Context, id string, p domain.Patch) (domain.Member, error) {
	return s.api.UpdateMember(ctx, id, p)
}

// Delete removes a member. A rejected delete is an error, never false.
func (s *RemoteStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.api.DeleteMember(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}
