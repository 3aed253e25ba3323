package member

import (
	"context"

	domain "gymdesk/internal/domain/member"
)

// Store persists Member state.
// Implementations return independent copies; callers may mutate results freely.
type Store interface {
	List(ctx context.Context) ([]domain.Member, error)
	ListByCategory(ctx context.Context, category domain.Category) ([]domain.Member, error)
	// Get returns domain.ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (domain.Member, error)
	// Create returns *domain.ValidationError when a required field is missing.
	Create(ctx context.Context, m domain.Member) (domain.Member, error)
	// Update returns domain.ErrNotFound when id is unknown.
	Update(ctx context.Context, id string, p domain.Patch) (domain.Member, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// CollectionKey is the local key holding the member collection.
const CollectionKey = "gym_members"
