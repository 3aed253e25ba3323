package projections

import (
	"context"
	"encoding/json"

	domainMember "gymdesk/internal/domain/member"
)

// MemberStore interface for member queries.
type MemberStore interface {
	List(ctx context.Context) ([]domainMember.Member, error)
	ListByCategory(ctx context.Context, category domainMember.Category) ([]domainMember.Member, error)
}

// StatsSource computes dashboard counters on the backend. *remote.Client satisfies it.
type StatsSource interface {
	MemberStats(ctx context.Context) (domainMember.Stats, error)
}

// PortalSource fetches the signed-in member's portal dashboard. *remote.Client satisfies it.
type PortalSource interface {
	PortalDashboard(ctx context.Context) (json.RawMessage, error)
}
