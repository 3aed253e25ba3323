package projections

import (
	"context"
	"time"

	"gymdesk/internal/adapters/storage"
	domainMember "gymdesk/internal/domain/member"
)

// GetMemberStatsResult carries the dashboard counters and where they came from.
type GetMemberStatsResult struct {
	domainMember.Stats
	Source string `json:"source"` // "remote" or "local"
}

// GetMemberStatsDeps holds dependencies for GetMemberStats.
type GetMemberStatsDeps struct {
	Remote     StatsSource // nil computes locally only
	LocalStore MemberStore
	Now        func() time.Time
	OnFallback storage.FallbackHook
}

// QueryGetMemberStats returns the backend's counters, or computes them over the
// local collection when the backend cannot answer.
// POST: Source reports which path produced the counters
func QueryGetMemberStats(ctx context.Context, deps GetMemberStatsDeps) (GetMemberStatsResult, error) {
	local := func(ctx context.Context) (GetMemberStatsResult, error) {
		members, err := deps.LocalStore.List(ctx)
		if err != nil {
			return GetMemberStatsResult{}, err
		}
		return GetMemberStatsResult{Stats: domainMember.ComputeStats(members, deps.Now()), Source: "local"}, nil
	}
	if deps.Remote == nil {
		return local(ctx)
	}
	return storage.WithFallback(ctx, "members", "stats", deps.OnFallback,
		func(ctx context.Context) (GetMemberStatsResult, error) {
			stats, err := deps.Remote.MemberStats(ctx)
			if err != nil {
				return GetMemberStatsResult{}, err
			}
			return GetMemberStatsResult{Stats: stats, Source: "remote"}, nil
		},
		local,
	)
}
