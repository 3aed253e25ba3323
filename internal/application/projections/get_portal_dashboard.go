package projections

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainMember "gymdesk/internal/domain/member"
)

// PortalStats are the member's training counters as computed by the backend.
type PortalStats struct {
	TotalWorkouts     int    `json:"total_workouts"`
	ThisMonthWorkouts int    `json:"this_month_workouts"`
	WorkoutStreak     int    `json:"workout_streak"`
	MembershipStatus  string `json:"membership_status"`
	DaysUntilDue      *int   `json:"days_until_due"`
}

// PortalDashboard is the signed-in member's home screen.
// Plan, workouts and sessions are passed through untouched.
type PortalDashboard struct {
	Member             domainMember.Member `json:"member"`
	CurrentWorkoutPlan json.RawMessage     `json:"current_workout_plan"`
	RecentWorkouts     json.RawMessage     `json:"recent_workouts"`
	UpcomingSessions   json.RawMessage     `json:"upcoming_sessions"`
	Stats              PortalStats         `json:"stats"`
	Badge              domainMember.Badge  `json:"badge"`
	BadgeLabel         string              `json:"badge_label"`
}

// GetPortalDashboardDeps holds dependencies for GetPortalDashboard.
type GetPortalDashboardDeps struct {
	Portal PortalSource
	Now    func() time.Time
}

// QueryGetPortalDashboard fetches the dashboard from the backend and adds the
// member's status badge. There is no local fallback; portal data lives only remotely.
// PRE: ctx carries the member's bearer token
// POST: Empty collections are returned as [] and a missing plan as null
func QueryGetPortalDashboard(ctx context.Context, deps GetPortalDashboardDeps) (PortalDashboard, error) {
	raw, err := deps.Portal.PortalDashboard(ctx)
	if err != nil {
		return PortalDashboard{}, err
	}
	var d PortalDashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return PortalDashboard{}, fmt.Errorf("decode portal dashboard: %w", err)
	}
	if len(d.CurrentWorkoutPlan) == 0 {
		d.CurrentWorkoutPlan = json.RawMessage("null")
	}
	if len(d.RecentWorkouts) == 0 || string(d.RecentWorkouts) == "null" {
		d.RecentWorkouts = json.RawMessage("[]")
	}
	if len(d.UpcomingSessions) == 0 || string(d.UpcomingSessions) == "null" {
		d.UpcomingSessions = json.RawMessage("[]")
	}
	d.Badge = domainMember.StatusBadgeFor(d.Member, deps.Now())
	d.BadgeLabel = d.Badge.Label()
	return d, nil
}
