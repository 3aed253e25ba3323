package member_test

import (
	"testing"
	"time"

	"gymdesk/internal/domain/member"
)

func TestComputeStats(t *testing.T) {
	thisMonth := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 5, 30, 8, 0, 0, 0, time.UTC)

	members := []member.Member{
		{ID: "a", SubscriptionDueDate: "2026-06-17", IsActive: true, MembershipType: member.MembershipVIP, CreatedAt: &thisMonth},
		{ID: "b", SubscriptionDueDate: "2026-06-01", IsActive: true, Birthday: "1991-06-15", CreatedAt: &lastMonth},
		{ID: "c", SubscriptionDueDate: "2026-06-16", IsActive: false, MembershipType: member.MembershipStudent},
		{ID: "d", SubscriptionDueDate: "2026-08-01", IsActive: true, MembershipType: member.MembershipBasic},
	}

	got := member.ComputeStats(members, now)

	want := member.Stats{
		TotalMembers:    4,
		ActiveMembers:   3,
		InactiveMembers: 1,
		DueSoon:         1,
		Overdue:         1,
		BirthdaysToday:  1,
		NewThisMonth:    1,
	}
	if got.TotalMembers != want.TotalMembers || got.ActiveMembers != want.ActiveMembers ||
		got.InactiveMembers != want.InactiveMembers || got.DueSoon != want.DueSoon ||
		got.Overdue != want.Overdue || got.BirthdaysToday != want.BirthdaysToday ||
		got.NewThisMonth != want.NewThisMonth {
		t.Errorf("ComputeStats() = %+v, want %+v", got, want)
	}
	if got.MembershipTypes[member.MembershipBasic] != 2 || got.MembershipTypes[member.MembershipVIP] != 1 ||
		got.MembershipTypes[member.MembershipStudent] != 1 {
		t.Errorf("MembershipTypes = %v", got.MembershipTypes)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	got := member.ComputeStats(nil, now)
	if got.TotalMembers != 0 || got.MembershipTypes == nil {
		t.Errorf("ComputeStats(nil) = %+v, want zero counts and non-nil map", got)
	}
}

func TestComputeStatsDueToday(t *testing.T) {
	m := member.Member{ID: "a", SubscriptionDueDate: now.Format(member.DateLayout), IsActive: true}

	got := member.ComputeStats([]member.Member{m}, now)

	if got.Overdue != 0 || got.DueSoon != 1 {
		t.Errorf("ComputeStats() overdue=%d due_soon=%d, want 0 and 1", got.Overdue, got.DueSoon)
	}
	if badge := member.StatusBadgeFor(m, now); badge.Kind != member.BadgeOverdue {
		t.Errorf("StatusBadgeFor() = %q, want overdue on the due date", badge.Kind)
	}
}
