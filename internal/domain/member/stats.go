package member

import "time"

// Stats summarises the member collection for the dashboard header.
type Stats struct {
	TotalMembers    int            `json:"total_members"`
	ActiveMembers   int            `json:"active_members"`
	InactiveMembers int            `json:"inactive_members"`
	DueSoon         int            `json:"due_soon"`
	Overdue         int            `json:"overdue"`
	BirthdaysToday  int            `json:"birthdays_today"`
	NewThisMonth    int            `json:"new_this_month"`
	MembershipTypes map[string]int `json:"membership_types"`
}

// ComputeStats derives Stats from members at now.
// Due-soon, overdue and birthday counts only consider active members.
// Members without a membership type count as basic.
// Overdue uses IsOverdue, so a member due today is counted as due soon
// even though its badge reads Overdue.
// INVARIANT: members is not mutated
func ComputeStats(members []Member, now time.Time) Stats {
	s := Stats{
		TotalMembers:    len(members),
		MembershipTypes: make(map[string]int),
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for _, m := range members {
		kind := m.MembershipType
		if kind == "" {
			kind = MembershipBasic
		}
		s.MembershipTypes[kind]++

		if m.CreatedAt != nil && !m.CreatedAt.Before(monthStart) {
			s.NewThisMonth++
		}
		if !m.IsActive {
			continue
		}
		s.ActiveMembers++
		if m.IsDueSoon(now) {
			s.DueSoon++
		}
		if m.IsOverdue(now) {
			s.Overdue++
		}
		if m.HasBirthdayToday(now) {
			s.BirthdaysToday++
		}
	}
	s.InactiveMembers = s.TotalMembers - s.ActiveMembers
	return s
}
