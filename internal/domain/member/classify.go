package member

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Classification thresholds, in calendar days.
const (
	DueSoonDays  = 5
	InactiveDays = 7
)

// NeverCheckedIn is returned by DaysSinceLastCheckin when no check-in is recorded.
// It compares greater than any real day count.
const NeverCheckedIn = math.MaxInt

// Category names a derived member subset.
type Category string

const (
	CategoryAll        Category = "all"
	CategoryDueSoon    Category = "due_soon"
	CategoryInactive   Category = "inactive"
	CategoryBirthdays  Category = "birthdays"
	CategoryActiveOnly Category = "active_only"
)

// Categories lists every known category.
var Categories = []Category{CategoryAll, CategoryDueSoon, CategoryInactive, CategoryBirthdays, CategoryActiveOnly}

// ParseCategory maps a filter string to a Category. The empty string means all.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryAll, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "filter", Message: fmt.Sprintf("unknown category %q", s)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD). A full RFC 3339 timestamp
// is accepted too and truncated to its date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// civilDays counts calendar days from a to b using their dates only.
// Both dates are rebuilt in UTC so DST transitions never shift the count.
func civilDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// DaysUntilDue returns the signed number of calendar days from now to dueDate.
// Negative means overdue, zero means due today.
func DaysUntilDue(dueDate string, now time.Time) (int, error) {
	due, err := ParseDate(dueDate)
	if err != nil {
		return 0, err
	}
	return civilDays(now, due), nil
}

// DaysSinceLastCheckin returns calendar days from the last check-in to now,
// or NeverCheckedIn when lastCheckin is empty.
func DaysSinceLastCheckin(lastCheckin string, now time.Time) (int, error) {
	if strings.TrimSpace(lastCheckin) == "" {
		return NeverCheckedIn, nil
	}
	at, err := ParseDate(lastCheckin)
	if err != nil {
		return NeverCheckedIn, err
	}
	return civilDays(at, now), nil
}

// IsBirthdayToday reports whether birthday falls on now's month and day.
// The year is ignored; a Feb 29 birthday only matches on Feb 29.
func IsBirthdayToday(birthday string, now time.Time) bool {
	if strings.TrimSpace(birthday) == "" {
		return false
	}
	b, err := ParseDate(birthday)
	if err != nil {
		return false
	}
	return b.Month() == now.Month() && b.Day() == now.Day()
}

// IsDueSoon reports 0 <= DaysUntilDue <= DueSoonDays.
func (m Member) IsDueSoon(now time.Time) bool {
	days, err := DaysUntilDue(m.SubscriptionDueDate, now)
	return err == nil && days >= 0 && days <= DueSoonDays
}

// IsOverdue reports DaysUntilDue < 0. A member due today is not overdue
// here, and ComputeStats counts it as due soon, but StatusBadgeFor already
// shows the Overdue badge on the due date. The two boundaries differ on
// purpose; keep them apart.
func (m Member) IsOverdue(now time.Time) bool {
	days, err := DaysUntilDue(m.SubscriptionDueDate, now)
	return err == nil && days < 0
}

// IsInactive reports a member who never checked in or last checked in more than
// InactiveDays ago. An unreadable check-in date counts as never.
func (m Member) IsInactive(now time.Time) bool {
	days, _ := DaysSinceLastCheckin(m.LastCheckinDate, now)
	return days > InactiveDays
}

// HasBirthdayToday reports IsBirthdayToday for the member.
func (m Member) HasBirthdayToday(now time.Time) bool {
	return IsBirthdayToday(m.Birthday, now)
}

// Matches reports whether m belongs to category at now.
// Unknown categories match everything.
func (m Member) Matches(category Category, now time.Time) bool {
	switch category {
	case CategoryDueSoon:
		return m.IsDueSoon(now)
	case CategoryInactive:
		return m.IsInactive(now)
	case CategoryBirthdays:
		return m.HasBirthdayToday(now)
	case CategoryActiveOnly:
		return m.IsActive
	default:
		return true
	}
}

// Classify returns the members in category, preserving input order.
// INVARIANT: members is not mutated; the result is a new slice even for CategoryAll
func Classify(members []Member, category Category, now time.Time) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.Matches(category, now) {
			out = append(out, m)
		}
	}
	return out
}

// BadgeKind is the single status shown for a member.
type BadgeKind string

const (
	BadgeBirthday BadgeKind = "birthday"
	BadgeOverdue  BadgeKind = "overdue"
	BadgeDueSoon  BadgeKind = "due_soon"
	BadgeInactive BadgeKind = "inactive"
	BadgeActive   BadgeKind = "active"
)

// Badge is the highest-priority status of a member.
// DaysUntilDue is only meaningful for BadgeDueSoon.
type Badge struct {
	Kind         BadgeKind `json:"kind"`
	DaysUntilDue int       `json:"days_until_due,omitempty"`
}

// Label renders the badge the way the dashboard shows it.
func (b Badge) Label() string {
	switch b.Kind {
	case BadgeBirthday:
		return "Birthday"
	case BadgeOverdue:
		return "Overdue"
	case BadgeDueSoon:
		if b.DaysUntilDue == 1 {
			return "Due in 1 day"
		}
		return fmt.Sprintf("Due in %d days", b.DaysUntilDue)
	case BadgeInactive:
		return "Inactive"
	default:
		return "Active"
	}
}

// StatusBadgeFor evaluates badges in strict priority order:
// birthday, overdue (due in <= 0 days), due soon (<= DueSoonDays), inactive, active.
func StatusBadgeFor(m Member, now time.Time) Badge {
	if m.HasBirthdayToday(now) {
		return Badge{Kind: BadgeBirthday}
	}
	if days, err := DaysUntilDue(m.SubscriptionDueDate, now); err == nil {
		if days <= 0 {
			return Badge{Kind: BadgeOverdue}
		}
		if days <= DueSoonDays {
			return Badge{Kind: BadgeDueSoon, DaysUntilDue: days}
		}
	}
	if m.IsInactive(now) {
		return Badge{Kind: BadgeInactive}
	}
	return Badge{Kind: BadgeActive}
}
