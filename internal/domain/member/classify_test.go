package member_test

import (
	"testing"
	"time"

	"gymdesk/internal/domain/member"
)

var now = time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)

func TestDaysUntilDue(t *testing.T) {
	tests := []struct {
		due  string
		want int
	}{
		{"2026-06-15", 0},
		{"2026-06-20", 5},
		{"2026-06-21", 6},
		{"2026-06-14", -1},
		{"2027-06-15", 365},
		{"2026-06-15T23:59:00Z", 0},
	}
	for _, tt := range tests {
		t.Run(tt.due, func(t *testing.T) {
			got, err := member.DaysUntilDue(tt.due, now)
			if err != nil {
				t.Fatalf("DaysUntilDue(%q) error = %v", tt.due, err)
			}
			if got != tt.want {
				t.Errorf("DaysUntilDue(%q) = %d, want %d", tt.due, got, tt.want)
			}
		})
	}

	if _, err := member.DaysUntilDue("soon", now); err == nil {
		t.Error("DaysUntilDue(\"soon\") expected error")
	}
}

// TestDaysUntilDueAcrossDST verifies a DST switch does not shift the count.
func TestDaysUntilDueAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// NZ daylight saving starts on the last Sunday of September.
	ref := time.Date(2026, 9, 26, 23, 0, 0, 0, loc)
	got, err := member.DaysUntilDue("2026-09-28", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("DaysUntilDue across DST = %d, want 2", got)
	}
}

func TestDaysSinceLastCheckin(t *testing.T) {
	tests := []struct {
		name    string
		last    string
		want    int
		wantErr bool
	}{
		{"never", "", member.NeverCheckedIn, false},
		{"today", "2026-06-15", 0, false},
		{"seven days", "2026-06-08", 7, false},
		{"eight days", "2026-06-07", 8, false},
		{"garbage", "yesterday", member.NeverCheckedIn, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := member.DaysSinceLastCheckin(tt.last, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DaysSinceLastCheckin(%q) = %d, want %d", tt.last, got, tt.want)
			}
		})
	}
}

func TestIsBirthdayToday(t *testing.T) {
	tests := []struct {
		birthday string
		at       time.Time
		want     bool
	}{
		{"1990-06-15", now, true},
		{"1990-06-15", time.Date(2031, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"1990-06-16", now, false},
		{"1990-07-15", now, false},
		{"", now, false},
		{"not-a-date", now, false},
		{"2000-02-29", time.Date(2027, 2, 28, 12, 0, 0, 0, time.UTC), false},
		{"2000-02-29", time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC), false},
		{"2000-02-29", time.Date(2028, 2, 29, 12, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		if got := member.IsBirthdayToday(tt.birthday, tt.at); got != tt.want {
			t.Errorf("IsBirthdayToday(%q, %s) = %v, want %v", tt.birthday, tt.at.Format(member.DateLayout), got, tt.want)
		}
	}
}

func ids(members []member.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestClassify(t *testing.T) {
	members := []member.Member{
		{ID: "due-today", SubscriptionDueDate: "2026-06-15", LastCheckinDate: "2026-06-14", IsActive: true},
		{ID: "due-5", SubscriptionDueDate: "2026-06-20", LastCheckinDate: "2026-06-08", IsActive: true},
		{ID: "due-6", SubscriptionDueDate: "2026-06-21", LastCheckinDate: "2026-06-07", IsActive: false},
		{ID: "overdue", SubscriptionDueDate: "2026-06-14", IsActive: true},
		{ID: "birthday", SubscriptionDueDate: "2026-09-01", Birthday: "1988-06-15", LastCheckinDate: "2026-06-15", IsActive: false},
		{ID: "bad-dates", SubscriptionDueDate: "tomorrow", LastCheckinDate: "recently", IsActive: true},
	}

	tests := []struct {
		category member.Category
		want     []string
	}{
		{member.CategoryAll, []string{"due-today", "due-5", "due-6", "overdue", "birthday", "bad-dates"}},
		{member.CategoryDueSoon, []string{"due-today", "due-5"}},
		{member.CategoryInactive, []string{"due-6", "overdue", "bad-dates"}},
		{member.CategoryBirthdays, []string{"birthday"}},
		{member.CategoryActiveOnly, []string{"due-today", "due-5", "overdue", "bad-dates"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got := ids(member.Classify(members, tt.category, now))
			if !equalIDs(got, tt.want) {
				t.Errorf("Classify(%s) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestClassifyEmpty(t *testing.T) {
	got := member.Classify(nil, member.CategoryDueSoon, now)
	if got == nil || len(got) != 0 {
		t.Errorf("Classify(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range member.Categories {
		got, err := member.ParseCategory(string(c))
		if err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, err)
		}
	}
	if got, err := member.ParseCategory(""); err != nil || got != member.CategoryAll {
		t.Errorf("ParseCategory(\"\") = %q, %v; want all", got, err)
	}
	if _, err := member.ParseCategory("vip"); err == nil {
		t.Error("ParseCategory(\"vip\") expected error")
	}
}

func TestStatusBadgeFor(t *testing.T) {
	tests := []struct {
		name      string
		m         member.Member
		wantKind  member.BadgeKind
		wantLabel string
	}{
		{
			name:      "birthday beats overdue",
			m:         member.Member{Birthday: "1990-06-15", SubscriptionDueDate: "2026-06-01"},
			wantKind:  member.BadgeBirthday,
			wantLabel: "Birthday",
		},
		{
			name:      "due today is overdue",
			m:         member.Member{SubscriptionDueDate: "2026-06-15", LastCheckinDate: "2026-06-15"},
			wantKind:  member.BadgeOverdue,
			wantLabel: "Overdue",
		},
		{
			name:      "due in one day",
			m:         member.Member{SubscriptionDueDate: "2026-06-16"},
			wantKind:  member.BadgeDueSoon,
			wantLabel: "Due in 1 day",
		},
		{
			name:      "due in five days beats inactive",
			m:         member.Member{SubscriptionDueDate: "2026-06-20"},
			wantKind:  member.BadgeDueSoon,
			wantLabel: "Due in 5 days",
		},
		{
			name:      "inactive",
			m:         member.Member{SubscriptionDueDate: "2026-07-15", LastCheckinDate: "2026-06-01"},
			wantKind:  member.BadgeInactive,
			wantLabel: "Inactive",
		},
		{
			name:      "never checked in",
			m:         member.Member{SubscriptionDueDate: "2026-07-15"},
			wantKind:  member.BadgeInactive,
			wantLabel: "Inactive",
		},
		{
			name:      "active",
			m:         member.Member{SubscriptionDueDate: "2026-07-15", LastCheckinDate: "2026-06-08"},
			wantKind:  member.BadgeActive,
			wantLabel: "Active",
		},
		{
			name:      "unparseable due date skips due checks",
			m:         member.Member{SubscriptionDueDate: "n/a", LastCheckinDate: "2026-06-14"},
			wantKind:  member.BadgeActive,
			wantLabel: "Active",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := member.StatusBadgeFor(tt.m, now)
			if b.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", b.Kind, tt.wantKind)
			}
			if b.Label() != tt.wantLabel {
				t.Errorf("Label() = %q, want %q", b.Label(), tt.wantLabel)
			}
		})
	}
}

func TestMemberPredicates(t *testing.T) {
	m := member.Member{SubscriptionDueDate: "2026-06-10"}
	if !m.IsOverdue(now) {
		t.Error("IsOverdue() = false, want true")
	}
	if m.IsDueSoon(now) {
		t.Error("IsDueSoon() = true, want false")
	}
	if !m.Matches(member.Category("unknown"), now) {
		t.Error("unknown category should match everything")
	}
}
