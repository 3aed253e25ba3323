package projections

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"gymdesk/internal/application/listutil"
	domainMember "gymdesk/internal/domain/member"
)

// MemberOrderings are the fields a member list can be ordered by.
var MemberOrderings = []string{"full_name", "subscription_due_date", "created_at", "last_checkin_date"}

// DefaultMemberOrdering lists newest members first.
const DefaultMemberOrdering = "-created_at"

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	Category domainMember.Category
	Search   string
	Ordering listutil.Ordering
	Page     listutil.PageParams
}

// MemberRow is a member with its computed status.
type MemberRow struct {
	domainMember.Member
	Badge                domainMember.Badge `json:"badge"`
	BadgeLabel           string             `json:"badge_label"`
	DaysUntilDue         *int               `json:"days_until_due"`
	DaysSinceLastCheckin *int               `json:"days_since_last_checkin"`
}

// GetMemberListResult carries the query result.
// Page is nil when the request did not ask for pagination.
type GetMemberListResult struct {
	Count   int                `json:"count"`
	Members []MemberRow        `json:"results"`
	Page    *listutil.PageInfo `json:"page,omitempty"`
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	MemberStore MemberStore
	Now         func() time.Time
}

// QueryGetMemberList retrieves members with their status badges.
// PRE: query.Category is a known category or empty
// POST: Members are filtered by category, then search, then ordered; Count is the filtered total
// INVARIANT: Badges are computed at a single instant for the whole list
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, deps GetMemberListDeps) (GetMemberListResult, error) {
	var (
		members []domainMember.Member
		err     error
	)
	if query.Category == "" || query.Category == domainMember.CategoryAll {
		members, err = deps.MemberStore.List(ctx)
	} else {
		members, err = deps.MemberStore.ListByCategory(ctx, query.Category)
	}
	if err != nil {
		return GetMemberListResult{}, err
	}

	now := deps.Now()
	rows := make([]MemberRow, 0, len(members))
	for _, m := range members {
		if !matchesSearch(m, query.Search) {
			continue
		}
		rows = append(rows, NewMemberRow(m, now))
	}

	ordering := query.Ordering
	if ordering.Field == "" {
		ordering = listutil.ParseOrdering(DefaultMemberOrdering, MemberOrderings, DefaultMemberOrdering)
	}
	sortMemberRows(rows, ordering)

	result := GetMemberListResult{Count: len(rows), Members: rows}
	if query.Page.Paginate {
		info := listutil.NewPageInfo(query.Page.Page, query.Page.PerPage, len(rows))
		result.Members = listutil.Window(rows, info)
		result.Page = &info
	}
	return result, nil
}

// NewMemberRow computes the badge and day counts for m at now.
func NewMemberRow(m domainMember.Member, now time.Time) MemberRow {
	badge := domainMember.StatusBadgeFor(m, now)
	row := MemberRow{Member: m, Badge: badge, BadgeLabel: badge.Label()}
	if days, err := domainMember.DaysUntilDue(m.SubscriptionDueDate, now); err == nil {
		row.DaysUntilDue = &days
	}
	if days, err := domainMember.DaysSinceLastCheckin(m.LastCheckinDate, now); err == nil && days != domainMember.NeverCheckedIn {
		row.DaysSinceLastCheckin = &days
	}
	return row
}

// matchesSearch is a case-insensitive substring match over name, email and phone.
func matchesSearch(m domainMember.Member, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, field := range []string{m.FullName, m.Email, m.Phone} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// sortableTime formats timestamps so that string order is time order.
const sortableTime = "2006-01-02T15:04:05.000000000"

// sortMemberRows orders rows stably. Empty values sort last in either direction.
func sortMemberRows(rows []MemberRow, o listutil.Ordering) {
	key := func(r MemberRow) string {
		switch o.Field {
		case "full_name":
			return strings.ToLower(r.FullName)
		case "subscription_due_date":
			return r.SubscriptionDueDate
		case "last_checkin_date":
			return r.LastCheckinDate
		default:
			if r.CreatedAt == nil {
				return ""
			}
			return r.CreatedAt.UTC().Format(sortableTime)
		}
	}
	slices.SortStableFunc(rows, func(a, b MemberRow) int {
		ka, kb := key(a), key(b)
		switch {
		case ka == kb:
			return 0
		case ka == "":
			return 1
		case kb == "":
			return -1
		case o.Desc:
			return cmp.Compare(kb, ka)
		default:
			return cmp.Compare(ka, kb)
		}
	})
}
