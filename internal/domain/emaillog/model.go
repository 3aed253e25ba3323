package emaillog

import (
	"errors"
	"slices"
	"time"
)

// Email types recorded in the log.
const (
	TypeSubscription = "subscription"
	TypeInactivity   = "inactivity"
	TypeBirthday     = "birthday"
	TypeMotivational = "motivational"
)

// Types lists every email type.
var Types = []string{TypeSubscription, TypeInactivity, TypeBirthday, TypeMotivational}

// Delivery outcomes.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Domain errors
var (
	ErrEmptyMemberID = errors.New("member_id is required")
	ErrInvalidType   = errors.New("email_type must be subscription, inactivity, birthday or motivational")
	ErrInvalidStatus = errors.New("status must be sent or failed")
	ErrEmptySentDate = errors.New("sent_date must be set")
)

// EmailLog records one attempted notification to a member.
// MemberName and MemberEmail are captured at send time and never re-synced.
type EmailLog struct {
	ID           string    `json:"id"`
	MemberID     string    `json:"member"`
	MemberName   string    `json:"member_name"`
	MemberEmail  string    `json:"member_email"`
	EmailType    string    `json:"email_type"`
	Subject      string    `json:"email_subject,omitempty"`
	SentDate     time.Time `json:"sent_date"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Validate checks that the EmailLog has valid data.
// PRE: EmailLog struct is populated
// POST: Returns nil if valid, error otherwise
func (l *EmailLog) Validate() error {
	if l.MemberID == "" {
		return ErrEmptyMemberID
	}
	if !IsValidType(l.EmailType) {
		return ErrInvalidType
	}
	if l.Status != StatusSent && l.Status != StatusFailed {
		return ErrInvalidStatus
	}
	if l.SentDate.IsZero() {
		return ErrEmptySentDate
	}
	return nil
}

// IsValidType reports whether t is a known email type.
func IsValidType(t string) bool {
	return slices.Contains(Types, t)
}

// WasSentSince reports whether a sent email of emailType reached memberID at or after since.
// INVARIANT: logs is not mutated
func WasSentSince(logs []EmailLog, memberID, emailType string, since time.Time) bool {
	for _, l := range logs {
		if l.MemberID == memberID && l.EmailType == emailType && l.Status == StatusSent && !l.SentDate.Before(since) {
			return true
		}
	}
	return false
}

// SortNewestFirst orders logs by SentDate descending, the way the log view lists them.
func SortNewestFirst(logs []EmailLog) {
	slices.SortStableFunc(logs, func(a, b EmailLog) int {
		return b.SentDate.Compare(a.SentDate)
	})
}
