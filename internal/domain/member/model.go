package member

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar-date layout used for every date field.
const DateLayout = "2006-01-02"

// Max length constants for user-editable fields.
const (
	MaxNameLength  = 255
	MaxPhoneLength = 20
)

// Membership types offered by the gym.
const (
	MembershipBasic   = "basic"
	MembershipPremium = "premium"
	MembershipVIP     = "vip"
	MembershipStudent = "student"
)

// MembershipTypes lists the accepted membership_type values in display order.
var MembershipTypes = []string{MembershipBasic, MembershipPremium, MembershipVIP, MembershipStudent}

// ErrNotFound is returned when no member exists with the requested id.
var ErrNotFound = errors.New("member not found")

// ValidationError reports a missing or malformed member field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Member is one gym member record.
// Optional fields are empty strings when absent.
type Member struct {
	ID                  string     `json:"id"`
	FullName            string     `json:"full_name"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone,omitempty"`
	SubscriptionDueDate string     `json:"subscription_due_date"`
	Birthday            string     `json:"birthday,omitempty"`
	LastCheckinDate     string     `json:"last_checkin_date,omitempty"`
	EmergencyContact    string     `json:"emergency_contact,omitempty"`
	Address             string     `json:"address,omitempty"`
	MembershipType      string     `json:"membership_type,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	Milestones          []string   `json:"milestones,omitempty"`
	IsActive            bool       `json:"is_active"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
// INVARIANT: m is not mutated
func (m Member) Clone() Member {
	c := m
	if m.Milestones != nil {
		c.Milestones = slices.Clone(m.Milestones)
	}
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		c.CreatedAt = &t
	}
	if m.UpdatedAt != nil {
		t := *m.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

// CheckRequired reports the first required field that is absent.
// It does not judge the field contents; Validate does that.
// POST: Returns *ValidationError or nil
func (m *Member) CheckRequired() error {
	switch {
	case strings.TrimSpace(m.FullName) == "":
		return &ValidationError{Field: "full_name", Message: "is required"}
	case strings.TrimSpace(m.Email) == "":
		return &ValidationError{Field: "email", Message: "is required"}
	case strings.TrimSpace(m.SubscriptionDueDate) == "":
		return &ValidationError{Field: "subscription_due_date", Message: "is required"}
	}
	return nil
}

// Validate checks the Member the way the admin form does before saving.
// PRE: Member struct is initialized
// POST: Returns *ValidationError if validation fails, nil otherwise
// INVARIANT: required fields present, email parseable, dates are YYYY-MM-DD
func (m *Member) Validate() error {
	if err := m.CheckRequired(); err != nil {
		return err
	}
	if len(m.FullName) > MaxNameLength {
		return &ValidationError{Field: "full_name", Message: fmt.Sprintf("cannot exceed %d characters", MaxNameLength)}
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return &ValidationError{Field: "email", Message: "must be a valid address"}
	}
	if len(m.Phone) > MaxPhoneLength {
		return &ValidationError{Field: "phone", Message: fmt.Sprintf("cannot exceed %d characters", MaxPhoneLength)}
	}
	dates := []struct{ field, value string }{
		{"subscription_due_date", m.SubscriptionDueDate},
		{"birthday", m.Birthday},
		{"last_checkin_date", m.LastCheckinDate},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if _, err := ParseDate(d.value); err != nil {
			return &ValidationError{Field: d.field, Message: "must be a date in YYYY-MM-DD format"}
		}
	}
	if m.MembershipType != "" && !slices.Contains(MembershipTypes, m.MembershipType) {
		return &ValidationError{Field: "membership_type", Message: "must be one of " + strings.Join(MembershipTypes, ", ")}
	}
	return nil
}

// Patch is a partial update. Nil fields are left untouched by Apply.
// ID and CreatedAt are immutable and therefore absent.
type Patch struct {
	FullName            *string   `json:"full_name,omitempty"`
	Email               *string   `json:"email,omitempty"`
	Phone               *string   `json:"phone,omitempty"`
	SubscriptionDueDate *string   `json:"subscription_due_date,omitempty"`
	Birthday            *string   `json:"birthday,omitempty"`
	LastCheckinDate     *string   `json:"last_checkin_date,omitempty"`
	EmergencyContact    *string   `json:"emergency_contact,omitempty"`
	Address             *string   `json:"address,omitempty"`
	MembershipType      *string   `json:"membership_type,omitempty"`
	Notes               *string   `json:"notes,omitempty"`
	Milestones          *[]string `json:"milestones,omitempty"`
	IsActive            *bool     `json:"is_active,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Validate checks the fields p sets with the same rules as Member.Validate.
// A required field may not be cleared.
func (p Patch) Validate() error {
	probe := Member{FullName: "-", Email: "probe@example.com", SubscriptionDueDate: "2000-01-01"}
	p.Apply(&probe)
	return probe.Validate()
}

// Apply merges the set fields of p into m shallowly.
// POST: Unset fields keep their previous values; UpdatedAt is not touched
func (p Patch) Apply(m *Member) {
	setString(&m.FullName, p.FullName)
	setString(&m.Email, p.Email)
	setString(&m.Phone, p.Phone)
	setString(&m.SubscriptionDueDate, p.SubscriptionDueDate)
	setString(&m.Birthday, p.Birthday)
	setString(&m.LastCheckinDate, p.LastCheckinDate)
	setString(&m.EmergencyContact, p.EmergencyContact)
	setString(&m.Address, p.Address)
	setString(&m.MembershipType, p.MembershipType)
	setString(&m.Notes, p.Notes)
	if p.Milestones != nil {
		m.Milestones = slices.Clone(*p.Milestones)
	}
	if p.IsActive != nil {
		m.IsActive = *p.IsActive
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
