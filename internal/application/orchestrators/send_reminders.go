package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	emailAdapter "gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/storage"
	emailLogStore "gymdesk/internal/adapters/storage/emaillog"
	"gymdesk/internal/domain/emaillog"
	"gymdesk/internal/domain/member"
)

// dedupeWindowDays is how far back a sent log of the same type suppresses a
// reminder, counted from the start of today. Zero means today only.
var dedupeWindowDays = map[string]int{
	emaillog.TypeSubscription: 1,
	emaillog.TypeMotivational: 7,
	emaillog.TypeBirthday:     0,
	emaillog.TypeInactivity:   7,
}

// ErrUnknownEmailType is returned for an email type with no reminder.
var ErrUnknownEmailType = errors.New("email_type must be subscription, motivational, birthday or inactivity")

// ReminderTrigger queues reminder batches on the backend. *remote.Client satisfies it.
type ReminderTrigger interface {
	SendSubscriptionReminders(ctx context.Context) (remote.SendAccepted, error)
	SendMotivationalEmails(ctx context.Context) (remote.SendAccepted, error)
	SendEmails(ctx context.Context, req remote.SendRequest) (remote.SendAccepted, error)
}

// MemberLister lists every member.
type MemberLister interface {
	List(ctx context.Context) ([]member.Member, error)
}

// SendRemindersInput selects which reminders to send.
type SendRemindersInput struct {
	EmailType string   `json:"email_type"`
	MemberIDs []string `json:"member_ids,omitempty"`
	Force     bool     `json:"force_send"`
}

// SendRemindersResult reports what happened. Remote batches are queued
// asynchronously, so only local sends carry counts.
type SendRemindersResult struct {
	Remote  bool   `json:"remote"`
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// SendRemindersDeps holds dependencies for ExecuteSendReminders.
type SendRemindersDeps struct {
	Trigger     ReminderTrigger // nil sends locally only
	Members     MemberLister
	EmailLogs   emailLogStore.Store
	Sender      emailAdapter.Sender
	Renderer    *emailAdapter.Renderer
	GymName     string
	FrontendURL string
	Now         func() time.Time
	OnFallback  storage.FallbackHook
	// OnComplete, when set, sees every successful result.
	OnComplete func(emailType string, res SendRemindersResult)
}

// ExecuteSendReminders asks the backend to send a reminder batch and, when the
// backend cannot be reached, selects recipients and sends the emails itself.
// PRE: input.EmailType is one of emaillog.Types
// POST: Locally, every selected member gets exactly one EmailLog (sent or failed)
// INVARIANT: Without Force, a member with a sent log of the same type inside the
//
//	dedupe window is skipped and gets no log
func ExecuteSendReminders(ctx context.Context, input SendRemindersInput, deps SendRemindersDeps) (SendRemindersResult, error) {
	res, err := sendReminders(ctx, input, deps)
	if err == nil && deps.OnComplete != nil {
		deps.OnComplete(input.EmailType, res)
	}
	return res, err
}

func sendReminders(ctx context.Context, input SendRemindersInput, deps SendRemindersDeps) (SendRemindersResult, error) {
	if !emaillog.IsValidType(input.EmailType) {
		return SendRemindersResult{}, ErrUnknownEmailType
	}

	if deps.Trigger != nil {
		accepted, err := triggerRemote(ctx, input, deps.Trigger)
		if err == nil {
			slog.Info("reminders_queued_remote", "email_type", input.EmailType, "task_id", accepted.TaskID)
			return SendRemindersResult{Remote: true, Message: accepted.Message, TaskID: accepted.TaskID}, nil
		}
		if !storage.ShouldFallback(ctx, err) {
			return SendRemindersResult{}, err
		}
		slog.Warn("remote_fallback", "store", "reminders", "op", input.EmailType, "error", err)
		if deps.OnFallback != nil {
			deps.OnFallback("reminders", input.EmailType, err)
		}
	}

	return sendRemindersLocally(ctx, input, deps)
}

func triggerRemote(ctx context.Context, input SendRemindersInput, t ReminderTrigger) (remote.SendAccepted, error) {
	targeted := len(input.MemberIDs) > 0 || input.Force
	switch {
	case input.EmailType == emaillog.TypeSubscription && !targeted:
		return t.SendSubscriptionReminders(ctx)
	case input.EmailType == emaillog.TypeMotivational && !targeted:
		return t.SendMotivationalEmails(ctx)
	default:
		return t.SendEmails(ctx, remote.SendRequest{
			EmailType: input.EmailType,
			MemberIDs: input.MemberIDs,
			ForceSend: input.Force,
		})
	}
}

// reminderRecipients returns the active members eligible for emailType at now.
func reminderRecipients(members []member.Member, emailType string, memberIDs []string, now time.Time) []member.Member {
	var out []member.Member
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if len(memberIDs) > 0 && !slices.Contains(memberIDs, m.ID) {
			continue
		}
		var eligible bool
		switch emailType {
		case emaillog.TypeSubscription:
			eligible = m.IsDueSoon(now)
		case emaillog.TypeMotivational:
			eligible = true
		case emaillog.TypeBirthday:
			eligible = m.HasBirthdayToday(now)
		case emaillog.TypeInactivity:
			eligible = m.IsInactive(now)
		}
		if eligible {
			out = append(out, m)
		}
	}
	return out
}

func sendRemindersLocally(ctx context.Context, input SendRemindersInput, deps SendRemindersDeps) (SendRemindersResult, error) {
	now := deps.Now()
	members, err := deps.Members.List(ctx)
	if err != nil {
		return SendRemindersResult{}, fmt.Errorf("list members: %w", err)
	}
	recipients := reminderRecipients(members, input.EmailType, input.MemberIDs, now)

	var logs []emaillog.EmailLog
	if !input.Force && len(recipients) > 0 {
		logs, err = deps.EmailLogs.List(ctx)
		if err != nil {
			return SendRemindersResult{}, fmt.Errorf("list email logs: %w", err)
		}
	}
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	since := startOfToday.AddDate(0, 0, -dedupeWindowDays[input.EmailType])

	result := SendRemindersResult{}
	for _, m := range recipients {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !input.Force && emaillog.WasSentSince(logs, m.ID, input.EmailType, since) {
			slog.Info("reminder_skipped_recent", "member_id", m.ID, "email_type", input.EmailType)
			result.Skipped++
			continue
		}

		entry := emaillog.EmailLog{
			MemberID:    m.ID,
			MemberName:  m.FullName,
			MemberEmail: m.Email,
			EmailType:   input.EmailType,
			SentDate:    now,
			Status:      emaillog.StatusSent,
		}
		msg, sendErr := renderReminder(deps, input.EmailType, m, now)
		entry.Subject = msg.Subject
		if sendErr == nil {
			_, sendErr = deps.Sender.Send(ctx, emailAdapter.SendRequest{
				To:      []string{m.Email},
				Subject: msg.Subject,
				HTML:    msg.HTML,
				Text:    msg.Text,
				Tags:    map[string]string{"email_type": input.EmailType, "member_id": m.ID},
			})
		}
		if sendErr != nil {
			entry.Status = emaillog.StatusFailed
			entry.ErrorMessage = sendErr.Error()
			result.Failed++
			slog.Error("reminder_send_failed", "member_id", m.ID, "email_type", input.EmailType, "error", sendErr)
		} else {
			result.Sent++
		}

		if _, err := deps.EmailLogs.Append(ctx, entry); err != nil {
			slog.Error("reminder_log_failed", "member_id", m.ID, "email_type", input.EmailType, "error", err)
		}
	}

	result.Message = fmt.Sprintf("%s emails: %d sent, %d failed, %d skipped",
		strings.ToUpper(input.EmailType[:1])+input.EmailType[1:], result.Sent, result.Failed, result.Skipped)
	slog.Info("reminders_sent_local", "email_type", input.EmailType,
		"sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// renderReminder fills the template variables for m.
func renderReminder(deps SendRemindersDeps, emailType string, m member.Member, now time.Time) (emailAdapter.Message, error) {
	firstName := m.FullName
	if fields := strings.Fields(m.FullName); len(fields) > 0 {
		firstName = fields[0]
	}
	vars := map[string]any{
		"first_name":      firstName,
		"full_name":       m.FullName,
		"email":           m.Email,
		"membership_type": m.MembershipType,
		"due_date":        m.SubscriptionDueDate,
		"gym_name":        deps.GymName,
		"frontend_url":    deps.FrontendURL,
	}
	if days, err := member.DaysUntilDue(m.SubscriptionDueDate, now); err == nil {
		vars["days_until_due"] = days
	}
	if days, err := member.DaysSinceLastCheckin(m.LastCheckinDate, now); err == nil && days != member.NeverCheckedIn {
		vars["days_since_checkin"] = days
	}
	if b, err := member.ParseDate(m.Birthday); err == nil && b.Year() > 1900 {
		vars["age"] = now.Year() - b.Year()
	}
	return deps.Renderer.Render(emailType, vars)
}
