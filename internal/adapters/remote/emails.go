package remote

import (
	"context"
	"net/http"

	"gymdesk/internal/domain/emaillog"
)

// ListEmailLogs fetches the notification history.
func (c *Client) ListEmailLogs(ctx context.Context) ([]emaillog.EmailLog, error) {
	r := request{op: "emails.logs", method: http.MethodGet, path: "/emails/logs/"}
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeCollection[emaillog.EmailLog](r.op, body)
}

// AppendEmailLog records a send attempt and returns the stored entry.
func (c *Client) AppendEmailLog(ctx context.Context, l emaillog.EmailLog) (emaillog.EmailLog, error) {
	r, err := jsonRequest("emails.log_append", http.MethodPost, "/emails/logs/", l)
	if err != nil {
		return emaillog.EmailLog{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return emaillog.EmailLog{}, err
	}
	return decodeObject[emaillog.EmailLog](r.op, body)
}

// SendRequest asks the backend to send one kind of email.
// Empty MemberIDs means every eligible member.
type SendRequest struct {
	EmailType string   `json:"email_type"`
	MemberIDs []string `json:"member_ids,omitempty"`
	ForceSend bool     `json:"force_send"`
}

// SendAccepted is the backend's reply once a send batch is queued.
type SendAccepted struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// SendSubscriptionReminders triggers the backend's due-soon reminder batch.
func (c *Client) SendSubscriptionReminders(ctx context.Context) (SendAccepted, error) {
	return c.trigger(ctx, request{op: "emails.send_reminders", method: http.MethodPost, path: "/emails/send-reminders/"})
}

// SendMotivationalEmails triggers the backend's motivational batch.
func (c *Client) SendMotivationalEmails(ctx context.Context) (SendAccepted, error) {
	return c.trigger(ctx, request{op: "emails.send_motivational", method: http.MethodPost, path: "/emails/send-motivational/"})
}

// SendEmails triggers any email type, optionally restricted to members.
func (c *Client) SendEmails(ctx context.Context, req SendRequest) (SendAccepted, error) {
	r, err := jsonRequest("emails.send", http.MethodPost, "/emails/send/", req)
	if err != nil {
		return SendAccepted{}, err
	}
	return c.trigger(ctx, r)
}

func (c *Client) trigger(ctx context.Context, r request) (SendAccepted, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return SendAccepted{}, err
	}
	return decodeObject[SendAccepted](r.op, body)
}
