package email

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNoRecipients is returned for a request without a To address.
var ErrNoRecipients = errors.New("email has no recipients")

// SendRequest is one outgoing message.
type SendRequest struct {
	To      []string
	From    string // empty uses the sender's configured address
	Subject string
	HTML    string
	Text    string // plain-text alternative, optional
	ReplyTo string // empty uses the sender's configured reply-to
	// Tags label the message at the provider, e.g. email_type=birthday.
	Tags map[string]string
}

// Validate checks the fields every provider requires.
func (r SendRequest) Validate() error {
	if len(r.To) == 0 {
		return ErrNoRecipients
	}
	if r.Subject == "" {
		return errors.New("email has no subject")
	}
	return nil
}

// tagNames returns the tag keys in a stable order.
func (r SendRequest) tagNames() []string {
	names := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SendResult is the provider's acknowledgement.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers email through a provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
}
