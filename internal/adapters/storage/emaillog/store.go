package emaillog

import (
	"context"

	domain "gymdesk/internal/domain/emaillog"
)

// Store persists the notification history.
type Store interface {
	// Append validates l, fills in the id and sent date if unset, and records it.
	Append(ctx context.Context, l domain.EmailLog) (domain.EmailLog, error)
	// List returns every entry, newest first.
	List(ctx context.Context) ([]domain.EmailLog, error)
}

// CollectionKey is the local key holding the email log collection.
const CollectionKey = "gym_email_logs"
