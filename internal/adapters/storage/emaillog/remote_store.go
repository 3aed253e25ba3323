package emaillog

import (
	"context"

	domain "gymdesk/internal/domain/emaillog"
)

// API is the part of the backend client the email log store uses.
type API interface {
	ListEmailLogs(ctx context.Context) ([]domain.EmailLog, error)
	AppendEmailLog(ctx context.Context, l domain.EmailLog) (domain.EmailLog, error)
}

// RemoteStore implements Store against the backend REST API.
type RemoteStore struct {
	api API
}

var _ Store = (*RemoteStore)(nil)

// NewRemoteStore creates a RemoteStore over api.
func NewRemoteStore(api API) *RemoteStore {
	return &RemoteStore{api: api}
}

// Append posts l; the backend assigns the id.
func (s *RemoteStore) Append(ctx context.Context, l domain.EmailLog) (domain.EmailLog, error) {
	if err := l.Validate(); err != nil {
		return domain.EmailLog{}, err
	}
	return s.api.AppendEmailLog(ctx, l)
}

// List fetches the backend log, newest first.
func (s *RemoteStore) List(ctx context.Context) ([]domain.EmailLog, error) {
	logs, err := s.api.ListEmailLogs(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(logs)
	return logs, nil
}
