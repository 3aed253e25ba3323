package emaillog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/emaillog"
)

var fixedNow = time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)

func newTestLocalStore(kv storage.KV) *LocalStore {
	s := NewLocalStore(kv)
	s.now = func() time.Time { return fixedNow }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("log-%d", n)
	}
	return s
}

type fakeAPI struct {
	err  error
	logs []domain.EmailLog
}

func (f *fakeAPI) ListEmailLogs(context.Context) ([]domain.EmailLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.EmailLog{}, f.logs...), nil
}

func (f *fakeAPI) AppendEmailLog(_ context.Context, l domain.EmailLog) (domain.EmailLog, error) {
	if f.err != nil {
		return domain.EmailLog{}, f.err
	}
	l.ID = fmt.Sprintf("remote-%d", len(f.logs)+1)
	f.logs = append(f.logs, l)
	return l, nil
}

func sentLog(memberID, emailType string, at time.Time) domain.EmailLog {
	return domain.EmailLog{
		MemberID:  memberID,
		EmailType: emailType,
		Status:    domain.StatusSent,
		SentDate:  at,
	}
}

func TestLocalStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestLocalStore(storage.NewMemoryKV())

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	older, err := s.Append(ctx, sentLog("m1", domain.TypeBirthday, fixedNow.Add(-48*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "log-1", older.ID)

	newer, err := s.Append(ctx, domain.EmailLog{MemberID: "m2", EmailType: domain.TypeSubscription, Status: domain.StatusFailed, ErrorMessage: "smtp down"})
	require.NoError(t, err)
	assert.True(t, newer.SentDate.Equal(fixedNow), "unset sent date defaults to now")

	logs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, newer.ID, logs[0].ID, "newest first")
	assert.Equal(t, older.ID, logs[1].ID)
}

func TestLocalStore_AppendRejectsInvalid(t *testing.T) {
	s := newTestLocalStore(storage.NewMemoryKV())

	_, err := s.Append(context.Background(), domain.EmailLog{MemberID: "m1", EmailType: "newsletter", Status: domain.StatusSent})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	logs, _ := s.List(context.Background())
	assert.Empty(t, logs)
}

func TestLocalStore_SeparateFromMembers(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestLocalStore(kv)

	_, err := s.Append(ctx, sentLog("m1", domain.TypeInactivity, fixedNow))
	require.NoError(t, err)

	raw, err := kv.Get(ctx, "gym_members")
	require.NoError(t, err)
	assert.Nil(t, raw, "email logs must not touch the member collection")
}

func TestFallbackStore_RemoteHealthy(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	local := newTestLocalStore(storage.NewMemoryKV())
	s := NewFallbackStore(NewRemoteStore(api), local, nil)

	got, err := s.Append(ctx, sentLog("m1", domain.TypeMotivational, fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "remote-1", got.ID)

	localLogs, _ := local.List(ctx)
	assert.Empty(t, localLogs)
}

func TestFallbackStore_RemoteDown(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{err: &remote.Error{Op: "emails.logs", StatusCode: 500}}
	local := newTestLocalStore(storage.NewMemoryKV())
	var ops []string
	s := NewFallbackStore(NewRemoteStore(api), local, func(store, op string, err error) {
		ops = append(ops, store+"/"+op)
	})

	appended, err := s.Append(ctx, sentLog("m1", domain.TypeBirthday, fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "log-1", appended.ID)

	logs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "m1", logs[0].MemberID)
	assert.Equal(t, []string{"email_logs/append", "email_logs/list"}, ops)
}

func TestFallbackStore_InvalidNeverReachesStores(t *testing.T) {
	api := &fakeAPI{err: errors.New("must not be called")}
	local := newTestLocalStore(storage.NewMemoryKV())
	fired := false
	s := NewFallbackStore(NewRemoteStore(api), local, func(string, string, error) { fired = true })

	_, err := s.Append(context.Background(), domain.EmailLog{EmailType: domain.TypeBirthday, Status: domain.StatusSent})
	assert.ErrorIs(t, err, domain.ErrEmptyMemberID)
	assert.False(t, fired)
}
