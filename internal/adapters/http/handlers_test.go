package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/storage"
	emailLogStore "gymdesk/internal/adapters/storage/emaillog"
	memberStore "gymdesk/internal/adapters/storage/member"
	"gymdesk/internal/application/orchestrators"
)

// testNow is 2026-06-15 10:00 UTC.
var testNow = time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)

type fakePortal struct {
	dashboard string
	err       error
	token     string
	sessionID string
}

func (f *fakePortal) call(ctx context.Context, body string) (json.RawMessage, error) {
	f.token, _ = remote.BearerToken(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(body), nil
}

func (f *fakePortal) PortalDashboard(ctx context.Context) (json.RawMessage, error) {
	return f.call(ctx, f.dashboard)
}

func (f *fakePortal) WorkoutLogs(ctx context.Context) (json.RawMessage, error) {
	return f.call(ctx, `[{"id":"w1"}]`)
}

func (f *fakePortal) TrainingSessions(ctx context.Context) (json.RawMessage, error) {
	return f.call(ctx, `[]`)
}

func (f *fakePortal) JoinTrainingSession(ctx context.Context, id string) (json.RawMessage, error) {
	f.sessionID = id
	return f.call(ctx, `{"message":"joined"}`)
}

func (f *fakePortal) LeaveTrainingSession(ctx context.Context, id string) (json.RawMessage, error) {
	f.sessionID = id
	return f.call(ctx, `{"message":"left"}`)
}

func (f *fakePortal) CheckIn(ctx context.Context) (json.RawMessage, error) {
	return f.call(ctx, `{"id":"c1"}`)
}

func (f *fakePortal) CheckOut(ctx context.Context) (json.RawMessage, error) {
	return f.call(ctx, `{"id":"c1"}`)
}

type testServer struct {
	handler http.Handler
	app     *App
	portal  *fakePortal
	sender  *email.NoopSender
}

func newTestServer(t *testing.T, verifier *middleware.TokenVerifier) *testServer {
	t.Helper()
	timeNow = func() time.Time { return testNow }
	t.Cleanup(func() { timeNow = time.Now })

	kv := storage.NewMemoryKV()
	members := memberStore.NewLocalStore(kv)
	logs := emailLogStore.NewLocalStore(kv)
	sender := email.NewNoopSender()
	portal := &fakePortal{dashboard: `{"member":{"id":"m1","full_name":"Cara Diaz","email":"cara@example.com","subscription_due_date":"2026-06-10","is_active":true},"stats":{"total_workouts":3}}`}

	a := &App{
		Members:      members,
		LocalMembers: members,
		EmailLogs:    logs,
		Portal:       portal,
		Metrics:      metrics.New(),
		Reminders: orchestrators.SendRemindersDeps{
			Members:     members,
			EmailLogs:   logs,
			Sender:      sender,
			Renderer:    email.NewRenderer(nil),
			GymName:     "Test Gym",
			FrontendURL: "https://gym.test",
			Now:         func() time.Time { return testNow },
		},
	}
	h := NewRouter(a, perf.NewCollector(100), Options{Verifier: verifier})
	return &testServer{handler: h, app: a, portal: portal, sender: sender}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

const caraJSON = `{"full_name":"Cara Diaz","email":"cara@example.com","subscription_due_date":"2026-06-17","phone":"021 555"}`

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestMembers_CRUD(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, "POST", "/api/members", caraJSON)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body)
	}
	created := decode[map[string]any](t, rr)
	id, _ := created["id"].(string)
	if id == "" || created["is_active"] != true || created["membership_type"] != "basic" {
		t.Fatalf("created = %v", created)
	}

	rr = s.do(t, "GET", "/api/members", "")
	list := decode[struct {
		Count   int `json:"count"`
		Results []struct {
			ID         string `json:"id"`
			BadgeLabel string `json:"badge_label"`
		} `json:"results"`
	}](t, rr)
	if list.Count != 1 || list.Results[0].ID != id || list.Results[0].BadgeLabel != "Due in 2 days" {
		t.Errorf("list = %+v", list)
	}

	if rr = s.do(t, "GET", "/api/members/"+id, ""); rr.Code != http.StatusOK {
		t.Errorf("get status = %d", rr.Code)
	}

	rr = s.do(t, "PATCH", "/api/members/"+id, `{"is_active":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rr.Code, rr.Body)
	}
	patched := decode[map[string]any](t, rr)
	if patched["is_active"] != false || patched["full_name"] != "Cara Diaz" {
		t.Errorf("patched = %v", patched)
	}

	if rr = s.do(t, "DELETE", "/api/members/"+id, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr = s.do(t, "DELETE", "/api/members/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
	if rr = s.do(t, "GET", "/api/members/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestMembers_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name, method, path, body, want string
	}{
		{"missing email", "POST", "/api/members", `{"full_name":"A","subscription_due_date":"2026-07-01"}`, "email"},
		{"bad date", "POST", "/api/members", `{"full_name":"A","email":"a@b.co","subscription_due_date":"01/07/2026"}`, "subscription_due_date"},
		{"unknown field", "POST", "/api/members", `{"full_name":"A","colour":"red"}`, "invalid request body"},
		{"empty patch", "PATCH", "/api/members/x", `{}`, "no fields"},
		{"unknown filter", "GET", "/api/members?filter=vip", "", "unknown category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, tt.body)
			if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("status=%d body=%s, want 400 mentioning %q", rr.Code, rr.Body, tt.want)
			}
		})
	}

	if rr := s.do(t, "PATCH", "/api/members/missing", `{"notes":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("patch missing status = %d, want 404", rr.Code)
	}
}

func TestMembers_FilterAndStats(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, "POST", "/api/members", caraJSON)
	s.do(t, "POST", "/api/members", `{"full_name":"Ben Ng","email":"ben@example.com","subscription_due_date":"2026-09-01","last_checkin_date":"2026-06-14"}`)

	rr := s.do(t, "GET", "/api/members?filter=due_soon", "")
	if got := decode[map[string]any](t, rr)["count"]; got != float64(1) {
		t.Errorf("due_soon count = %v, want 1", got)
	}

	rr = s.do(t, "GET", "/api/members/stats", "")
	stats := decode[map[string]any](t, rr)
	if stats["source"] != "local" || stats["total_members"] != float64(2) || stats["due_soon"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestBulkUpload(t *testing.T) {
	s := newTestServer(t, nil)
	csvData := "full_name,email,subscription_due_date\nAna Lee,ana@example.com,2026-07-01\nNo Email,,2026-07-01\n"

	body, ct := multipartUpload(t, "members.csv", csvData)
	req := httptest.NewRequest("POST", "/api/members/bulk-upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer staff-token")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	res := decode[orchestrators.BulkUploadResult](t, rr)
	if res.Remote || res.Created != 1 || len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Row 2:") {
		t.Errorf("result = %+v", res)
	}

	body, ct = multipartUpload(t, "members.pdf", "x")
	req = httptest.NewRequest("POST", "/api/members/bulk-upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer staff-token")
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("pdf status = %d, want 400", rr.Code)
	}
}

// TestBulkUpload_RequiresCSRFWithoutBearer verifies a cookie-style multipart post is rejected.
func TestBulkUpload_RequiresCSRFWithoutBearer(t *testing.T) {
	s := newTestServer(t, nil)
	body, ct := multipartUpload(t, "members.csv", "full_name,email,subscription_due_date\n")
	req := httptest.NewRequest("POST", "/api/members/bulk-upload", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestUploadTemplate(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(t, "GET", "/api/members/template.csv", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("status=%d type=%s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rr.Body.String(), "full_name,email,subscription_due_date") {
		t.Errorf("template = %q", rr.Body.String())
	}
}

func TestSendEmails_Local(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, "POST", "/api/members", caraJSON)

	rr := s.do(t, "POST", "/api/emails/subscription", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	res := decode[orchestrators.SendRemindersResult](t, rr)
	if res.Sent != 1 || res.Remote {
		t.Errorf("result = %+v", res)
	}
	if sent := s.sender.Sent(); len(sent) != 1 || sent[0].To[0] != "cara@example.com" {
		t.Errorf("sent = %+v", sent)
	}

	// A second run inside the window is skipped.
	res = decode[orchestrators.SendRemindersResult](t, s.do(t, "POST", "/api/emails/subscription", `{}`))
	if res.Skipped != 1 || res.Sent != 0 {
		t.Errorf("second run = %+v", res)
	}

	logs := decode[[]map[string]any](t, s.do(t, "GET", "/api/email-logs?email_type=subscription", ""))
	if len(logs) != 1 || logs[0]["status"] != "sent" {
		t.Errorf("logs = %v", logs)
	}
	if logs := decode[[]map[string]any](t, s.do(t, "GET", "/api/email-logs?email_type=birthday", "")); len(logs) != 0 {
		t.Errorf("birthday logs = %v", logs)
	}

	if rr := s.do(t, "POST", "/api/emails/newsletter", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rr.Code)
	}
}

func TestPortal(t *testing.T) {
	s := newTestServer(t, nil)
	auth := []string{"Authorization", "Bearer member-token"}

	rr := s.do(t, "GET", "/api/portal/dashboard", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	dash := decode[map[string]any](t, rr)
	if dash["badge_label"] != "Overdue" || s.portal.token != "member-token" {
		t.Errorf("badge=%v token=%q", dash["badge_label"], s.portal.token)
	}
	if string(mustJSON(t, dash["recent_workouts"])) != "[]" {
		t.Errorf("recent_workouts = %v", dash["recent_workouts"])
	}

	rr = s.do(t, "POST", "/api/portal/training-sessions/ts-9/join", "", auth...)
	if rr.Code != http.StatusOK || s.portal.sessionID != "ts-9" {
		t.Errorf("join status=%d session=%q", rr.Code, s.portal.sessionID)
	}
	if rr = s.do(t, "POST", "/api/portal/checkin", "", auth...); rr.Code != http.StatusCreated {
		t.Errorf("checkin status = %d, want 201", rr.Code)
	}
	if rr = s.do(t, "GET", "/api/portal/workout-logs", "", auth...); rr.Body.String() != `[{"id":"w1"}]` {
		t.Errorf("workout logs body = %s", rr.Body)
	}
}

func TestPortal_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"backend down", &remote.Error{Op: "portal.dashboard", Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
		{"backend 500", &remote.Error{Op: "portal.dashboard", StatusCode: 500}, http.StatusBadGateway},
		{"no member profile", &remote.Error{Op: "portal.dashboard", StatusCode: 404, Message: "Member profile not found"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.portal.err = tt.err
			if rr := s.do(t, "GET", "/api/portal/dashboard", ""); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if rr := s.do(t, "POST", "/api/portal/checkout", "", "Authorization", "Bearer member-token"); rr.Code != tt.want {
				t.Errorf("checkout status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthEnabled(t *testing.T) {
	v := middleware.NewTokenVerifier([]byte("0123456789abcdef0123456789abcdef"), "")
	s := newTestServer(t, v)
	token := func(role string) string {
		tok, err := v.Sign(middleware.Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}})
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + tok
	}

	tests := []struct {
		name, path, auth string
		want             int
	}{
		{"admin route without token", "/api/members", "", http.StatusUnauthorized},
		{"admin route as member", "/api/members", token("member"), http.StatusForbidden},
		{"admin route as staff", "/api/members", token("staff"), http.StatusOK},
		{"portal without token", "/api/portal/dashboard", "", http.StatusUnauthorized},
		{"portal as member", "/api/portal/dashboard", token("member"), http.StatusOK},
		{"health is public", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.auth != "" {
				headers = []string{"Authorization", tt.auth}
			}
			if rr := s.do(t, "GET", tt.path, "", headers...); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestMetricsAndPerf(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, "GET", "/api/members", "")

	rr := s.do(t, "GET", "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Errorf("metrics status=%d", rr.Code)
	}

	// perf uses the real clock for its window, so restore it for this call.
	timeNow = time.Now
	rr = s.do(t, "GET", "/api/perf", "")
	snap := decode[perf.Snapshot](t, rr)
	if snap.TotalRecorded < 1 {
		t.Errorf("perf snapshot = %+v", snap)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
