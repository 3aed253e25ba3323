package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/spreadsheet"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/emaillog"
	domainMember "gymdesk/internal/domain/member"
)

// maxUploadBytes bounds a bulk upload file.
const maxUploadBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response_encode_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeError(w, http.StatusInternalServerError, "operation failed")
}

// storeError maps member store errors to a status.
func storeError(w http.ResponseWriter, err error) {
	var ve *domainMember.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domainMember.ErrNotFound):
		writeError(w, http.StatusNotFound, "member not found")
	default:
		internalError(w, err)
	}
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleHealth reports liveness. The backend is not probed.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCSRFToken hands browser clients the token for multipart uploads.
func handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token := csrf.Token(r)
	w.Header().Set("X-CSRF-Token", token)
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// handlePerf returns the timing snapshot for the last ?minutes= (default 60).
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if perfCollector == nil {
		writeError(w, http.StatusNotFound, "perf collection disabled")
		return
	}
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	since := timeNow().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(since, 10))
}

// handleListMembers lists members by ?filter=, ?search=, ?ordering= with optional ?page= paging.
func handleListMembers(w http.ResponseWriter, r *http.Request) {
	lp := listutil.ParseListParams(r.URL.Query(), projections.MemberOrderings, projections.DefaultMemberOrdering)
	category, err := domainMember.ParseCategory(lp.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := projections.GetMemberListQuery{
		Category: category,
		Search:   lp.Search,
		Ordering: lp.Ordering,
		Page:     lp.PageParams,
	}
	deps := projections.GetMemberListDeps{MemberStore: app.Members, Now: timeNow}

	result, err := projections.QueryGetMemberList(r.Context(), query, deps)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// createMemberRequest is the create body. is_active defaults to true.
type createMemberRequest struct {
	FullName            string   `json:"full_name"`
	Email               string   `json:"email"`
	Phone               string   `json:"phone"`
	SubscriptionDueDate string   `json:"subscription_due_date"`
	Birthday            string   `json:"birthday"`
	LastCheckinDate     string   `json:"last_checkin_date"`
	EmergencyContact    string   `json:"emergency_contact"`
	Address             string   `json:"address"`
	MembershipType      string   `json:"membership_type"`
	Notes               string   `json:"notes"`
	Milestones          []string `json:"milestones"`
	IsActive            *bool    `json:"is_active"`
}

func (req createMemberRequest) member() domainMember.Member {
	m := domainMember.Member{
		FullName:            req.FullName,
		Email:               req.Email,
		Phone:               req.Phone,
		SubscriptionDueDate: req.SubscriptionDueDate,
		Birthday:            req.Birthday,
		LastCheckinDate:     req.LastCheckinDate,
		EmergencyContact:    req.EmergencyContact,
		Address:             req.Address,
		MembershipType:      req.MembershipType,
		Notes:               req.Notes,
		Milestones:          req.Milestones,
		IsActive:            true,
	}
	if m.MembershipType == "" {
		m.MembershipType = domainMember.MembershipBasic
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	return m
}

func handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := strictDecode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	m := req.member()
	if err := m.Validate(); err != nil {
		storeError(w, err)
		return
	}
	created, err := app.Members.Create(r.Context(), m)
	if err != nil {
		storeError(w, err)
		return
	}
	slog.Info("member_created", "member_id", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := app.Members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projections.NewMemberRow(m, timeNow()))
}

func handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var patch domainMember.Patch
	if err := strictDecode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if err := patch.Validate(); err != nil {
		storeError(w, err)
		return
	}
	updated, err := app.Members.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := app.Members.Delete(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	slog.Info("member_deleted", "member_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func handleMemberStats(w http.ResponseWriter, r *http.Request) {
	deps := projections.GetMemberStatsDeps{
		Remote:     app.Stats,
		LocalStore: app.LocalMembers,
		Now:        timeNow,
		OnFallback: app.OnFallback,
	}
	result, err := projections.QueryGetMemberStats(r.Context(), deps)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="member_upload_template.csv"`)
	w.Write(spreadsheet.TemplateCSV())
}

// handleBulkUpload imports the multipart field "file".
func handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	input := orchestrators.BulkUploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	deps := orchestrators.BulkUploadDeps{
		Uploader:     app.Uploader,
		LocalMembers: app.LocalMembers,
		OnFallback:   app.OnFallback,
	}
	result, err := orchestrators.ExecuteBulkUpload(r.Context(), input, deps)
	var ve *orchestrators.BulkUploadValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	case err != nil:
		internalError(w, err)
		return
	}
	if app.Metrics != nil {
		app.Metrics.RecordBulkUpload(result.Remote, result.Created, result.Skipped, len(result.Errors))
	}
	slog.Info("bulk_upload_complete", "file", header.Filename, "remote", result.Remote,
		"created", result.Created, "skipped", result.Skipped, "errors", len(result.Errors))
	writeJSON(w, http.StatusOK, result)
}

// handleListEmailLogs lists logs newest first, optionally narrowed by ?email_type= and ?member=.
func handleListEmailLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := app.EmailLogs.List(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	q := r.URL.Query()
	emailType, memberID := q.Get("email_type"), q.Get("member")
	out := make([]emaillog.EmailLog, 0, len(logs))
	for _, l := range logs {
		if (emailType == "" || l.EmailType == emailType) && (memberID == "" || l.MemberID == memberID) {
			out = append(out, l)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// sendEmailsRequest is the optional body of POST /api/emails/{kind}.
type sendEmailsRequest struct {
	MemberIDs []string `json:"member_ids"`
	ForceSend bool     `json:"force_send"`
}

// handleSendEmails sends one reminder kind. A batch queued on the backend answers 202.
func handleSendEmails(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !emaillog.IsValidType(kind) {
		writeError(w, http.StatusBadRequest, orchestrators.ErrUnknownEmailType.Error())
		return
	}
	var req sendEmailsRequest
	if r.ContentLength != 0 {
		if err := strictDecode(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	input := orchestrators.SendRemindersInput{EmailType: kind, MemberIDs: req.MemberIDs, Force: req.ForceSend}
	result, err := orchestrators.ExecuteSendReminders(r.Context(), input, app.Reminders)
	if err != nil {
		internalError(w, err)
		return
	}
	if result.Remote {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// portalError passes backend 4xx replies through and reports anything else as 502.
func portalError(w http.ResponseWriter, err error) {
	status := remote.StatusCode(err)
	slog.Warn("portal_call_failed", "status", status, "error", err)
	var re *remote.Error
	if status >= 400 && status < 500 && errors.As(err, &re) {
		msg := re.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		writeError(w, status, msg)
		return
	}
	writeError(w, http.StatusBadGateway, "member portal is unavailable")
}

// portalRequest forwards the caller's bearer token and writes the backend's JSON unchanged.
func portalRequest(w http.ResponseWriter, r *http.Request, status int, call func(*http.Request) (json.RawMessage, error)) {
	if app.Portal == nil {
		writeError(w, http.StatusServiceUnavailable, "member portal is not configured")
		return
	}
	if session, ok := middleware.GetSessionFromContext(r.Context()); ok && session.Token != "" {
		r = r.WithContext(remote.WithBearerToken(r.Context(), session.Token))
	}
	body, err := call(r)
	if err != nil {
		portalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func handlePortalDashboard(w http.ResponseWriter, r *http.Request) {
	if app.Portal == nil {
		writeError(w, http.StatusServiceUnavailable, "member portal is not configured")
		return
	}
	ctx := r.Context()
	if session, ok := middleware.GetSessionFromContext(ctx); ok && session.Token != "" {
		ctx = remote.WithBearerToken(ctx, session.Token)
	}
	dashboard, err := projections.QueryGetPortalDashboard(ctx, projections.GetPortalDashboardDeps{Portal: app.Portal, Now: timeNow})
	if err != nil {
		portalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func handlePortalWorkoutLogs(w http.ResponseWriter, r *http.Request) {
	portalRequest(w, r, http.StatusOK, func(r *http.Request) (json.RawMessage, error) {
		return app.Portal.WorkoutLogs(r.Context())
	})
}

func handlePortalTrainingSessions(w http.ResponseWriter, r *http.Request) {
	portalRequest(w, r, http.StatusOK, func(r *http.Request) (json.RawMessage, error) {
		return app.Portal.TrainingSessions(r.Context())
	})
}

func handlePortalJoinSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	portalRequest(w, r, http.StatusOK, func(r *http.Request) (json.RawMessage, error) {
		return app.Portal.JoinTrainingSession(r.Context(), id)
	})
}

func handlePortalLeaveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	portalRequest(w, r, http.StatusOK, func(r *http.Request) (json.RawMessage, error) {
		return app.Portal.LeaveTrainingSession(r.Context(), id)
	})
}

func handlePortalCheckIn(w http.ResponseWriter, r *http.Request) {
	portalRequest(w, r, http.StatusCreated, func(r *http.Request) (json.RawMessage, error) {
		return app.Portal.CheckIn(r.Context())
	})
}

func handlePortalCheckOut(w http.ResponseWriter, r *http.Request) {
	portalRequest(w, r, http.StatusOK, func(r *http.Request) (json.RawMessage, error) {
		return app.Portal.CheckOut(r.Context())
	})
}
