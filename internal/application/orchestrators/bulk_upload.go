package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/spreadsheet"
	"gymdesk/internal/adapters/storage"
	memberStore "gymdesk/internal/adapters/storage/member"
	domain "gymdesk/internal/domain/member"
)

// BulkUploader forwards an import file to the backend. *remote.Client satisfies it.
type BulkUploader interface {
	BulkUpload(ctx context.Context, filename string, content io.Reader) (remote.BulkUploadResult, error)
}

// BulkUploadInput carries one uploaded spreadsheet.
type BulkUploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BulkUploadResult holds the outcome of an import. Errors are "Row N: message"
// with N counting data rows from 1.
type BulkUploadResult struct {
	Remote  bool     `json:"remote"`
	Message string   `json:"message"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// BulkUploadDeps holds external dependencies for the import orchestrator.
type BulkUploadDeps struct {
	Uploader     BulkUploader // nil imports locally only
	LocalMembers memberStore.Store
	OnFallback   storage.FallbackHook
}

// BulkUploadValidationError is returned when the file itself is unusable
// (wrong type, unreadable, missing required columns).
type BulkUploadValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *BulkUploadValidationError) Error() string {
	return e.Message
}

// ExecuteBulkUpload imports members from a CSV or Excel file, through the
// backend when it answers and into the local store otherwise.
// PRE: input.Data is the complete file
// POST: Locally, valid rows whose email is new are created; other rows are skipped or reported
// INVARIANT: Existing members are never modified
func ExecuteBulkUpload(ctx context.Context, input BulkUploadInput, deps BulkUploadDeps) (BulkUploadResult, error) {
	if _, err := spreadsheet.CheckFileType(input.Filename, input.ContentType); err != nil {
		return BulkUploadResult{}, &BulkUploadValidationError{Message: err.Error()}
	}

	if deps.Uploader != nil {
		res, err := deps.Uploader.BulkUpload(ctx, input.Filename, bytes.NewReader(input.Data))
		if err == nil {
			errs := res.Errors
			if errs == nil {
				errs = []string{}
			}
			return BulkUploadResult{Remote: true, Message: res.Message, Errors: errs}, nil
		}
		if !storage.ShouldFallback(ctx, err) {
			return BulkUploadResult{}, err
		}
		slog.Warn("remote_fallback", "store", "members", "op", "bulk_upload", "error", err)
		if deps.OnFallback != nil {
			deps.OnFallback("members", "bulk_upload", err)
		}
	}

	return importLocally(ctx, input, deps.LocalMembers)
}

func importLocally(ctx context.Context, input BulkUploadInput, store memberStore.Store) (BulkUploadResult, error) {
	rows, err := spreadsheet.ReadRows(bytes.NewReader(input.Data), input.Filename)
	if err != nil {
		return BulkUploadResult{}, &BulkUploadValidationError{Message: "Failed to process file: " + err.Error()}
	}
	header := spreadsheet.NewHeader(rows[0])
	if missing := header.Missing(spreadsheet.RequiredColumns); len(missing) > 0 {
		return BulkUploadResult{}, &BulkUploadValidationError{Message: "missing required columns: " + strings.Join(missing, ", ")}
	}

	existing, err := store.List(ctx)
	if err != nil {
		return BulkUploadResult{}, fmt.Errorf("list members: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[strings.ToLower(m.Email)] = true
	}

	result := BulkUploadResult{Errors: []string{}}
	for i, row := range rows[1:] {
		rowNum := i + 1
		if spreadsheet.IsBlank(row) {
			continue
		}
		m, err := memberFromRow(header, row)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, err))
			continue
		}
		key := strings.ToLower(m.Email)
		if seen[key] {
			result.Skipped++
			continue
		}
		if _, err := store.Create(ctx, m); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			slog.Error("members_import_save_failed", "row", rowNum, "email", m.Email, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: save failed (see server log)", rowNum))
			continue
		}
		seen[key] = true
		result.Created++
	}

	result.Message = fmt.Sprintf("Successfully created %d members", result.Created)
	slog.Info("members_import",
		"file", input.Filename,
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

// memberFromRow maps one spreadsheet row onto a validated Member.
func memberFromRow(h spreadsheet.Header, row []string) (domain.Member, error) {
	m := domain.Member{
		FullName:       h.Cell(row, "full_name"),
		Email:          strings.ToLower(h.Cell(row, "email")),
		Phone:          h.Cell(row, "phone"),
		MembershipType: strings.ToLower(h.Cell(row, "membership_type")),
	}
	if m.MembershipType == "" {
		m.MembershipType = domain.MembershipBasic
	}

	active, err := spreadsheet.ParseBool(h.Cell(row, "is_active"), true)
	if err != nil {
		return domain.Member{}, &domain.ValidationError{Field: "is_active", Message: err.Error()}
	}
	m.IsActive = active

	dates := []struct {
		column string
		dst    *string
	}{
		{"subscription_due_date", &m.SubscriptionDueDate},
		{"birthday", &m.Birthday},
		{"last_checkin_date", &m.LastCheckinDate},
	}
	for _, d := range dates {
		raw := h.Cell(row, d.column)
		if raw == "" {
			continue
		}
		iso, ok := spreadsheet.NormalizeDate(raw)
		if !ok {
			return domain.Member{}, &domain.ValidationError{Field: d.column, Message: "must be a date in YYYY-MM-DD format"}
		}
		*d.dst = iso
	}

	if err := m.Validate(); err != nil {
		return domain.Member{}, err
	}
	return m, nil
}
