package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"gymdesk/internal/domain/member"
)

// ListMembers fetches members, forwarding category as ?filter= unless it is all.
func (c *Client) ListMembers(ctx context.Context, category member.Category) ([]member.Member, error) {
	r := request{op: "members.list", method: http.MethodGet, path: "/members/"}
	if category != "" && category != member.CategoryAll {
		r.query = url.Values{"filter": {string(category)}}
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeCollection[member.Member](r.op, body)
}

// GetMember fetches one member.
func (c *Client) GetMember(ctx context.Context, id string) (member.Member, error) {
	r := request{op: "members.get", method: http.MethodGet, path: "/members/" + url.PathEscape(id) + "/"}
	body, err := c.do(ctx, r)
	if err != nil {
		return member.Member{}, err
	}
	return decodeObject[member.Member](r.op, body)
}

// memberPayload is the create body; id and timestamps are server-assigned.
type memberPayload struct {
	FullName            string   `json:"full_name"`
	Email               string   `json:"email"`
	Phone               string   `json:"phone,omitempty"`
	SubscriptionDueDate string   `json:"subscription_due_date"`
	Birthday            string   `json:"birthday,omitempty"`
	LastCheckinDate     string   `json:"last_checkin_date,omitempty"`
	EmergencyContact    string   `json:"emergency_contact,omitempty"`
	Address             string   `json:"address,omitempty"`
	MembershipType      string   `json:"membership_type,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	Milestones          []string `json:"milestones,omitempty"`
	IsActive            bool     `json:"is_active"`
}

// CreateMember posts m and returns the server's record.
// PRE: m passed CheckRequired
func (c *Client) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	r, err := jsonRequest("members.create", http.MethodPost, "/members/", memberPayload{
		FullName:            m.FullName,
		Email:               m.Email,
		Phone:               m.Phone,
		SubscriptionDueDate: m.SubscriptionDueDate,
		Birthday:            m.Birthday,
		LastCheckinDate:     m.LastCheckinDate,
		EmergencyContact:    m.EmergencyContact,
		Address:             m.Address,
		MembershipType:      m.MembershipType,
		Notes:               m.Notes,
		Milestones:          m.Milestones,
		IsActive:            m.IsActive,
	})
	if err != nil {
		return member.Member{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return member.Member{}, err
	}
	return decodeObject[member.Member](r.op, body)
}

// UpdateMember sends a partial update and returns the merged record.
func (c *Client) UpdateMember(ctx context.Context, id string, p member.Patch) (member.Member, error) {
	r, err := jsonRequest("members.update", http.MethodPatch, "/members/"+url.PathEscape(id)+"/", p)
	if err != nil {
		return member.Member{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return member.Member{}, err
	}
	return decodeObject[member.Member](r.op, body)
}

// DeleteMember deletes a member.
// POST: a non-2xx reply is returned as *DeleteError
func (c *Client) DeleteMember(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{op: "members.delete", method: http.MethodDelete, path: "/members/" + url.PathEscape(id) + "/"})
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) && re.StatusCode != 0 {
		return &DeleteError{ID: id, StatusCode: re.StatusCode, Message: re.Message}
	}
	return err
}

// MemberStats fetches the dashboard counters.
func (c *Client) MemberStats(ctx context.Context) (member.Stats, error) {
	r := request{op: "members.stats", method: http.MethodGet, path: "/members/stats/"}
	body, err := c.do(ctx, r)
	if err != nil {
		return member.Stats{}, err
	}
	return decodeObject[member.Stats](r.op, body)
}

// BulkUploadResult is the backend's reply to a spreadsheet import.
type BulkUploadResult struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// BulkUpload forwards a spreadsheet as the multipart field "file".
// PRE: filename carries the original extension
func (c *Client) BulkUpload(ctx context.Context, filename string, content io.Reader) (BulkUploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return BulkUploadResult{}, fmt.Errorf("remote members.bulk_upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return BulkUploadResult{}, fmt.Errorf("remote members.bulk_upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return BulkUploadResult{}, fmt.Errorf("remote members.bulk_upload: %w", err)
	}

	r := request{
		op:          "members.bulk_upload",
		method:      http.MethodPost,
		path:        "/members/bulk_upload/",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return BulkUploadResult{}, err
	}
	return decodeObject[BulkUploadResult](r.op, body)
}
