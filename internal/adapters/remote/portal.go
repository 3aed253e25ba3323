package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Portal endpoints return the backend's JSON untouched; the member portal
// renders it as-is. Calls are made with the member's own bearer token.

// PortalDashboard fetches the signed-in member's dashboard.
func (c *Client) PortalDashboard(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, request{op: "portal.dashboard", method: http.MethodGet, path: "/portal/dashboard/"})
}

// WorkoutLogs lists the signed-in member's workout logs.
func (c *Client) WorkoutLogs(ctx context.Context) (json.RawMessage, error) {
	return c.rawCollection(ctx, request{op: "portal.workout_logs", method: http.MethodGet, path: "/workout-logs/"})
}

// TrainingSessions lists training sessions.
func (c *Client) TrainingSessions(ctx context.Context) (json.RawMessage, error) {
	return c.rawCollection(ctx, request{op: "portal.training_sessions", method: http.MethodGet, path: "/training-sessions/"})
}

// JoinTrainingSession adds the signed-in member to a session.
func (c *Client) JoinTrainingSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.raw(ctx, request{op: "portal.session_join", method: http.MethodPost,
		path: "/training-sessions/" + url.PathEscape(sessionID) + "/join/"})
}

// LeaveTrainingSession removes the signed-in member from a session.
func (c *Client) LeaveTrainingSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.raw(ctx, request{op: "portal.session_leave", method: http.MethodPost,
		path: "/training-sessions/" + url.PathEscape(sessionID) + "/leave/"})
}

// CheckIn records a gym check-in for the signed-in member.
func (c *Client) CheckIn(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, request{op: "portal.checkin", method: http.MethodPost, path: "/checkins/checkin/"})
}

// CheckOut closes today's check-in for the signed-in member.
func (c *Client) CheckOut(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, request{op: "portal.checkout", method: http.MethodPost, path: "/checkins/checkout/"})
}

func (c *Client) raw(ctx context.Context, r request) (json.RawMessage, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &Error{Op: r.op, Message: "invalid response body"}
	}
	return json.RawMessage(body), nil
}

// rawCollection unwraps a {"results": [...]} envelope into a bare array.
func (c *Client) rawCollection(ctx context.Context, r request) (json.RawMessage, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	items, err := decodeCollection[json.RawMessage](r.op, body)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(items)
	if err != nil {
		return nil, &Error{Op: r.op, Message: "invalid response body", Err: err}
	}
	return out, nil
}
