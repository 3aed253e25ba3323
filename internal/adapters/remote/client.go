// Package remote is the HTTP client for the authoritative gym backend REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"gymdesk/internal/adapters/http/perf"
)

// DefaultBaseURL matches the backend's default mount point.
const DefaultBaseURL = "http://localhost:8000/api/members/api"

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Token is a static service bearer token. Ignored when OAuth2 is set.
	Token string
	// OAuth2 fetches service tokens with the client-credentials grant.
	OAuth2 *clientcredentials.Config
}

// Client calls the gym backend.
// Requests carry the caller's bearer token when the context has one
// (see WithBearerToken); otherwise the service credentials are used.
type Client struct {
	baseURL   string
	plain     *http.Client
	service   *http.Client
	token     string
	tracer    trace.Tracer
	collector *perf.Collector
}

// New creates a Client. collector may be nil.
// PRE: cfg.BaseURL is an absolute URL or empty
// POST: Returns a client with service credentials resolved
func New(cfg Config, collector *perf.Collector) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	plain := &http.Client{Timeout: cfg.Timeout}

	service := plain
	if cfg.OAuth2 != nil {
		// The token fetch reuses the plain client so it inherits the timeout.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, plain)
		service = cfg.OAuth2.Client(tokenCtx)
		service.Timeout = cfg.Timeout
		cfg.Token = ""
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		plain:     plain,
		service:   service,
		token:     cfg.Token,
		tracer:    otel.Tracer("gymdesk/remote"),
		collector: collector,
	}
}

type bearerKey struct{}

// WithBearerToken attaches the end user's token for remote calls made with ctx.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerToken returns the token attached by WithBearerToken.
func BearerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}

// Error is a failed remote call: a transport failure, a non-2xx status or an
// unreadable response body.
type Error struct {
	Op         string
	StatusCode int // 0 when no response arrived
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("remote %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote %s: HTTP %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
	}
}

// Unwrap exposes the transport error, including context cancellation.
func (e *Error) Unwrap() error { return e.Err }

// DeleteError reports a delete the backend rejected with a non-2xx status.
type DeleteError struct {
	ID         string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *DeleteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("failed to delete member %s: HTTP %d: %s", e.ID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("failed to delete member %s: HTTP %d", e.ID, e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.StatusCode
	}
	var de *DeleteError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}

// request describes one call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// jsonRequest builds a request with a JSON-encoded body.
func jsonRequest(op, method, path string, payload any) (request, error) {
	r := request{op: op, method: method, path: path}
	if payload == nil {
		return r, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return r, fmt.Errorf("remote %s: encode: %w", op, err)
	}
	r.body = bytes.NewReader(data)
	r.contentType = "application/json"
	return r, nil
}

// do executes r and returns the response body of a 2xx reply.
// Every call gets a client span and a perf entry.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "remote."+r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("remote.path", r.path),
		))
	defer span.End()

	start := time.Now()
	body, status, err := c.roundTrip(ctx, r)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.record(r.op, status, start, err)
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, int, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, 0, &Error{Op: r.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	httpClient := c.service
	if token, ok := BearerToken(ctx); ok {
		httpClient = c.plain
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &Error{Op: r.op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &Error{Op: r.op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, resp.StatusCode, nil
}

// record logs the call and adds it to the perf collector.
func (c *Client) record(op string, status int, start time.Time, err error) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		slog.Debug("remote_call_failed", "op", op, "status", status, "duration_ms", durationMs, "error", err)
	} else {
		slog.Debug("remote_call", "op", op, "status", status, "duration_ms", durationMs)
	}
	if c.collector != nil {
		c.collector.Record(perf.Entry{
			Kind:       perf.KindRemote,
			Path:       "remote " + op,
			StatusCode: status,
			DurationMs: durationMs,
			Timestamp:  start,
			Failed:     err != nil,
		})
	}
}

// errorMessage extracts a human message from an error body.
// The backend uses "message", "detail" or "error" depending on the view.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Detail != "":
		return payload.Detail
	default:
		return payload.Error
	}
}

// decodeObject unmarshals a single-object response.
func decodeObject[T any](op string, body []byte) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &Error{Op: op, Message: "invalid response body", Err: err}
	}
	return out, nil
}

// decodeCollection accepts a bare JSON array or a paginated {"results": [...]} envelope.
// POST: Returns a non-nil slice on success
func decodeCollection[T any](op string, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	out := []T{}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, &Error{Op: op, Message: "invalid response body", Err: err}
		}
		return out, nil
	}
	var envelope struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &Error{Op: op, Message: "invalid response body", Err: err}
	}
	if envelope.Results != nil {
		out = envelope.Results
	}
	return out, nil
}
