// Package reports implements the HTTP client for the municipal report
// service. Listing is a single round-trip; mutations respect the shared rate
// limiter and retry on transient errors (network, 429, 5xx).
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
	"github.com/jarqyn/jarqyn/internal/util"
)

const (
	userAgent        = "jarqyn-cli/1.0"
	maxRetries       = 4
	defaultBaseDelay = 500 * time.Millisecond
)

// ErrStatus is wrapped by every StatusError.
var ErrStatus = errors.New("unexpected HTTP status")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Transient reports whether a retry could succeed.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client is the report service HTTP client. BaseURL is the listing
// endpoint; single reports live at BaseURL/{id}.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool

	// ServerFiltering appends the filter state as query parameters on List.
	ServerFiltering bool
	// RetryDelay is the first mutation backoff step.
	RetryDelay time.Duration
}

// NewClient creates a Client for the given listing endpoint.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, debug bool) *Client {
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		debug:      debug,
		RetryDelay: defaultBaseDelay,
	}
}

// BaseURL returns the listing endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// ─── Listing ──────────────────────────────────────────────────────────────────

// Payload fetches the raw listing body. The filter state is sent only when
// ServerFiltering is set.
func (c *Client) Payload(ctx context.Context, f filter.State) ([]byte, error) {
	reqURL := c.baseURL
	if c.ServerFiltering {
		if q := f.Query(); len(q) > 0 {
			reqURL += "?" + q.Encode()
		}
	}
	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return body, nil
}

// List fetches and decodes every report. Malformed elements are skipped and
// described in the returned warnings.
func (c *Client) List(ctx context.Context, f filter.State) ([]model.RawReport, []string, error) {
	body, err := c.Payload(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	raw, warnings, err := normalize.Decode(body)
	if err != nil {
		return nil, nil, fmt.Errorf("listing reports: %w", err)
	}
	return raw, warnings, nil
}

// ─── Mutations ────────────────────────────────────────────────────────────────

// Patch is a partial report update. Nil fields are left unchanged.
type Patch struct {
	Status      *model.Status   `json:"status,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.Description == nil
}

// Validate rejects empty patches and unknown enum values.
func (p Patch) Validate() error {
	if p.Empty() {
		return errors.New("patch has no fields to update")
	}
	if p.Status != nil && !p.Status.Known() {
		return fmt.Errorf("invalid status %q: expected received|in_process|done", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Known() {
		return fmt.Errorf("invalid priority %q: expected low|medium|high|critical", *p.Priority)
	}
	return nil
}

// Update sends a PATCH for one report.
func (c *Client) Update(ctx context.Context, id int64, p Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}
	if err := c.mutate(ctx, http.MethodPatch, id, body); err != nil {
		return fmt.Errorf("updating report %d: %w", id, err)
	}
	return nil
}

// Delete removes one report.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.mutate(ctx, http.MethodDelete, id, nil); err != nil {
		return fmt.Errorf("deleting report %d: %w", id, err)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, method string, id int64, body []byte) error {
	reqURL := c.baseURL + "/" + strconv.FormatInt(id, 10)
	return retry.Do(
		func() error {
			_, err := c.do(ctx, method, reqURL, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(maxRetries),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("retrying after backoff", "method", method, "attempt", n+1, "err", err)
		}),
	)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// do performs one rate-limited request and returns the response body.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.debug {
		slog.Debug("report service request", "method", method, "url", reqURL, "request_id", reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if c.debug {
		slog.Debug("report service response", "status", resp.StatusCode, "bytes", len(respBody), "request_id", reqID)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: apiMessage(respBody)}
	}
	return respBody, nil
}

// apiMessage extracts {"error": "..."} or {"message": "..."} from an error
// body, falling back to the trimmed text.
func apiMessage(body []byte) string {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return util.TruncateRunes(strings.TrimSpace(string(body)), 200)
}
