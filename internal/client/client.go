// Package client is a Go client of the sync polling API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/backoff"
	"github.com/jnst/storefront-sync/internal/model"
)

const (
	apiKeyHeader   = "X-API-Key"
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
	minRetryDelay  = 200 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	// DefaultBatchSize matches the server's default batch cap.
	DefaultBatchSize = 100
)

// ErrUnauthorized is returned when the server rejects the API key.
var ErrUnauthorized = errors.New("api key rejected")

// APIError is a non-success reply of the polling API.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sync api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client polls one subject. D is the detail type of the subject.
type Client[D any] struct {
	baseURL    string
	subject    model.Subject
	apiKey     string
	httpClient *http.Client
	batchSize  int
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	batchSize  int
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithBatchSize sets how many identifiers Batch sends per request. It should
// not exceed the server's SYNC_BATCH_MAX.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// New creates a client of subject's endpoints below baseURL.
func New[D any](baseURL string, subject model.Subject, apiKey string, opts ...Option) *Client[D] {
	o := options{httpClient: &http.Client{Timeout: defaultTimeout}, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client[D]{
		baseURL:    strings.TrimRight(baseURL, "/"),
		subject:    subject,
		apiKey:     apiKey,
		httpClient: o.httpClient,
		batchSize:  o.batchSize,
	}
}

// NewOrderClient creates a client of the order feed.
func NewOrderClient(baseURL, apiKey string, opts ...Option) *Client[model.OrderDetail] {
	return New[model.OrderDetail](baseURL, model.SubjectOrder, apiKey, opts...)
}

// NewUserClient creates a client of the user feed.
func NewUserClient(baseURL, apiKey string, opts ...Option) *Client[model.UserSnapshot] {
	return New[model.UserSnapshot](baseURL, model.SubjectUser, apiKey, opts...)
}

type listResponse[T any] struct {
	Results []T `json:"results"`
}

// Changes lists the subjects changed at or after since. A nil since lists every change.
func (c *Client[D]) Changes(ctx context.Context, since *time.Time) ([]uuid.UUID, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", strconv.FormatInt(since.Unix(), 10))
	}

	var resp listResponse[uuid.UUID]
	if err := c.get(ctx, "changes", query, &resp); err != nil {
		return nil, err
	}

	return resp.Results, nil
}

// Detail fetches the live state of one subject. A missing subject yields model.ErrNotFound.
func (c *Client[D]) Detail(ctx context.Context, id uuid.UUID) (D, error) {
	var detail D
	err := c.get(ctx, id.String(), nil, &detail)

	return detail, err
}

// Batch fetches the live state of several subjects; unknown ones are absent from the result.
// Duplicates are dropped and the rest is sent in requests of at most the batch size,
// so results keep the order of ids.
func (c *Client[D]) Batch(ctx context.Context, ids []uuid.UUID) ([]D, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		parts = append(parts, id.String())
	}

	results := []D{}
	for chunk := range slices.Chunk(parts, c.batchSize) {
		var resp listResponse[D]
		if err := c.get(ctx, "batch", url.Values{"uuids": {strings.Join(chunk, ",")}}, &resp); err != nil {
			return nil, err
		}

		results = append(results, resp.Results...)
	}

	return results, nil
}

// get retries transport errors and 5xx replies with backoff; other failures return at once.
func (c *Client[D]) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + "/api/" + c.subject.Plural() + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	retry := backoff.New(minRetryDelay, maxRetryDelay, 2)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryable, err := c.do(ctx, endpoint, out)
		if err == nil || !retryable {
			return err
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		wait := retry.Next()
		slog.Warn("sync api request failed, retrying",
			slog.String("url", endpoint),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)

		if err := backoff.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

func (c *Client[D]) do(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("failed to call sync api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return false, fmt.Errorf("%w: %w", model.ErrNotFound, apiErr)
		case resp.StatusCode == http.StatusUnauthorized:
			return false, fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		case resp.StatusCode >= http.StatusInternalServerError:
			return true, apiErr
		default:
			return false, apiErr
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode sync api response: %w", err)
	}

	return false, nil
}
