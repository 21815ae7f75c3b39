// Package apiclient talks to the transaction JSON API on behalf of the
// dashboard.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/middleware/trace"
)

const maxErrorBody = 4 << 10

// TransportError means the API could not be reached or its reply could not
// be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: api unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx reply. Detail is the API's "detail" field when
// present.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: api returned %d: %s", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: api returned %d", e.Op, e.Code)
}

// Is lets a 404 match core.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == core.ErrNotFound && e.Code == http.StatusNotFound
}

// Client calls the API one request at a time, without retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *applog.Logger
}

// New returns a client for baseURL. A non-positive timeout disables the
// client-side deadline.
func New(baseURL string, timeout time.Duration, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if timeout < 0 {
		timeout = 0
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		logger: logger.WithComponent(applog.ComponentAPIClient),
	}
}

// List fetches every transaction.
func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.do(ctx, "list", http.MethodGet, "/transactions/", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

// Create submits a new transaction and returns the stored record.
func (c *Client) Create(ctx context.Context, in core.TransactionCreate) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, "create", http.MethodPost, "/transactions/", in, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

// Delete removes a transaction. A missing id matches core.ErrNotFound.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodDelete, fmt.Sprintf("/transactions/%d", id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := trace.GetRequestID(ctx); id != "" {
		req.Header.Set(trace.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			applog.FieldOperation, op,
			applog.FieldMethod, method,
			applog.FieldPath, path,
			applog.FieldError, err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API request completed",
		applog.FieldOperation, op,
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(raw))
}

// IsUnavailable reports whether err means the API could not be reached.
func IsUnavailable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
