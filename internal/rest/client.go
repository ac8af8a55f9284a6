// Package rest is the fallback transport: a PostgREST client for the hosted
// project's /rest/v1 endpoint, authenticated with the project API key.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/vitrine/internal/transport"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the project URL (e.g. "https://abc.supabase.co"). The
	// "/rest/v1" suffix is appended when missing.
	BaseURL string

	// APIKey is sent both as the apikey header and as a bearer token.
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual requests. Defaults to 30 seconds.
	Timeout time.Duration

	// ProbeTable is the table TestConnection reads. Defaults to "agents".
	ProbeTable string

	Logger *slog.Logger
}

// Client talks to PostgREST. All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	probeTable string
	logger     *slog.Logger
}

var _ transport.Transport = (*Client)(nil)

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL or APIKey is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest: BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rest: APIKey is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rest: invalid BaseURL %q", cfg.BaseURL)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(baseURL, "/rest/v1") {
		baseURL += "/rest/v1"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	probe := cfg.ProbeTable
	if probe == "" {
		probe = "agents"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		client:     httpClient,
		probeTable: probe,
		logger:     logger,
	}, nil
}

// Mode reports transport.ModeAPI.
func (c *Client) Mode() transport.Mode {
	return transport.ModeAPI
}

// Select returns rows of table matching q.
func (c *Client) Select(ctx context.Context, table string, q transport.Query) ([]json.RawMessage, error) {
	params, err := queryParams(table, q)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, table, params, nil, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}
	return rows, nil
}

// SelectOne returns the first row matching q, or transport.ErrNotFound.
func (c *Client) SelectOne(ctx context.Context, table string, q transport.Query) (json.RawMessage, error) {
	rows, err := c.Select(ctx, table, q.WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rest: select one %s: %w", table, transport.ErrNotFound)
	}
	return rows[0], nil
}

// Count returns the exact row count of table from the Content-Range header.
func (c *Client) Count(ctx context.Context, table string) (int64, error) {
	params, err := queryParams(table, transport.Query{Columns: []string{"id"}, Limit: 1})
	if err != nil {
		return 0, err
	}
	hdr := http.Header{}
	hdr.Set("Prefer", "count=exact")
	resp, err := c.do(ctx, http.MethodGet, table, params, hdr, nil, nil)
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// Insert posts row and returns the stored representation.
func (c *Client) Insert(ctx context.Context, table string, row json.RawMessage) (json.RawMessage, error) {
	if !transport.ValidIdentifier(table) {
		return nil, fmt.Errorf("rest: invalid table %q", table)
	}
	return c.writeOne(ctx, http.MethodPost, table, nil, row)
}

// Update patches the row with the given id.
func (c *Client) Update(ctx context.Context, table, id string, patch json.RawMessage) (json.RawMessage, error) {
	if !transport.ValidIdentifier(table) {
		return nil, fmt.Errorf("rest: invalid table %q", table)
	}
	params := url.Values{"id": {"eq." + id}}
	return c.writeOne(ctx, http.MethodPatch, table, params, patch)
}

// Delete removes the row with the given id. A filter matching nothing is
// reported as transport.ErrNotFound.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	if !transport.ValidIdentifier(table) {
		return fmt.Errorf("rest: invalid table %q", table)
	}
	params := url.Values{"id": {"eq." + id}}
	_, err := c.writeOne(ctx, http.MethodDelete, table, params, nil)
	return err
}

// TestConnection performs a minimal read and reports whether it succeeded.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.Select(ctx, c.probeTable, transport.Query{Columns: []string{"id"}, Limit: 1})
	if err != nil {
		c.logger.Debug("rest: test connection failed", "error", err)
		return false
	}
	return true
}

func (c *Client) writeOne(ctx context.Context, method, table string, params url.Values, body json.RawMessage) (json.RawMessage, error) {
	hdr := http.Header{}
	hdr.Set("Prefer", "return=representation")
	var rows []json.RawMessage
	if _, err := c.do(ctx, method, table, params, hdr, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rest: %s %s: %w", strings.ToLower(method), table, transport.ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) do(ctx context.Context, method, table string, params url.Values, hdr http.Header, body []byte, dest any) (*http.Response, error) {
	target := c.baseURL + "/" + table
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("rest: create request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp, handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rest: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp, bodyBytes)
	}
	if resp.StatusCode == http.StatusNoContent || dest == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}

// postgrestError is PostgREST's error body.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func parseErrorResponse(resp *http.Response, body []byte) *Error {
	apiErr := &Error{StatusCode: resp.StatusCode, Status: resp.Status}

	var pe postgrestError
	if err := json.Unmarshal(body, &pe); err == nil && pe.Message != "" {
		apiErr.Code = pe.Code
		apiErr.Message = pe.Message
		if pe.Details != "" {
			apiErr.Message += ": " + pe.Details
		}
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func queryParams(table string, q transport.Query) (url.Values, error) {
	if !transport.ValidIdentifier(table) {
		return nil, fmt.Errorf("rest: invalid table %q", table)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	for _, f := range q.Filters {
		if f.Value == nil {
			params.Add(f.Column, "is.null")
			continue
		}
		params.Add(f.Column, "eq."+formatValue(f.Value))
	}
	if len(q.Order) > 0 {
		keys := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			keys[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(keys, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// parseContentRange extracts the total from "0-0/42" or "*/0".
func parseContentRange(h string) (int64, error) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 || i == len(h)-1 {
		return 0, fmt.Errorf("rest: malformed Content-Range %q", h)
	}
	total := h[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("rest: Content-Range %q has no exact count", h)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rest: malformed Content-Range %q: %w", h, err)
	}
	return n, nil
}
