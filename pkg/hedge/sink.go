package hedge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jmylchreest/hedgefactor/internal/logger"
)

// DefaultSinkEndpoint is the update endpoint served by `hedgefactor serve`.
const DefaultSinkEndpoint = "http://localhost:8000/api/update-hedge-factor"

// HTTPSink posts updates as JSON to an update endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// SinkOption configures an HTTPSink.
type SinkOption func(*HTTPSink)

// WithHTTPClient sets the HTTP client used for updates.
func WithHTTPClient(c *http.Client) SinkOption {
	return func(s *HTTPSink) { s.client = c }
}

// WithSinkTimeout sets the per-request timeout of the default client.
func WithSinkTimeout(d time.Duration) SinkOption {
	return func(s *HTTPSink) { s.client = &http.Client{Timeout: d} }
}

// NewHTTPSink creates a sink for endpoint, which must be an absolute
// http(s) URL.
func NewHTTPSink(endpoint string, opts ...SinkOption) (*HTTPSink, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse sink endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("sink endpoint must be an absolute http(s) URL, got %q", endpoint)
	}

	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Endpoint returns the configured endpoint URL.
func (s *HTTPSink) Endpoint() string { return s.endpoint }

// Update posts u and decodes the acknowledgement.
func (s *HTTPSink) Update(ctx context.Context, u HedgeFactorUpdate) (*Acknowledgement, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return nil, &SinkError{Endpoint: s.endpoint, Err: fmt.Errorf("encode update: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SinkError{Endpoint: s.endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.DebugContext(ctx, "posting hedge factor update", "endpoint", s.endpoint, "payload", string(body))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SinkError{Endpoint: s.endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &SinkError{Endpoint: s.endpoint, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SinkError{Endpoint: s.endpoint, Status: resp.StatusCode, Body: string(respBody)}
	}

	var ack Acknowledgement
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return nil, &SinkError{
			Endpoint: s.endpoint,
			Status:   resp.StatusCode,
			Body:     string(respBody),
			Err:      fmt.Errorf("decode acknowledgement: %w", err),
		}
	}
	return &ack, nil
}
