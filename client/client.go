// Package client provides the HTTP client for the call-report backend.
// It attaches the bearer token, traces and times every call, and maps
// non-2xx responses onto the domain errors in pkg/errors.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/credentials"
	"github.com/voiceiq/viq-cli/pkg/buildinfo"
	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/observability"
)

// Default connection settings.
const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4096
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", fmt.Errorf("no token: %w", viqerrors.ErrUnauthorized)
	}
	return string(t), nil
}

// storeTokens reads the active credential on every call, so a login in
// another terminal takes effect without restarting the daemon.
type storeTokens struct {
	store *credentials.Store
}

// FromStore returns a TokenSource backed by the credentials store.
// Missing and expired credentials map to ErrUnauthorized.
func FromStore(store *credentials.Store) TokenSource {
	return &storeTokens{store: store}
}

func (s *storeTokens) Token() (string, error) {
	creds, err := s.store.Active()
	switch {
	case errors.Is(err, credentials.ErrNoCredentials):
		return "", fmt.Errorf("not logged in: %w", viqerrors.ErrUnauthorized)
	case errors.Is(err, credentials.ErrExpiredToken):
		return "", fmt.Errorf("session expired: %w", viqerrors.ErrUnauthorized)
	case err != nil:
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	return creds.Token, nil
}

// ClientOptions configures the Client behavior.
type ClientOptions struct {
	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client

	// TLSConfig is used for https backends when HTTPClient is nil.
	TLSConfig *tls.Config

	// Tokens supplies the bearer token. Nil sends no Authorization header.
	Tokens TokenSource

	// UserAgent is sent on every request.
	UserAgent string

	Logger  logging.Logger
	Metrics *observability.HTTPMetrics
	Tracer  *observability.Tracer
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() *ClientOptions {
	return &ClientOptions{UserAgent: buildinfo.UserAgent()}
}

// Client talks to the backend over HTTP/JSON.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
	logger     logging.Logger
	metrics    *observability.HTTPMetrics
	tracer     *observability.Tracer
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport(opts.TLSConfig)}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = buildinfo.UserAgent()
	}

	return &Client{
		baseURL:    u,
		httpClient: httpClient,
		tokens:     opts.Tokens,
		userAgent:  userAgent,
		logger:     logger.With(logging.F("component", "backend_client")),
		metrics:    opts.Metrics,
		tracer:     tracer,
	}, nil
}

// FromConfig builds a client from the CLI configuration.
func FromConfig(cfg *config.CLIConfig, opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.TLSConfig == nil && opts.HTTPClient == nil {
		tlsConfig, err := LoadClientTLSConfig(&cfg.TLS, cfg.Insecure)
		if err != nil {
			return nil, fmt.Errorf("loading TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}
	return NewClient(cfg.BaseURL, opts)
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func newTransport(tlsConfig *tls.Config) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.IdleConnTimeout = DefaultIdleConnTimeout
	t.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
	if tlsConfig != nil {
		t.TLSClientConfig = tlsConfig
	}
	return t
}

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Status int
	Body   string
}

// Error formats the status and any detail the backend sent.
func (e *HTTPError) Error() string {
	if e.Status == http.StatusUnprocessableEntity {
		return "Invalid request parameters"
	}
	msg := fmt.Sprintf("HTTP error! status: %d", e.Status)
	if d := e.Detail(); d != "" {
		msg += ": " + d
	}
	return msg
}

// StatusCode returns the HTTP status.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// Unwrap maps the status onto a domain error.
func (e *HTTPError) Unwrap() error {
	switch e.Status {
	case http.StatusUnprocessableEntity:
		return viqerrors.ErrValidation
	case http.StatusUnauthorized:
		return viqerrors.ErrUnauthorized
	case http.StatusForbidden:
		return viqerrors.ErrForbidden
	case http.StatusNotFound:
		return viqerrors.ErrNotFound
	default:
		return viqerrors.ErrTransport
	}
}

// Detail extracts a human-readable message from the response body.
// FastAPI-style {"detail": "..."} and {"message": "..."} are recognised.
func (e *HTTPError) Detail() string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err == nil {
		var s string
		if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &s) == nil && s != "" {
			return s
		}
		if body.Message != "" {
			return body.Message
		}
		if len(body.Detail) > 0 {
			return string(body.Detail)
		}
	}
	return strings.TrimSpace(e.Body)
}

// call is one backend request.
type call struct {
	method      string
	path        string
	endpoint    string // metrics and span label
	query       url.Values
	body        io.Reader
	contentType string
	noAuth      bool
}

// do sends c and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, req call, out interface{}) error {
	ctx, span := c.tracer.StartBackendSpan(ctx, req.method, req.endpoint)
	start := time.Now()
	status, err := c.send(ctx, req, out)
	c.metrics.RecordRequest(req.endpoint, status, time.Since(start).Seconds())
	observability.EndSpan(span, err)
	if err != nil {
		c.logger.Debug("Backend request failed",
			logging.F("endpoint", req.endpoint),
			logging.F("status", status),
			logging.F("trace_id", observability.GetTraceID(ctx)),
			logging.Err(err),
		)
	}
	return err
}

// send returns the status label for metrics along with the result.
func (c *Client) send(ctx context.Context, req call, out interface{}) (string, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), req.body)
	if err != nil {
		return "error", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	if !req.noAuth && c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return "unauthenticated", err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "cancelled", fmt.Errorf("%s %s: %w", req.method, req.endpoint, ctxErr)
		}
		return "transport_error", fmt.Errorf("%w: %s %s: %w", viqerrors.ErrTransport, req.method, req.endpoint, err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return status, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return status, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, fmt.Errorf("%w: reading %s response: %w", viqerrors.ErrTransport, req.endpoint, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return status, fmt.Errorf("decoding %s response: %w", req.endpoint, err)
	}
	return status, nil
}
