// Package publisher is the outbound HTTP collaborator: it renders stored
// service templates into requests and publishes them with bounded retries
// and a per-host circuit breaker.
package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rendis/scenario/pkg/schema"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxResponseBody = 10 * 1024 * 1024
)

// RequestConfig is a rendered request: everything but the payload.
type RequestConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
}

// Response is a successful (2xx/3xx) reply.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
}

// Config tunes the publisher.
type Config struct {
	Timeout         time.Duration
	MaxResponseBody int64
	Retry           RetryPolicy
	Breaker         CircuitBreakerConfig
}

// DefaultConfig returns the publisher defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         defaultTimeout,
		MaxResponseBody: defaultMaxResponseBody,
		Retry:           DefaultRetryPolicy(),
		Breaker:         DefaultCircuitBreakerConfig(),
	}
}

// Publisher sends requests. It is safe for concurrent use.
type Publisher struct {
	client   *http.Client
	config   Config
	breakers *CircuitBreakerRegistry
	logger   *slog.Logger
}

// New creates a Publisher. Zero config fields fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Publisher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = def.MaxResponseBody
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker = def.Breaker
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		config:   cfg,
		breakers: NewCircuitBreakerRegistry(cfg.Breaker),
		logger:   logger,
	}
}

// Breakers exposes the per-host circuit breakers.
func (p *Publisher) Breakers() *CircuitBreakerRegistry {
	return p.breakers
}

// statusError is a non-success reply; it carries the body for diagnostics.
type statusError struct {
	code int
	body any
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.code)
}

// Publish sends payload as a JSON body (nil means no body). When apiKey is
// set and the request has no Authorization header, it is sent as a bearer
// token. Non-2xx/3xx replies are COLLABORATOR_ERRORs carrying the body.
func (p *Publisher) Publish(ctx context.Context, req RequestConfig, payload any, apiKey string) (*Response, error) {
	target, err := buildURL(req)
	if err != nil {
		return nil, err
	}
	var body []byte
	if payload != nil {
		if body, err = json.Marshal(payload); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "payload is not JSON-serializable").WithCause(err)
		}
	}

	host := target.Host
	policy := p.config.Retry
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := WaitForBackoff(ctx, ComputeBackoff(policy, attempt-1)); err != nil {
				return nil, schema.NewError(schema.ErrCodeCollaborator, "publish cancelled").WithCause(err)
			}
		}
		if err := p.breakers.AllowRequest(host); err != nil {
			return nil, err
		}

		resp, err := p.do(ctx, req, target, body, apiKey)
		if err == nil {
			p.breakers.RecordSuccess(host)
			return resp, nil
		}

		lastErr = err
		retry := IsRetryableError(err)
		if se, ok := err.(*statusError); ok {
			retry = RetryableStatus(se.code)
		}
		// Client errors say nothing about the host's health.
		if retry {
			p.breakers.RecordFailure(host)
		} else {
			p.breakers.RecordSuccess(host)
		}
		p.logger.WarnContext(ctx, "publish attempt failed",
			slog.String("method", req.Method),
			slog.String("host", host),
			slog.Int("attempt", attempt+1),
			slog.Bool("retry", retry && attempt+1 < policy.MaxAttempts),
			slog.String("error", err.Error()),
		)
		if !retry {
			break
		}
	}

	return nil, collaboratorError(req, lastErr)
}

func (p *Publisher) do(ctx context.Context, req RequestConfig, target *url.URL, body []byte, apiKey string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, method, target.String(), reader)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid request").WithCause(err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if apiKey != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, p.config.MaxResponseBody))
	if err != nil {
		return nil, err
	}
	parsed := parseBody(resp.Header.Get("Content-Type"), raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode, body: parsed}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: headers, Body: parsed}, nil
}

func buildURL(req RequestConfig) (*url.URL, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "invalid url %q", req.URL)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// parseBody decodes JSON replies and falls back to the raw text.
func parseBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if strings.Contains(contentType, "json") || (len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')) {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func collaboratorError(req RequestConfig, err error) error {
	details := map[string]any{"method": req.Method, "url": req.URL}
	if se, ok := err.(*statusError); ok {
		details["status_code"] = se.code
		details["body"] = se.body
		return schema.NewErrorf(schema.ErrCodeCollaborator, "%s %s: %v: %v", req.Method, req.URL, se, se.body).
			WithDetails(details).WithCause(err)
	}
	return schema.NewErrorf(schema.ErrCodeCollaborator, "%s %s: %v", req.Method, req.URL, err).
		WithDetails(details).WithCause(err)
}
