// Package platform is the HTTP side of the TrueMatch client: the request
// pipeline that owns bearer attachment and the 401 refresh protocol, the
// persistent cookie jar that carries the refresh cookie, and a typed client
// for the API endpoints.
package platform

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

	"github.com/google/uuid"

	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
	"github.com/felixgeelhaar/truematch/internal/telemetry"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

// API paths.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh_token"
	MePath       = "/auth/me"
	LogoutPath   = "/auth/logout"
	AskAIPath    = "/user/askai"
	ResultPath   = "/user/response"
)

// RequestIDHeader carries the per-request correlation id. The resend after a
// refresh reuses the id of the original send.
const RequestIDHeader = "X-Request-ID"

const maxResponseBytes = 4 << 20

// Request is one logical API call.
type Request struct {
	Method string
	Path   string
	Body   any

	// Exchange marks credential-exchange endpoints. A 401 on them is terminal
	// and never triggers a refresh.
	Exchange bool
}

// Response is a fully-read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Pipeline sends every API request. It reads the current token from the
// store on each attempt, and on a 401 runs at most one refresh-and-resend
// cycle per request.
type Pipeline struct {
	baseURL    string
	httpClient *http.Client
	store      tokenstore.Store
	notifier   *Notifier
	mode       RefreshMode
	refresher  refresher
	userAgent  string
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the HTTP client. Its Jar carries the refresh cookie.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.httpClient = c }
}

// WithRefreshMode selects how concurrent refreshes are handled.
func WithRefreshMode(mode RefreshMode) Option {
	return func(p *Pipeline) { p.mode = mode }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) { p.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records request, refresh and invalidation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithNotifier shares an existing invalidation notifier.
func WithNotifier(n *Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// NewPipeline creates a pipeline for the API at baseURL.
func NewPipeline(baseURL string, store tokenstore.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		mode:    RefreshCoalesce,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if p.notifier == nil {
		p.notifier = NewNotifier()
	}
	p.logger = log.OrDefault(p.logger).With("component", "pipeline")
	p.refresher = newRefresher(p, p.mode)
	return p
}

// BaseURL returns the API base URL.
func (p *Pipeline) BaseURL() string {
	return p.baseURL
}

// Mode returns the configured refresh mode.
func (p *Pipeline) Mode() RefreshMode {
	return p.mode
}

// OnInvalidated registers fn to run whenever the pipeline gives up on the
// session and clears the token store.
func (p *Pipeline) OnInvalidated(fn func(Event)) (cancel func()) {
	return p.notifier.Subscribe(fn)
}

// Do sends req. Non-401 responses are returned as-is whatever their status.
// A 401 is answered with one refresh and one resend; a 401 on the resend or
// on an exchange request yields an *APIError wrapping ErrUnauthorized.
func (p *Pipeline) Do(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	ctx, span := telemetry.StartRequestSpan(ctx, req.Method, req.Path, requestID)
	defer span.End()

	logger := p.logger.With("request_id", requestID, "method", req.Method, "path", req.Path)

	for attempt := 0; ; attempt++ {
		resp, sentToken, err := p.send(ctx, req, body, requestID, attempt)
		if err != nil {
			telemetry.RecordError(span, err)
			logger.Debug("request failed", "attempt", attempt, "error", err)
			return nil, err
		}
		telemetry.RecordAttempt(span, attempt, resp.StatusCode)

		outcome := Decide(resp.StatusCode, attempt, req.Exchange)
		p.metrics.RecordDecision(outcome.String())

		switch outcome {
		case PassThrough:
			return resp, nil

		case RetryOnce:
			logger.Debug("access token rejected, refreshing", "token_fp", tokenstore.Fingerprint(sentToken))
			if err := p.refresher.refresh(ctx, sentToken); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}

		case Fail:
			apiErr := newAPIError(resp)
			telemetry.RecordError(span, apiErr)
			if req.Exchange {
				return nil, apiErr
			}
			logger.Warn("request rejected after refresh, invalidating session")
			p.invalidate(ReasonRetryRejected)
			return nil, apiErr
		}
	}
}

// Refresh calls the refresh endpoint, which authenticates with the refresh
// cookie alone. On success the new token is saved. On failure the store is
// cleared, a session-invalidated event is published, and the returned error
// wraps ErrRefreshFailed. A cancelled ctx is returned without side effects.
func (p *Pipeline) Refresh(ctx context.Context) (string, error) {
	ctx, span := telemetry.StartRefreshSpan(ctx, string(p.mode))
	defer span.End()

	token, err := p.callRefresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			telemetry.RecordError(span, ctx.Err())
			return "", ctx.Err()
		}
		p.metrics.RecordRefresh(false)
		telemetry.RecordError(span, err)
		p.logger.Info("token refresh failed", "error", err)
		p.invalidate(ReasonRefreshFailed)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	p.store.Save(token)
	p.metrics.RecordRefresh(true)
	telemetry.RecordSuccess(span)
	p.logger.Debug("access token refreshed", "token_fp", tokenstore.Fingerprint(token))
	return token, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (p *Pipeline) callRefresh(ctx context.Context) (string, error) {
	body, _ := encodeBody(struct{}{})
	resp, _, err := p.send(ctx, Request{Method: http.MethodPost, Path: RefreshPath, Exchange: true}, body, uuid.NewString(), 0)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", newAPIError(resp)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if tr.Token == "" {
		return "", errors.New("refresh response carried no token")
	}
	return tr.Token, nil
}

// invalidate clears the token store and tells subscribers the session ended.
func (p *Pipeline) invalidate(reason string) {
	p.store.Clear()
	p.metrics.RecordInvalidation(reason)
	p.notifier.Publish(Event{Reason: reason, At: time.Now()})
}

// send performs a single HTTP attempt and returns the token it carried.
func (p *Pipeline) send(ctx context.Context, req Request, body []byte, requestID string, attempt int) (*Response, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, p.baseURL+req.Path, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(RequestIDHeader, requestID)
	if p.userAgent != "" {
		httpReq.Header.Set("User-Agent", p.userAgent)
	}

	token, ok := p.store.Read()
	if ok {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.metrics.RecordTransportError(req.Method, req.Path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, token, ctxErr
		}
		return nil, token, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		p.metrics.RecordTransportError(req.Method, req.Path)
		return nil, token, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	p.metrics.RecordRequest(req.Method, req.Path, httpResp.StatusCode, attempt, time.Since(start))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, token, nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}
