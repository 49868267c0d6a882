package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

// APIChecker verifies the service answers HTTP at all. Any status code
// counts as reachable; only transport failures are unhealthy.
type APIChecker struct {
	baseURL string
	client  *http.Client
}

func NewAPIChecker(baseURL string, client *http.Client) *APIChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIChecker{baseURL: baseURL, client: client}
}

func (c *APIChecker) Name() string { return "api" }

func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Unhealthy("invalid API URL").WithDetail("error", err.Error())
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy(fmt.Sprintf("cannot reach %s", c.baseURL)).WithDetail("error", err.Error())
	}
	_ = resp.Body.Close()

	r := Healthy(fmt.Sprintf("%s is reachable", c.baseURL)).WithDetail("http_status", resp.StatusCode)
	r.Latency = time.Since(start)
	if resp.StatusCode >= 500 {
		r.Status = StatusDegraded
		r.Message = fmt.Sprintf("%s answered with %d", c.baseURL, resp.StatusCode)
	}
	return r
}

// Pinger is implemented by token stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker verifies the token store backend is usable.
type StoreChecker struct {
	backend string
	store   tokenstore.Store
}

func NewStoreChecker(backend string, store tokenstore.Store) *StoreChecker {
	return &StoreChecker{backend: backend, store: store}
}

func (c *StoreChecker) Name() string { return "token-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	p, ok := c.store.(Pinger)
	if !ok {
		return Healthy(c.backend + " store").WithDetail("backend", c.backend)
	}
	if err := p.Ping(ctx); err != nil {
		return Unhealthy(c.backend+" store is unreachable").
			WithDetail("backend", c.backend).
			WithDetail("error", err.Error())
	}
	return Healthy(c.backend + " store is reachable").WithDetail("backend", c.backend)
}

// TokenChecker reports whether an access token is stored. It never
// exposes the token, only its fingerprint.
type TokenChecker struct {
	store tokenstore.Store
}

func NewTokenChecker(store tokenstore.Store) *TokenChecker {
	return &TokenChecker{store: store}
}

func (c *TokenChecker) Name() string { return "session-token" }

func (c *TokenChecker) Check(ctx context.Context) *Result {
	token, ok := c.store.Read()
	if !ok {
		return Degraded("no stored access token")
	}
	return Healthy("access token stored").WithDetail("fingerprint", tokenstore.Fingerprint(token))
}

// CookieJar is the part of the persistent jar the checker needs.
type CookieJar interface {
	Len() int
}

// CookieChecker reports whether a refresh cookie is available to revive
// the session.
type CookieChecker struct {
	jar CookieJar
}

func NewCookieChecker(jar CookieJar) *CookieChecker {
	return &CookieChecker{jar: jar}
}

func (c *CookieChecker) Name() string { return "refresh-cookie" }

func (c *CookieChecker) Check(ctx context.Context) *Result {
	n := c.jar.Len()
	if n == 0 {
		return Degraded("no saved cookies, a new login will be needed")
	}
	return Healthy("saved cookies present").WithDetail("cookies", n)
}
