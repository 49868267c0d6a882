package platform

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

const refreshCookie = "refresh_handle"

// fakeAPI is a minimal TrueMatch server. Tokens listed in valid are
// accepted on protected routes; refresh succeeds while the refresh cookie is
// present and refreshOK is set.
type fakeAPI struct {
	srv *httptest.Server

	mu         sync.Mutex
	valid      map[string]bool
	minted     int
	requestIDs map[string][]string

	authHeaders  []string
	beforeReject func()

	refreshHold    chan struct{}
	refreshStarted chan struct{}

	refreshOK    atomic.Bool
	refreshCalls atomic.Int32
	dataCalls    atomic.Int32
	lockedCalls  atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	f := &fakeAPI{
		valid:      make(map[string]bool),
		requestIDs: make(map[string][]string),
	}
	f.refreshOK.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", f.handleLogin)
	mux.HandleFunc("POST /auth/refresh_token", f.handleRefresh)
	mux.HandleFunc("GET /auth/me", f.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "name": "Ada", "email": "ada@example.com"})
	}))
	mux.HandleFunc("GET /data", f.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))
	mux.HandleFunc("GET /locked", func(w http.ResponseWriter, r *http.Request) {
		f.lockedCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "forbidden for this account"})
	})
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "database down"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// mint issues a new valid token.
func (f *fakeAPI) mint() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.minted++
	tok := "minted-" + strconv.Itoa(f.minted)
	f.valid[tok] = true
	return tok
}

func (f *fakeAPI) accept(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid[token] = true
}

func (f *fakeAPI) isValid(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid[token]
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "correct" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "wrong password for " + body.Email})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "rh-1", Path: "/", HttpOnly: true, MaxAge: 3600})
	writeJSON(w, http.StatusOK, map[string]any{"token": f.mint()})
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	f.mu.Lock()
	hold, started := f.refreshHold, f.refreshStarted
	f.mu.Unlock()
	if hold != nil {
		started <- struct{}{}
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	if _, err := r.Cookie(refreshCookie); err != nil || !f.refreshOK.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "refresh token missing or expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": f.mint()})
}

func (f *fakeAPI) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data" {
			f.dataCalls.Add(1)
		}
		auth := r.Header.Get("Authorization")

		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, auth)
		f.requestIDs[r.URL.Path] = append(f.requestIDs[r.URL.Path], r.Header.Get(RequestIDHeader))
		hook := f.beforeReject
		f.mu.Unlock()

		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || !f.isValid(token) {
			if hook != nil {
				hook()
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "jwt expired"})
			return
		}
		next(w, r)
	}
}

// onReject runs fn before every 401 from a protected route.
func (f *fakeAPI) onReject(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeReject = fn
}

// holdRefresh parks refresh calls until release is called. Each parked call
// is announced on the returned channel.
func (f *fakeAPI) holdRefresh() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshHold = make(chan struct{})
	f.refreshStarted = make(chan struct{}, 8)
	var once sync.Once
	hold := f.refreshHold
	return f.refreshStarted, func() { once.Do(func() { close(hold) }) }
}

func (f *fakeAPI) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeAPI) ids(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestIDs[path]...)
}

// withRefreshCookie plants the refresh cookie in jar as a prior login would.
func (f *fakeAPI) withRefreshCookie(t *testing.T, jar http.CookieJar) {
	t.Helper()
	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: refreshCookie, Value: "rh-0", Path: "/", HttpOnly: true}})
}

func (f *fakeAPI) pipeline(t *testing.T, store tokenstore.Store, opts ...Option) (*Pipeline, *Jar) {
	t.Helper()
	jar, err := NewJar("", nil)
	require.NoError(t, err)
	opts = append([]Option{WithHTTPClient(&http.Client{Jar: jar})}, opts...)
	return NewPipeline(f.srv.URL, store, opts...), jar
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// barrier releases every waiter once n callers have arrived. Later callers
// pass straight through.
type barrier struct {
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

func newBarrier(n int32) *barrier {
	return &barrier{n: n, release: make(chan struct{})}
}

func (b *barrier) wait() {
	switch got := b.arrived.Add(1); {
	case got == b.n:
		close(b.release)
	case got > b.n:
		return
	}
	<-b.release
}
