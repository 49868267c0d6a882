package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

var errBoom = errors.New("boom")

// stubAPI records calls and returns canned answers. A successful Refresh
// saves its token to store the way the pipeline does.
type stubAPI struct {
	store    tokenstore.Store
	notifier *platform.Notifier

	mu    sync.Mutex
	calls []string

	loginToken   string
	loginErr     error
	registerErr  error
	refreshToken string
	refreshErr   error
	meUser       platform.User
	meErr        error
	logoutErr    error
}

func newStubAPI(store tokenstore.Store) *stubAPI {
	return &stubAPI{
		store:      store,
		notifier:   platform.NewNotifier(),
		loginToken: "login-token",
		meUser:     platform.User{"id": "u1", "name": "Ada"},
	}
}

func (s *stubAPI) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubAPI) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubAPI) Login(_ context.Context, _, _ string) (string, error) {
	s.record("login")
	return s.loginToken, s.loginErr
}

func (s *stubAPI) Register(_ context.Context, _ platform.Registration) error {
	s.record("register")
	return s.registerErr
}

func (s *stubAPI) Refresh(_ context.Context) (string, error) {
	s.record("refresh")
	if s.refreshErr != nil {
		s.store.Clear()
		return "", s.refreshErr
	}
	s.store.Save(s.refreshToken)
	return s.refreshToken, nil
}

func (s *stubAPI) Me(_ context.Context) (platform.User, error) {
	s.record("me")
	return s.meUser, s.meErr
}

func (s *stubAPI) Logout(_ context.Context) error {
	s.record("logout")
	return s.logoutErr
}

func (s *stubAPI) OnInvalidated(fn func(platform.Event)) func() {
	return s.notifier.Subscribe(fn)
}

// authServer is a TrueMatch API double. The refresh cookie is set at login
// and accepted by /auth/refresh_token while refreshOK holds.
type authServer struct {
	srv *httptest.Server

	mu      sync.Mutex
	valid   map[string]bool
	minted  int
	meAuths []string

	refreshOK    atomic.Bool
	logoutFails  atomic.Bool
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()

	a := &authServer{valid: make(map[string]bool)}
	a.refreshOK.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body platform.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "no account with password for " + body.Email})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_handle", Value: "rh", Path: "/", HttpOnly: true, MaxAge: 3600})
		reply(w, http.StatusOK, map[string]string{"token": a.mint()})
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body platform.Registration
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email == "taken@example.com" {
			reply(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		reply(w, http.StatusCreated, map[string]string{"message": "created"})
	})
	mux.HandleFunc("POST /auth/refresh_token", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		if _, err := r.Cookie("refresh_handle"); err != nil || !a.refreshOK.Load() {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "refresh token expired"})
			return
		}
		reply(w, http.StatusOK, map[string]string{"token": a.mint()})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		a.mu.Lock()
		a.meAuths = append(a.meAuths, auth)
		ok := a.valid[strings.TrimPrefix(auth, "Bearer ")]
		a.mu.Unlock()
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "jwt expired"})
			return
		}
		reply(w, http.StatusOK, map[string]string{"id": "u1", "name": "Ada", "email": "ada@example.com"})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		a.logoutCalls.Add(1)
		if a.logoutFails.Load() {
			reply(w, http.StatusInternalServerError, map[string]string{"error": "session store unavailable"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_handle", Value: "", Path: "/", MaxAge: -1})
		reply(w, http.StatusOK, map[string]string{"message": "logged out"})
	})

	a.srv = httptest.NewServer(mux)
	t.Cleanup(a.srv.Close)
	return a
}

func (a *authServer) mint() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.minted++
	tok := "T" + strconv.Itoa(a.minted+1)
	a.valid[tok] = true
	return tok
}

func (a *authServer) accept(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid[token] = true
}

func (a *authServer) revoke(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.valid, token)
}

func (a *authServer) meHeaders() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.meAuths...)
}

// client wires a real pipeline and client against the server. With cookie
// set, the jar already holds a refresh cookie from an earlier login.
func (a *authServer) client(t *testing.T, store tokenstore.Store, cookie bool) *platform.Client {
	t.Helper()

	jar, err := platform.NewJar("", nil)
	require.NoError(t, err)
	if cookie {
		req, err := http.NewRequest(http.MethodGet, a.srv.URL, nil)
		require.NoError(t, err)
		jar.SetCookies(req.URL, []*http.Cookie{{Name: "refresh_handle", Value: "rh", Path: "/", HttpOnly: true}})
	}

	p := platform.NewPipeline(a.srv.URL, store, platform.WithHTTPClient(&http.Client{Jar: jar}))
	return platform.NewClient(p)
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recorder collects the sessions delivered to a subscriber.
type recorder struct {
	mu       sync.Mutex
	sessions []Session
}

func (r *recorder) observe(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Status)
	}
	return out
}
