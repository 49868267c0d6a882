package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/truematch/internal/platform"
)

const refreshCookie = "refresh_handle"

type fakeUser struct {
	ID       string
	Name     string
	Email    string
	Password string
}

// fakeTrueMatch is an in-process TrueMatch API. Access tokens are HS256 JWTs
// whose subject is the user id; refresh handles travel in an HttpOnly cookie.
type fakeTrueMatch struct {
	server *httptest.Server

	mu          sync.Mutex
	users       map[string]fakeUser // by email
	tokens      map[string]string   // access token -> email
	handles     map[string]string   // refresh handle -> email
	results     map[string]platform.Result
	submissions []platform.Submission
	minted      int
	refreshes   int
	failLogout  bool
	revokeOnAsk bool
}

func newFakeTrueMatch(t *testing.T) *fakeTrueMatch {
	t.Helper()

	f := &fakeTrueMatch{
		users:   make(map[string]fakeUser),
		tokens:  make(map[string]string),
		handles: make(map[string]string),
		results: make(map[string]platform.Result),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", f.register)
	mux.HandleFunc("POST /auth/login", f.login)
	mux.HandleFunc("POST /auth/refresh_token", f.refresh)
	mux.HandleFunc("GET /auth/me", f.me)
	mux.HandleFunc("POST /auth/logout", f.logout)
	mux.HandleFunc("POST /user/askai", f.askAI)
	mux.HandleFunc("GET /user/response", f.latest)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeTrueMatch) URL() string {
	return f.server.URL
}

func (f *fakeTrueMatch) addUser(name, email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = fakeUser{ID: fmt.Sprintf("u%d", len(f.users)+1), Name: name, Email: email, Password: password}
}

// expireAccessTokens forgets every access token; refresh cookies stay valid.
func (f *fakeTrueMatch) expireAccessTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]string)
}

// revokeAll ends every session, refresh cookies included.
func (f *fakeTrueMatch) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]string)
	f.handles = make(map[string]string)
}

func (f *fakeTrueMatch) set(fn func(f *fakeTrueMatch)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeTrueMatch) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeTrueMatch) lastSubmission() platform.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submissions) == 0 {
		return platform.Submission{}
	}
	return f.submissions[len(f.submissions)-1]
}

// mint must be called with mu held.
func (f *fakeTrueMatch) mint(email string) string {
	f.minted++
	claims := jwt.RegisteredClaims{
		Subject:   f.users[email].ID,
		ID:        fmt.Sprint(f.minted),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("fake-secret"))
	if err != nil {
		panic(err)
	}
	f.tokens[token] = email
	return token
}

// caller must be called with mu held.
func (f *fakeTrueMatch) caller(r *http.Request) (fakeUser, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	email, ok := f.tokens[token]
	if !ok {
		return fakeUser{}, false
	}
	return f.users[email], true
}

func (f *fakeTrueMatch) register(w http.ResponseWriter, r *http.Request) {
	var body platform.Registration
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	f.mu.Lock()
	_, taken := f.users[body.Email]
	f.mu.Unlock()
	if taken {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}

	f.addUser(body.Name, body.Email, body.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "registered"})
}

func (f *fakeTrueMatch) login(w http.ResponseWriter, r *http.Request) {
	var body platform.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[body.Email]
	if !ok || u.Password != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "wrong password for " + body.Email})
		return
	}

	handle := fmt.Sprintf("rh-%d", len(f.handles)+1)
	f.handles[handle] = u.Email
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: handle, Path: "/", HttpOnly: true, MaxAge: 3600})
	writeJSON(w, http.StatusOK, map[string]string{"token": f.mint(u.Email)})
}

func (f *fakeTrueMatch) refresh(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++

	c, err := r.Cookie(refreshCookie)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no refresh token"})
		return
	}
	email, ok := f.handles[c.Value]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "refresh token revoked"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": f.mint(email)})
}

func (f *fakeTrueMatch) me(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	u, ok := f.caller(r)
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": u.ID, "name": u.Name, "email": u.Email})
}

func (f *fakeTrueMatch) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failLogout {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "unavailable"})
		return
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		delete(f.handles, c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (f *fakeTrueMatch) askAI(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.revokeOnAsk {
		f.revokeOnAsk = false
		f.tokens = make(map[string]string)
		f.handles = make(map[string]string)
	}

	u, ok := f.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
		return
	}

	var s platform.Submission
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	f.submissions = append(f.submissions, s)

	result := platform.Result{
		"compatibilityScore": 88.0,
		"loveLanguage":       "Quality time",
		"answered":           float64(len(s.Responses)),
	}
	f.results[u.Email] = result
	writeJSON(w, http.StatusOK, result)
}

func (f *fakeTrueMatch) latest(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
		return
	}
	if result, ok := f.results[u.Email]; ok {
		writeJSON(w, http.StatusOK, map[string]any{"response": result})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
