package auth

import (
	"context"
	"slices"
	"sync"

	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

// Manager is the single source of truth for the session. It starts in
// Loading; Bootstrap moves it to Authenticated or Anonymous, after which only
// Login (Anonymous to Authenticated), Logout and server-side invalidation
// (to Anonymous) change it.
//
// Subscribers run synchronously on the goroutine that made the transition
// and must not call Login, Logout or Bootstrap.
type Manager struct {
	api     API
	store   tokenstore.Store
	boot    *Bootstrapper
	logger  *log.Logger
	metrics *metrics.Metrics

	// opMu serializes Bootstrap, Login and Logout.
	opMu         sync.Mutex
	bootstrapped bool

	// transMu orders transitions and their notifications.
	transMu sync.Mutex

	mu      sync.RWMutex
	session Session
	subs    map[int]func(Session)
	nextSub int

	stopInvalidation func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records transitions and bootstrap outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a manager in the Loading state. If api implements
// Invalidator, the manager drops to Anonymous whenever the pipeline gives up
// on the session.
func NewManager(api API, store tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:     api,
		store:   store,
		session: Loading(),
		subs:    make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrDefault(m.logger).With("component", "session")
	m.boot = NewBootstrapper(api, store, m.logger, m.metrics)

	if inv, ok := api.(Invalidator); ok {
		m.stopInvalidation = inv.OnInvalidated(m.handleInvalidation)
	}
	return m
}

// Close detaches the manager from the invalidation signal.
func (m *Manager) Close() {
	if m.stopInvalidation != nil {
		m.stopInvalidation()
	}
}

// Current returns the current session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Subscribe registers fn to receive every session after a transition.
func (m *Manager) Subscribe(fn func(Session)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// RequireAuthenticated returns nil when a user is logged in and an
// *AuthError describing the state otherwise.
func (m *Manager) RequireAuthenticated() error {
	s := m.Current()
	if s.IsAuthenticated() {
		return nil
	}
	return statusError(s.Status)
}

// Bootstrap establishes the initial session. Only the first call does any
// work; later calls return the current session.
func (m *Manager) Bootstrap(ctx context.Context) Session {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.bootstrapped {
		return m.Current()
	}
	m.bootstrapped = true

	next := m.boot.Run(ctx)
	m.transition(next, StatusLoading)
	return m.Current()
}

// Login exchanges credentials for a token and establishes the session. It is
// only valid from Anonymous. Any failure leaves the session and the store as
// they were and returns an AUTH_INVALID_CREDENTIALS error with a uniform
// message.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.requireAnonymous(); err != nil {
		return err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.requireAnonymous(); err != nil {
		return err
	}

	token, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.logger.Debug("login rejected", "error", err)
		return invalidCredentials(err)
	}
	m.store.Save(token)

	user, err := m.api.Me(ctx)
	if err != nil {
		m.logger.Debug("profile fetch failed after login", "error", err)
		m.store.Clear()
		return invalidCredentials(err)
	}

	if !m.transition(Authenticated(user), StatusAnonymous) {
		// Lost to a concurrent invalidation of the token just saved.
		m.store.Clear()
		return invalidCredentials(nil)
	}
	m.logger.Info("logged in", "user_id", user.ID(), "token_fp", tokenstore.Fingerprint(token))
	return nil
}

// Register creates an account. It never changes the session; the caller
// logs in separately.
func (m *Manager) Register(ctx context.Context, r platform.Registration) error {
	if err := m.api.Register(ctx, r); err != nil {
		m.logger.Debug("registration rejected", "error", err)
		return registrationFailed(err)
	}
	return nil
}

// Logout tells the server to end the session, then clears the store and
// moves to Anonymous whatever the server said. The returned error reports
// only the server call; the local session is always gone.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	err := m.api.Logout(ctx)
	if err != nil {
		m.logger.Warn("server logout failed, clearing local session anyway", "error", err)
	}

	m.store.Clear()
	m.bootstrapped = true
	m.transition(Anonymous())
	m.logger.Info("logged out")
	return err
}

func (m *Manager) requireAnonymous() error {
	if s := m.Current(); s.Status != StatusAnonymous {
		return statusError(s.Status)
	}
	return nil
}

// handleInvalidation drops an authenticated session once the pipeline has
// cleared the store. While Loading the bootstrapper decides the outcome.
func (m *Manager) handleInvalidation(ev platform.Event) {
	if m.transition(Anonymous(), StatusAuthenticated) {
		m.logger.Info("session invalidated", "reason", ev.Reason)
	}
}

// transition moves to next if the current status is one of from (any status
// when from is empty) and notifies subscribers. It reports whether it moved.
func (m *Manager) transition(next Session, from ...Status) bool {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	prev := m.session
	if len(from) > 0 && !slices.Contains(from, prev.Status) {
		m.mu.Unlock()
		return false
	}
	m.session = next

	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(Session), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	m.mu.Unlock()

	if prev.Status != next.Status {
		m.metrics.RecordTransition(prev.Status.String(), next.Status.String())
	}
	for _, fn := range subs {
		fn(next)
	}
	return true
}
