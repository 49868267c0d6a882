package auth

import (
	"context"

	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
)

// Bootstrap outcomes.
const (
	OutcomeStoredToken = "stored_token"
	OutcomeRefreshed   = "refreshed"
	OutcomeAnonymous   = "anonymous"
)

// API is the subset of the platform client the session needs.
type API interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, r platform.Registration) error
	Refresh(ctx context.Context) (string, error)
	Me(ctx context.Context) (platform.User, error)
	Logout(ctx context.Context) error
}

// Invalidator is implemented by APIs that can report that the server
// rejected the session outside of an explicit session operation.
type Invalidator interface {
	OnInvalidated(fn func(platform.Event)) (cancel func())
}

// Bootstrapper reconstructs the session at startup, first from the stored
// token and then from the refresh cookie.
type Bootstrapper struct {
	api     API
	store   tokenstore.Store
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewBootstrapper creates a bootstrapper.
func NewBootstrapper(api API, store tokenstore.Store, logger *log.Logger, m *metrics.Metrics) *Bootstrapper {
	return &Bootstrapper{
		api:     api,
		store:   store,
		logger:  log.OrDefault(logger).With("component", "bootstrap"),
		metrics: m,
	}
}

// Run produces the initial session. It never fails: anything that prevents
// establishing a user ends in an anonymous session with an empty store.
func (b *Bootstrapper) Run(ctx context.Context) Session {
	session, outcome := b.run(ctx)
	b.metrics.RecordBootstrap(outcome)
	b.logger.Debug("session bootstrapped", "status", session.Status.String(), "outcome", outcome)
	return session
}

func (b *Bootstrapper) run(ctx context.Context) (Session, string) {
	if stored, ok := b.store.Read(); ok {
		user, err := b.api.Me(ctx)
		if err == nil {
			// The pipeline may have refreshed an expired token on the way.
			outcome := OutcomeStoredToken
			if current, _ := b.store.Read(); current != stored {
				outcome = OutcomeRefreshed
			}
			return Authenticated(user), outcome
		}
		b.logger.Debug("stored token not accepted", "token_fp", tokenstore.Fingerprint(stored), "error", err)
	}

	if ctx.Err() != nil {
		b.store.Clear()
		return Anonymous(), OutcomeAnonymous
	}

	if _, err := b.api.Refresh(ctx); err != nil {
		b.logger.Debug("no refreshable session", "error", err)
		b.store.Clear()
		return Anonymous(), OutcomeAnonymous
	}

	user, err := b.api.Me(ctx)
	if err != nil {
		b.logger.Debug("profile fetch failed after refresh", "error", err)
		b.store.Clear()
		return Anonymous(), OutcomeAnonymous
	}
	return Authenticated(user), OutcomeRefreshed
}
