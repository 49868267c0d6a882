package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/truematch/internal/auth"
	tmerrors "github.com/felixgeelhaar/truematch/internal/errors"
	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/results"
	"github.com/felixgeelhaar/truematch/internal/telemetry"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
	"github.com/felixgeelhaar/truematch/internal/tui"
	"github.com/felixgeelhaar/truematch/internal/ux"
	"github.com/felixgeelhaar/truematch/internal/version"
)

// runtime is everything a session-aware command needs, built once per
// invocation from the configuration.
type runtime struct {
	cmd    *cobra.Command
	cmdCtx *CommandContext
	cfg    *GlobalConfig
	out    io.Writer
	errOut io.Writer
	styles tui.Styles

	logger   *log.Logger
	metrics  *metrics.Metrics
	store    tokenstore.Store
	jar      *platform.Jar
	pipeline *platform.Pipeline
	client   *platform.Client
	manager  *auth.Manager
	results  *results.Cache

	// expired is set when a session this process knew about ended without
	// an explicit logout.
	expired    atomic.Bool
	loggingOut atomic.Bool
	wasAuthed  atomic.Bool

	cleanup []func()
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to create command context: %w", err)
	}

	cfg, err := loadConfig(cmdCtx.Home)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg, cmdCtx)

	if !ux.ValidFormat(cfg.Defaults.Format) {
		return nil, configError("--format", cfg.Defaults.Format, "text, json, yaml")
	}

	rt := &runtime{
		cmd:    cmd,
		cmdCtx: cmdCtx,
		cfg:    cfg,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		styles: tui.NewStyles(cfg.Defaults.NoColor),
	}
	rt.cleanup = append(rt.cleanup, setupObservability(cmd.Context(), cfg, cmdCtx.Home))
	rt.logger = log.DefaultLogger().With("command", commandName(cmd))
	rt.metrics = metrics.GetDefault()

	if err := rt.wire(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) wire() error {
	timeout, err := rt.cfg.RequestTimeout()
	if err != nil {
		return err
	}
	mode, err := platform.ParseRefreshMode(rt.cfg.Session.RefreshMode)
	if err != nil {
		return configError("session.refresh_mode", rt.cfg.Session.RefreshMode, "coalesce, per-request")
	}

	store, err := rt.openStore()
	if err != nil {
		return err
	}
	rt.store = store

	jar, err := platform.NewJar(filepath.Join(rt.cmdCtx.Home, platform.DefaultCookieFileName), rt.logger)
	if err != nil {
		return err
	}
	rt.jar = jar

	rt.pipeline = platform.NewPipeline(rt.cfg.API.BaseURL, store,
		platform.WithHTTPClient(&http.Client{Jar: jar, Timeout: timeout}),
		platform.WithRefreshMode(mode),
		platform.WithUserAgent(version.GetInfo().UserAgent()),
		platform.WithLogger(rt.logger),
		platform.WithMetrics(rt.metrics),
	)
	rt.client = platform.NewClient(rt.pipeline)
	rt.manager = auth.NewManager(rt.client, store,
		auth.WithLogger(rt.logger),
		auth.WithMetrics(rt.metrics),
	)
	rt.cleanup = append(rt.cleanup, rt.manager.Close)
	rt.results = results.NewCache(filepath.Join(rt.cmdCtx.Home, results.DefaultFileName))

	cancel := rt.manager.Subscribe(rt.onSession)
	rt.cleanup = append(rt.cleanup, cancel)
	return nil
}

// openStore builds the configured token store backend
func (rt *runtime) openStore() (tokenstore.Store, error) {
	backend := strings.ToLower(rt.cfg.Session.Store)
	switch backend {
	case "", "file":
		return tokenstore.NewFileStore(
			filepath.Join(rt.cmdCtx.Home, tokenstore.DefaultFileName),
			tokenstore.WithFileLogger(rt.logger),
			tokenstore.WithFileMetrics(rt.metrics),
		), nil

	case "memory":
		return tokenstore.NewMemoryStore(), nil

	case "redis":
		rc := rt.cfg.Session.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			DB:       rc.DB,
			Password: os.Getenv("TRUEMATCH_REDIS_PASSWORD"),
		})
		rt.cleanup = append(rt.cleanup, func() { _ = client.Close() })

		opts := []tokenstore.RedisOption{
			tokenstore.WithRedisLogger(rt.logger),
			tokenstore.WithRedisMetrics(rt.metrics),
		}
		if rc.TTL != "" {
			ttl, err := time.ParseDuration(rc.TTL)
			if err != nil {
				return nil, configError("session.redis.ttl", rc.TTL, "a Go duration such as 24h")
			}
			opts = append(opts, tokenstore.WithTTL(ttl))
		}
		return tokenstore.NewRedisStore(client, rc.Key, opts...), nil

	default:
		return nil, tmerrors.New(tmerrors.ErrCodeStoreUnknownBackend, fmt.Sprintf("unknown token store %q", backend)).
			WithSuggestion("Set session.store to file, redis or memory")
	}
}

// onSession tracks whether an authenticated session ended on its own. It
// also drops the cached analysis, which belongs to the user who just left.
func (rt *runtime) onSession(s auth.Session) {
	switch s.Status {
	case auth.StatusAuthenticated:
		rt.wasAuthed.Store(true)
	case auth.StatusAnonymous:
		if err := rt.results.Clear(); err != nil {
			rt.logger.Warn("failed to clear cached result", "error", err)
		}
		if rt.wasAuthed.Load() && !rt.loggingOut.Load() {
			rt.expired.Store(true)
		}
	}
}

// bootstrap restores the session. A stored token that could not be revived
// counts as an expired session.
func (rt *runtime) bootstrap(ctx context.Context) auth.Session {
	_, hadToken := rt.store.Read()
	s := rt.manager.Bootstrap(ctx)
	if hadToken && s.Status == auth.StatusAnonymous && ctx.Err() == nil {
		rt.expired.Store(true)
	}
	return s
}

// requireSession is the guard for protected commands
func (rt *runtime) requireSession(ctx context.Context) (auth.Session, error) {
	s := rt.bootstrap(ctx)
	if err := rt.manager.RequireAuthenticated(); err != nil {
		if rt.expired.Load() {
			return s, auth.NewError(auth.ErrSessionExpired, "session expired", nil)
		}
		return s, err
	}
	return s, nil
}

func (rt *runtime) flagString(name string) string {
	v, _ := rt.cmd.Flags().GetString(name)
	return v
}

func (rt *runtime) flagBool(name string) bool {
	v, _ := rt.cmd.Flags().GetBool(name)
	return v
}

// render writes a command result in the selected format
func (rt *runtime) render(data any) error {
	f, err := ux.NewFormatter(rt.cfg.Defaults.Format, &ux.FormatterOptions{Writer: rt.out})
	if err != nil {
		return err
	}
	return f.Format(data)
}

// finish prints end-of-command notices to stderr
func (rt *runtime) finish() {
	if rt.expired.Load() {
		fmt.Fprintln(rt.errOut, rt.styles.Warning.Render("Your session expired, log in again with 'truematch auth login'."))
	}
	if rt.cmdCtx.Metrics {
		printMetricsSummary(rt.errOut)
	}
}

// Close releases the runtime in reverse order of acquisition
func (rt *runtime) Close() {
	for i := len(rt.cleanup) - 1; i >= 0; i-- {
		rt.cleanup[i]()
	}
	rt.cleanup = nil
}

// withRuntime adapts a session-aware command body to cobra. It owns the
// runtime lifecycle, the command span and metric, and error presentation.
func withRuntime(fn func(ctx context.Context, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return presentError(err)
		}
		defer rt.Close()

		name := commandName(cmd)
		ctx, span := telemetry.StartCommandSpan(cmd.Context(), name)
		defer span.End()

		err = fn(ctx, rt, args)
		rt.metrics.RecordCommand(name, err == nil)
		if err != nil {
			telemetry.RecordError(span, err)
			rt.logger.WithError(err).Debug("command failed")
		} else {
			telemetry.RecordSuccess(span)
		}

		rt.finish()
		return presentError(err)
	}
}

func commandName(cmd *cobra.Command) string {
	return strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")
}
