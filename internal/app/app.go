// Package app wires the gateway subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the SaluteSpeech client,
// the turn journal, the Wyoming handler and listener and the admin HTTP
// server; Run serves until the context is cancelled; Shutdown releases
// everything in order.
//
// For testing, inject doubles via functional options (WithProvider,
// WithJournal, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/salutespeech-gateway/internal/config"
	"github.com/MrWong99/salutespeech-gateway/internal/gateway"
	"github.com/MrWong99/salutespeech-gateway/internal/health"
	"github.com/MrWong99/salutespeech-gateway/internal/journal"
	"github.com/MrWong99/salutespeech-gateway/internal/observe"
	"github.com/MrWong99/salutespeech-gateway/internal/resilience"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/salute"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/stt"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/tts"
)

// providerName labels provider metrics.
const providerName = "salute"

// adminShutdownGrace bounds the admin server's graceful shutdown.
const adminShutdownGrace = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	version string

	level          *slog.LevelVar
	metrics        *observe.Metrics
	metricsHandler http.Handler

	recognizer  stt.Recognizer
	synthesizer tts.Synthesizer
	tokens      *salute.TokenCache
	store       journal.Store

	handler *gateway.Handler
	server  *gateway.Server
	admin   *http.Server
	adminLn net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProvider injects the recognizer and synthesizer instead of building a
// SaluteSpeech client from config. No token check is registered.
func WithProvider(rec stt.Recognizer, syn tts.Synthesizer) Option {
	return func(a *App) {
		a.recognizer = rec
		a.synthesizer = syn
	}
}

// WithJournal injects a turn journal instead of connecting to PostgreSQL.
func WithJournal(s journal.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics sets the instruments used by every subsystem. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics on the admin server.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets config reloads adjust the log level of the logger that
// owns lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithVersion sets the version advertised in the Wyoming info event.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together and binding both
// listeners. An untrusted auth endpoint certificate fails with an error
// wrapping [salute.ErrUntrusted].
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initProvider(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init provider: %w", err)
	}
	if err := a.initJournal(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init journal: %w", err)
	}
	if err := a.initGateway(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}
	if err := a.initAdmin(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init admin: %w", err)
	}
	return a, nil
}

// initProvider builds the SaluteSpeech client unless one was injected.
func (a *App) initProvider(ctx context.Context) error {
	if a.recognizer != nil && a.synthesizer != nil {
		return nil
	}
	sc := a.cfg.Salute

	hc := &http.Client{Transport: salute.NewTransport(nil)}
	if err := salute.EnsureTrust(ctx, hc, sc.AuthURL, sc.CACertFile); err != nil {
		return err
	}

	tokens, err := salute.NewTokenCache(sc.AuthKey,
		salute.WithAuthURL(sc.AuthURL),
		salute.WithScope(sc.Scope),
		salute.WithTokenHTTPClient(hc),
	)
	if err != nil {
		return err
	}
	a.tokens = tokens

	clientOpts := []salute.Option{
		salute.WithServiceURL(sc.ServiceURL),
		salute.WithModel(sc.Model),
		salute.WithHTTPClient(hc),
		salute.WithRequestTimeout(sc.RequestTimeout),
	}
	if sc.Breaker.MaxFailures > 0 {
		clientOpts = append(clientOpts, salute.WithBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         providerName,
			MaxFailures:  sc.Breaker.MaxFailures,
			ResetTimeout: sc.Breaker.ResetTimeout,
			IsFailure:    salute.IsServiceFailure,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from, "to", to)
			},
		})))
	}
	client, err := salute.New(tokens, clientOpts...)
	if err != nil {
		return err
	}
	a.recognizer = client
	a.synthesizer = client
	slog.Info("salute client configured",
		"service_url", sc.ServiceURL,
		"model", sc.Model,
		"breaker", sc.Breaker.MaxFailures > 0,
	)
	return nil
}

// initJournal connects the PostgreSQL journal when a DSN is configured.
func (a *App) initJournal(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Journal.PostgresDSN
	if dsn == "" {
		return nil
	}
	store, err := journal.NewPostgresStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	slog.Info("turn journal enabled")
	return nil
}

// initGateway builds the Wyoming handler and binds its listener.
func (a *App) initGateway(ctx context.Context) error {
	voices, err := a.synthesizer.ListVoices(ctx)
	if err != nil {
		slog.Warn("cannot list voices, advertising none", "err", err)
	}

	opts := []gateway.Option{
		gateway.WithSettings(settingsFrom(a.cfg.Gateway)),
		gateway.WithInfo(gateway.NewInfo(a.version, salute.Languages, voices)),
		gateway.WithMetrics(a.metrics),
		gateway.WithProviderName(providerName),
	}
	if a.store != nil {
		opts = append(opts, gateway.WithJournal(a.store))
	}
	h, err := gateway.NewHandler(a.recognizer, a.synthesizer, opts...)
	if err != nil {
		return err
	}
	a.handler = h

	srv, err := gateway.NewServer(a.cfg.Server.ListenURI, h)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	a.server = srv
	a.closers = append(a.closers, srv.Close)
	return nil
}

// initAdmin binds the health and metrics HTTP server when an address is set.
func (a *App) initAdmin() error {
	addr := a.cfg.Server.AdminAddr
	if addr == "" {
		return nil
	}

	checks := []health.Checker{health.ListenerCheck(a.server.Ready)}
	if a.tokens != nil {
		checks = append(checks, health.TokenCheck(a.tokens))
	}
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, health.Checker{Name: "journal", Check: p.Ping})
	}

	mux := http.NewServeMux()
	health.New(checks...).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	a.adminLn = ln
	a.admin = &http.Server{
		Handler:           observe.Middleware(a.metrics, observe.WithQuietPaths("/healthz", "/readyz", "/metrics"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Handler returns the Wyoming handler.
func (a *App) Handler() *gateway.Handler { return a.handler }

// Addr returns the bound Wyoming listener address.
func (a *App) Addr() net.Addr { return a.server.Addr() }

// AdminAddr returns the bound admin address, or nil when the admin server is
// disabled.
func (a *App) AdminAddr() net.Addr {
	if a.adminLn == nil {
		return nil
	}
	return a.adminLn.Addr()
}

// Run serves Wyoming clients and the admin endpoints until ctx is cancelled.
// When w is non-nil its reloads are applied through [App.ApplyConfig].
func (a *App) Run(ctx context.Context, w *config.Watcher) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Serve(ctx) })

	if a.admin != nil {
		g.Go(func() error {
			if err := a.admin.Serve(a.adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adminShutdownGrace)
			defer cancel()
			return a.admin.Shutdown(shutdownCtx)
		})
	}

	if w != nil {
		g.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}

	slog.Info("gateway running",
		"listen_uri", a.cfg.Server.ListenURI,
		"admin_addr", a.cfg.Server.AdminAddr,
	)
	return g.Wait()
}

// ApplyConfig applies the hot-reloadable parts of a new config: the log level
// and the per-session gateway defaults. Changes to other sections are logged
// and wait for a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.GatewayChanged {
		a.handler.UpdateSettings(settingsFrom(new.Gateway))
		slog.Info("gateway defaults updated",
			"language", new.Gateway.Language,
			"voice", new.Gateway.Voice,
		)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// Shutdown releases subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever a failed New managed to open.
func (a *App) closeAll() {
	if a.adminLn != nil {
		_ = a.adminLn.Close()
	}
	for _, c := range a.closers {
		_ = c()
	}
}

// settingsFrom converts the gateway config section to handler settings.
func settingsFrom(gc config.GatewayConfig) gateway.Settings {
	return gateway.Settings{
		Language:      gc.Language,
		Voice:         gc.Voice,
		FrameSamples:  gc.FrameSamples,
		MaxAudioBytes: gc.MaxAudioBytes,
		ReportErrors:  gc.ReportErrors,
		DumpDir:       gc.AudioDumpDir,
	}
}

// SlogLevel maps a config log level to its slog equivalent.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogInfo:
		return slog.LevelInfo
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
