// Package app wires all intrascribe subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithRegistry, WithSTT, etc.). When an option is not provided, New creates
// the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intrascribe/intrascribe/internal/config"
	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/finalize"
	"github.com/intrascribe/intrascribe/internal/health"
	"github.com/intrascribe/intrascribe/internal/httpapi"
	"github.com/intrascribe/intrascribe/internal/ingest"
	"github.com/intrascribe/intrascribe/internal/observe"
	"github.com/intrascribe/intrascribe/internal/registry"
	regpostgres "github.com/intrascribe/intrascribe/internal/registry/postgres"
	"github.com/intrascribe/intrascribe/internal/resilience"
	"github.com/intrascribe/intrascribe/internal/retrans"
	"github.com/intrascribe/intrascribe/internal/store"
	"github.com/intrascribe/intrascribe/internal/summary"
	"github.com/intrascribe/intrascribe/internal/task"
	"github.com/intrascribe/intrascribe/pkg/audio"
	"github.com/intrascribe/intrascribe/pkg/media"
	"github.com/intrascribe/intrascribe/pkg/media/wsrouter"
	"github.com/intrascribe/intrascribe/pkg/objectstore"
	"github.com/intrascribe/intrascribe/pkg/objectstore/bucketapi"
	"github.com/intrascribe/intrascribe/pkg/provider/diarize"
	diarizeremote "github.com/intrascribe/intrascribe/pkg/provider/diarize/remote"
	"github.com/intrascribe/intrascribe/pkg/provider/llm"
	"github.com/intrascribe/intrascribe/pkg/provider/llm/anyllm"
	"github.com/intrascribe/intrascribe/pkg/provider/llm/openai"
	"github.com/intrascribe/intrascribe/pkg/provider/stt"
	sttremote "github.com/intrascribe/intrascribe/pkg/provider/stt/remote"
)

// readHeaderTimeout bounds slow-header clients on the public listener.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	log *slog.Logger

	cache    *store.Store
	registry registry.Store
	objects  objectstore.Store
	router   media.Router

	sttClient     stt.Client
	diarizeClient diarize.Client
	llmProvider   llm.Provider

	summaries *summary.Service
	transcode *audio.Transcoder
	tasks     *task.Tracker
	finalizer *finalize.Pipeline
	retrans   *retrans.Service
	live      *ingest.Manager
	metrics   *observe.Metrics

	httpSrv  *http.Server
	checkers []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithRegistry injects a session registry instead of connecting to Postgres.
func WithRegistry(reg registry.Store) Option {
	return func(a *App) { a.registry = reg }
}

// WithObjectStore injects an object store instead of creating a bucket client.
func WithObjectStore(objects objectstore.Store) Option {
	return func(a *App) { a.objects = objects }
}

// WithMediaRouter injects a media router instead of dialing the media server.
func WithMediaRouter(router media.Router) Option {
	return func(a *App) { a.router = router }
}

// WithSTT injects an STT client instead of creating the remote one.
func WithSTT(client stt.Client) Option {
	return func(a *App) { a.sttClient = client }
}

// WithDiarize injects a diarization client instead of creating the remote one.
func WithDiarize(client diarize.Client) Option {
	return func(a *App) { a.diarizeClient = client }
}

// WithLLM injects an LLM provider instead of building the configured chain.
func WithLLM(provider llm.Provider) Option {
	return func(a *App) { a.llmProvider = provider }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem; everything else is constructed
// from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg: cfg,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Ephemeral session store ───────────────────────────────────────
	if err := a.initCache(ctx); err != nil {
		return nil, fmt.Errorf("app: init cache: %w", err)
	}

	// ── 2. Session registry ──────────────────────────────────────────────
	if err := a.initRegistry(ctx); err != nil {
		return nil, fmt.Errorf("app: init registry: %w", err)
	}

	// ── 3. Object store ──────────────────────────────────────────────────
	if err := a.initObjects(); err != nil {
		return nil, fmt.Errorf("app: init object store: %w", err)
	}

	// ── 4. Media router ──────────────────────────────────────────────────
	if err := a.initMediaRouter(); err != nil {
		return nil, fmt.Errorf("app: init media router: %w", err)
	}

	// ── 5. Inference providers ───────────────────────────────────────────
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}

	// ── 6. Pipelines and services ────────────────────────────────────────
	a.metrics = observe.DefaultMetrics()
	a.summaries = summary.New(a.llmProvider,
		summary.WithLogger(a.log),
		summary.WithMetrics(a.metrics),
	)
	a.transcode = audio.NewTranscoder()
	a.tasks = task.NewTracker(task.WithLogger(a.log), task.WithMetrics(a.metrics))
	a.finalizer = finalize.New(a.registry, a.cache, a.objects, a.transcode, cfg.Objects.Bucket,
		finalize.WithLogger(a.log),
		finalize.WithSummaries(a.summaries),
		finalize.WithMetrics(a.metrics),
	)
	a.retrans = retrans.New(a.registry, a.objects, cfg.Objects.Bucket, a.tasks,
		a.sttClient, a.diarizeClient, a.transcode,
		retrans.WithLogger(a.log),
		retrans.WithMaxConcurrentSTT(cfg.Retrans.MaxConcurrentSTT),
		retrans.WithModelID(cfg.Retrans.ModelID),
		retrans.WithMetrics(a.metrics),
	)
	a.live = ingest.NewManager(a.cache, a.sttClient, a.router,
		ingest.WithManagerLogger(a.log),
		ingest.WithManagerMetrics(a.metrics),
	)

	// ── 7. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initCache connects the Redis-backed ephemeral store.
func (a *App) initCache(ctx context.Context) error {
	cache, err := store.New(ctx, a.cfg.Store.RedisAddr,
		store.WithPassword(a.cfg.Store.RedisPassword),
		store.WithDB(a.cfg.Store.RedisDB),
		store.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	a.cache = cache
	a.closers = append(a.closers, cache.Close)
	a.checkers = append(a.checkers, health.Checker{Name: "redis", Check: cache.Ping})
	return nil
}

// initRegistry connects the Postgres session registry or uses the injected one.
func (a *App) initRegistry(ctx context.Context) error {
	if a.registry != nil {
		return nil
	}
	if a.cfg.Registry.PostgresDSN == "" {
		return errors.New("registry.postgres_dsn is required when no registry is injected")
	}
	pg, err := regpostgres.NewStore(ctx, a.cfg.Registry.PostgresDSN)
	if err != nil {
		return err
	}
	a.registry = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	a.checkers = append(a.checkers, health.Checker{Name: "postgres", Check: pg.Ping})
	return nil
}

// initObjects creates the bucket API client or uses the injected store.
func (a *App) initObjects() error {
	if a.objects != nil {
		return nil
	}
	if a.cfg.Objects.BaseURL == "" {
		return errors.New("objects.base_url is required when no object store is injected")
	}
	client, err := bucketapi.New(a.cfg.Objects.BaseURL, a.cfg.Objects.APIKey)
	if err != nil {
		return err
	}
	a.objects = client
	return nil
}

// initMediaRouter dials the media server control endpoint or uses the
// injected router.
func (a *App) initMediaRouter() error {
	if a.router != nil {
		return nil
	}
	if a.cfg.Media.RouterURL == "" {
		return errors.New("media.router_url is required when no media router is injected")
	}
	router, err := wsrouter.New(a.cfg.Media.RouterURL, a.cfg.Media.Token,
		wsrouter.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	a.router = router
	a.closers = append(a.closers, router.Close)
	return nil
}

// initProviders builds the STT, diarization, and LLM clients. STT and LLM
// get circuit-breaker fallback wrappers; a missing diarization endpoint
// degrades to a client that always reports unavailability, which the
// retranscription core turns into the single-speaker fallback.
func (a *App) initProviders() error {
	if a.sttClient == nil {
		remoteOpts := []sttremote.Option{}
		if a.cfg.Providers.STT.Timeout > 0 {
			remoteOpts = append(remoteOpts, sttremote.WithTimeout(a.cfg.Providers.STT.Timeout))
		}
		client, err := sttremote.New(a.cfg.Providers.STT.BaseURL, remoteOpts...)
		if err != nil {
			return fmt.Errorf("stt client: %w", err)
		}
		a.sttClient = resilience.NewSTTFallback(client, "stt_remote", resilience.FallbackConfig{})
	}

	if a.diarizeClient == nil {
		if a.cfg.Providers.Diarize.BaseURL == "" {
			a.diarizeClient = noDiarizer{}
		} else {
			client, err := diarizeremote.New(a.cfg.Providers.Diarize.BaseURL)
			if err != nil {
				return fmt.Errorf("diarize client: %w", err)
			}
			a.diarizeClient = client
		}
	}

	if a.llmProvider == nil {
		provider, err := buildLLMChain(a.cfg.Providers.LLM, a.log)
		if err != nil {
			return fmt.Errorf("llm chain: %w", err)
		}
		a.llmProvider = provider
	}
	return nil
}

// buildLLMChain turns the ordered provider list into a fallback group. An
// empty list yields nil, which routes summaries to the rule-based fallback.
func buildLLMChain(entries []config.LLMEntry, log *slog.Logger) (llm.Provider, error) {
	if len(entries) == 0 {
		log.Warn("no LLM providers configured, summaries degrade to the rule-based fallback")
		return nil, nil
	}

	providers := make([]llm.Provider, 0, len(entries))
	for _, e := range entries {
		p, err := buildLLMProvider(e)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", e.Name, err)
		}
		providers = append(providers, p)
	}

	chain := resilience.NewLLMFallback(providers[0], entries[0].Name, resilience.FallbackConfig{})
	for i := 1; i < len(entries); i++ {
		chain.AddFallback(entries[i].Name, providers[i])
	}
	return chain, nil
}

// buildLLMProvider creates one provider from its config entry. OpenAI uses
// the native SDK client; every other name goes through any-llm.
func buildLLMProvider(e config.LLMEntry) (llm.Provider, error) {
	if e.Name == "openai" && e.BaseURL == "" {
		return openai.New(e.APIKey, e.Model)
	}
	var opts []anyllmlib.Option
	if e.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
	}
	if e.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
	}
	return anyllm.New(e.Name, e.Model, opts...)
}

// initHTTP assembles the mux: API routes, health endpoints, and the
// Prometheus scrape endpoint, all behind the tracing middleware.
func (a *App) initHTTP() {
	api := httpapi.New(a.registry, a.cache, a.finalizer, a.retrans, a.tasks,
		a.cfg.Server.ServiceToken,
		httpapi.WithLogger(a.log),
		httpapi.WithObjectStore(a.objects, a.cfg.Objects.Bucket),
		httpapi.WithLive(a.live),
	)

	mux := api.Routes()
	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// ─── Run / Shutdown ──────────────────────────────────────────────────────────

// Handler returns the root HTTP handler. Exposed for tests that drive the
// app through httptest instead of a real listener.
func (a *App) Handler() http.Handler {
	return a.httpSrv.Handler
}

// Run serves HTTP until ctx is cancelled or the listener fails. It does not
// call Shutdown; main owns that.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Shutdown stops the listener, closes live adapters, waits for background
// jobs, and tears down stores. It respects the context deadline: when ctx
// expires before all closers finish, the remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		if err := a.httpSrv.Shutdown(ctx); err != nil {
			a.log.Warn("http shutdown error", "error", err)
		}
		if err := a.live.CloseAll(ctx); err != nil {
			a.log.Warn("closing live adapters failed", "error", err)
		}
		a.retrans.Wait()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "error", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// noDiarizer stands in when no diarization endpoint is configured.
type noDiarizer struct{}

func (noDiarizer) Diarize(context.Context, []byte, string, string) (diarize.Response, error) {
	return diarize.Response{}, fmt.Errorf("diarization not configured: %w", fault.ErrServiceUnavailable)
}
