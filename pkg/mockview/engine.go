// Package mockview assembles the interview server: providers, collaborators,
// observers, archives and the web transport.
package mockview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/harunnryd/mockview/pkg/coach"
	"github.com/harunnryd/mockview/pkg/configutil"
	"github.com/harunnryd/mockview/pkg/llm"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/observers"
	"github.com/harunnryd/mockview/pkg/redact"
	"github.com/harunnryd/mockview/pkg/report"
	"github.com/harunnryd/mockview/pkg/runner"
	"github.com/harunnryd/mockview/pkg/transports/web"
)

var ErrDraining = errors.New("mockview: server is draining")

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Logger    *slog.Logger
	// Observers are added next to the built-in ones.
	Observers []metrics.Observer
}

type Engine struct {
	cfg       Config
	providers *ProviderRegistry
	registry  *Registry
	server    *web.Server
	runner    *runner.LifecycleRunner
	asyncObs  *metrics.AsyncObserver
	multiObs  *observers.MultiObserver
	closers   []io.Closer
	log       *slog.Logger
}

func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	logger.Info("mockview_init",
		slog.String("environment", cfg.Environment),
		slog.String("llm_provider", cfg.Vendors.LLM.Provider),
		slog.String("stt_provider", cfg.Vendors.STT.Provider),
		slog.String("tts_provider", cfg.Vendors.TTS.Provider),
		slog.String("archive", cfg.Archive.Provider),
		slog.String("events", cfg.Events.Provider))

	e := &Engine{
		cfg:       cfg,
		providers: providers,
		registry:  NewRegistry(),
		log:       logger,
	}

	obsList := []metrics.Observer{
		observers.NewLatencyObserver(logger),
		observers.NewLoggerObserver(logger),
	}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			n, err := observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
			if err != nil {
				logger.Warn("artifact_purge_failed", slog.String("error", err.Error()))
			} else if n > 0 {
				logger.Info("artifacts_purged", slog.Int("count", n))
			}
		}
		obsList = append(obsList, observers.NewTimelineObserver(dir), observers.NewUsageObserver(dir))
		// All sessions, one stream.
		if err := os.MkdirAll(dir, 0o755); err == nil {
			if f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				obsList = append(obsList, metrics.NewJSONLObserver(f))
				e.closers = append(e.closers, f)
			} else {
				logger.Warn("event_log_open_failed", slog.String("error", err.Error()))
			}
		}
	}
	obsList = append(obsList, opts.Observers...)

	publisher, err := OpenEvents(cfg.Events, logger)
	if err != nil {
		return nil, err
	}
	var sinks []report.Sink
	if publisher != nil {
		obsList = append(obsList, publisher)
		sinks = append(sinks, publisher)
	}

	e.multiObs = observers.NewMultiObserver(obsList...)
	e.asyncObs = metrics.NewAsyncObserver(metrics.NewSamplingObserver(e.multiObs, cfg.Observability.SampleRate), 2048)
	obs := e.asyncObs

	store, err := OpenArchive(ctx, cfg.Archive)
	if err != nil {
		e.closeAll()
		return nil, err
	}
	if store != nil {
		sinks = append(sinks, store)
		if c, ok := store.(io.Closer); ok {
			e.closers = append(e.closers, c)
		}
	}

	adapter, err := providers.BuildLLM(ctx, cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		e.closeAll()
		return nil, err
	}
	if o, ok := adapter.(interface{ SetObserver(metrics.Observer) }); ok {
		o.SetObserver(obs)
	}
	adapter = llm.NewObservedAdapter(adapter, obs)

	rubric := coach.DefaultRubric()
	if path := strings.TrimSpace(cfg.Coach.RubricPath); path != "" {
		rubric, err = coach.LoadRubric(path)
		if err != nil {
			e.closeAll()
			return nil, err
		}
	}
	aggregator := report.NewAggregator(report.Config{
		Timeout: configutil.Millis(cfg.Interview.ReportTimeoutMS, report.DefaultTimeout),
	}, coach.NewAssessor(adapter, rubric, logger), coach.NewFeedbackWriter(adapter, logger), obs, logger, sinks...)

	synth, err := providers.BuildTTS(cfg.Vendors.TTS.Provider, cfg)
	if err != nil {
		e.closeAll()
		return nil, err
	}
	recognizers, err := providers.STT(cfg.Vendors.STT.Provider)
	if err != nil {
		e.closeAll()
		return nil, err
	}

	deps := SessionDeps{
		Config:      cfg,
		Recognizers: recognizers,
		Synthesizer: synth,
		FollowUps:   coach.NewFollowUps(adapter, logger),
		Reports:     aggregator,
		Registry:    e.registry,
		Observer:    obs,
		Logger:      logger,
	}
	factory := func(ctx context.Context, client *web.Client) (web.Handler, error) {
		if e.registry.Draining() {
			return nil, ErrDraining
		}
		return NewSession(ctx, client, deps), nil
	}

	var loader web.ReportLoader
	if store != nil {
		loader = store
	}
	e.server = web.NewServer(web.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
	}, web.Info{
		MaxQuestions: cfg.Interview.MaxQuestions,
		STTProvider:  cfg.Vendors.STT.Provider,
		TTSProvider:  cfg.Vendors.TTS.Provider,
	}, factory, loader, logger)

	drainTimeout := configutil.Millis(cfg.Server.DrainTimeoutMS, 10*time.Second)
	hooks := runner.Hooks{
		OnStart: func() error {
			if err := e.server.Start(); err != nil {
				return err
			}
			logger.Info("engine_ready", slog.String("addr", e.server.Addr().String()))
			return nil
		},
		OnStop: func() {
			e.closeAll()
			logger.Info("shutdown",
				slog.Int("goroutines", runtime.NumGoroutine()),
				slog.Int64("active_interviews", e.registry.Count()))
		},
	}
	drainer := runner.DrainerFunc(func() error {
		e.registry.SetDraining(true)
		err := e.server.Drain()
		e.registry.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if !e.registry.WaitForEmpty(ctx, 200*time.Millisecond) {
			logger.Warn("drain_incomplete", slog.Int64("active_interviews", e.registry.Count()))
		}
		return err
	})
	// Reports may still be running after the sockets close.
	e.runner = runner.NewLifecycleRunner(drainer, hooks, drainTimeout+5*time.Second)
	return e, nil
}

// Run serves until ctx ends, then drains.
func (e *Engine) Run(ctx context.Context) error {
	return e.runner.Run(ctx)
}

func (e *Engine) Stop() error {
	return e.runner.Stop()
}

func (e *Engine) closeAll() {
	if e.asyncObs != nil {
		e.asyncObs.Close()
	}
	// Members include the event publisher.
	if e.multiObs != nil {
		if err := e.multiObs.Close(); err != nil {
			e.log.Warn("observer_close_failed", slog.String("error", err.Error()))
		}
		e.multiObs = nil
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			e.log.Warn("close_failed", slog.String("error", err.Error()))
		}
	}
	e.closers = nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Server() *web.Server { return e.server }

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) Observer() metrics.Observer { return e.asyncObs }
