package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/dispatch/internal/core/config"
	"github.com/vietddude/dispatch/internal/core/domain"
	redisclient "github.com/vietddude/dispatch/internal/infra/redis"
	"github.com/vietddude/dispatch/internal/infra/rpc/provider"
	"github.com/vietddude/dispatch/internal/infra/rpc/routing"
	"github.com/vietddude/dispatch/internal/infra/sink"
	"github.com/vietddude/dispatch/internal/infra/storage/postgres"
	"github.com/vietddude/dispatch/internal/pipeline/dispatcher"
	"github.com/vietddude/dispatch/internal/pipeline/feeder"
	"github.com/vietddude/dispatch/internal/pipeline/health"
	"github.com/vietddude/dispatch/internal/pipeline/status"
)

// DefaultProgressInterval is how often a running batch logs its counters.
const DefaultProgressInterval = 10 * time.Second

// Runner wires one dispatch run: feeder, dispatcher, sinks and the optional
// health server.
type Runner struct {
	cfg          *config.AppConfig
	runID        uuid.UUID
	providers    []provider.Provider
	tracker      *status.Tracker
	feeder       *feeder.Feeder
	dispatcher   *dispatcher.Dispatcher
	sink         sink.Sink
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	progress     time.Duration
	log          *slog.Logger
}

// NewRunner validates cfg and initializes every component. The caller must
// Close the runner.
func NewRunner(ctx context.Context, cfg *config.AppConfig) (*Runner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Runner{
		cfg:      cfg,
		runID:    uuid.New(),
		tracker:  status.NewTracker(),
		progress: DefaultProgressInterval,
	}
	r.log = slog.With("run_id", r.runID.String())

	// 1. Upstream endpoints
	tmpl := provider.Template{
		Model:        cfg.Template.Model,
		SystemPrompt: cfg.Template.SystemPrompt,
		Temperature:  *cfg.Template.Temperature,
		MaxTokens:    cfg.Template.MaxTokens,
	}
	for _, ep := range cfg.Endpoints {
		p := provider.NewChatProvider(domain.Endpoint{
			Name:   ep.Name,
			URL:    ep.URL,
			APIKey: ep.APIKey,
			Weight: *ep.Weight,
			QPS:    ep.QPS,
		}, tmpl, cfg.Dispatch.RequestTimeout)
		r.providers = append(r.providers, p)
		r.log.Info("Endpoint configured", "endpoint", ep.Name, "weight", *ep.Weight, "qps", ep.QPS)
	}

	selector, err := routing.NewSelector(r.providers)
	if err != nil {
		return nil, err
	}

	// 2. Outcome sinks
	r.sink, err = r.openSink(ctx)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	// 3. Pipeline
	retry := routing.DefaultRetryConfig
	retry.MaxAttempts = cfg.Dispatch.MaxAttempts
	retry.MaxDelay = cfg.Dispatch.MaxBackoff

	r.dispatcher, err = dispatcher.New(dispatcher.Config{
		Picker:      selector,
		Sink:        r.sink,
		Tracker:     r.tracker,
		Retry:       retry,
		MaxInFlight: int64(cfg.Dispatch.MaxInFlight),
	})
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	r.feeder = feeder.New(feeder.Config{
		RequestsPerSecond: cfg.Dispatch.RequestsPerSecond,
		MaxAttempts:       cfg.Dispatch.MaxAttempts,
		InputField:        cfg.Dispatch.InputField,
	}, r.tracker)

	// 4. Health server
	if cfg.Server.Port > 0 {
		r.healthServer = health.NewServer(cfg.Server.Port, r.runID.String(), r.tracker, r.providers)
		if r.db != nil {
			r.healthServer.AddCheck("database", r.db.Health)
		}
		if r.redisClient != nil {
			r.healthServer.AddCheck("redis", r.redisClient.Ping)
		}
	}

	return r, nil
}

func (r *Runner) openSink(ctx context.Context) (sink.Sink, error) {
	d := r.cfg.Dispatch
	files := sink.NewFileSink(d.Output, d.ErrorsOutput)
	r.log.Info("Recording outcomes to files", "results", d.Output, "errors", d.ErrorsOutput)

	switch r.cfg.Sink.Type {
	case config.SinkRedis:
		client, err := redisclient.NewClient(r.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis sink: %w", err)
		}
		r.redisClient = client
		r.log.Info("Using Redis outcome log", "prefix", r.cfg.Redis.Prefix)
		return sink.Multi{files, redisclient.NewOutcomeLog(client, r.cfg.Redis.Prefix, r.runID.String())}, nil

	case config.SinkPostgres:
		db, err := postgres.NewDB(ctx, r.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		r.db = db
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		r.log.Info("Using PostgreSQL outcome log", "driver", r.cfg.Database.Driver)
		return sink.Multi{files, postgres.NewOutcomeRepo(db, r.runID)}, nil
	}

	return files, nil
}

// RunID identifies this run in remote sinks and logs.
func (r *Runner) RunID() uuid.UUID {
	return r.runID
}

// Run dispatches the whole input and returns the final counters once every
// started task has reached a terminal outcome. Cancelling ctx stops feeding;
// tasks already started are still recorded. Only setup failures are errors.
func (r *Runner) Run(ctx context.Context) (domain.Counters, error) {
	input, err := os.Open(r.cfg.Dispatch.Input)
	if err != nil {
		return domain.Counters{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer input.Close()

	if r.healthServer != nil {
		go func() {
			if err := r.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.Error("Health server failed", "error", err)
			}
		}()
		r.log.Info("Health server listening", "port", r.cfg.Server.Port)
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	if r.db != nil {
		r.db.StartMetricsCollector(bgCtx)
	}
	go r.reportProgress(bgCtx)

	start := time.Now()
	r.log.Info("Dispatch started",
		"input", r.cfg.Dispatch.Input,
		"rps", r.cfg.Dispatch.RequestsPerSecond,
		"max_attempts", r.cfg.Dispatch.MaxAttempts,
		"max_in_flight", r.cfg.Dispatch.MaxInFlight,
	)

	tasks := make(chan *domain.Task, feeder.ChannelCapacity(r.cfg.Dispatch.RequestsPerSecond))
	fed := make(chan error, 1)
	go func() {
		n, err := r.feeder.Run(ctx, input, tasks)
		r.log.Info("Feeder finished", "tasks", n)
		fed <- err
	}()

	if err := r.dispatcher.Run(ctx, tasks); err != nil {
		return r.tracker.Snapshot(), err
	}
	if err := <-fed; err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.log.Warn("Feeding stopped early", "error", err)
		} else {
			r.log.Error("Failed to read input", "error", err)
		}
	}

	counters := r.tracker.Snapshot()
	r.log.Info("Dispatch finished", "elapsed", time.Since(start).Round(time.Millisecond), "drained", counters.Drained())
	return counters, nil
}

func (r *Runner) reportProgress(ctx context.Context) {
	ticker := time.NewTicker(r.progress)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c := r.tracker.Snapshot()
			r.log.Info("Progress",
				"started", c.Started,
				"in_progress", c.InProgress,
				"succeeded", c.Succeeded,
				"failed", c.Failed,
			)
		}
	}
}

// Close releases sinks, connections and the health server.
func (r *Runner) Close() error {
	var errs []error

	if r.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop health server: %w", err))
		}
		cancel()
	}
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range r.providers {
		_ = p.Close()
	}
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}

	return errors.Join(errs...)
}
