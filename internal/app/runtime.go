package app

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"

	"github.com/NodePath81/slotprobe/internal/config"
	"github.com/NodePath81/slotprobe/internal/control"
	"github.com/NodePath81/slotprobe/internal/metrics"
	"github.com/NodePath81/slotprobe/internal/probe"
	"github.com/NodePath81/slotprobe/internal/results"
	"github.com/NodePath81/slotprobe/internal/store"
	"github.com/NodePath81/slotprobe/internal/util"
	"github.com/NodePath81/slotprobe/internal/version"
)

// Runtime owns everything one probe run needs: the spin client, metrics,
// the optional control server and the optional history store.
type Runtime struct {
	cfg     config.Config
	ctx     context.Context
	cancel  context.CancelFunc
	logger  util.Logger
	stdout  io.Writer
	runID   string
	client  *probe.Client
	metrics *metrics.Metrics
	hub     *control.StatusHub
	feed    *control.StatusFeed
	control *control.ControlServer
	store   *store.Store
}

func NewRuntime(cfg config.Config, logger util.Logger, stdout io.Writer) (*Runtime, error) {
	bet := cfg.Target.BetAmount.Decimal()
	client, err := probe.NewClient(cfg.Target.URL, bet, probe.ClientOptions{
		Timeout:            cfg.Target.Timeout.Duration(),
		InsecureSkipVerify: cfg.Target.SkipVerify(),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Target.SkipVerify() {
		logger.Warn("TLS certificate verification is disabled for the target", "url", cfg.Target.URL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runID := uuid.NewString()
	mtr := metrics.NewMetrics()
	mtr.SetPlanned(cfg.Run.Iterations)
	hub := control.NewStatusHub(ctx.Done())

	rt := &Runtime{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With("run_id", runID),
		stdout:  stdout,
		runID:   runID,
		client:  client,
		metrics: mtr,
		hub:     hub,
		feed:    control.NewStatusFeed(hub, runID),
	}
	if cfg.Control.Enabled {
		rt.control = control.NewControlServer(cfg.Control, control.Identity{
			RunID:      runID,
			Target:     client.URL(),
			BetAmount:  bet.String(),
			Iterations: cfg.Run.Iterations,
			Version:    version.Version,
		}, mtr, hub, rt.logger)
	}
	return rt, nil
}

// Start opens the history store and the control server when configured.
func (r *Runtime) Start() error {
	if path := r.cfg.Output.HistoryDB; path != "" {
		st, err := store.Open(path)
		if err != nil {
			r.Stop()
			return err
		}
		r.store = st
	}
	if r.control != nil {
		if err := r.control.Start(r.ctx); err != nil {
			r.Stop()
			return ewrap.Wrap(err, "start control server")
		}
	}
	return nil
}

func (r *Runtime) Stop() {
	r.cancel()
	if r.control != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = r.control.Shutdown(ctx)
		cancel()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("history db close failed", "error", err)
		}
		r.store = nil
	}
}

func (r *Runtime) RunID() string {
	return r.runID
}

func (r *Runtime) ControlAddr() string {
	if r.control == nil {
		return ""
	}
	return r.control.Addr()
}

// Run executes the spin loop, prints the summary, writes the results file
// and records the run in history. A run cut short by a transport error or
// cancellation still reports and saves what it collected; only reporting
// failures are returned as errors.
func (r *Runtime) Run(ctx context.Context) (probe.Result, error) {
	r.logger.Info("probe run starting",
		"url", r.client.URL(),
		"bet", r.client.Bet().String(),
		"iterations", r.cfg.Run.Iterations,
		"pause", r.cfg.Run.Pause.Duration().String(),
	)
	runner := probe.NewRunner(r.client, probe.RunnerConfig{
		Iterations: r.cfg.Run.Iterations,
		Pause:      r.cfg.Run.Pause.Duration(),
	}, r.logger, r.metrics, r.feed)

	res := runner.Run(ctx)
	r.metrics.MarkCompleted()
	r.feed.Done(res)
	r.logger.Info("probe run finished",
		"stop_reason", string(res.StopReason),
		"attempted", res.Attempted,
		"recorded", len(res.Observations),
		"discarded", res.Discarded,
		"parse_errors", res.ParseErrors,
		"elapsed", res.FinishedAt.Sub(res.StartedAt).String(),
		"status_clients", r.hub.Clients(),
	)

	report := probe.Summarize(res.Observations)
	if err := report.Render(r.stdout, r.cfg.Run.Iterations, r.cfg.Output.CSVPath); err != nil {
		return res, ewrap.Wrap(err, "print summary")
	}
	if err := results.WriteFile(r.cfg.Output.CSVPath, res.Observations); err != nil {
		return res, err
	}
	if r.store != nil {
		rec := store.NewRunRecord(r.runID, r.client.URL(), r.client.Bet(), res)
		// The store write must outlive a canceled run context.
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.SaveRun(saveCtx, rec); err != nil {
			return res, err
		}
	}
	return res, nil
}
