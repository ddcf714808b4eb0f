package probe

import (
	"context"
	"time"

	"github.com/NodePath81/slotprobe/internal/util"
)

// StopReason explains why a run ended.
type StopReason string

const (
	StopCompleted      StopReason = "completed"
	StopTransportError StopReason = "transport_error"
	StopCanceled       StopReason = "canceled"
)

// Observer is notified after every call, in call order, on the runner's
// goroutine. Implementations must not block.
type Observer interface {
	OnSpin(iteration int, res SpinResult)
}

type ObserverFunc func(iteration int, res SpinResult)

func (f ObserverFunc) OnSpin(iteration int, res SpinResult) {
	f(iteration, res)
}

type RunnerConfig struct {
	Iterations int
	Pause      time.Duration
}

// Result is everything one run produced.
type Result struct {
	Observations ObservationSet
	Planned      int
	Attempted    int
	Discarded    int
	ParseErrors  int
	StopReason   StopReason
	// Err is the error that terminated the run early, if any.
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type Runner struct {
	spinner   Spinner
	cfg       RunnerConfig
	logger    util.Logger
	observers []Observer
}

func NewRunner(spinner Spinner, cfg RunnerConfig, logger util.Logger, observers ...Observer) *Runner {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &Runner{
		spinner:   spinner,
		cfg:       cfg,
		logger:    logger,
		observers: observers,
	}
}

// Run issues up to cfg.Iterations sequential spins. A transport error or
// context cancellation ends the loop at once; non-200 answers and malformed
// bodies are skipped. The pause applies between iterations only.
func (r *Runner) Run(ctx context.Context) (res Result) {
	res = Result{
		Planned:      r.cfg.Iterations,
		Observations: make(ObservationSet, 0, r.cfg.Iterations),
		StopReason:   StopCompleted,
		StartedAt:    time.Now(),
	}
	defer func() {
		res.FinishedAt = time.Now()
	}()

	for i := 1; i <= r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCanceled
			res.Err = err
			return res
		}

		spin := r.spinner.Spin(ctx)
		res.Attempted++
		r.notify(i, spin)

		switch spin.Outcome {
		case OutcomeRecorded:
			res.Observations = append(res.Observations, spin.Observation)
		case OutcomeDiscarded:
			res.Discarded++
			r.logger.Debug("spin discarded", "iteration", i, "status", spin.StatusCode)
		case OutcomeParseError:
			res.ParseErrors++
			r.logger.Warn("spin response rejected", "iteration", i, "error", spin.Err)
		case OutcomeTransportError:
			res.Err = spin.Err
			if ctx.Err() != nil {
				res.StopReason = StopCanceled
				r.logger.Info("run canceled", "iteration", i)
			} else {
				res.StopReason = StopTransportError
				r.logger.Error("API error", "iteration", i, "error", spin.Err)
			}
			return res
		}

		if i == r.cfg.Iterations || r.cfg.Pause <= 0 {
			continue
		}
		if err := sleepContext(ctx, r.cfg.Pause); err != nil {
			res.StopReason = StopCanceled
			res.Err = err
			return res
		}
	}
	return res
}

func (r *Runner) notify(iteration int, spin SpinResult) {
	for _, o := range r.observers {
		o.OnSpin(iteration, spin)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
