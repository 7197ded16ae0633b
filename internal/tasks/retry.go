package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/shared"
)

// Status is the final state of an orchestrated stage.
type Status int

const (
	Converged Status = iota // a pass succeeded for every attempted entity
	Exhausted               // the retry budget ran out first
	Fatal                   // a pass returned an error
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome summarizes a [Retrier.Run].
type Outcome struct {
	Stage  string
	Status Status
	Passes int   // passes actually run
	Last   Tally // tally of the final pass
	Err    error // set when Status is Fatal
}

// Summary renders the outcome as a single line for the user.
func (o Outcome) Summary() string {
	switch o.Status {
	case Converged:
		return fmt.Sprintf("%s completed: %d out of %d remaining item(s) after %d pass(es).",
			o.Stage, o.Last.Succeeded, o.Last.Attempted, o.Passes)
	case Exhausted:
		return fmt.Sprintf("Operation failed to complete after %d attempts (%s: %d out of %d on the last pass).",
			o.Passes, o.Stage, o.Last.Succeeded, o.Last.Attempted)
	default:
		return fmt.Sprintf("%s aborted on pass %d: %v", o.Stage, o.Passes, o.Err)
	}
}

// Recorder stores one record per pass. [repositories.StageRunRepository] implements it.
type Recorder interface {
	Create(run *models.StageRun) error
}

// Retrier re-runs a [Stage] until a pass converges or Budget passes have been made.
type Retrier struct {
	Budget   int           // maximum passes, at least 1
	Delay    time.Duration // pause between passes
	RunID    string        // groups the recorded passes; generated when empty
	Recorder Recorder      // optional
	Logger   *log.Logger
	Now      func() time.Time
}

// Run drives stage to convergence. Passes stop at the first converged tally, at the first error, or
// after Budget passes, whichever comes first.
func (r *Retrier) Run(ctx context.Context, stage Stage) Outcome {
	budget := max(r.Budget, 1)
	now := r.Now
	if now == nil {
		now = time.Now
	}
	if r.RunID == "" {
		r.RunID = shared.GenerateID()
	}
	logger := r.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "stage", stage.Name(), "run", r.RunID)

	out := Outcome{Stage: stage.Name()}
	for pass := 1; pass <= budget; pass++ {
		run := models.NewStageRun(r.RunID, stage.Name(), pass, now())
		tally, err := stage.Process(ctx)
		out.Passes = pass
		out.Last = tally

		run.FinishedAt = now()
		run.Succeeded, run.Attempted = tally.Succeeded, tally.Attempted

		switch {
		case err != nil:
			out.Status, out.Err = Fatal, err
			run.Outcome, run.ErrorMessage = models.OutcomeFatal, err.Error()
		case tally.Converged():
			out.Status = Converged
			run.Outcome = models.OutcomeConverged
		case pass == budget:
			out.Status = Exhausted
			run.Outcome = models.OutcomeExhausted
		default:
			run.Outcome = models.OutcomePartial
		}
		r.record(logger, run)

		switch run.Outcome {
		case models.OutcomeFatal:
			logger.Error("stage aborted", "pass", pass, "error", err)
			return out
		case models.OutcomeConverged:
			logger.Info("stage converged", "pass", pass, "tally", tally)
			return out
		case models.OutcomeExhausted:
			logger.Error(fmt.Sprintf("Operation failed to complete after %d attempts.", budget), "tally", tally)
			return out
		}

		logger.Info("pass incomplete, retrying", "pass", pass, "tally", tally, "delay", r.Delay)
		if err := wait(ctx, r.Delay); err != nil {
			out.Status, out.Err = Fatal, err
			return out
		}
	}
	return out
}

func (r *Retrier) record(logger *log.Logger, run *models.StageRun) {
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.Create(run); err != nil {
		logger.Warn("failed to record stage pass", "pass", run.Pass, "error", err)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
