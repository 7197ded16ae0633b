package models

import (
	"fmt"
	"time"
)

// Outcome is the result of one orchestrator pass or of a whole orchestrated run.
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomePartial   Outcome = "partial"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFatal     Outcome = "fatal"
)

// StageRun records one pass of a stage processor.
type StageRun struct {
	id           string
	Sequence     int // assigned on insert, orders records for display
	RunID        string
	Stage        string
	Pass         int
	Succeeded    int
	Attempted    int
	Outcome      Outcome
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewStageRun creates an unsaved record for the given pass.
func NewStageRun(runID, stage string, pass int, started time.Time) *StageRun {
	return &StageRun{RunID: runID, Stage: stage, Pass: pass, StartedAt: started}
}

func (r *StageRun) ID() string           { return r.id }
func (r *StageRun) SetID(id string)      { r.id = id }
func (r *StageRun) CreatedAt() time.Time { return r.StartedAt }

// Duration is the wall time the pass took.
func (r *StageRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate checks required fields and tally consistency.
func (r *StageRun) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.Stage == "" {
		return fmt.Errorf("stage is required")
	}
	if r.Pass < 1 {
		return fmt.Errorf("pass must be at least 1, got %d", r.Pass)
	}
	if r.Succeeded < 0 || r.Attempted < 0 || r.Succeeded > r.Attempted {
		return fmt.Errorf("invalid tally %d/%d", r.Succeeded, r.Attempted)
	}
	switch r.Outcome {
	case OutcomeConverged, OutcomePartial, OutcomeExhausted, OutcomeFatal:
	default:
		return fmt.Errorf("invalid outcome %q", r.Outcome)
	}
	return nil
}
