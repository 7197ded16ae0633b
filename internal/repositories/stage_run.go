package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/shared"
)

var _ models.Repository[*models.StageRun] = (*StageRunRepository)(nil)

// StageRunRepository implements models.Repository[*models.StageRun] for stage pass history.
type StageRunRepository struct {
	db *sql.DB
}

// NewStageRunRepository creates a new StageRunRepository with the given database connection
func NewStageRunRepository(db *sql.DB) *StageRunRepository {
	return &StageRunRepository{db: db}
}

const stageRunColumns = `
	id, sequence, run_id, stage, pass, succeeded, attempted,
	outcome, error_message, started_at, finished_at
`

// Create inserts a stage pass with a generated ID and sequence
func (r *StageRunRepository) Create(run *models.StageRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "stage_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	var errorMessage any = run.ErrorMessage
	if run.ErrorMessage == "" {
		errorMessage = nil
	}

	query := `INSERT INTO stage_runs (` + stageRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		id,
		sequence,
		run.RunID,
		run.Stage,
		run.Pass,
		run.Succeeded,
		run.Attempted,
		string(run.Outcome),
		errorMessage,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stage run: %w", err)
	}

	run.SetID(id)
	run.Sequence = sequence
	return nil
}

// Get retrieves a stage pass by ID
func (r *StageRunRepository) Get(id string) (*models.StageRun, error) {
	query := `SELECT ` + stageRunColumns + ` FROM stage_runs WHERE id = ?`
	run, err := scanStageRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: stage run %s", shared.ErrNotFound, id)
	}
	return run, err
}

// List retrieves stage passes, newest first.
//
// Supported criteria: "stage" (string), "run_id" (string), "outcome" (string), "limit" (int).
func (r *StageRunRepository) List(criteria map[string]any) ([]*models.StageRun, error) {
	query := `SELECT ` + stageRunColumns + ` FROM stage_runs WHERE 1 = 1`
	args := []any{}

	if stage, ok := criteria["stage"].(string); ok && stage != "" {
		query += " AND stage = ?"
		args = append(args, stage)
	}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}

	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.StageRun{}
	for rows.Next() {
		run, err := scanStageRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage runs: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStageRun(row scanner) (*models.StageRun, error) {
	var (
		id           string
		sequence     int
		runID        string
		stage        string
		pass         int
		succeeded    int
		attempted    int
		outcome      string
		errorMessage sql.NullString
		startedAt    time.Time
		finishedAt   time.Time
	)

	err := row.Scan(
		&id, &sequence, &runID, &stage, &pass, &succeeded, &attempted,
		&outcome, &errorMessage, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stage run: %w", err)
	}

	run := models.NewStageRun(runID, stage, pass, startedAt)
	run.SetID(id)
	run.Sequence = sequence
	run.Succeeded = succeeded
	run.Attempted = attempted
	run.Outcome = models.Outcome(outcome)
	run.FinishedAt = finishedAt
	if errorMessage.Valid {
		run.ErrorMessage = errorMessage.String
	}

	return run, nil
}
