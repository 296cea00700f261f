// Package store provides the durable persistence layer for runs and
// their step timelines.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is the pgx-backed RunStore. Writes for the same run id are
// serialized through a per-run mutex so concurrent device runs never
// interleave step appends with status updates.
type Postgres struct {
	pool DBPool
	log  *zap.Logger

	mu       sync.Mutex
	runLocks map[string]*sync.Mutex
}

var _ schemas.RunStore = (*Postgres)(nil)

// NewPostgres creates the store and verifies the connection.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{
		pool:     pool,
		log:      logger.Named("store"),
		runLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Postgres) lockRun(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.runLocks[runID]
	if !ok {
		l = &sync.Mutex{}
		s.runLocks[runID] = l
	}
	return l
}

// CreateRun inserts the run row in its initial state.
func (s *Postgres) CreateRun(ctx context.Context, run *schemas.Run) error {
	l := s.lockRun(run.ID)
	l.Lock()
	defer l.Unlock()

	_, err := s.pool.Exec(ctx, `
        INSERT INTO runs (id, device_id, app_package, start_activity, start_time, status, provider, model, session_path)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		run.ID, run.DeviceID, run.AppPackage, run.StartActivity,
		run.StartTime.UTC(), string(run.Status), run.Provider, run.Model, run.SessionPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun persists the terminal status, end time, and end activity.
func (s *Postgres) FinishRun(ctx context.Context, runID string, status schemas.RunStatus, endTime time.Time, endActivity string) error {
	l := s.lockRun(runID)
	l.Lock()
	defer l.Unlock()

	tag, err := s.pool.Exec(ctx, `
        UPDATE runs SET status = $2, end_time = $3, end_activity = $4 WHERE id = $1;`,
		runID, string(status), endTime.UTC(), endActivity,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

// AppendStep inserts one step row. Steps are append-only.
func (s *Postgres) AppendStep(ctx context.Context, step *schemas.Step) error {
	l := s.lockRun(step.RunID)
	l.Lock()
	defer l.Unlock()

	params := step.Params
	if len(params) == 0 || string(params) == "null" {
		params = []byte("{}")
	}

	_, err := s.pool.Exec(ctx, `
        INSERT INTO steps (run_id, number, timestamp, action_type, params, screenshot, success, error, navigated_away)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		step.RunID, step.Number, step.Timestamp.UTC(), step.ActionType,
		params, step.Screenshot, step.Success, step.Error, step.NavigatedAway,
	)
	if err != nil {
		return fmt.Errorf("failed to insert step %d: %w", step.Number, err)
	}
	return nil
}

// GetRun reads one run row back.
func (s *Postgres) GetRun(ctx context.Context, runID string) (*schemas.Run, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT id, device_id, app_package, start_activity, end_activity, start_time, end_time, status, provider, model, session_path
        FROM runs WHERE id = $1;`, runID)

	var run schemas.Run
	var statusStr string
	err := row.Scan(
		&run.ID, &run.DeviceID, &run.AppPackage, &run.StartActivity, &run.EndActivity,
		&run.StartTime, &run.EndTime, &statusStr, &run.Provider, &run.Model, &run.SessionPath,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no run with id %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	run.Status = schemas.RunStatus(statusStr)
	return &run, nil
}

// GetSteps returns the run's steps ordered by timestamp ascending.
func (s *Postgres) GetSteps(ctx context.Context, runID string) ([]schemas.Step, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT run_id, number, timestamp, action_type, params, screenshot, success, error, navigated_away
        FROM steps WHERE run_id = $1 ORDER BY timestamp ASC;`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []schemas.Step
	for rows.Next() {
		var st schemas.Step
		err := rows.Scan(
			&st.RunID, &st.Number, &st.Timestamp, &st.ActionType, &st.Params,
			&st.Screenshot, &st.Success, &st.Error, &st.NavigatedAway,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return steps, nil
}
