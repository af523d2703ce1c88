package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"flowcore/internal/codec"
	"flowcore/internal/domain"
)

var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
// Every row keeps the canonical encoded document; the other columns only index it.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS workflows (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  doc TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  doc TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS schedules (
  id TEXT PRIMARY KEY,
  workflow_id TEXT NOT NULL,
  doc TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  next_run INTEGER,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(enabled, next_run);
CREATE INDEX IF NOT EXISTS idx_schedules_workflow ON schedules(workflow_id);
`
	_, err := db.Exec(schema)
	return err
}

type Repository interface {
	PutWorkflow(ctx context.Context, wf domain.Workflow) error
	GetWorkflow(ctx context.Context, id domain.WorkflowID) (domain.Workflow, error)
	ListWorkflows(ctx context.Context) ([]domain.Workflow, error)
	DeleteWorkflow(ctx context.Context, id domain.WorkflowID) error

	PutTasks(ctx context.Context, tasks ...domain.Task) error
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	// GetTasks returns tasks in the order of ids. Unknown ids and records
	// that fail to decode are logged and left out.
	GetTasks(ctx context.Context, ids []domain.TaskID) ([]domain.Task, error)

	// PutSchedule stores s with its next run. An absent next run stores the
	// schedule disabled.
	PutSchedule(ctx context.Context, s domain.Schedule, next mo.Option[time.Time]) error
	GetSchedule(ctx context.Context, id domain.ScheduleID) (domain.Schedule, error)
	NextRun(ctx context.Context, id domain.ScheduleID) (mo.Option[time.Time], error)
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id domain.ScheduleID) error
	DueSchedules(ctx context.Context, now time.Time) ([]Due, error)

	Stats(ctx context.Context) (Stats, error)
}

// Stats counts stored rows.
type Stats struct {
	Workflows         int
	Tasks             int
	SchedulesEnabled  int
	SchedulesDisabled int
}

// Due is an enabled schedule whose next run has arrived.
type Due struct {
	Schedule domain.Schedule
	At       time.Time
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) PutWorkflow(ctx context.Context, wf domain.Workflow) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO workflows (id,name,doc,updated_at) VALUES (?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, doc=excluded.doc, updated_at=CURRENT_TIMESTAMP
`, wf.ID().String(), wf.Name(), string(codec.EncodeWorkflow(wf)))
	return err
}

func (r *sqliteRepo) GetWorkflow(ctx context.Context, id domain.WorkflowID) (domain.Workflow, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM workflows WHERE id=?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Workflow{}, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Workflow{}, err
	}
	return codec.DecodeWorkflow([]byte(doc))
}

func (r *sqliteRepo) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,doc FROM workflows ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		wf, err := codec.DecodeWorkflow([]byte(doc))
		if err != nil {
			log.Error().Err(err).Str("workflow_id", id).Msg("skipping undecodable workflow")
			continue
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (r *sqliteRepo) DeleteWorkflow(ctx context.Context, id domain.WorkflowID) error {
	return deleteRow(ctx, r.db, "workflows", id.String())
}

func (r *sqliteRepo) PutTasks(ctx context.Context, tasks ...domain.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range tasks {
		_, err = tx.ExecContext(ctx, `
INSERT INTO tasks (id,code,doc,updated_at) VALUES (?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET code=excluded.code, doc=excluded.doc, updated_at=CURRENT_TIMESTAMP
`, t.ID().String(), t.Code(), string(codec.EncodeTask(t)))
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func (r *sqliteRepo) GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM tasks WHERE id=?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Task{}, err
	}
	return codec.DecodeTask([]byte(doc))
}

func (r *sqliteRepo) GetTasks(ctx context.Context, ids []domain.TaskID) ([]domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id,doc FROM tasks WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[domain.TaskID]domain.Task, len(ids))
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		t, err := codec.DecodeTask([]byte(doc))
		if err != nil {
			log.Error().Err(err).Str("task_id", id).Msg("skipping undecodable task")
			continue
		}
		byID[t.ID()] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			log.Warn().Str("task_id", id.String()).Msg("task not available")
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *sqliteRepo) PutSchedule(ctx context.Context, s domain.Schedule, next mo.Option[time.Time]) error {
	var nextRun sql.NullInt64
	if at, ok := next.Get(); ok {
		nextRun = sql.NullInt64{Int64: at.UnixMilli(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO schedules (id,workflow_id,doc,enabled,next_run,updated_at) VALUES (?,?,?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET workflow_id=excluded.workflow_id, doc=excluded.doc,
  enabled=excluded.enabled, next_run=excluded.next_run, updated_at=CURRENT_TIMESTAMP
`, s.ID().String(), s.WorkflowID().String(), string(codec.EncodeSchedule(s)), nextRun.Valid, nextRun)
	return err
}

func (r *sqliteRepo) GetSchedule(ctx context.Context, id domain.ScheduleID) (domain.Schedule, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM schedules WHERE id=?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Schedule{}, err
	}
	return codec.DecodeSchedule([]byte(doc))
}

func (r *sqliteRepo) NextRun(ctx context.Context, id domain.ScheduleID) (mo.Option[time.Time], error) {
	var enabled bool
	var nextRun sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT enabled,next_run FROM schedules WHERE id=?`, id.String()).Scan(&enabled, &nextRun)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[time.Time](), fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return mo.None[time.Time](), err
	}
	if !enabled || !nextRun.Valid {
		return mo.None[time.Time](), nil
	}
	return mo.Some(time.UnixMilli(nextRun.Int64)), nil
}

func (r *sqliteRepo) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,doc FROM schedules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		s, err := codec.DecodeSchedule([]byte(doc))
		if err != nil {
			log.Error().Err(err).Str("schedule_id", id).Msg("skipping undecodable schedule")
			continue
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *sqliteRepo) DeleteSchedule(ctx context.Context, id domain.ScheduleID) error {
	return deleteRow(ctx, r.db, "schedules", id.String())
}

func (r *sqliteRepo) DueSchedules(ctx context.Context, now time.Time) ([]Due, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,doc,next_run FROM schedules WHERE enabled=1 AND next_run <= ? ORDER BY next_run, id`, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Due
	for rows.Next() {
		var id, doc string
		var nextRun int64
		if err := rows.Scan(&id, &doc, &nextRun); err != nil {
			return nil, err
		}
		s, err := codec.DecodeSchedule([]byte(doc))
		if err != nil {
			log.Error().Err(err).Str("schedule_id", id).Msg("skipping undecodable schedule")
			continue
		}
		due = append(due, Due{Schedule: s, At: time.UnixMilli(nextRun)})
	}
	return due, rows.Err()
}

func (r *sqliteRepo) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM workflows),
  (SELECT COUNT(*) FROM tasks),
  (SELECT COUNT(*) FROM schedules WHERE enabled=1),
  (SELECT COUNT(*) FROM schedules WHERE enabled=0)`).
		Scan(&st.Workflows, &st.Tasks, &st.SchedulesEnabled, &st.SchedulesDisabled)
	return st, err
}

func deleteRow(ctx context.Context, db *sql.DB, table, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
