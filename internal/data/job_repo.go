package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gdg-qu/certmailer/internal/core"
	"github.com/gdg-qu/certmailer/internal/domain/model"
	apperrors "github.com/gdg-qu/certmailer/internal/errors"
)

// JobRepo implements core.JobRepository using SQLite.
//
// Single-row task updates are serialized by the database, so concurrent
// workers driving different tasks of the same job never corrupt each other's
// state. Guarded updates (FromStates) reject stale writers with a conflict.
type JobRepo struct {
	db *sql.DB
}

var _ core.JobRepository = (*JobRepo)(nil)

// NewJobRepo creates a job repository backed by the given database handle.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

// CreateJob persists a job and all of its tasks in one transaction.
func (r *JobRepo) CreateJob(ctx context.Context, job *model.Job, tasks []*model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "begin create job")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (id, event_name, announced_event_name, event_date, certificate_type, output_dir, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.EventName, job.AnnouncedEventName, job.EventDate,
		string(job.CertificateType), job.OutputDir, job.CreatedAt,
	); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeStore, "insert job %s", job.ID)
	}

	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, job_id, recipient_name, recipient_email, state, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.JobID, t.RecipientName, t.RecipientEmail, string(t.State), t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrCodeStore, "insert task %s", t.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "commit create job")
	}
	return nil
}

const jobColumns = `id, event_name, announced_event_name, event_date, certificate_type, output_dir, created_at, completed_at`

// GetJob retrieves a job by identifier.
func (r *JobRepo) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns all jobs, newest first.
func (r *JobRepo) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "list jobs")
	}
	defer func() { _ = rows.Close() }()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "list jobs")
	}
	return jobs, nil
}

// ListUnfinishedJobs returns jobs that still have at least one non-terminal task.
func (r *JobRepo) ListUnfinishedJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT j.id, j.event_name, j.announced_event_name, j.event_date,
		        j.certificate_type, j.output_dir, j.created_at, j.completed_at
		 FROM jobs j
		 JOIN tasks t ON t.job_id = j.id
		 WHERE t.state NOT IN (?, ?, ?, ?)
		 ORDER BY j.created_at ASC`,
		string(model.TaskSent), string(model.TaskRenderFailed),
		string(model.TaskConvertFailed), string(model.TaskSendFailed),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "list unfinished jobs")
	}
	defer func() { _ = rows.Close() }()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "list unfinished jobs")
	}
	return jobs, nil
}

const taskColumns = `id, job_id, recipient_name, recipient_email, state, convert_attempts,
	send_attempts, error_kind, error_message, document_path, sent_at, created_at, updated_at`

// GetTask retrieves a task scoped to its parent job.
func (r *JobRepo) GetTask(ctx context.Context, jobID, taskID string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND job_id = ?`, taskID, jobID)
	return scanTask(row)
}

// ListTasks returns all tasks of a job in creation order.
func (r *JobRepo) ListTasks(ctx context.Context, jobID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE job_id = ? ORDER BY created_at ASC, id ASC`, jobID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStore, "list tasks for job %s", jobID)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStore, "list tasks for job %s", jobID)
	}
	return tasks, nil
}

// UpdateTask applies a guarded state transition to a single task and returns
// the updated row.
func (r *JobRepo) UpdateTask(ctx context.Context, upd core.TaskUpdate) (*model.Task, error) {
	now := time.Now().UTC()

	sets := []string{"state = ?", "error_kind = ?", "error_message = ?", "updated_at = ?"}
	args := []any{string(upd.State), upd.ErrorKind, upd.ErrorMessage, now}

	if upd.DocumentPath != "" {
		sets = append(sets, "document_path = ?")
		args = append(args, upd.DocumentPath)
	}
	if upd.IncrementConvertAttempts {
		sets = append(sets, "convert_attempts = convert_attempts + 1")
	}
	if upd.IncrementSendAttempts {
		sets = append(sets, "send_attempts = send_attempts + 1")
	}
	if upd.MarkSent {
		sets = append(sets, "sent_at = ?")
		args = append(args, now)
	}

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ? AND job_id = ?"
	args = append(args, upd.TaskID, upd.JobID)

	if len(upd.FromStates) > 0 {
		placeholders := make([]string, len(upd.FromStates))
		for i, s := range upd.FromStates {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += " AND state IN (" + strings.Join(placeholders, ", ") + ")"
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStore, "update task %s", upd.TaskID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeStore, "update task %s", upd.TaskID)
	}
	if affected == 0 {
		// Distinguish an unknown task from a guard mismatch.
		if _, gerr := r.GetTask(ctx, upd.JobID, upd.TaskID); gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.Conflictf("task %s is not in an expected state for transition to %s",
			upd.TaskID, upd.State)
	}

	return r.GetTask(ctx, upd.JobID, upd.TaskID)
}

// MarkJobCompleted stamps the job's completion time. Idempotent: an already
// stamped job is left untouched.
func (r *JobRepo) MarkJobCompleted(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET completed_at = ? WHERE id = ? AND completed_at IS NULL`,
		time.Now().UTC(), jobID)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeStore, "mark job %s completed", jobID)
	}
	if _, err := res.RowsAffected(); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeStore, "mark job %s completed", jobID)
	}
	return nil
}

// ResetInFlightTasks returns tasks that were mid-pipeline when the process
// died back to pending so they can be re-driven from the start.
func (r *JobRepo) ResetInFlightTasks(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, updated_at = ?
		 WHERE state IN (?, ?, ?, ?, ?)`,
		string(model.TaskPending), time.Now().UTC(),
		string(model.TaskRendering), string(model.TaskRendered),
		string(model.TaskConverting), string(model.TaskConverted),
		string(model.TaskSending),
	)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStore, "reset in-flight tasks")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStore, "reset in-flight tasks")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var (
		job         model.Job
		certType    string
		completedAt sql.NullTime
	)
	err := row.Scan(&job.ID, &job.EventName, &job.AnnouncedEventName, &job.EventDate,
		&certType, &job.OutputDir, &job.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("job not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "scan job")
	}
	job.CertificateType = model.CertificateType(certType)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanTask(row scanner) (*model.Task, error) {
	var (
		task   model.Task
		state  string
		sentAt sql.NullTime
	)
	err := row.Scan(&task.ID, &task.JobID, &task.RecipientName, &task.RecipientEmail,
		&state, &task.ConvertAttempts, &task.SendAttempts,
		&task.ErrorKind, &task.ErrorMessage, &task.DocumentPath,
		&sentAt, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("task not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "scan task")
	}
	task.State = model.TaskState(state)
	if sentAt.Valid {
		t := sentAt.Time
		task.SentAt = &t
	}
	return &task, nil
}
