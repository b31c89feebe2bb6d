package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tareas/internal/models"
)

// Columns a caller may order task listings by. Anything else is rejected
// before it reaches the query.
var taskOrderColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"due_date":   true,
	"priority":   true,
}

// TaskFilter narrows an owner-scoped task listing. Zero values mean no
// constraint; Limit <= 0 disables pagination.
type TaskFilter struct {
	Status   models.TaskStatus
	Priority models.TaskPriority
	Search   string
	Ordering string // order column, "-" prefix for descending
	Limit    int
	Offset   int
}

// ValidOrdering reports whether the ordering value names an allowed column.
func (f TaskFilter) ValidOrdering() bool {
	if f.Ordering == "" {
		return true
	}
	return taskOrderColumns[strings.TrimPrefix(f.Ordering, "-")]
}

// TaskStats aggregates a user's tasks: total plus one counter per status
// and per priority. Every field is serialized even when zero.
type TaskStats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	InProgress     int `json:"in_progress"`
	Completed      int `json:"completed"`
	Cancelled      int `json:"cancelled"`
	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
	LowPriority    int `json:"low_priority"`
}

type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*models.Task, error)
	List(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) ([]*models.Task, error)
	Count(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) (int, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	Stats(ctx context.Context, ownerID uuid.UUID) (*TaskStats, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, description, status, priority, due_date, created_at, updated_at, user_id`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.Title, task.Description, task.Status,
		task.Priority, nullTime(task.DueDate), task.CreatedAt, task.UpdatedAt, task.UserID)
	return err
}

// GetByID returns sql.ErrNoRows both for tasks that do not exist and for
// tasks owned by someone else; callers cannot tell the two apart.
func (r *TaskRepository) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	return scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
}

func (r *TaskRepository) List(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) ([]*models.Task, error) {
	where, args := taskWhere(ownerID, filter)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + where +
		` ORDER BY ` + taskOrderBy(filter.Ordering)
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Count(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) (int, error) {
	where, args := taskWhere(ownerID, filter)
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&count)
	return count, err
}

// Update rewrites every mutable column; id, created_at and user_id never
// change. Missing or foreign rows surface as sql.ErrNoRows.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, status = $3,
	 priority = $4, due_date = $5, updated_at = $6 WHERE id = $7 AND user_id = $8`

	res, err := r.db.ExecContext(
		ctx, query, task.Title, task.Description, task.Status, task.Priority,
		nullTime(task.DueDate), task.UpdatedAt, task.ID, task.UserID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) Stats(ctx context.Context, ownerID uuid.UUID) (*TaskStats, error) {
	query := `SELECT COUNT(*),
	 COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN priority = 'high' THEN 1 ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN priority = 'medium' THEN 1 ELSE 0 END), 0),
	 COALESCE(SUM(CASE WHEN priority = 'low' THEN 1 ELSE 0 END), 0)
	 FROM tasks WHERE user_id = $1`

	stats := &TaskStats{}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&stats.Total, &stats.Pending, &stats.InProgress, &stats.Completed,
		&stats.Cancelled, &stats.HighPriority, &stats.MediumPriority, &stats.LowPriority,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *TaskRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1`, ownerID).Scan(&count)
	return count, err
}

// taskWhere builds the WHERE clause for List and Count. The owner predicate
// is always first and not optional.
func taskWhere(ownerID uuid.UUID, filter TaskFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)-1, len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// taskOrderBy maps a validated ordering value to an ORDER BY expression.
// Newest first by default; id breaks ties so paging stays deterministic.
func taskOrderBy(ordering string) string {
	if ordering == "" {
		return "created_at DESC, id"
	}
	column := ordering
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		column = ordering[1:]
		direction = "DESC"
	}
	if !taskOrderColumns[column] {
		return "created_at DESC, id"
	}
	return fmt.Sprintf("%s %s, id", column, direction)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var due sql.NullTime
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
		&due, &task.CreatedAt, &task.UpdatedAt, &task.UserID,
	)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		t := due.Time
		task.DueDate = &t
	}
	return task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
