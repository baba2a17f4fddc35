package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"todo-go/app/models"
)

const taskColumns = `id, title, description, completed, created_at`

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of ?.
	numbered bool
	// INSERT ... RETURNING id instead of LastInsertId.
	returning bool
	schema    string
}

var (
	// Postgres is the dialect for github.com/lib/pq.
	Postgres = Dialect{
		Name:      "postgres",
		numbered:  true,
		returning: true,
		schema: `CREATE TABLE IF NOT EXISTS tasks (
    id          SERIAL PRIMARY KEY,
    title       VARCHAR(100) NOT NULL,
    description TEXT NULL,
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	}

	// MySQL is the dialect for github.com/go-sql-driver/mysql.
	MySQL = Dialect{
		Name: "mysql",
		schema: `CREATE TABLE IF NOT EXISTS tasks (
    id          BIGINT AUTO_INCREMENT PRIMARY KEY,
    title       VARCHAR(100) NOT NULL,
    description TEXT NULL,
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`,
	}

	// SQLite is the dialect for github.com/mattn/go-sqlite3.
	SQLite = Dialect{
		Name: "sqlite3",
		schema: `CREATE TABLE IF NOT EXISTS tasks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    title       VARCHAR(100) NOT NULL,
    description TEXT NULL,
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	}
)

// DialectFor returns the dialect registered under a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres.Name:
		return Postgres, nil
	case MySQL.Name:
		return MySQL, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("no SQL dialect for driver %q", driver)
	}
}

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLTaskRepository stores tasks in a relational database through database/sql.
type SQLTaskRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLTaskRepository wraps an open pool. Call EnsureSchema before serving.
func NewSQLTaskRepository(db *sql.DB, dialect Dialect) *SQLTaskRepository {
	return &SQLTaskRepository{db: db, dialect: dialect}
}

// EnsureSchema creates the tasks table if it does not exist.
func (r *SQLTaskRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.schema); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

func (r *SQLTaskRepository) List(ctx context.Context) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *SQLTaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return r.get(ctx, r.db, id)
}

func (r *SQLTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now()
	}

	query := `INSERT INTO tasks (title, description, completed, created_at) VALUES (?, ?, ?, ?)`
	args := []any{task.Title, nullString(task.Description), task.Completed, task.CreatedAt}

	if r.dialect.returning {
		if err := r.db.QueryRowContext(ctx, r.dialect.rebind(query+` RETURNING id`), args...).Scan(&task.ID); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted task id: %w", err)
	}
	task.ID = id
	return nil
}

func (r *SQLTaskRepository) Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	if patch.Empty() {
		return r.get(ctx, r.db, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description.Set {
		sets = append(sets, "description = ?")
		args = append(args, nullString(patch.Description.Value))
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	args = append(args, id)

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := tx.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}

	task, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return task, nil
}

func (r *SQLTaskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return expectRow(res)
}

func (r *SQLTaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (r *SQLTaskRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLTaskRepository) get(ctx context.Context, q queryer, id int64) (*models.Task, error) {
	row := q.QueryRowContext(ctx, r.dialect.rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	return scanTask(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		task        models.Task
		description sql.NullString
	)
	if err := s.Scan(&task.ID, &task.Title, &description, &task.Completed, &task.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if description.Valid {
		task.Description = &description.String
	}
	task.CreatedAt = task.CreatedAt.UTC()
	return &task, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// now is the insertion timestamp, truncated to the microsecond precision the
// SQL column types keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
