// Package sqlite implements the persistence ports on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taskflowhq/taskflow/internal/app"
	"github.com/taskflowhq/taskflow/internal/domain"
)

const driverName = "sqlite"

// Repository implements app.Repository and notify.Store on one database.
type Repository struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path, creating directories as
// needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	// foreign_keys is per-connection, so it goes in the DSN rather than a
	// migration statement.
	db, err := sql.Open(driverName, "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a process-local in-memory database, used in tests.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// A pooled second connection would see its own empty memory database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			priority TEXT NOT NULL DEFAULT 'medium',
			due_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			read INTEGER NOT NULL DEFAULT 0,
			task_id TEXT NOT NULL DEFAULT '',
			project_id TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_at);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task_created_at ON comments(task_id, created_at ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, read);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_task_type ON notifications(task_id, type, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateProject creates a project row.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, owner_id, name, description, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OwnerID, p.Name, p.Description, ts(p.CreatedAt), ts(p.UpdatedAt), nullableTS(p.ArchivedAt))
	return err
}

// UpdateProject updates a project row.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`, p.Name, p.Description, ts(p.UpdatedAt), nullableTS(p.ArchivedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProject fetches one project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, created_at, updated_at, archived_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists a user's projects, newest first.
func (r *Repository) ListProjects(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Project, error) {
	query := `
		SELECT id, owner_id, name, description, created_at, updated_at, archived_at
		FROM projects WHERE owner_id = ?
	`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateTask creates a task row.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks(id, owner_id, project_id, title, description, status, priority, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OwnerID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullableTS(t.DueAt), ts(t.CreatedAt), ts(t.UpdatedAt))
	return err
}

// UpdateTask updates a task row.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, due_at = ?, updated_at = ?
		WHERE id = ?
	`, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullableTS(t.DueAt), ts(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetTask fetches one task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, project_id, title, description, status, priority, due_at, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

// ListTasks lists tasks matching the filter. Due-date range bounds are
// applied after scanning: timestamps are stored as RFC3339Nano text, which
// does not compare lexicographically across fractional-digit widths.
func (r *Repository) ListTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	query := `
		SELECT id, owner_id, project_id, title, description, status, priority, due_at, created_at, updated_at
		FROM tasks WHERE 1 = 1
	`
	args := []any{}
	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.NotStatus != "" {
		query += ` AND status != ?`
		args = append(args, string(filter.NotStatus))
	}
	if filter.RequireDueDate {
		query += ` AND due_at IS NOT NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if filter.DueFrom != nil && (t.DueAt == nil || t.DueAt.Before(*filter.DueFrom)) {
			continue
		}
		if filter.DueUntil != nil && (t.DueAt == nil || t.DueAt.After(*filter.DueUntil)) {
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTask removes a task row; comments cascade.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateComment creates a comment row.
func (r *Repository) CreateComment(ctx context.Context, c domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments(id, task_id, author_id, author_name, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.TaskID, c.AuthorID, c.AuthorName, c.Body, ts(c.CreatedAt))
	return err
}

// ListComments lists a task's comments, oldest first.
func (r *Repository) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, author_id, author_name, body, created_at
		FROM comments WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		var (
			c          domain.Comment
			createdRaw string
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Body, &createdRaw); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTS(createdRaw)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateNotification creates a notification row. Satisfies notify.Store.
func (r *Repository) CreateNotification(ctx context.Context, n domain.Notification) error {
	metadataJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications(id, user_id, type, title, message, read, task_id, project_id, link, metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, boolToInt(n.Read), n.TaskID, n.ProjectID,
		n.Link, string(metadataJSON), ts(n.CreatedAt), ts(n.UpdatedAt))
	return err
}

// RecentNotifications returns notifications of one type for one task created
// at or after since, newest first. Satisfies notify.Store.
func (r *Repository) RecentNotifications(ctx context.Context, taskID string, typ domain.NotificationType, since time.Time) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, read, task_id, project_id, link, metadata_json, created_at, updated_at
		FROM notifications WHERE task_id = ? AND type = ?
		ORDER BY created_at DESC, id DESC
	`, taskID, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		if n.CreatedAt.Before(since) {
			continue
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListNotifications lists a user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, read, task_id, project_id, link, metadata_json, created_at, updated_at
		FROM notifications WHERE user_id = ?
	`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNotification fetches one notification.
func (r *Repository) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, title, message, read, task_id, project_id, link, metadata_json, created_at, updated_at
		FROM notifications WHERE id = ?
	`, id)
	return scanNotification(row)
}

// UpdateNotification persists the read flag, the only mutable field.
func (r *Repository) UpdateNotification(ctx context.Context, n domain.Notification) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = ?, updated_at = ? WHERE id = ?
	`, boolToInt(n.Read), ts(n.UpdatedAt), n.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteNotification removes a notification row.
func (r *Repository) DeleteNotification(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var (
		p          domain.Project
		createdRaw string
		updatedRaw string
		archived   sql.NullString
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &createdRaw, &updatedRaw, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Project{}, err
	}
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	p.ArchivedAt = parseNullTS(archived)
	return p, nil
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t          domain.Task
		status     string
		priority   string
		dueRaw     sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.ProjectID, &t.Title, &t.Description, &status, &priority, &dueRaw, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.DueAt = parseNullTS(dueRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n           domain.Notification
		typ         string
		read        int
		metadataRaw string
		createdRaw  string
		updatedRaw  string
	)
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &read, &n.TaskID, &n.ProjectID, &n.Link, &metadataRaw, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notification{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Notification{}, err
	}
	n.Type = domain.NotificationType(typ)
	n.Read = read != 0
	if metadataRaw != "" && metadataRaw != "null" && metadataRaw != "{}" {
		if err := json.Unmarshal([]byte(metadataRaw), &n.Metadata); err != nil {
			return domain.Notification{}, fmt.Errorf("decode notification metadata: %w", err)
		}
	}
	n.CreatedAt = parseTS(createdRaw)
	n.UpdatedAt = parseTS(updatedRaw)
	return n, nil
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	parsed := parseTS(v.String)
	return &parsed
}
