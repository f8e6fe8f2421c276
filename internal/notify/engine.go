// Package notify decides when task lifecycle events become notifications.
// All persistence goes through the Store port; writes are best-effort and
// never fail the action that triggered them.
package notify

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf16"

	"github.com/charmbracelet/log"

	"github.com/taskflowhq/taskflow/internal/domain"
)

// DefaultDueSoonWindow is the forward-looking window for the due-soon sweep
// and the suppression span for repeat due-soon notifications.
const DefaultDueSoonWindow = 24 * time.Hour

// commentPreviewLimit caps comment previews at 100 UTF-16 code units.
const commentPreviewLimit = 100

// Store is the persistence collaborator the engine needs: recent-notification
// lookups for dedup and notification creation.
type Store interface {
	RecentNotifications(ctx context.Context, taskID string, typ domain.NotificationType, since time.Time) ([]domain.Notification, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
}

// IDGenerator returns unique identifiers for new notifications.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Config holds optional engine settings.
type Config struct {
	DueSoonWindow time.Duration
}

// Engine evaluates lifecycle triggers against the dedup rules and hands
// approved notifications to the store.
type Engine struct {
	store         Store
	idGen         IDGenerator
	clock         Clock
	logger        *log.Logger
	dueSoonWindow time.Duration
}

// NewEngine constructs a rule engine. A nil clock defaults to time.Now and a
// nil logger discards output.
func NewEngine(store Store, idGen IDGenerator, clock Clock, logger *log.Logger, cfg Config) *Engine {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	window := cfg.DueSoonWindow
	if window <= 0 {
		window = DefaultDueSoonWindow
	}
	return &Engine{
		store:         store,
		idGen:         idGen,
		clock:         clock,
		logger:        logger,
		dueSoonWindow: window,
	}
}

// TaskCreated fires for every new task. No dedup window.
func (e *Engine) TaskCreated(ctx context.Context, task domain.Task, projectName string) {
	message := fmt.Sprintf("Task %q has been created", task.Title)
	if projectName != "" {
		message = fmt.Sprintf("Task %q has been created in %s", task.Title, projectName)
	}
	e.emit(ctx, domain.NotificationInput{
		UserID:    task.OwnerID,
		Type:      domain.NotificationTaskAssigned,
		Title:     "New task created",
		Message:   message,
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Link:      taskLink(task.ID),
	})
}

// StatusChanged fires on workflow transitions. Only two transitions notify:
// todo to in_progress, and anything other than done into done. Re-saving an
// already-done task does not re-congratulate.
func (e *Engine) StatusChanged(ctx context.Context, task domain.Task, oldStatus domain.Status) {
	switch {
	case oldStatus == domain.StatusTodo && task.Status == domain.StatusInProgress:
		e.emit(ctx, domain.NotificationInput{
			UserID:  task.OwnerID,
			Type:    domain.NotificationInfo,
			Title:   "Task in progress",
			Message: fmt.Sprintf("You started working on %q", task.Title),
			TaskID:  task.ID,
			Link:    taskLink(task.ID),
			Metadata: map[string]string{
				"old_status": string(oldStatus),
				"new_status": string(task.Status),
			},
		})
	case task.Status == domain.StatusDone && oldStatus != domain.StatusDone:
		e.emit(ctx, domain.NotificationInput{
			UserID:  task.OwnerID,
			Type:    domain.NotificationTaskCompleted,
			Title:   "Task completed!",
			Message: fmt.Sprintf("Congratulations! You completed %q", task.Title),
			TaskID:  task.ID,
			Link:    taskLink(task.ID),
			Metadata: map[string]string{
				"old_status": string(oldStatus),
				"new_status": string(task.Status),
			},
		})
	}
}

// ProjectArchived fires when a project is archived. No dedup window.
func (e *Engine) ProjectArchived(ctx context.Context, project domain.Project) {
	e.emit(ctx, domain.NotificationInput{
		UserID:    project.OwnerID,
		Type:      domain.NotificationProjectUpdate,
		Title:     "Project archived",
		Message:   fmt.Sprintf("Project %q has been archived", project.Name),
		ProjectID: project.ID,
		Link:      ProjectLink(project.ID),
	})
}

// CommentAdded fires when someone comments on a task they do not own.
func (e *Engine) CommentAdded(ctx context.Context, task domain.Task, comment domain.Comment) {
	if comment.AuthorID == task.OwnerID {
		return
	}
	e.emit(ctx, domain.NotificationInput{
		UserID:  task.OwnerID,
		Type:    domain.NotificationCommentAdded,
		Title:   "New comment on your task",
		Message: fmt.Sprintf("%s commented on %q: %s", comment.AuthorName, task.Title, previewComment(comment.Body)),
		TaskID:  task.ID,
		Link:    taskLink(task.ID),
		Metadata: map[string]string{
			"comment_id": comment.ID,
			"author_id":  comment.AuthorID,
		},
	})
}

// SweepDueSoon scans open tasks due within the window and notifies each at
// most once per window. Returns the number of notifications issued.
//
// Two concurrent sweeps can both pass the dedup read before either write
// lands; closing that race needs a uniqueness constraint at the persistence
// layer, which this engine does not own.
func (e *Engine) SweepDueSoon(ctx context.Context, tasks []domain.Task) int {
	now := e.clock()
	windowEnd := now.Add(e.dueSoonWindow)
	issued := 0
	for _, task := range tasks {
		if task.Status == domain.StatusDone || task.DueAt == nil {
			continue
		}
		if task.DueAt.Before(now) || !task.DueAt.Before(windowEnd) {
			continue
		}
		if e.suppressed(ctx, task.ID, domain.NotificationTaskDueSoon, now.Add(-e.dueSoonWindow)) {
			continue
		}
		if e.emit(ctx, domain.NotificationInput{
			UserID:  task.OwnerID,
			Type:    domain.NotificationTaskDueSoon,
			Title:   "Task due soon",
			Message: fmt.Sprintf("%q is due within the next 24 hours", task.Title),
			TaskID:  task.ID,
			Link:    taskLink(task.ID),
		}) {
			issued++
		}
	}
	return issued
}

// SweepOverdue scans open tasks past their due date and notifies each at most
// once per calendar day.
func (e *Engine) SweepOverdue(ctx context.Context, tasks []domain.Task) int {
	now := e.clock()
	dayStart := startOfDay(now)
	issued := 0
	for _, task := range tasks {
		if task.Status == domain.StatusDone || task.DueAt == nil {
			continue
		}
		if !task.DueAt.Before(now) {
			continue
		}
		if e.suppressed(ctx, task.ID, domain.NotificationTaskOverdue, dayStart) {
			continue
		}
		if e.emit(ctx, domain.NotificationInput{
			UserID:  task.OwnerID,
			Type:    domain.NotificationTaskOverdue,
			Title:   "Task overdue!",
			Message: fmt.Sprintf("%q is overdue. Update its status or reschedule it", task.Title),
			TaskID:  task.ID,
			Link:    taskLink(task.ID),
		}) {
			issued++
		}
	}
	return issued
}

// suppressed reports whether a matching recent notification already exists.
// Lookup failures and ambiguous counts both suppress.
func (e *Engine) suppressed(ctx context.Context, taskID string, typ domain.NotificationType, since time.Time) bool {
	recent, err := e.store.RecentNotifications(ctx, taskID, typ, since)
	if err != nil {
		e.logger.Warn("notification dedup lookup failed, suppressing", "task_id", taskID, "type", typ, "err", err)
		return true
	}
	return len(recent) > 0
}

// emit constructs and persists one notification, logging rather than
// propagating failures. Reports whether the write succeeded.
func (e *Engine) emit(ctx context.Context, in domain.NotificationInput) bool {
	in.ID = e.idGen()
	notification, err := domain.NewNotification(in, e.clock())
	if err != nil {
		e.logger.Warn("notification payload rejected", "type", in.Type, "task_id", in.TaskID, "err", err)
		return false
	}
	if err := e.store.CreateNotification(ctx, notification); err != nil {
		e.logger.Warn("notification create failed", "type", in.Type, "task_id", in.TaskID, "err", err)
		return false
	}
	return true
}

// previewComment truncates to the first 100 UTF-16 code units, appending
// `...` when content was dropped. The cut never splits a surrogate pair.
func previewComment(body string) string {
	units := 0
	for i, r := range body {
		width := 1
		if len(utf16.Encode([]rune{r})) == 2 {
			width = 2
		}
		if units+width > commentPreviewLimit {
			return body[:i] + "..."
		}
		units += width
	}
	return body
}

func taskLink(taskID string) string {
	return "/dashboard/tasks/" + taskID
}

// ProjectLink returns the deep link for project-level notifications.
func ProjectLink(projectID string) string {
	return "/dashboard/projects/" + projectID
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
