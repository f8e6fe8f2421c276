package app

import (
	"context"
	"strings"
	"time"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/insights"
	"github.com/taskflowhq/taskflow/internal/notify"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for the service layer.
type ServiceConfig struct {
	UpcomingWindowDays int
}

// Service orchestrates task, project, comment, and notification operations
// over the Repository port, delegating derived views to insights and
// lifecycle notifications to the rule engine.
type Service struct {
	repo               Repository
	engine             *notify.Engine
	idGen              IDGenerator
	clock              Clock
	upcomingWindowDays int
}

// NewService constructs a new service. A nil clock defaults to time.Now; a
// nil engine disables notifications (useful in tests).
func NewService(repo Repository, engine *notify.Engine, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	windowDays := cfg.UpcomingWindowDays
	if windowDays <= 0 {
		windowDays = insights.DefaultUpcomingWindowDays
	}
	return &Service{
		repo:               repo,
		engine:             engine,
		idGen:              idGen,
		clock:              clock,
		upcomingWindowDays: windowDays,
	}
}

// CreateProject creates a project.
func (s *Service) CreateProject(ctx context.Context, ownerID, name, description string) (domain.Project, error) {
	project, err := domain.NewProject(s.idGen(), ownerID, name, description, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ListProjects lists a user's projects.
func (s *Service) ListProjects(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Project, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	return s.repo.ListProjects(ctx, ownerID, includeArchived)
}

// ArchiveProject archives a project and fires the project-update rule.
func (s *Service) ArchiveProject(ctx context.Context, projectID string) (domain.Project, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	project.Archive(s.clock())
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	if s.engine != nil {
		s.engine.ProjectArchived(ctx, project)
	}
	return project, nil
}

// CreateTaskInput holds input values for task creation.
type CreateTaskInput struct {
	OwnerID     string
	ProjectID   string
	Title       string
	Description string
	Priority    domain.Priority
	DueAt       *time.Time
}

// CreateTask creates a task and fires the task-created notification rule.
// Notification failures never fail the create.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	projectName := ""
	if strings.TrimSpace(in.ProjectID) != "" {
		project, err := s.repo.GetProject(ctx, in.ProjectID)
		if err != nil {
			return domain.Task{}, err
		}
		projectName = project.Name
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		OwnerID:     in.OwnerID,
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueAt:       in.DueAt,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	if s.engine != nil {
		s.engine.TaskCreated(ctx, task, projectName)
	}
	return task, nil
}

// GetTask fetches one task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return s.repo.GetTask(ctx, taskID)
}

// ListTasks lists a user's tasks in canonical board order.
func (s *Service) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return insights.SortTasks(tasks), nil
}

// UpdateTaskInput holds input values for task updates.
type UpdateTaskInput struct {
	TaskID      string
	Title       string
	Description string
	Priority    domain.Priority
	DueAt       *time.Time
}

// UpdateTask updates a task's editable details.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, in.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.UpdateDetails(in.Title, in.Description, in.Priority, in.DueAt, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTaskStatus transitions a task and fires the status-change rule.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID string, status domain.Status) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	oldStatus := task.Status
	if err := task.SetStatus(status, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	if s.engine != nil {
		s.engine.StatusChanged(ctx, task, oldStatus)
	}
	return task, nil
}

// RescheduleTask changes a task's due date.
func (s *Service) RescheduleTask(ctx context.Context, taskID string, dueAt *time.Time) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	task.Reschedule(dueAt, s.clock())
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes a task.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	return s.repo.DeleteTask(ctx, taskID)
}

// AddComment persists a comment and fires the comment-added rule. The comment
// succeeds even when the notification write fails.
func (s *Service) AddComment(ctx context.Context, taskID, authorID, authorName, body string) (domain.Comment, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := domain.NewComment(s.idGen(), task.ID, authorID, authorName, body, s.clock())
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return domain.Comment{}, err
	}
	if s.engine != nil {
		s.engine.CommentAdded(ctx, task, comment)
	}
	return comment, nil
}

// ListComments lists a task's comments.
func (s *Service) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	if _, err := s.repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, taskID)
}

// SearchTasks filters a user's tasks by query and returns them in canonical
// order.
func (s *Service) SearchTasks(ctx context.Context, ownerID, query string) ([]domain.Task, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.ListProjects(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}
	projectNames := make(map[string]string, len(projects))
	for _, project := range projects {
		projectNames[project.ID] = project.Name
	}
	return insights.SortTasks(insights.FilterTasks(tasks, query, projectNames)), nil
}

// Dashboard computes the analytics summary over a user's tasks. Read failures
// propagate: there is no meaningful summary without task data.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (insights.Summary, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return insights.Summary{}, ErrInvalidOwner
	}
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{OwnerID: ownerID})
	if err != nil {
		return insights.Summary{}, err
	}
	return insights.Analytics(tasks, s.clock()), nil
}

// SweepResult reports how many notifications each periodic sweep issued.
type SweepResult struct {
	DueSoon int `json:"due_soon"`
	Overdue int `json:"overdue"`
}

// RunSweeps loads all open dated tasks and runs the due-soon and overdue
// sweeps over them. Intended to be invoked periodically, e.g. once daily.
func (s *Service) RunSweeps(ctx context.Context) (SweepResult, error) {
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{
		NotStatus:      domain.StatusDone,
		RequireDueDate: true,
	})
	if err != nil {
		return SweepResult{}, err
	}
	result := SweepResult{}
	if s.engine != nil {
		result.DueSoon = s.engine.SweepDueSoon(ctx, tasks)
		result.Overdue = s.engine.SweepOverdue(ctx, tasks)
	}
	return result, nil
}

// ListNotifications lists a user's notifications.
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidOwner
	}
	return s.repo.ListNotifications(ctx, userID, unreadOnly)
}

// MarkNotificationRead flips a notification's read flag.
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string) (domain.Notification, error) {
	notification, err := s.repo.GetNotification(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	notification.MarkRead(s.clock())
	if err := s.repo.UpdateNotification(ctx, notification); err != nil {
		return domain.Notification{}, err
	}
	return notification, nil
}

// DeleteNotification removes a notification.
func (s *Service) DeleteNotification(ctx context.Context, notificationID string) error {
	return s.repo.DeleteNotification(ctx, notificationID)
}
