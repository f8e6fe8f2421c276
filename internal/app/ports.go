package app

import (
	"context"
	"time"

	"github.com/taskflowhq/taskflow/internal/domain"
)

// TaskFilter defines repository-side filtering for task listings.
type TaskFilter struct {
	OwnerID        string
	ProjectID      string
	NotStatus      domain.Status
	DueFrom        *time.Time
	DueUntil       *time.Time
	RequireDueDate bool
}

// Repository is the persistence collaborator for the service layer.
type Repository interface {
	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Project, error)

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)
	DeleteTask(context.Context, string) error

	CreateComment(context.Context, domain.Comment) error
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)

	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	GetNotification(context.Context, string) (domain.Notification, error)
	UpdateNotification(context.Context, domain.Notification) error
	DeleteNotification(context.Context, string) error
}
