package domain

import (
	"slices"
	"strings"
	"time"
)

// Status identifies a task's place in the workflow progression.
type Status string

// Status values, ordered by progression.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

var validStatuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Ordinal returns the progression order of the status, todo first.
func (s Status) Ordinal() int {
	switch s {
	case StatusTodo:
		return 0
	case StatusInProgress:
		return 1
	case StatusReview:
		return 2
	case StatusDone:
		return 3
	default:
		return len(validStatuses)
	}
}

// IsValidStatus reports whether the status is a known workflow value.
func IsValidStatus(s Status) bool {
	return slices.Contains(validStatuses, s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Score returns the severity rank of the priority, urgent highest.
func (p Priority) Score() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IsValidPriority reports whether the priority is a known value.
func IsValidPriority(p Priority) bool {
	return slices.Contains(validPriorities, p)
}

// Task represents one unit of work owned by a single user.
type Task struct {
	ID          string
	OwnerID     string
	ProjectID   string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput holds input values for task creation.
type TaskInput struct {
	ID          string
	OwnerID     string
	ProjectID   string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueAt       *time.Time
}

// NewTask constructs a validated task with normalized fields.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.OwnerID == "" {
		return Task{}, ErrInvalidOwner
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}

	if in.Status == "" {
		in.Status = StatusTodo
	}
	if !IsValidStatus(in.Status) {
		return Task{}, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !IsValidPriority(in.Priority) {
		return Task{}, ErrInvalidPriority
	}

	return Task{
		ID:          in.ID,
		OwnerID:     in.OwnerID,
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueAt:       normalizeDueAt(in.DueAt),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// SetStatus transitions the task to a new workflow status.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails replaces the task's editable fields.
func (t *Task) UpdateDetails(title, description string, priority Priority, dueAt *time.Time, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	if !IsValidPriority(priority) {
		return ErrInvalidPriority
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	t.Priority = priority
	t.DueAt = normalizeDueAt(dueAt)
	t.UpdatedAt = now.UTC()
	return nil
}

// Reschedule changes only the due date.
func (t *Task) Reschedule(dueAt *time.Time, now time.Time) {
	t.DueAt = normalizeDueAt(dueAt)
	t.UpdatedAt = now.UTC()
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}
