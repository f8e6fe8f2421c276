package domain

import (
	"slices"
	"strings"
	"time"
)

// NotificationType identifies the kind of event a notification describes.
type NotificationType string

// Notification type values.
const (
	NotificationInfo          NotificationType = "info"
	NotificationSuccess       NotificationType = "success"
	NotificationWarning       NotificationType = "warning"
	NotificationError         NotificationType = "error"
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskCompleted NotificationType = "task_completed"
	NotificationTaskDueSoon   NotificationType = "task_due_soon"
	NotificationTaskOverdue   NotificationType = "task_overdue"
	NotificationCommentAdded  NotificationType = "comment_added"
	NotificationProjectUpdate NotificationType = "project_update"
	NotificationSystem        NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationInfo,
	NotificationSuccess,
	NotificationWarning,
	NotificationError,
	NotificationTaskAssigned,
	NotificationTaskCompleted,
	NotificationTaskDueSoon,
	NotificationTaskOverdue,
	NotificationCommentAdded,
	NotificationProjectUpdate,
	NotificationSystem,
}

// IsValidNotificationType reports whether the type is a known value.
func IsValidNotificationType(t NotificationType) bool {
	return slices.Contains(validNotificationTypes, t)
}

// Notification records one synthesized event for a user. Immutable after
// creation except for the read flag and deletion.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Read      bool
	TaskID    string
	ProjectID string
	Link      string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotificationInput holds input values for notification creation.
type NotificationInput struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	TaskID    string
	ProjectID string
	Link      string
	Metadata  map[string]string
}

// NewNotification constructs a validated, unread notification.
func NewNotification(in NotificationInput, now time.Time) (Notification, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.UserID = strings.TrimSpace(in.UserID)
	in.Title = strings.TrimSpace(in.Title)

	if in.ID == "" {
		return Notification{}, ErrInvalidID
	}
	if in.UserID == "" {
		return Notification{}, ErrInvalidOwner
	}
	if in.Title == "" {
		return Notification{}, ErrInvalidTitle
	}
	if !IsValidNotificationType(in.Type) {
		return Notification{}, ErrInvalidNotificationType
	}

	var metadata map[string]string
	if len(in.Metadata) > 0 {
		metadata = make(map[string]string, len(in.Metadata))
		for key, value := range in.Metadata {
			metadata[key] = value
		}
	}

	ts := now.UTC()
	return Notification{
		ID:        in.ID,
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		TaskID:    strings.TrimSpace(in.TaskID),
		ProjectID: strings.TrimSpace(in.ProjectID),
		Link:      strings.TrimSpace(in.Link),
		Metadata:  metadata,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// MarkRead flips the read flag, the only permitted mutation.
func (n *Notification) MarkRead(now time.Time) {
	n.Read = true
	n.UpdatedAt = now.UTC()
}
