package domain

import (
	"strings"
	"time"
)

// Comment stores an authored note attached to a task.
type Comment struct {
	ID         string
	TaskID     string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// NewComment constructs a validated comment.
func NewComment(id, taskID, authorID, authorName, body string, now time.Time) (Comment, error) {
	id = strings.TrimSpace(id)
	taskID = strings.TrimSpace(taskID)
	authorID = strings.TrimSpace(authorID)
	authorName = strings.TrimSpace(authorName)
	body = strings.TrimSpace(body)

	if id == "" {
		return Comment{}, ErrInvalidID
	}
	if taskID == "" {
		return Comment{}, ErrInvalidTaskID
	}
	if authorID == "" {
		return Comment{}, ErrInvalidOwner
	}
	if body == "" {
		return Comment{}, ErrInvalidBody
	}
	if authorName == "" {
		authorName = "taskflow-user"
	}

	return Comment{
		ID:         id,
		TaskID:     taskID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		CreatedAt:  now.UTC(),
	}, nil
}
