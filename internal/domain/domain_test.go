package domain

import (
	"testing"
	"time"
)

func TestNewTaskDefaults(t *testing.T) {
	now := time.Now()
	due := now.Add(24 * time.Hour)
	task, err := NewTask(TaskInput{
		ID:      "t1",
		OwnerID: "u1",
		Title:   "  Ship feature ",
		DueAt:   &due,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Status != StatusTodo {
		t.Fatalf("expected default todo, got %q", task.Status)
	}
	if task.Priority != PriorityMedium {
		t.Fatalf("expected default medium, got %q", task.Priority)
	}
	if task.Title != "Ship feature" {
		t.Fatalf("unexpected title %q", task.Title)
	}
	if task.DueAt == nil || !task.DueAt.Equal(due.UTC().Truncate(time.Second)) {
		t.Fatalf("unexpected due date %v", task.DueAt)
	}
}

func TestNewTaskValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewTask(TaskInput{ID: "t1", OwnerID: "u1", Title: "   "}, now); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := NewTask(TaskInput{ID: "t1", OwnerID: "u1", Title: "x", Status: Status("bad")}, now); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := NewTask(TaskInput{ID: "t1", OwnerID: "u1", Title: "x", Priority: Priority("bad")}, now); err != ErrInvalidPriority {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := NewTask(TaskInput{ID: "t1", Title: "x"}, now); err != ErrInvalidOwner {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
}

func TestStatusOrdinalProgression(t *testing.T) {
	ordered := []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Ordinal() >= ordered[i].Ordinal() {
			t.Fatalf("expected %q < %q in progression order", ordered[i-1], ordered[i])
		}
	}
}

func TestPriorityScore(t *testing.T) {
	cases := map[Priority]int{
		PriorityUrgent: 4,
		PriorityHigh:   3,
		PriorityMedium: 2,
		PriorityLow:    1,
	}
	for priority, want := range cases {
		if got := priority.Score(); got != want {
			t.Fatalf("Score(%q) = %d, want %d", priority, got, want)
		}
	}
}

func TestTaskSetStatus(t *testing.T) {
	now := time.Now()
	task, err := NewTask(TaskInput{ID: "t1", OwnerID: "u1", Title: "x"}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := task.SetStatus(StatusDone, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if task.Status != StatusDone {
		t.Fatalf("unexpected status %q", task.Status)
	}
	if err := task.SetStatus(Status("nope"), now); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNewNotificationValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewNotification(NotificationInput{ID: "n1", UserID: "u1", Title: "x", Type: NotificationType("bogus")}, now); err != ErrInvalidNotificationType {
		t.Fatalf("expected ErrInvalidNotificationType, got %v", err)
	}
	n, err := NewNotification(NotificationInput{
		ID:     "n1",
		UserID: "u1",
		Type:   NotificationTaskDueSoon,
		Title:  "Task due soon",
		TaskID: "t1",
		Link:   "/dashboard/tasks/t1",
	}, now)
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	if n.Read {
		t.Fatal("expected new notification to be unread")
	}
	n.MarkRead(now.Add(time.Minute))
	if !n.Read {
		t.Fatal("expected notification to be read")
	}
}

func TestProjectArchiveRestore(t *testing.T) {
	now := time.Now()
	p, err := NewProject("p1", "u1", "Launch", "", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	p.Archive(now.Add(time.Minute))
	if p.ArchivedAt == nil {
		t.Fatal("expected archived_at to be set")
	}
	p.Restore(now.Add(2 * time.Minute))
	if p.ArchivedAt != nil {
		t.Fatal("expected archived_at to be nil")
	}
}

func TestNewCommentValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewComment("c1", "", "u1", "Ada", "hi", now); err != ErrInvalidTaskID {
		t.Fatalf("expected ErrInvalidTaskID, got %v", err)
	}
	if _, err := NewComment("c1", "t1", "u1", "Ada", "   ", now); err != ErrInvalidBody {
		t.Fatalf("expected ErrInvalidBody, got %v", err)
	}
	c, err := NewComment("c1", "t1", "u1", "  ", "hello", now)
	if err != nil {
		t.Fatalf("NewComment() error = %v", err)
	}
	if c.AuthorName != "taskflow-user" {
		t.Fatalf("unexpected author name %q", c.AuthorName)
	}
}
