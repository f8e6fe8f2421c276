package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/notify"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

type fakeRepo struct {
	projects      map[string]domain.Project
	tasks         map[string]domain.Task
	comments      []domain.Comment
	notifications map[string]domain.Notification

	notificationErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		projects:      map[string]domain.Project{},
		tasks:         map[string]domain.Task{},
		notifications: map[string]domain.Notification{},
	}
}

func (f *fakeRepo) CreateProject(_ context.Context, p domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdateProject(_ context.Context, p domain.Project) error {
	if _, ok := f.projects[p.ID]; !ok {
		return ErrNotFound
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProject(_ context.Context, id string) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProjects(_ context.Context, ownerID string, includeArchived bool) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(f.projects))
	for _, p := range f.projects {
		if p.OwnerID != ownerID {
			continue
		}
		if !includeArchived && p.ArchivedAt != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t domain.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, filter TaskFilter) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if filter.OwnerID != "" && t.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.NotStatus != "" && t.Status == filter.NotStatus {
			continue
		}
		if filter.RequireDueDate && t.DueAt == nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) CreateComment(_ context.Context, c domain.Comment) error {
	f.comments = append(f.comments, c)
	return nil
}

func (f *fakeRepo) ListComments(_ context.Context, taskID string) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0)
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListNotifications(_ context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0)
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeRepo) GetNotification(_ context.Context, id string) (domain.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return domain.Notification{}, ErrNotFound
	}
	return n, nil
}

func (f *fakeRepo) UpdateNotification(_ context.Context, n domain.Notification) error {
	if _, ok := f.notifications[n.ID]; !ok {
		return ErrNotFound
	}
	f.notifications[n.ID] = n
	return nil
}

func (f *fakeRepo) DeleteNotification(_ context.Context, id string) error {
	if _, ok := f.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(f.notifications, id)
	return nil
}

// RecentNotifications and CreateNotification satisfy notify.Store so the same
// fake backs both ports, as the sqlite repository does.
func (f *fakeRepo) RecentNotifications(_ context.Context, taskID string, typ domain.NotificationType, since time.Time) ([]domain.Notification, error) {
	out := make([]domain.Notification, 0)
	for _, n := range f.notifications {
		if n.TaskID == taskID && n.Type == typ && !n.CreatedAt.Before(since) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateNotification(_ context.Context, n domain.Notification) error {
	if f.notificationErr != nil {
		return f.notificationErr
	}
	f.notifications[n.ID] = n
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	seq := 0
	idGen := func() string {
		seq++
		return fmt.Sprintf("id%d", seq)
	}
	clock := func() time.Time { return testNow }
	engine := notify.NewEngine(repo, idGen, notify.Clock(clock), nil, notify.Config{})
	return NewService(repo, engine, idGen, clock, ServiceConfig{})
}

func TestCreateTaskFiresNotification(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "u1", "Launch", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, CreateTaskInput{
		OwnerID:   "u1",
		ProjectID: project.ID,
		Title:     "Ship feature",
		Priority:  domain.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.Status != domain.StatusTodo {
		t.Fatalf("unexpected status %q", task.Status)
	}

	notifications, err := svc.ListNotifications(ctx, "u1", false)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notifications) != 1 || notifications[0].Type != domain.NotificationTaskAssigned {
		t.Fatalf("unexpected notifications %v", notifications)
	}
	if notifications[0].Message != `Task "Ship feature" has been created in Launch` {
		t.Fatalf("unexpected message %q", notifications[0].Message)
	}
}

func TestCreateTaskUnknownProject(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, err := svc.CreateTask(context.Background(), CreateTaskInput{OwnerID: "u1", ProjectID: "nope", Title: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTaskStatusNotifiesOnCompletion(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Ship"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := svc.UpdateTaskStatus(ctx, task.ID, domain.StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}

	notifications, _ := svc.ListNotifications(ctx, "u1", false)
	var completed int
	for _, n := range notifications {
		if n.Type == domain.NotificationTaskCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected 1 completed notification, got %d", completed)
	}

	// A second save into done is a no-op transition and must not re-notify.
	if _, err := svc.UpdateTaskStatus(ctx, task.ID, domain.StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	notifications, _ = svc.ListNotifications(ctx, "u1", false)
	completed = 0
	for _, n := range notifications {
		if n.Type == domain.NotificationTaskCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected completed notification to fire once, got %d", completed)
	}
}

func TestAddCommentSurvivesNotificationFailure(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Ship"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	repo.notificationErr = errors.New("store down")
	comment, err := svc.AddComment(ctx, task.ID, "u2", "Ada", "looks good")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if comment.Body != "looks good" {
		t.Fatalf("unexpected comment %+v", comment)
	}
	comments, err := svc.ListComments(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected persisted comment despite notification failure, got %d", len(comments))
	}
}

func TestDashboardAggregates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	yesterday := testNow.Add(-24 * time.Hour)
	if _, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Overdue", Priority: domain.PriorityUrgent, DueAt: &yesterday}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	done, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Finished"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := svc.UpdateTaskStatus(ctx, done.ID, domain.StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}

	summary, err := svc.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if summary.Stats.Total != 2 || summary.Stats.Done != 1 || summary.OverdueCount != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.CompletionRate != 50 {
		t.Fatalf("CompletionRate = %d, want 50", summary.CompletionRate)
	}
}

func TestRunSweepsIdempotentWithinWindow(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	dueSoon := testNow.Add(12 * time.Hour)
	if _, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Soon", DueAt: &dueSoon}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	first, err := svc.RunSweeps(ctx)
	if err != nil {
		t.Fatalf("RunSweeps() error = %v", err)
	}
	if first.DueSoon != 1 || first.Overdue != 0 {
		t.Fatalf("unexpected first sweep result %+v", first)
	}

	second, err := svc.RunSweeps(ctx)
	if err != nil {
		t.Fatalf("RunSweeps() error = %v", err)
	}
	if second.DueSoon != 0 {
		t.Fatalf("second sweep issued %d due-soon notifications, want 0", second.DueSoon)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Ship"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	unread, err := svc.ListNotifications(ctx, "u1", true)
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected one unread notification, got %v (err %v)", unread, err)
	}

	if _, err := svc.MarkNotificationRead(ctx, unread[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
	unread, _ = svc.ListNotifications(ctx, "u1", true)
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}

func TestSearchTasksMatchesProjectName(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "u1", "Billing Platform", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if _, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", ProjectID: project.ID, Title: "Rotate keys"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := svc.CreateTask(ctx, CreateTaskInput{OwnerID: "u1", Title: "Unrelated"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	matches, err := svc.SearchTasks(ctx, "u1", "billing")
	if err != nil {
		t.Fatalf("SearchTasks() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Title != "Rotate keys" {
		t.Fatalf("unexpected matches %v", matches)
	}
}
