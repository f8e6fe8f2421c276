// Package insights derives statistics and classifications from task
// collections. Every function is pure: no I/O, no clock reads, and inputs are
// never mutated.
package insights

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/taskflowhq/taskflow/internal/domain"
)

// DefaultUpcomingWindowDays bounds the upcoming-task window.
const DefaultUpcomingWindowDays = 7

// Stats counts tasks by workflow status. Review tasks count toward Total but
// have no dedicated bucket here; that mirrors the dashboard aggregate the
// stats feed, which only surfaces the three headline columns.
type Stats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

// ComputeStats counts tasks by status.
func ComputeStats(tasks []domain.Task) Stats {
	stats := Stats{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case domain.StatusTodo:
			stats.Todo++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusDone:
			stats.Done++
		}
	}
	return stats
}

// GroupByStatus partitions tasks into status buckets, preserving input order
// within each bucket.
func GroupByStatus(tasks []domain.Task) map[domain.Status][]domain.Task {
	out := map[domain.Status][]domain.Task{
		domain.StatusTodo:       {},
		domain.StatusInProgress: {},
		domain.StatusReview:     {},
		domain.StatusDone:       {},
	}
	for _, task := range tasks {
		out[task.Status] = append(out[task.Status], task)
	}
	return out
}

// GroupByPriority partitions tasks into priority buckets, preserving input
// order within each bucket.
func GroupByPriority(tasks []domain.Task) map[domain.Priority][]domain.Task {
	out := map[domain.Priority][]domain.Task{
		domain.PriorityLow:    {},
		domain.PriorityMedium: {},
		domain.PriorityHigh:   {},
		domain.PriorityUrgent: {},
	}
	for _, task := range tasks {
		out[task.Priority] = append(out[task.Priority], task)
	}
	return out
}

// OverdueTasks returns open tasks whose due date is strictly before now,
// preserving input order. Done tasks never count as overdue.
func OverdueTasks(tasks []domain.Task, now time.Time) []domain.Task {
	out := make([]domain.Task, 0)
	for _, task := range tasks {
		if task.Status == domain.StatusDone || task.DueAt == nil {
			continue
		}
		if task.DueAt.Before(now) {
			out = append(out, task)
		}
	}
	return out
}

// TasksDueToday returns open tasks due within the calendar day containing now.
func TasksDueToday(tasks []domain.Task, now time.Time) []domain.Task {
	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)
	out := make([]domain.Task, 0)
	for _, task := range tasks {
		if task.Status == domain.StatusDone || task.DueAt == nil {
			continue
		}
		if !task.DueAt.Before(dayStart) && task.DueAt.Before(dayEnd) {
			out = append(out, task)
		}
	}
	return out
}

// UpcomingTasks returns open tasks due in [now, now+windowDays], ascending by
// due date. Tasks without a due date are excluded. A non-positive window
// falls back to DefaultUpcomingWindowDays.
func UpcomingTasks(tasks []domain.Task, now time.Time, windowDays int) []domain.Task {
	if windowDays <= 0 {
		windowDays = DefaultUpcomingWindowDays
	}
	windowEnd := now.AddDate(0, 0, windowDays)
	out := make([]domain.Task, 0)
	for _, task := range tasks {
		if task.Status == domain.StatusDone || task.DueAt == nil {
			continue
		}
		if !task.DueAt.Before(now) && !task.DueAt.After(windowEnd) {
			out = append(out, task)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Task) int {
		return a.DueAt.Compare(*b.DueAt)
	})
	return out
}

// CompletionRate returns the rounded percentage of done tasks, 0 for an empty
// collection.
func CompletionRate(tasks []domain.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, task := range tasks {
		if task.Status == domain.StatusDone {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(tasks))))
}

// SortTasks returns a sorted copy in the canonical board order: status
// progression ascending, priority descending, due date ascending with dated
// tasks before undated ones, then creation time descending. The sort is
// stable, so equal-key tasks keep their relative input order.
func SortTasks(tasks []domain.Task) []domain.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, compareTasks)
	return out
}

func compareTasks(a, b domain.Task) int {
	if d := a.Status.Ordinal() - b.Status.Ordinal(); d != 0 {
		return d
	}
	if d := b.Priority.Score() - a.Priority.Score(); d != 0 {
		return d
	}
	switch {
	case a.DueAt != nil && b.DueAt != nil:
		if d := a.DueAt.Compare(*b.DueAt); d != 0 {
			return d
		}
	case a.DueAt != nil:
		return -1
	case b.DueAt != nil:
		return 1
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// Urgency classifies how soon a task needs attention. Distinct from priority:
// urgency factors in the due date.
type Urgency string

// Urgency values.
const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// TaskUrgency derives the urgency classification for one task.
func TaskUrgency(task domain.Task, now time.Time) Urgency {
	if task.DueAt == nil {
		if task.Priority == domain.PriorityUrgent {
			return UrgencyHigh
		}
		return UrgencyLow
	}

	days := daysUntilDue(*task.DueAt, now)
	switch {
	case days <= 0:
		return UrgencyCritical
	case days <= 2 && (task.Priority == domain.PriorityHigh || task.Priority == domain.PriorityUrgent):
		return UrgencyHigh
	case days <= 7:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// daysUntilDue computes the whole-day difference by calendar-day subtraction
// rather than raw duration division, so day boundaries never shift the count.
func daysUntilDue(dueAt, now time.Time) int {
	dueDay := startOfDay(dueAt)
	nowDay := startOfDay(now)
	return int(dueDay.Sub(nowDay) / (24 * time.Hour))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FilterTasks returns tasks matching the query case-insensitively against
// title, description, priority label, and project name. projectNames maps
// project IDs to display names and may be nil. A blank query returns the
// input unchanged.
func FilterTasks(tasks []domain.Task, query string, projectNames map[string]string) []domain.Task {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return tasks
	}
	out := make([]domain.Task, 0)
	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.Title), query) ||
			strings.Contains(strings.ToLower(task.Description), query) ||
			strings.Contains(string(task.Priority), query) {
			out = append(out, task)
			continue
		}
		if name, ok := projectNames[task.ProjectID]; ok && strings.Contains(strings.ToLower(name), query) {
			out = append(out, task)
		}
	}
	return out
}

// Summary aggregates the derived views into one dashboard payload.
type Summary struct {
	Stats             Stats   `json:"stats"`
	OverdueCount      int     `json:"overdue_count"`
	DueTodayCount     int     `json:"due_today_count"`
	UpcomingCount     int     `json:"upcoming_count"`
	CompletionRate    int     `json:"completion_rate"`
	HighPriorityCount int     `json:"high_priority_count"`
	TasksPerDay       float64 `json:"tasks_per_day"`
}

// Analytics combines the classifier views into one summary. TasksPerDay is a
// display heuristic (total/7 to one decimal), not a true creation rate.
func Analytics(tasks []domain.Task, now time.Time) Summary {
	highPriority := 0
	for _, task := range tasks {
		if task.Priority == domain.PriorityHigh || task.Priority == domain.PriorityUrgent {
			highPriority++
		}
	}
	return Summary{
		Stats:             ComputeStats(tasks),
		OverdueCount:      len(OverdueTasks(tasks, now)),
		DueTodayCount:     len(TasksDueToday(tasks, now)),
		UpcomingCount:     len(UpcomingTasks(tasks, now, DefaultUpcomingWindowDays)),
		CompletionRate:    CompletionRate(tasks),
		HighPriorityCount: highPriority,
		TasksPerDay:       math.Round(float64(len(tasks))/7*10) / 10,
	}
}
