package mcpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskflowhq/taskflow/internal/app"
	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/insights"
)

type stubService struct{}

func (stubService) Dashboard(context.Context, string) (insights.Summary, error) {
	return insights.Summary{}, nil
}
func (stubService) ListTasks(context.Context, string) ([]domain.Task, error) { return nil, nil }
func (stubService) SearchTasks(context.Context, string, string) ([]domain.Task, error) {
	return nil, nil
}
func (stubService) RunSweeps(context.Context) (app.SweepResult, error) { return app.SweepResult{}, nil }
func (stubService) ListNotifications(context.Context, string, bool) ([]domain.Notification, error) {
	return nil, nil
}

func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestNewHandlerBuilds(t *testing.T) {
	h, err := NewHandler(Config{ServerName: "taskflow", ServerVersion: "test"}, stubService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if h == nil {
		t.Fatal("NewHandler() returned nil handler")
	}
}

func TestNilHandlerUnavailable(t *testing.T) {
	var h *Handler
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestNormalizeConfigDefaults(t *testing.T) {
	cfg := normalizeConfig(Config{})
	if cfg.ServerName != "taskflow" || cfg.ServerVersion != "dev" || cfg.EndpointPath != "/mcp" {
		t.Errorf("normalizeConfig() = %+v", cfg)
	}

	cfg = normalizeConfig(Config{EndpointPath: "tools/"})
	if cfg.EndpointPath != "/tools" {
		t.Errorf("EndpointPath = %q, want /tools", cfg.EndpointPath)
	}
}
