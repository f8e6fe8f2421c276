// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/taskflowhq/taskflow/internal/app"
	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/insights"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Service defines the application operations exposed as MCP tools.
// Satisfied by *app.Service.
type Service interface {
	Dashboard(ctx context.Context, ownerID string) (insights.Summary, error)
	ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	SearchTasks(ctx context.Context, ownerID, query string) ([]domain.Task, error)
	RunSweeps(ctx context.Context) (app.SweepResult, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing dashboard, task, sweep,
// and notification tools.
func NewHandler(cfg Config, svc Service) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerDashboardTool(mcpSrv, svc)
	registerTaskTools(mcpSrv, svc)
	registerSweepTool(mcpSrv, svc)
	registerNotificationTool(mcpSrv, svc)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "taskflow"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerDashboardTool registers the `taskflow.dashboard` tool.
func registerDashboardTool(srv *mcpserver.MCPServer, svc Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskflow.dashboard",
			mcp.WithDescription("Return the full analytics summary for one user's tasks."),
			mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning user identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ownerID, err := req.RequireString("owner_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			summary, err := svc.Dashboard(ctx, ownerID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(summary)
			if err != nil {
				return nil, fmt.Errorf("encode dashboard result: %w", err)
			}
			return result, nil
		},
	)
}

// registerTaskTools registers the `taskflow.list_tasks` and `taskflow.search_tasks` tools.
func registerTaskTools(srv *mcpserver.MCPServer, svc Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskflow.list_tasks",
			mcp.WithDescription("List one user's tasks in canonical board order."),
			mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning user identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ownerID, err := req.RequireString("owner_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tasks, err := svc.ListTasks(ctx, ownerID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"tasks": tasksToPayload(tasks),
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_tasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"taskflow.search_tasks",
			mcp.WithDescription("Search one user's tasks by title, description, priority, or project name."),
			mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning user identifier")),
			mcp.WithString("query", mcp.Description("Search text; blank matches everything")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ownerID, err := req.RequireString("owner_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tasks, err := svc.SearchTasks(ctx, ownerID, req.GetString("query", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"tasks": tasksToPayload(tasks),
			})
			if err != nil {
				return nil, fmt.Errorf("encode search_tasks result: %w", err)
			}
			return result, nil
		},
	)
}

// registerSweepTool registers the `taskflow.run_sweeps` tool.
func registerSweepTool(srv *mcpserver.MCPServer, svc Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskflow.run_sweeps",
			mcp.WithDescription("Run the due-soon and overdue notification sweeps once."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sweepResult, err := svc.RunSweeps(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(sweepResult)
			if err != nil {
				return nil, fmt.Errorf("encode run_sweeps result: %w", err)
			}
			return result, nil
		},
	)
}

// registerNotificationTool registers the `taskflow.list_notifications` tool.
func registerNotificationTool(srv *mcpserver.MCPServer, svc Service) {
	srv.AddTool(
		mcp.NewTool(
			"taskflow.list_notifications",
			mcp.WithDescription("List one user's notifications, newest first."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
			mcp.WithBoolean("unread_only", mcp.Description("Return only unread notifications")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			userID, err := req.RequireString("user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			notifications, err := svc.ListNotifications(ctx, userID, req.GetBool("unread_only", false))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"notifications": notificationsToPayload(notifications),
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_notifications result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, app.ErrInvalidOwner),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidTitle):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

func tasksToPayload(tasks []domain.Task) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		entry := map[string]any{
			"id":         t.ID,
			"owner_id":   t.OwnerID,
			"title":      t.Title,
			"status":     string(t.Status),
			"priority":   string(t.Priority),
			"created_at": t.CreatedAt,
			"updated_at": t.UpdatedAt,
		}
		if t.ProjectID != "" {
			entry["project_id"] = t.ProjectID
		}
		if t.Description != "" {
			entry["description"] = t.Description
		}
		if t.DueAt != nil {
			entry["due_at"] = *t.DueAt
		}
		out = append(out, entry)
	}
	return out
}

func notificationsToPayload(notifications []domain.Notification) []map[string]any {
	out := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		entry := map[string]any{
			"id":         n.ID,
			"user_id":    n.UserID,
			"type":       string(n.Type),
			"title":      n.Title,
			"read":       n.Read,
			"created_at": n.CreatedAt,
		}
		if n.Message != "" {
			entry["message"] = n.Message
		}
		if n.TaskID != "" {
			entry["task_id"] = n.TaskID
		}
		if n.Link != "" {
			entry["link"] = n.Link
		}
		if len(n.Metadata) > 0 {
			entry["metadata"] = n.Metadata
		}
		out = append(out, entry)
	}
	return out
}
