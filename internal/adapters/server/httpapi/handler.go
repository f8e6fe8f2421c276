// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskflowhq/taskflow/internal/app"
	"github.com/taskflowhq/taskflow/internal/domain"
	"github.com/taskflowhq/taskflow/internal/insights"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// errInvalidRequest marks request decoding and parameter failures.
var errInvalidRequest = errors.New("invalid request")

// Service defines the application operations the REST adapter exposes.
// Satisfied by *app.Service.
type Service interface {
	CreateProject(ctx context.Context, ownerID, name, description string) (domain.Project, error)
	ListProjects(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Project, error)
	ArchiveProject(ctx context.Context, projectID string) (domain.Project, error)

	CreateTask(ctx context.Context, in app.CreateTaskInput) (domain.Task, error)
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	UpdateTask(ctx context.Context, in app.UpdateTaskInput) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.Status) (domain.Task, error)
	RescheduleTask(ctx context.Context, taskID string, dueAt *time.Time) (domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	SearchTasks(ctx context.Context, ownerID, query string) ([]domain.Task, error)

	AddComment(ctx context.Context, taskID, authorID, authorName, body string) (domain.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)

	Dashboard(ctx context.Context, ownerID string) (insights.Summary, error)
	RunSweeps(ctx context.Context) (app.SweepResult, error)

	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (domain.Notification, error)
	DeleteNotification(ctx context.Context, notificationID string) error
}

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	svc Service
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the application service.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	segments := strings.Split(path, "/")

	switch segments[0] {
	case "tasks":
		h.routeTasks(w, r, segments[1:])
	case "projects":
		h.routeProjects(w, r, segments[1:])
	case "notifications":
		h.routeNotifications(w, r, segments[1:])
	case "dashboard":
		if len(segments) != 1 {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleDashboard(w, r)
	case "sweeps":
		if len(segments) != 2 || segments[1] != "run" {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRunSweeps(w, r)
	default:
		writeNotFound(w)
	}
}

// routeTasks dispatches `/tasks`, `/tasks/search`, and `/tasks/{id}...` requests.
func (h *Handler) routeTasks(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r)
		case http.MethodPost:
			h.handleCreateTask(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 1 && rest[0] == "search":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleSearchTasks(w, r)
	case len(rest) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleGetTask(w, r, rest[0])
		case http.MethodPut:
			h.handleUpdateTask(w, r, rest[0])
		case http.MethodDelete:
			h.handleDeleteTask(w, r, rest[0])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(rest) == 2 && rest[1] == "status":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleUpdateTaskStatus(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "reschedule":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRescheduleTask(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "comments":
		switch r.Method {
		case http.MethodGet:
			h.handleListComments(w, r, rest[0])
		case http.MethodPost:
			h.handleAddComment(w, r, rest[0])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		writeNotFound(w)
	}
}

// routeProjects dispatches `/projects` and `/projects/{id}/archive` requests.
func (h *Handler) routeProjects(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleListProjects(w, r)
		case http.MethodPost:
			h.handleCreateProject(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 2 && rest[1] == "archive":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleArchiveProject(w, r, rest[0])
	default:
		writeNotFound(w)
	}
}

// routeNotifications dispatches `/notifications` and `/notifications/{id}...` requests.
func (h *Handler) routeNotifications(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListNotifications(w, r)
	case len(rest) == 2 && rest[1] == "read":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMarkNotificationRead(w, r, rest[0])
	case len(rest) == 1:
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		h.handleDeleteNotification(w, r, rest[0])
	default:
		writeNotFound(w)
	}
}

type createTaskRequest struct {
	OwnerID     string     `json:"owner_id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueAt       *time.Time `json:"due_at"`
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.CreateTask(r.Context(), app.CreateTaskInput{
		OwnerID:     req.OwnerID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		DueAt:       req.DueAt,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskToDTO(task))
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "owner_id is required",
		})
		return
	}
	tasks, err := h.svc.ListTasks(r.Context(), ownerID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasksToDTO(tasks)})
}

func (h *Handler) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "owner_id is required",
		})
		return
	}
	tasks, err := h.svc.SearchTasks(r.Context(), ownerID, r.URL.Query().Get("q"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasksToDTO(tasks)})
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := h.svc.GetTask(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToDTO(task))
}

type updateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueAt       *time.Time `json:"due_at"`
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req updateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), app.UpdateTaskInput{
		TaskID:      taskID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		DueAt:       req.DueAt,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToDTO(task))
}

type updateTaskStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	var req updateTaskStatusRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.UpdateTaskStatus(r.Context(), taskID, domain.Status(req.Status))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToDTO(task))
}

type rescheduleTaskRequest struct {
	DueAt *time.Time `json:"due_at"`
}

func (h *Handler) handleRescheduleTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req rescheduleTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.RescheduleTask(r.Context(), taskID, req.DueAt)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToDTO(task))
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if err := h.svc.DeleteTask(r.Context(), taskID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addCommentRequest struct {
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request, taskID string) {
	var req addCommentRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	comment, err := h.svc.AddComment(r.Context(), taskID, req.AuthorID, req.AuthorName, req.Body)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentToDTO(comment))
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request, taskID string) {
	comments, err := h.svc.ListComments(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	dtos := make([]commentDTO, 0, len(comments))
	for _, c := range comments {
		dtos = append(dtos, commentToDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": dtos})
}

type createProjectRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	project, err := h.svc.CreateProject(r.Context(), req.OwnerID, req.Name, req.Description)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectToDTO(project))
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "owner_id is required",
		})
		return
	}
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	projects, err := h.svc.ListProjects(r.Context(), ownerID, includeArchived)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	dtos := make([]projectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, projectToDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": dtos})
}

func (h *Handler) handleArchiveProject(w http.ResponseWriter, r *http.Request, projectID string) {
	project, err := h.svc.ArchiveProject(r.Context(), projectID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectToDTO(project))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "owner_id is required",
		})
		return
	}
	summary, err := h.svc.Dashboard(r.Context(), ownerID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleRunSweeps(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunSweeps(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "user_id is required",
		})
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.svc.ListNotifications(r.Context(), userID, unreadOnly)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	dtos := make([]notificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, notificationToDTO(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": dtos})
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, notificationID string) {
	notification, err := h.svc.MarkNotificationRead(r.Context(), notificationID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationToDTO(notification))
}

func (h *Handler) handleDeleteNotification(w http.ResponseWriter, r *http.Request, notificationID string) {
	if err := h.svc.DeleteNotification(r.Context(), notificationID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// validationSentinels are domain errors mapped to 400 responses.
var validationSentinels = []error{
	domain.ErrInvalidID,
	domain.ErrInvalidOwner,
	domain.ErrInvalidName,
	domain.ErrInvalidTitle,
	domain.ErrInvalidStatus,
	domain.ErrInvalidPriority,
	domain.ErrInvalidNotificationType,
	domain.ErrInvalidBody,
	domain.ErrInvalidTaskID,
	app.ErrInvalidOwner,
	errInvalidRequest,
}

// writeErrorFrom maps service errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case isValidationError(err):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(errInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", errInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
