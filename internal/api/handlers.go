// Package api contains the HTTP handlers for the matchpost service
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"matchpost/backend/internal/repository"
	"matchpost/backend/internal/services"
	"matchpost/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Handler contains HTTP handlers for the matchpost REST API
type Handler struct {
	workflows *services.WorkflowService
	users     repository.UserStore
	logger    Logger
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(workflows *services.WorkflowService, users repository.UserStore, logger Logger) *Handler {
	return &Handler{
		workflows: workflows,
		users:     users,
		logger:    logger,
	}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "matchpost",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeProblem writes an RFC 7807 Problem Details JSON error response
func writeProblem(c echo.Context, status int, title, detail string) error {
	problem := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(status)
	return json.NewEncoder(c.Response()).Encode(problem)
}

// writeDomainError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return writeProblem(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, models.ErrNotFound):
		// deliberately detail-free: non-owners must not learn whether the
		// thread exists
		return writeProblem(c, http.StatusNotFound, "Not found", "workflow not found")
	case errors.Is(err, models.ErrAlreadyCompleted):
		return writeProblem(c, http.StatusBadRequest, "Workflow already completed", err.Error())
	case errors.Is(err, models.ErrConflict):
		return writeProblem(c, http.StatusConflict, "Concurrent update", "the workflow was modified concurrently, retry the request")
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return writeProblem(c, http.StatusBadGateway, "Upstream unavailable", "a required capability is unavailable, retry the request")
	default:
		h.logger.Error("unhandled error: %v", err)
		return writeProblem(c, http.StatusInternalServerError, "Internal error", "an unexpected error occurred")
	}
}
