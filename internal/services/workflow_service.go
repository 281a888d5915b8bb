package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"matchpost/backend/internal/repository"
	"matchpost/backend/internal/workflow"
	"matchpost/backend/pkg/models"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// WorkflowService is the orchestration boundary: it translates inbound
// requests into engine invocations and store reads/writes. Persistence
// happens only after a transition succeeds, so a failed step leaves the
// stored workflow untouched and the request retryable.
type WorkflowService struct {
	store  repository.WorkflowStore
	engine *workflow.Engine
	logger Logger

	starts      metric.Int64Counter
	resumes     metric.Int64Counter
	completions metric.Int64Counter
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store repository.WorkflowStore, engine *workflow.Engine, logger Logger) *WorkflowService {
	meter := otel.Meter("matchpost/backend/internal/services")
	starts, _ := meter.Int64Counter("workflow.starts",
		metric.WithDescription("Workflows started"))
	resumes, _ := meter.Int64Counter("workflow.resumes",
		metric.WithDescription("Feedback submissions processed"))
	completions, _ := meter.Int64Counter("workflow.completions",
		metric.WithDescription("Workflows reaching a terminal state"))

	return &WorkflowService{
		store:       store,
		engine:      engine,
		logger:      logger,
		starts:      starts,
		resumes:     resumes,
		completions: completions,
	}
}

// StartWorkflow runs the cold-start pipeline for topic and persists the
// suspended workflow.
func (s *WorkflowService) StartWorkflow(ctx context.Context, ownerID, topic string) (*models.Workflow, error) {
	wf, err := s.engine.Start(ctx, ownerID, topic)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to persist workflow: %w", err)
	}

	s.starts.Add(ctx, 1)
	s.logger.Info("workflow %s started for user %s", wf.ThreadID, ownerID)
	return wf, nil
}

// SubmitFeedback resumes a suspended workflow with the user's decision. The
// load-transition-save sequence is guarded by the store's optimistic version
// check: a concurrent resume on the same thread loses with
// models.ErrConflict instead of silently clobbering the winner.
func (s *WorkflowService) SubmitFeedback(ctx context.Context, ownerID, threadID, feedback string, evaluation models.Evaluation) (*models.Workflow, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id must not be empty", models.ErrValidation)
	}

	wf, err := s.store.Load(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Resume(ctx, wf, feedback, evaluation); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to persist workflow: %w", err)
	}

	s.resumes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("evaluation", string(workflow.Route(evaluation)))))
	if wf.Completed() {
		s.completions.Add(ctx, 1)
		s.logger.Info("workflow %s completed (%s)", wf.ThreadID, evaluation)
	}
	return wf, nil
}

// ListWorkflows returns a page of the caller's workflow summaries.
func (s *WorkflowService) ListWorkflows(ctx context.Context, ownerID string, limit, offset int) (*models.WorkflowPage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", models.ErrValidation)
	}
	return s.store.ListByOwner(ctx, ownerID, limit, offset)
}
