// Package workflow implements the interruptible post-generation pipeline: a
// state machine that researches a match, extracts structured facts, drafts a
// short-form post, and suspends for human review. The only durable pause
// point is AWAITING_FEEDBACK; the engine suspends by returning the workflow
// to the caller, and resumes when handed the workflow plus a decision.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matchpost/backend/pkg/models"
)

// State identifies a node of the generation state machine.
type State string

const (
	StateResearching      State = "RESEARCHING"
	StateExtracting       State = "EXTRACTING"
	StateDrafting         State = "DRAFTING"
	StateAwaitingFeedback State = "AWAITING_FEEDBACK"
	StateFinalizing       State = "FINALIZING"
	StateCancelled        State = "CANCELLED"
)

// Searcher is the external search capability consumed by the research step.
type Searcher interface {
	// Search returns evidence snippets for the query. An empty result is a
	// valid "no evidence" outcome, not an error.
	Search(ctx context.Context, query string) ([]string, error)
}

// Generator is the generative-text capability consumed by the extraction and
// composition steps.
type Generator interface {
	// ExtractFacts produces a structured match-fact record from evidence.
	// The boolean reports whether usable match data was actually found.
	ExtractFacts(ctx context.Context, topic string, evidence []string) (*models.MatchFacts, bool, error)
	// ComposeDraft produces one short-form post from the facts, honoring the
	// latest feedback when present.
	ComposeDraft(ctx context.Context, facts *models.MatchFacts, feedback string) (string, error)
}

// Publisher is the terminal "post" side effect. The default implementation
// only logs; actual publication to a social network is out of scope.
type Publisher interface {
	Publish(ctx context.Context, ownerID, draft string) error
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Engine sequences the pipeline steps over a Workflow. It operates purely on
// the in-memory entity and never persists: callers save only after a
// transition succeeds, so a failed step leaves stored state untouched and the
// same call can be retried.
type Engine struct {
	search    Searcher
	generator Generator
	publisher Publisher
	logger    Logger
}

// NewEngine creates an Engine with explicitly injected capabilities.
func NewEngine(search Searcher, generator Generator, publisher Publisher, logger Logger) *Engine {
	return &Engine{
		search:    search,
		generator: generator,
		publisher: publisher,
		logger:    logger,
	}
}

// Start creates a workflow for topic and runs the cold-start path
// RESEARCHING -> EXTRACTING -> DRAFTING, landing in AWAITING_FEEDBACK.
func (e *Engine) Start(ctx context.Context, ownerID, topic string) (*models.Workflow, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic must not be empty", models.ErrValidation)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id must not be empty", models.ErrValidation)
	}

	wf := &models.Workflow{
		ThreadID: uuid.New().String(),
		OwnerID:  ownerID,
		State: models.WorkflowState{
			Topic:           topic,
			DraftHistory:    []string{},
			FeedbackHistory: []string{},
		},
		Status:    models.StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}

	e.logger.Debug("workflow %s entering %s", wf.ThreadID, StateResearching)
	evidence, err := e.runResearch(ctx, wf)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("workflow %s entering %s", wf.ThreadID, StateExtracting)
	if err := e.runExtraction(ctx, wf, evidence); err != nil {
		return nil, err
	}

	e.logger.Debug("workflow %s entering %s", wf.ThreadID, StateDrafting)
	if err := e.runCompose(ctx, wf, ""); err != nil {
		return nil, err
	}

	e.logger.Debug("workflow %s suspended in %s", wf.ThreadID, StateAwaitingFeedback)
	return wf, nil
}

// Resume feeds a suspended workflow the user's decision and executes the
// transition out of AWAITING_FEEDBACK. The workflow is mutated in place; on
// error it must be discarded, not saved.
func (e *Engine) Resume(ctx context.Context, wf *models.Workflow, feedback string, evaluation models.Evaluation) error {
	if wf.Completed() {
		return fmt.Errorf("%w: thread %s", models.ErrAlreadyCompleted, wf.ThreadID)
	}

	// Normalize before assigning: an unrecognized value routes to cancel, and
	// only recognized values may be persisted or Validate rejects the row on
	// the next load.
	if !models.KnownEvaluation(evaluation) {
		e.logger.Info("workflow %s: unrecognized evaluation %q, cancelling", wf.ThreadID, evaluation)
		evaluation = models.EvaluationCancel
	}
	wf.State.PendingEvaluation = evaluation

	switch Route(evaluation) {
	case StateFinalizing:
		e.logger.Debug("workflow %s entering %s", wf.ThreadID, StateFinalizing)
		if err := e.publisher.Publish(ctx, wf.OwnerID, wf.State.CurrentDraft); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		wf.Status = models.StatusCompleted

	case StateDrafting:
		if feedback != "" {
			wf.State.FeedbackHistory = append(wf.State.FeedbackHistory, feedback)
		}
		e.logger.Debug("workflow %s entering %s", wf.ThreadID, StateDrafting)
		if err := e.runCompose(ctx, wf, feedback); err != nil {
			return err
		}
		e.logger.Debug("workflow %s suspended in %s", wf.ThreadID, StateAwaitingFeedback)

	case StateCancelled:
		e.logger.Debug("workflow %s entering %s", wf.ThreadID, StateCancelled)
		wf.Status = models.StatusCompleted
	}

	return nil
}

// Route maps the user's evaluation to the next state. Anything other than
// post or edit, including an absent value, cancels the workflow; the upstream
// product behaves this way and the default is kept deliberately explicit.
func Route(evaluation models.Evaluation) State {
	switch evaluation {
	case models.EvaluationPost:
		return StateFinalizing
	case models.EvaluationEdit:
		return StateDrafting
	default:
		return StateCancelled
	}
}
