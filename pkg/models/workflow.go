// Package models defines the domain models for the matchpost service
package models

import (
	"fmt"
	"time"
)

// WorkflowStatus represents the lifecycle status of a workflow.
type WorkflowStatus string

const (
	StatusInProgress WorkflowStatus = "in_progress"
	StatusCompleted  WorkflowStatus = "completed"
)

// Evaluation is the user's decision on the current draft.
type Evaluation string

const (
	EvaluationPost   Evaluation = "post"
	EvaluationEdit   Evaluation = "edit"
	EvaluationCancel Evaluation = "cancel"
)

// KnownEvaluation reports whether e is one of the recognized decisions.
// Anything else routes to cancel, see workflow.Engine.
func KnownEvaluation(e Evaluation) bool {
	switch e {
	case EvaluationPost, EvaluationEdit, EvaluationCancel:
		return true
	}
	return false
}

// MatchFacts is the structured record extracted from match research evidence.
type MatchFacts struct {
	MatchResult      string `json:"match_result"`
	Teams            string `json:"teams"`
	Score            string `json:"score"`
	MatchSummary     string `json:"match_summary"`
	PlayerOfTheMatch string `json:"player_of_the_match"`
	KeyMoment        string `json:"key_moment"`
}

// WorkflowState is the evolving pipeline state persisted as a JSONB document.
// Histories are append-only; DraftHistory is never reordered or pruned.
type WorkflowState struct {
	Topic             string      `json:"topic"`
	MatchFacts        *MatchFacts `json:"match_facts,omitempty"`
	CurrentDraft      string      `json:"current_draft,omitempty"`
	DraftHistory      []string    `json:"draft_history"`
	FeedbackHistory   []string    `json:"feedback_history"`
	PendingEvaluation Evaluation  `json:"pending_evaluation,omitempty"`
}

// Validate checks the shape of a state document loaded from storage. Rows are
// written by the engine only, so a failure here means the stored document no
// longer matches the schema this build expects.
func (s *WorkflowState) Validate() error {
	if s.Topic == "" {
		return fmt.Errorf("%w: state is missing a topic", ErrValidation)
	}
	if s.CurrentDraft != "" && len(s.DraftHistory) == 0 {
		return fmt.Errorf("%w: state has a current draft but an empty draft history", ErrValidation)
	}
	if s.PendingEvaluation != "" && !KnownEvaluation(s.PendingEvaluation) {
		return fmt.Errorf("%w: unrecognized pending evaluation %q", ErrValidation, s.PendingEvaluation)
	}
	return nil
}

// Workflow is one durable instance of the research->draft->review pipeline.
type Workflow struct {
	ThreadID      string         `json:"thread_id"`
	OwnerID       string         `json:"owner_id"`
	State         WorkflowState  `json:"state"`
	Status        WorkflowStatus `json:"status"`
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
}

// Completed reports whether the workflow has reached a terminal state.
func (w *Workflow) Completed() bool {
	return w.Status == StatusCompleted
}

// WorkflowSummary is the listing projection of a workflow.
type WorkflowSummary struct {
	ThreadID      string    `json:"thread_id"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	CurrentDraft  string    `json:"current_draft,omitempty"`
}

// WorkflowPage is one page of workflow summaries for a single owner.
type WorkflowPage struct {
	Workflows []WorkflowSummary `json:"workflows"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}
