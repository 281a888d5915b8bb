package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchpost/backend/pkg/models"
)

// PostgresWorkflowStore is a PostgreSQL implementation of the WorkflowStore
// interface. Pipeline state lives in a JSONB column; identity, status and the
// optimistic version live in plain columns so they can be queried directly.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// Save upserts the workflow by thread id with an optimistic version check.
func (s *PostgresWorkflowStore) Save(ctx context.Context, wf *models.Workflow) error {
	stateDoc, err := json.Marshal(wf.State)
	if err != nil {
		return fmt.Errorf("failed to encode workflow state: %w", err)
	}

	if wf.Version == 0 {
		err := s.db.QueryRow(ctx,
			`INSERT INTO workflows (thread_id, owner_id, state, status, version, created_at, last_updated_at)
			 VALUES ($1, $2, $3, $4, 1, now(), now())
			 RETURNING version, created_at, last_updated_at`,
			wf.ThreadID, wf.OwnerID, stateDoc, wf.Status,
		).Scan(&wf.Version, &wf.CreatedAt, &wf.LastUpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert workflow %s: %w", wf.ThreadID, err)
		}
		return nil
	}

	err = s.db.QueryRow(ctx,
		`UPDATE workflows
		 SET state = $1, status = $2, version = version + 1, last_updated_at = now()
		 WHERE thread_id = $3 AND version = $4
		 RETURNING version, last_updated_at`,
		stateDoc, wf.Status, wf.ThreadID, wf.Version,
	).Scan(&wf.Version, &wf.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: thread %s version %d is stale", models.ErrConflict, wf.ThreadID, wf.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to update workflow %s: %w", wf.ThreadID, err)
	}
	return nil
}

// Load returns the workflow owned by ownerID, or models.ErrNotFound.
func (s *PostgresWorkflowStore) Load(ctx context.Context, threadID, ownerID string) (*models.Workflow, error) {
	var (
		wf       models.Workflow
		stateDoc []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT thread_id, owner_id, state, status, version, created_at, last_updated_at
		 FROM workflows WHERE thread_id = $1 AND owner_id = $2`,
		threadID, ownerID,
	).Scan(&wf.ThreadID, &wf.OwnerID, &stateDoc, &wf.Status, &wf.Version, &wf.CreatedAt, &wf.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Missing and not-owned are deliberately indistinguishable here.
		return nil, fmt.Errorf("workflow %w: thread %s", models.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", threadID, err)
	}

	if err := json.Unmarshal(stateDoc, &wf.State); err != nil {
		return nil, fmt.Errorf("%w: stored state for thread %s is not valid JSON: %v", models.ErrValidation, threadID, err)
	}
	if err := wf.State.Validate(); err != nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, err)
	}
	return &wf, nil
}

// ListByOwner returns a page of workflow summaries plus the owner's total.
// The total rides along as a window aggregate in the page query, so page and
// total always come from the same snapshot.
func (s *PostgresWorkflowStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) (*models.WorkflowPage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT thread_id, last_updated_at, coalesce(state->>'current_draft', ''), count(*) OVER ()
		 FROM workflows WHERE owner_id = $1
		 ORDER BY last_updated_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var total int
	summaries := []models.WorkflowSummary{}
	for rows.Next() {
		var summary models.WorkflowSummary
		if err := rows.Scan(&summary.ThreadID, &summary.LastUpdatedAt, &summary.CurrentDraft, &total); err != nil {
			return nil, fmt.Errorf("failed to scan workflow summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read workflow summaries: %w", err)
	}

	// An empty page carries no window aggregate, so count separately: the
	// offset may simply be past the end of a non-empty set.
	if len(summaries) == 0 {
		if err := s.db.QueryRow(ctx,
			`SELECT count(*) FROM workflows WHERE owner_id = $1`, ownerID,
		).Scan(&total); err != nil {
			return nil, fmt.Errorf("failed to count workflows: %w", err)
		}
	}

	return &models.WorkflowPage{
		Workflows: summaries,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}
