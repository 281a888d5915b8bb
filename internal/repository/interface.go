package repository

import (
	"context"

	"matchpost/backend/pkg/models"
)

// WorkflowStore is the durable key-value persistence for workflow state,
// keyed by thread id and scoped to the owning user.
type WorkflowStore interface {
	// Save upserts the workflow by thread id. A zero version inserts; any
	// other version must match the stored row or the save fails with
	// models.ErrConflict, so concurrent resumes cannot silently clobber
	// each other. On success the workflow's version and timestamps are
	// refreshed in place.
	Save(ctx context.Context, wf *models.Workflow) error

	// Load returns the workflow owned by ownerID. A missing thread and a
	// thread owned by someone else both return models.ErrNotFound.
	Load(ctx context.Context, threadID, ownerID string) (*models.Workflow, error)

	// ListByOwner returns a page of summaries for ownerID ordered by
	// last_updated_at descending, plus the owner's total count.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) (*models.WorkflowPage, error)
}

// UserStore persists authenticated identities.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
