package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"matchpost/backend/internal/auth"
	"matchpost/backend/pkg/models"
)

// PostRequest is the body of a generation request.
type PostRequest struct {
	Topic string `json:"topic"`
}

// FeedbackRequest is the body of a feedback submission.
type FeedbackRequest struct {
	Feedback   string `json:"feedback,omitempty"`
	Evaluation string `json:"evaluation"`
}

// PostResponse is the workflow view returned to the client after a start or
// resume.
type PostResponse struct {
	ThreadID        string                `json:"thread_id"`
	Status          models.WorkflowStatus `json:"status"`
	CurrentDraft    string                `json:"current_draft"`
	DraftHistory    []string              `json:"draft_history"`
	FeedbackHistory []string              `json:"feedback_history"`
}

func postResponse(wf *models.Workflow) PostResponse {
	return PostResponse{
		ThreadID:        wf.ThreadID,
		Status:          wf.Status,
		CurrentDraft:    wf.State.CurrentDraft,
		DraftHistory:    wf.State.DraftHistory,
		FeedbackHistory: wf.State.FeedbackHistory,
	}
}

func callerID(c echo.Context) (string, bool) {
	return auth.UserID(c.Request().Context())
}

// CreatePost starts a generation workflow and returns the first draft
// (POST /api/v1/posts)
func (h *Handler) CreatePost(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, ok := callerID(c)
	if !ok {
		return writeProblem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
	}

	var body PostRequest
	if err := c.Bind(&body); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Invalid request", "invalid request body: "+err.Error())
	}

	wf, err := h.workflows.StartWorkflow(ctx, ownerID, body.Topic)
	if err != nil {
		return h.writeDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, postResponse(wf))
}

// SubmitFeedback resumes a suspended workflow with the caller's decision
// (POST /api/v1/posts/{threadId}/feedback)
func (h *Handler) SubmitFeedback(c echo.Context, threadID string) error {
	ctx := c.Request().Context()

	ownerID, ok := callerID(c)
	if !ok {
		return writeProblem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
	}

	var body FeedbackRequest
	if err := c.Bind(&body); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Invalid request", "invalid request body: "+err.Error())
	}
	if body.Evaluation == "" {
		return writeProblem(c, http.StatusBadRequest, "Invalid request", "evaluation is required: post, edit or cancel")
	}

	wf, err := h.workflows.SubmitFeedback(ctx, ownerID, threadID, body.Feedback, models.Evaluation(body.Evaluation))
	if err != nil {
		return h.writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, postResponse(wf))
}

// ListPosts returns a page of the caller's workflows
// (GET /api/v1/posts)
func (h *Handler) ListPosts(c echo.Context, params ListPostsParams) error {
	ctx := c.Request().Context()

	ownerID, ok := callerID(c)
	if !ok {
		return writeProblem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
	}

	limit, offset := 0, 0
	if params.Limit != nil {
		limit = *params.Limit
	}
	if params.Offset != nil {
		offset = *params.Offset
	}

	page, err := h.workflows.ListWorkflows(ctx, ownerID, limit, offset)
	if err != nil {
		return h.writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

// GetUser returns a user's public profile
// (GET /api/v1/users/{userId})
func (h *Handler) GetUser(c echo.Context, userID string) error {
	user, err := h.users.GetByID(c.Request().Context(), userID)
	if err != nil {
		return h.writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
