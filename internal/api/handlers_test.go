package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchpost/backend/internal/auth"
	"matchpost/backend/internal/repository"
	"matchpost/backend/internal/services"
	"matchpost/backend/internal/workflow"
	"matchpost/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (l *NoOpLogger) Info(msg string, args ...interface{})  {}
func (l *NoOpLogger) Error(msg string, args ...interface{}) {}

type fakeSearcher struct{}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]string, error) {
	return []string{"snippet about " + query}, nil
}

type fakeGenerator struct{}

func (f *fakeGenerator) ExtractFacts(ctx context.Context, topic string, evidence []string) (*models.MatchFacts, bool, error) {
	return &models.MatchFacts{
		MatchResult:  "Home win",
		Teams:        "A vs B",
		MatchSummary: "A beat B comfortably.",
	}, true, nil
}

func (f *fakeGenerator) ComposeDraft(ctx context.Context, facts *models.MatchFacts, feedback string) (string, error) {
	if feedback != "" {
		return "Revised: " + feedback, nil
	}
	return "A beat B comfortably. ⚽", nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
}

func (f *fakePublisher) Publish(ctx context.Context, ownerID, draft string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, draft)
	return nil
}

// memStore is a map-backed WorkflowStore with the versioning and ownership
// semantics of the Postgres store, just enough for handler tests.
type memStore struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
}

func (s *memStore) Save(ctx context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.workflows[wf.ThreadID]
	if wf.Version != 0 && (!exists || stored.Version != wf.Version) {
		return fmt.Errorf("%w: thread %s", models.ErrConflict, wf.ThreadID)
	}
	wf.Version++
	wf.LastUpdatedAt = time.Now().UTC()
	copied := *wf
	s.workflows[wf.ThreadID] = &copied
	return nil
}

func (s *memStore) Load(ctx context.Context, threadID, ownerID string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.workflows[threadID]
	if !exists || stored.OwnerID != ownerID {
		return nil, fmt.Errorf("workflow %w: thread %s", models.ErrNotFound, threadID)
	}
	copied := *stored
	return &copied, nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) (*models.WorkflowPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &models.WorkflowPage{Workflows: []models.WorkflowSummary{}, Limit: limit, Offset: offset}
	for _, wf := range s.workflows {
		if wf.OwnerID != ownerID {
			continue
		}
		page.Total++
		page.Workflows = append(page.Workflows, models.WorkflowSummary{
			ThreadID:      wf.ThreadID,
			LastUpdatedAt: wf.LastUpdatedAt,
			CurrentDraft:  wf.State.CurrentDraft,
		})
	}
	return page, nil
}

type memUsers struct {
	users map[string]*models.User
}

func (s *memUsers) Create(ctx context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %w: %s", models.ErrNotFound, email)
}

func (s *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %w: %s", models.ErrNotFound, id)
}

var _ repository.WorkflowStore = (*memStore)(nil)
var _ repository.UserStore = (*memUsers)(nil)

type testEnv struct {
	e         *echo.Echo
	publisher *fakePublisher
	users     *memUsers
}

// newTestEnv wires the full handler stack with stub capabilities and a
// middleware that authenticates every request as the given user.
func newTestEnv(t *testing.T, userID string) *testEnv {
	t.Helper()

	logger := &NoOpLogger{}
	publisher := &fakePublisher{}
	engine := workflow.NewEngine(&fakeSearcher{}, &fakeGenerator{}, publisher, logger)
	store := &memStore{workflows: map[string]*models.Workflow{}}
	users := &memUsers{users: map[string]*models.User{}}
	svc := services.NewWorkflowService(store, engine, logger)

	e := echo.New()
	group := e.Group("/api/v1")
	group.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.ContextUserIDKey, userID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	RegisterHandlers(group, NewHandler(svc, users, logger))

	return &testEnv{e: e, publisher: publisher, users: users}
}

func (env *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodePost(t *testing.T, rec *httptest.ResponseRecorder) PostResponse {
	t.Helper()
	var resp PostResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t, "user-a")

	rec := env.do(http.MethodPost, "/api/v1/posts", `{"topic":"A vs B final"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodePost(t, rec)
	assert.NotEmpty(t, resp.ThreadID)
	assert.Equal(t, models.StatusInProgress, resp.Status)
	assert.Equal(t, "A beat B comfortably. ⚽", resp.CurrentDraft)
	assert.Len(t, resp.DraftHistory, 1)
	assert.Empty(t, resp.FeedbackHistory)
}

func TestCreatePostEmptyTopic(t *testing.T) {
	env := newTestEnv(t, "user-a")

	rec := env.do(http.MethodPost, "/api/v1/posts", `{"topic":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/problem+json")
}

func TestSubmitFeedbackEditLoop(t *testing.T) {
	env := newTestEnv(t, "user-a")

	created := decodePost(t, env.do(http.MethodPost, "/api/v1/posts", `{"topic":"A vs B"}`))

	rec := env.do(http.MethodPost, "/api/v1/posts/"+created.ThreadID+"/feedback",
		`{"evaluation":"edit","feedback":"shorter please"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodePost(t, rec)
	assert.Equal(t, models.StatusInProgress, resp.Status)
	assert.Equal(t, "Revised: shorter please", resp.CurrentDraft)
	assert.Len(t, resp.DraftHistory, 2)
	assert.Equal(t, []string{"shorter please"}, resp.FeedbackHistory)
}

func TestSubmitFeedbackPost(t *testing.T) {
	env := newTestEnv(t, "user-a")

	created := decodePost(t, env.do(http.MethodPost, "/api/v1/posts", `{"topic":"A vs B"}`))

	rec := env.do(http.MethodPost, "/api/v1/posts/"+created.ThreadID+"/feedback", `{"evaluation":"post"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodePost(t, rec)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.Equal(t, []string{created.CurrentDraft}, env.publisher.published)

	// the workflow is terminal, further feedback is rejected
	rec = env.do(http.MethodPost, "/api/v1/posts/"+created.ThreadID+"/feedback", `{"evaluation":"edit"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFeedbackMissingEvaluation(t *testing.T) {
	env := newTestEnv(t, "user-a")

	created := decodePost(t, env.do(http.MethodPost, "/api/v1/posts", `{"topic":"A vs B"}`))

	rec := env.do(http.MethodPost, "/api/v1/posts/"+created.ThreadID+"/feedback", `{"feedback":"nice"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFeedbackUnknownThread(t *testing.T) {
	env := newTestEnv(t, "user-a")

	rec := env.do(http.MethodPost, "/api/v1/posts/no-such-thread/feedback", `{"evaluation":"post"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "workflow not found", problem.Detail)
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t, "user-a")

	env.do(http.MethodPost, "/api/v1/posts", `{"topic":"match one"}`)
	env.do(http.MethodPost, "/api/v1/posts", `{"topic":"match two"}`)

	rec := env.do(http.MethodGet, "/api/v1/posts?limit=1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var page models.WorkflowPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
}

func TestListPostsInvalidOffset(t *testing.T) {
	env := newTestEnv(t, "user-a")

	rec := env.do(http.MethodGet, "/api/v1/posts?offset=-1", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t, "user-a")
	env.users.users["u-1"] = &models.User{
		ID:             "u-1",
		Username:       "alice",
		Email:          "alice@example.com",
		HashedPassword: "secret-hash",
	}

	rec := env.do(http.MethodGet, "/api/v1/users/u-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	rec = env.do(http.MethodGet, "/api/v1/users/u-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "user-a")
	env.e.GET("/healthz", NewHandler(nil, nil, &NoOpLogger{}).HandleHealth)

	rec := env.do(http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
}
