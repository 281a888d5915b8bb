package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"matchpost/backend/internal/config"
	"matchpost/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (l *NoOpLogger) Info(msg string, args ...interface{})  {}
func (l *NoOpLogger) Error(msg string, args ...interface{}) {}

// MockUserStore satisfies repository.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newLocalAuth(users *MockUserStore) *Auth {
	return &Auth{
		users:    users,
		logger:   &NoOpLogger{},
		secret:   []byte("test-secret"),
		tokenTTL: 30 * time.Minute,
	}
}

func TestRegister_HashesPassword(t *testing.T) {
	users := new(MockUserStore)
	users.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, fmt.Errorf("not found"))
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "alice@example.com" && u.HashedPassword != "" && u.HashedPassword != "hunter2"
	})).Return(nil)

	a := newLocalAuth(users)
	user, err := a.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	users.AssertExpectations(t)
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	users := new(MockUserStore)
	users.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&models.User{ID: "existing"}, nil)

	a := newLocalAuth(users)
	_, err := a.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	users := new(MockUserStore)
	a := newLocalAuth(users)

	// register through the real path so the stored hash is genuine
	var stored *models.User
	users.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, fmt.Errorf("not found")).Once()
	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.User)
	}).Return(nil)

	_, err := a.Register(context.Background(), "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)

	users.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)

	_, err = a.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := a.Login(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestRequireAuth_LocalBearerToken(t *testing.T) {
	users := new(MockUserStore)
	a := newLocalAuth(users)

	user := &models.User{ID: "user-123", Username: "alice", Email: "alice@example.com"}
	token, err := a.issueToken(user)
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, "user-123").Return(user, nil)

	req := httptest.NewRequest("GET", "/api/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		assert.True(t, ok, "user_id should be in context")
		assert.Equal(t, "user-123", userID)
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestRequireAuth_MissingOrGarbageToken(t *testing.T) {
	users := new(MockUserStore)
	a := newLocalAuth(users)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest("GET", "/api/v1/posts", nil)
	rec := httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("GET", "/api/v1/posts", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec = httptest.NewRecorder()
	a.RequireAuth(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_BypassModeProvisionsDevUser(t *testing.T) {
	users := new(MockUserStore)
	users.On("GetByEmail", mock.Anything, "dev@localhost").Return(nil, fmt.Errorf("not found"))
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "dev@localhost" && u.Username == "dev"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = "dev-user-id"
	}).Return(nil)

	cfg := &config.Config{}
	cfg.App.Environment = "DEV"
	cfg.App.DevModeBypass = true
	cfg.Auth.JWTSecret = ""

	a, err := New(context.Background(), cfg, users, &NoOpLogger{})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/posts", nil)
	rec := httptest.NewRecorder()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "dev-user-id", userID)
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestRegisterAndTokenHandlers(t *testing.T) {
	users := new(MockUserStore)
	a := newLocalAuth(users)

	var stored *models.User
	users.On("GetByEmail", mock.Anything, "bob@example.com").Return(nil, fmt.Errorf("not found")).Once()
	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.User)
	}).Return(nil)

	registerBody, _ := json.Marshal(map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "s3cret",
	})
	req := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(registerBody))
	rec := httptest.NewRecorder()
	a.RegisterHandler(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "s3cret", "password hash must not leak")

	users.On("GetByEmail", mock.Anything, "bob@example.com").Return(stored, nil)

	form := url.Values{"username": {"bob@example.com"}, "password": {"s3cret"}}
	req = httptest.NewRequest("POST", "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	a.TokenHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokenResp models.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	assert.Equal(t, "bearer", tokenResp.TokenType)
	assert.NotEmpty(t, tokenResp.AccessToken)
}
