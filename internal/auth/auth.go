package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"matchpost/backend/internal/config"
	"matchpost/backend/internal/repository"
	"matchpost/backend/pkg/models"
)

// ContextUserIDKey is the request-context key carrying the authenticated
// user's id.
const ContextUserIDKey = "user_id"

// ErrInvalidCredentials is returned by Login for a bad email or password.
// The two cases are not distinguished to the caller.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Auth issues and verifies access tokens and provides the middleware that
// resolves the authenticated user for every request. Two verification modes
// are supported: local HS256 tokens minted by the token endpoint, and, when
// an OIDC issuer is configured, bearer tokens verified against that provider
// with auto-provisioning of users by email.
type Auth struct {
	users       repository.UserStore
	logger      Logger
	secret      []byte
	tokenTTL    time.Duration
	apiVerifier *oidc.IDTokenVerifier
	devMode     bool
	authBypass  bool
}

// New creates a new Auth object using values from the application
// configuration.
func New(ctx context.Context, cfg *config.Config, users repository.UserStore, logger Logger) (*Auth, error) {
	isDev := strings.ToUpper(cfg.App.Environment) == "DEV"
	shouldBypass := isDev && cfg.App.DevModeBypass

	var apiVerifier *oidc.IDTokenVerifier
	if cfg.Auth.Issuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to reach OIDC issuer: %w", err)
		}
		// Access tokens often carry a different audience than the client id,
		// so the audience check is skipped here.
		apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}

	if !shouldBypass && apiVerifier == nil && cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth configuration is incomplete: set auth.jwt_secret or auth.issuer")
	}

	return &Auth{
		users:       users,
		logger:      logger,
		secret:      []byte(cfg.Auth.JWTSecret),
		tokenTTL:    time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		apiVerifier: apiVerifier,
		devMode:     isDev,
		authBypass:  shouldBypass,
	}, nil
}

// Register creates a new user with a bcrypt-hashed password.
func (a *Auth) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", models.ErrValidation)
	}

	if _, err := a.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: a user with this email already exists", models.ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		HashedPassword: string(hashed),
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and returns a signed access token.
func (a *Auth) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.issueToken(user)
}

func (a *Auth) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// verifyLocalToken parses an HS256 token minted by Login and returns the
// subject user id.
func (a *Auth) verifyLocalToken(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// RequireAuth is middleware that resolves the authenticated user from the
// Authorization header and injects the user id into the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *models.User

		if a.authBypass {
			u, err := a.EnsureUser(r.Context(), "dev@localhost")
			if err != nil {
				http.Error(w, "failed to provision dev user: "+err.Error(), http.StatusInternalServerError)
				return
			}
			user = u
		} else {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			rawToken := strings.TrimPrefix(authHeader, "Bearer ")

			switch {
			case a.apiVerifier != nil:
				token, err := a.apiVerifier.Verify(r.Context(), rawToken)
				if err != nil {
					http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
					return
				}
				var claims struct {
					Email string `json:"email"`
				}
				if err := token.Claims(&claims); err != nil || claims.Email == "" {
					http.Error(w, "token has no email claim", http.StatusUnauthorized)
					return
				}
				u, err := a.EnsureUser(r.Context(), claims.Email)
				if err != nil {
					a.logger.Error("failed to provision user %s: %v", claims.Email, err)
					http.Error(w, "failed to provision user", http.StatusInternalServerError)
					return
				}
				user = u

			default:
				userID, err := a.verifyLocalToken(rawToken)
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				u, err := a.users.GetByID(r.Context(), userID)
				if err != nil {
					http.Error(w, "unknown user", http.StatusUnauthorized)
					return
				}
				user = u
			}
		}

		ctx := context.WithValue(r.Context(), ContextUserIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnsureUser looks up a user by email, auto-provisioning one on first sight.
// Provisioned users have no password and can only sign in through the
// external identity provider.
func (a *Auth) EnsureUser(ctx context.Context, email string) (*models.User, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}

	username := email
	if at := strings.Index(email, "@"); at > 0 {
		username = email[:at]
	}
	user = &models.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    email,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info("provisioned user %s (%s)", user.Username, user.ID)
	return user, nil
}

// UserID extracts the authenticated user id from a request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextUserIDKey).(string)
	return id, ok && id != ""
}

// RegisterHandler handles POST /auth/register with a JSON body.
func (a *Auth) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := a.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.logger.Error("failed to register user: %v", err)
		http.Error(w, "failed to register user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// TokenHandler handles POST /auth/token with an OAuth2 password form
// (username field carries the email).
func (a *Auth) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	token, err := a.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "incorrect username or password", http.StatusUnauthorized)
			return
		}
		a.logger.Error("failed to issue token: %v", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}
