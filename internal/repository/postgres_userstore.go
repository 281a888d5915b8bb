package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchpost/backend/pkg/models"
)

// PostgresUserStore is a PostgreSQL implementation of the UserStore interface.
type PostgresUserStore struct {
	db *pgxpool.Pool
}

// NewPostgresUserStore creates a new PostgresUserStore.
func NewPostgresUserStore(db *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// Create inserts a new user.
func (s *PostgresUserStore) Create(ctx context.Context, user *models.User) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (user_id, username, email, hashed_password, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 RETURNING created_at`,
		user.ID, user.Username, user.Email, user.HashedPassword,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail returns the user with the given email, or models.ErrNotFound.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.get(ctx, `SELECT user_id, username, email, hashed_password, created_at FROM users WHERE email = $1`, email)
}

// GetByID returns the user with the given id, or models.ErrNotFound.
func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.get(ctx, `SELECT user_id, username, email, hashed_password, created_at FROM users WHERE user_id = $1`, id)
}

func (s *PostgresUserStore) get(ctx context.Context, query, arg string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}
