package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"matchpost/backend/internal/config"
	"matchpost/backend/internal/logging"
	"matchpost/backend/internal/repository"
	"matchpost/backend/pkg/models"
)

const devEmail = "dev@localhost"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "matchpost-seed",
		Short: "Apply the database schema and seed local development data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
}

func run(ctx context.Context, configFile string) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer pool.Close()

	// 1. Apply schema (idempotent: all statements are IF NOT EXISTS)
	if _, err := pool.Exec(ctx, repository.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("Schema applied")

	users := repository.NewPostgresUserStore(pool)
	workflows := repository.NewPostgresWorkflowStore(pool)

	// 2. Ensure the dev user exists
	devUser, err := users.GetByEmail(ctx, devEmail)
	if err != nil {
		logger.Info("Creating dev user", "email", devEmail)
		hashed, err := bcrypt.GenerateFromPassword([]byte("devpassword"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash dev password: %w", err)
		}
		devUser = &models.User{
			ID:             uuid.New().String(),
			Username:       "dev",
			Email:          devEmail,
			HashedPassword: string(hashed),
		}
		if err := users.Create(ctx, devUser); err != nil {
			return fmt.Errorf("failed to create dev user: %w", err)
		}
	} else {
		logger.Info("Found existing dev user", "id", devUser.ID)
	}

	// 3. Seed a demo workflow suspended at the review step
	page, err := workflows.ListByOwner(ctx, devUser.ID, 1, 0)
	if err != nil {
		return fmt.Errorf("failed to list existing workflows: %w", err)
	}
	if page.Total > 0 {
		logger.Info("Skipping demo workflow, dev user already has workflows", "total", page.Total)
		logger.Info("Seeding complete!")
		return nil
	}

	demo := demoWorkflow(devUser.ID)
	if err := workflows.Save(ctx, demo); err != nil {
		return fmt.Errorf("failed to seed demo workflow: %w", err)
	}
	logger.Info("Seeded demo workflow", "thread_id", demo.ThreadID)

	logger.Info("Seeding complete!")
	return nil
}

// demoWorkflow builds a workflow suspended at the review step, shaped exactly
// like one the engine writes: both histories initialized so they serialize as
// [] rather than null.
func demoWorkflow(ownerID string) *models.Workflow {
	draft := "What a finish! India edge Australia by 2 wickets in a last-over thriller. 🏏"
	return &models.Workflow{
		ThreadID: uuid.New().String(),
		OwnerID:  ownerID,
		State: models.WorkflowState{
			Topic: "India vs Australia 3rd ODI",
			MatchFacts: &models.MatchFacts{
				MatchResult:      "India won by 2 wickets",
				Teams:            "India vs Australia",
				Score:            "IND 270/8 - AUS 269/7",
				MatchSummary:     "A last-over chase sealed the series for India.",
				PlayerOfTheMatch: "Unknown",
				KeyMoment:        "Six off the penultimate ball",
			},
			CurrentDraft:    draft,
			DraftHistory:    []string{draft},
			FeedbackHistory: []string{},
		},
		Status: models.StatusInProgress,
	}
}
