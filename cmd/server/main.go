package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"matchpost/backend/internal/api"
	"matchpost/backend/internal/auth"
	"matchpost/backend/internal/config"
	"matchpost/backend/internal/logging"
	"matchpost/backend/internal/mcp"
	"matchpost/backend/internal/repository"
	"matchpost/backend/internal/services"
	"matchpost/backend/internal/tls"
	"matchpost/backend/internal/workflow"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "matchpost-server",
		Short: "Matchpost post-generation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(ctx context.Context, configFile string) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}
	logger.Info("Configuration loaded",
		"environment", cfg.App.Environment,
		"config_file", viper.ConfigFileUsed(),
	)

	if cfg.App.DevModeBypass {
		logger.Warn("⚠️  Auth bypass is enabled. All requests run as the dev user. Never enable this outside local development.")
	}

	logger.Info("Starting Matchpost Service")

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer dbPool.Close()

	logger.Info("Database connected")

	// Repository layer
	workflowStore := repository.NewPostgresWorkflowStore(dbPool)
	userStore := repository.NewPostgresUserStore(dbPool)

	// Service layer
	searchClient := services.NewTavilySearchClient(cfg.Search.URL, cfg.Search.APIKey, cfg.Search.MaxResults, cfg.Search.Timeout)
	generator := services.NewGeminiClient(cfg.Generation.URL, cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.Timeout)
	publisher := services.NewLogPublisher(logger)
	engine := workflow.NewEngine(searchClient, generator, publisher, logger)
	workflowService := services.NewWorkflowService(workflowStore, engine, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(cfg.App.Name))

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, userStore, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	// Register auth handlers
	e.POST("/auth/register", echo.WrapHandler(http.HandlerFunc(authz.RegisterHandler)))
	e.POST("/auth/token", echo.WrapHandler(http.HandlerFunc(authz.TokenHandler)))

	// Mount REST API handlers under /api/v1 with auth middleware applied
	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiHandler := api.NewHandler(workflowService, userStore, logger)
	api.RegisterHandlers(apiGroup, apiHandler)

	e.GET("/healthz", apiHandler.HandleHealth)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers bound to the service-account user
	if cfg.MCP.ServiceAccountEmail != "" {
		svcUser, err := authz.EnsureUser(ctx, cfg.MCP.ServiceAccountEmail)
		if err != nil {
			return fmt.Errorf("failed to provision MCP service account: %w", err)
		}
		mcpServer := mcp.NewServer(workflowService, svcUser.ID)
		mcpHandlers := http.NewServeMux()
		mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
		e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

		logger.Info("MCP protocol handlers mounted", "service_account", cfg.MCP.ServiceAccountEmail)
	}

	// expose OpenAPI spec and Swagger UI
	e.GET("/openapi.yaml", echo.WrapHandler(http.HandlerFunc(api.SpecHandler())))
	e.GET("/docs", echo.WrapHandler(http.HandlerFunc(api.SwaggerHandler())))

	// Create HTTP server
	addr := ":8080"
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- server.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error: %v", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
