package admin

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	sdkopenai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/parley-labs/parley/internal/api/handlers"
	"github.com/parley-labs/parley/internal/chunker"
	"github.com/parley-labs/parley/internal/config"
	"github.com/parley-labs/parley/internal/database"
	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/jobs"
	"github.com/parley-labs/parley/internal/logging"
	"github.com/parley-labs/parley/internal/openai"
	"github.com/parley-labs/parley/internal/prompt"
	"github.com/parley-labs/parley/internal/repository"
	"github.com/parley-labs/parley/internal/server"
	"github.com/parley-labs/parley/internal/service"
	"github.com/parley-labs/parley/internal/session"
	"github.com/parley-labs/parley/internal/storage"
	"github.com/parley-labs/parley/internal/telemetry"
	"github.com/parley-labs/parley/internal/vectorstore"
	"github.com/parley-labs/parley/internal/vectorstore/embedded"
	vspostgres "github.com/parley-labs/parley/internal/vectorstore/postgres"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the parley API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.Setup(cfg.Debug, cfg.LogFormat)

	if cfg.HasSentry() {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// 10% sampling in production, everything in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("PARLEY_OPENAI_API_KEY is required")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	uploadRepo := repository.NewUploadRepository(pool)
	txRunner := repository.NewTxRunner(pool)
	uuidGen := &service.DefaultUUIDGenerator{}

	authSvc := service.NewAuthServiceWithTx(tenantRepo, apiKeyRepo, txRunner, uuidGen)

	if err := authSvc.EnsureBootstrap(ctx, domain.TenantKey(cfg.InitTenantKey), cfg.InitAPIKey); err != nil {
		return fmt.Errorf("failed to bootstrap initial tenant: %w", err)
	}

	embedClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      sdkopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	chatClient := openai.NewChatClient(cfg.OpenAIAPIKey, cfg.ChatModel)

	var store vectorstore.Store
	if cfg.EmbeddedVectors() {
		store, err = embedded.NewPersistent(cfg.DataDir, vectorstore.DefaultNamer, cfg.EmbeddingDimensions)
		if err != nil {
			return fmt.Errorf("failed to open embedded vector store: %w", err)
		}
		log.Info().Str("data_dir", cfg.DataDir).Msg("using embedded vector store")
	} else {
		store = vspostgres.New(pool, vectorstore.DefaultNamer, cfg.EmbeddingDimensions)
		log.Info().Msg("using pgvector vector store")
	}

	splitter, err := chunker.New(chunker.Config{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}

	sessions := session.NewManager(cfg.MemoryTurns, cfg.WelcomeMessage, cfg.SessionTTL)

	var ingestionSvc *service.IngestionService
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("document archive ready")
		ingestionSvc = service.NewIngestionServiceWithArchive(splitter, embedClient, store, uploadRepo, sessions, s3Client)
	} else {
		ingestionSvc = service.NewIngestionService(splitter, embedClient, store, uploadRepo, sessions)
	}

	conversationSvc := service.NewConversationServiceWithConfig(sessions, embedClient, store, chatClient,
		service.ConversationServiceConfig{
			TopK:     cfg.TopK,
			Template: prompt.Default(),
		})

	sweeper := jobs.NewWorker(jobs.NewSessionSweeper(sessions), cfg.SweepInterval)
	go sweeper.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    authSvc,
		ChatHandler:      handlers.NewChatHandler(conversationSvc),
		DocumentsHandler: handlers.NewDocumentsHandler(ingestionSvc),
		ContextHandler:   handlers.NewContextHandler(ingestionSvc, sessions),
		VectorBackend:    cfg.VectorBackend,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate wants a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Info().Msg("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Info().Uint("version", version).Msg("migrations: database is up to date")
	}

	return nil
}
