package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/pennypilot/internal/domain/categories"
	categorieshandler "github.com/FACorreiaa/pennypilot/internal/domain/categories/handler"
	"github.com/FACorreiaa/pennypilot/internal/domain/categorization"
	categorizationhandler "github.com/FACorreiaa/pennypilot/internal/domain/categorization/handler"
	"github.com/FACorreiaa/pennypilot/internal/domain/enhancer"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/analyzer"
	importhandler "github.com/FACorreiaa/pennypilot/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/pennypilot/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/pennypilot/internal/domain/import/service"
	"github.com/FACorreiaa/pennypilot/internal/domain/insights"
	insightshandler "github.com/FACorreiaa/pennypilot/internal/domain/insights/handler"
	"github.com/FACorreiaa/pennypilot/internal/domain/recommendations"
	recommendationshandler "github.com/FACorreiaa/pennypilot/internal/domain/recommendations/handler"
	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	transactionshandler "github.com/FACorreiaa/pennypilot/internal/domain/transactions/handler"
	"github.com/FACorreiaa/pennypilot/internal/embedding"
	"github.com/FACorreiaa/pennypilot/internal/llm"
	"github.com/FACorreiaa/pennypilot/pkg/config"
	"github.com/FACorreiaa/pennypilot/pkg/cron"
	"github.com/FACorreiaa/pennypilot/pkg/db"
	"github.com/FACorreiaa/pennypilot/pkg/email"
	"github.com/FACorreiaa/pennypilot/pkg/storage"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Gemini      *llm.GeminiClient
	FileStorage storage.Storage

	// Repositories
	TransactionsRepo   *transactions.Repository
	CategoriesRepo     *categories.Repository
	CategorizationRepo *categorization.Repository
	ImportRepo         *importrepo.Repository
	RecommendationRepo *recommendations.Repository

	// Services
	CategoriesService     *categories.Service
	CategorizationService *categorization.Service
	TransactionsService   *transactions.Service
	EnhancerService       *enhancer.Service
	ImportService         *importservice.Service
	ImageImporter         *importservice.ImageImporter
	RecommendationService *recommendations.Service
	InsightsService       *insights.Service
	EmbeddingService      *embedding.Service

	// Background jobs and mail
	DigestSender    email.Sender
	DigestDirectory email.Directory
	Scheduler       *cron.Scheduler

	// Handlers
	TransactionsHandler   *transactionshandler.Handler
	CategoriesHandler     *categorieshandler.Handler
	RulesHandler          *categorizationhandler.Handler
	ImportHandler         *importhandler.Handler
	RecommendationHandler *recommendationshandler.Handler
	InsightsHandler       *insightshandler.Handler
}

// InitDependencies wires the whole application.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()
	deps.initScheduler()

	logger.Info("all dependencies initialized")
	return deps, nil
}

// initDatabase opens the pool and applies pending migrations.
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (d *Dependencies) initRepositories() {
	d.TransactionsRepo = transactions.NewPostgresRepository(d.DB.Pool)
	d.CategoriesRepo = categories.NewPostgresRepository(d.DB.Pool)
	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)
	d.ImportRepo = importrepo.NewRepository(d.DB.Pool)
	d.RecommendationRepo = recommendations.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() error {
	d.Gemini = llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:             d.Config.Gemini.APIKey,
		Model:              d.Config.Gemini.Model,
		EmbeddingModel:     d.Config.Gemini.EmbeddingModel,
		RateLimitPerMinute: d.Config.Gemini.RateLimitPerMinute,
		Timeout:            d.Config.Gemini.Timeout,
	}, d.Logger)

	fileStorage, err := storage.New(storage.Config{
		Type:      d.Config.Storage.Type,
		LocalPath: d.Config.Storage.LocalPath,
		S3Bucket:  d.Config.Storage.S3Bucket,
		S3Region:  d.Config.Storage.S3Region,
	})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.CategoriesService = categories.NewService(d.CategoriesRepo, d.Logger)
	d.CategorizationService = categorization.NewService(d.CategorizationRepo, d.Logger)
	d.TransactionsService = transactions.NewService(d.TransactionsRepo, d.CategoriesService, d.Gemini, d.Logger)

	d.EnhancerService = enhancer.New(
		d.TransactionsRepo,
		d.CategorizationService,
		d.CategoriesService,
		d.Gemini,
		d.Gemini,
		d.Logger,
	)

	d.ImportService = importservice.New(
		d.ImportRepo,
		d.TransactionsRepo,
		d.FileStorage,
		analyzer.New(d.Gemini, d.Logger),
		d.CategorizationService,
		d.CategoriesService,
		d.Logger,
	).WithEnhancer(d.EnhancerService)
	d.ImageImporter = importservice.NewImageImporter(d.ImportService, d.Gemini)

	agent := recommendations.NewAgent(d.Gemini, d.TransactionsRepo, d.Logger)
	d.RecommendationService = recommendations.NewService(d.RecommendationRepo, agent, d.Logger)

	d.InsightsService = insights.NewService(d.TransactionsRepo, d.Gemini, d.Logger)
	d.EmbeddingService = embedding.NewService(d.TransactionsRepo, d.Gemini, d.Config.Embedding.BatchSize, d.Logger)

	// The digest only runs when Resend and a recipient list are configured.
	if d.Config.Email.ResendAPIKey != "" && d.Config.Email.DigestRecipients != "" {
		directory, err := email.ParseStaticDirectory(d.Config.Email.DigestRecipients)
		if err != nil {
			return fmt.Errorf("failed to parse digest recipients: %w", err)
		}
		d.DigestSender = email.NewService(d.Config.Email.ResendAPIKey, d.Config.Email.FromAddress, d.Logger)
		d.DigestDirectory = directory
	}

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() {
	d.TransactionsHandler = transactionshandler.New(d.TransactionsService)
	d.CategoriesHandler = categorieshandler.New(d.CategoriesService)
	d.RulesHandler = categorizationhandler.New(d.CategorizationService)
	d.ImportHandler = importhandler.New(d.ImportService, d.ImageImporter)
	d.RecommendationHandler = recommendationshandler.New(d.RecommendationService)
	d.InsightsHandler = insightshandler.New(d.InsightsService)

	d.Logger.Info("handlers initialized")
}

func (d *Dependencies) initScheduler() {
	d.Scheduler = cron.NewScheduler(
		cron.Config{
			EmbeddingPollInterval: d.Config.Embedding.PollInterval,
			DigestCron:            d.Config.Email.DigestCron,
		},
		d.EmbeddingService,
		d.TransactionsRepo,
		d.RecommendationService,
		d.InsightsService,
		d.DigestSender,
		d.DigestDirectory,
		d.Logger,
	)
}

// Cleanup closes all resources.
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
