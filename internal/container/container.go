// Package container wires the engine components together.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/finopsmind/costengine/internal/audit"
	"github.com/finopsmind/costengine/internal/config"
	"github.com/finopsmind/costengine/internal/costs"
	"github.com/finopsmind/costengine/internal/credentials"
	"github.com/finopsmind/costengine/internal/dailycost"
	"github.com/finopsmind/costengine/internal/forecast"
	"github.com/finopsmind/costengine/internal/jobs"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/notification"
	"github.com/finopsmind/costengine/internal/provider"
	"github.com/finopsmind/costengine/internal/provider/aws"
	"github.com/finopsmind/costengine/internal/provider/azure"
	"github.com/finopsmind/costengine/internal/provider/gcp"
	"github.com/finopsmind/costengine/internal/repository"
	"github.com/finopsmind/costengine/internal/terraform"
)

// Container holds all application dependencies.
type Container struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	resolver         *credentials.Resolver
	providerRegistry *provider.Registry
	aggregator       *costs.Aggregator
	fetcher          *dailycost.Fetcher
	forecaster       *forecast.Engine
	auditor          *audit.Auditor
	generator        *terraform.Generator
	notifService     *notification.Service
	scheduler        *jobs.Scheduler
	runner           *jobs.Runner
}

// New creates a new dependency container.
func New(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		cfg:    cfg,
		logger: logger,
	}

	saved := credentials.ChainStore{credentials.NewFileStore(cfg.Profiles.File)}
	if cfg.Profiles.DatabaseURL != "" {
		db, err := openDatabase(cfg.Profiles.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.db = db
		saved = append(saved, repository.NewPostgresProfileStore(db, cfg.Profiles.EncryptionKey))
		logger.Info("postgres profile store connected")
	}
	ambient := credentials.ChainStore{
		credentials.NewAWSSharedConfigSource(),
		credentials.NewEnvSource(),
	}
	c.resolver = credentials.NewResolver(saved, ambient, cfg.Engine.DefaultRegion, logger)
	logger.Info("credential resolver initialized", "profiles_file", cfg.Profiles.File)

	c.providerRegistry = provider.NewRegistry()
	c.providerRegistry.Register(model.CloudProviderAWS, aws.Factory(logger))
	c.providerRegistry.Register(model.CloudProviderAzure, azure.Factory(azure.Endpoints{}, logger))
	logger.Info("provider registry initialized", "providers", c.providerRegistry.Names())

	c.aggregator = costs.NewAggregator(c.resolver, c.providerRegistry, cfg.Engine.CallTimeout, logger)

	c.fetcher = dailycost.NewFetcher(c.aggregator, gcp.Factory("", logger), dailycost.Config{
		AWSProfile:             cfg.Engine.AWSProfile,
		AzureProfile:           cfg.Engine.AzureProfile,
		GCPInstanceMonthlyCost: cfg.Engine.GCPInstanceMonthlyCost,
		CallTimeout:            cfg.Engine.CallTimeout,
	}, logger)

	c.forecaster = forecast.NewEngine(c.fetcher, forecast.Config{
		MaxHistoricalDays: cfg.Engine.MaxHistoricalDays,
		MaxForecastDays:   cfg.Engine.MaxForecastDays,
		Concurrency:       cfg.Engine.HistoryConcurrency,
	}, logger)

	c.notifService = notification.NewService(notification.Config{
		SlackWebhookURL: cfg.Notification.SlackWebhookURL,
		EmailSMTPHost:   cfg.Notification.EmailSMTPHost,
		EmailSMTPPort:   cfg.Notification.EmailSMTPPort,
		EmailFrom:       cfg.Notification.EmailFrom,
		EmailPassword:   cfg.Notification.EmailPassword,
		EmailRecipients: cfg.Notification.EmailRecipients,
		WebhookURLs:     cfg.Notification.WebhookURLs,
	}, logger)
	logger.Info("notification service initialized", "enabled", c.notifService.Enabled())

	c.auditor = audit.NewAuditor(c.resolver, map[model.CloudProvider]provider.ScannerFactory{
		model.CloudProviderAWS: aws.ScannerFactory(logger),
	}, c.notifService, audit.Config{
		CallTimeout:       cfg.Engine.CallTimeout,
		RegionConcurrency: cfg.Engine.RegionConcurrency,
	}, logger)

	c.generator = terraform.NewGenerator()

	providers, err := model.ParseProviderSet(cfg.Jobs.ForecastProviders)
	if err != nil {
		return nil, fmt.Errorf("invalid job providers: %w", err)
	}
	c.scheduler = jobs.NewScheduler(cfg.Jobs.Timeout, logger)
	c.runner = jobs.NewRunner(c.forecaster, c.auditor, c.notifService, jobs.RunnerConfig{
		HistoricalDays:     cfg.Engine.DefaultHistoricalDays,
		ForecastDays:       cfg.Engine.DefaultForecastDays,
		Providers:          providers,
		AuditProfiles:      cfg.Jobs.AuditProfiles,
		AuditRegions:       cfg.Jobs.AuditRegions,
		GrowthAlertPercent: cfg.Jobs.GrowthAlertPercent,
	}, logger)

	return c, nil
}

func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Start registers and starts the background jobs when enabled.
func (c *Container) Start() error {
	if !c.cfg.Jobs.Enabled {
		c.logger.Info("background jobs disabled")
		return nil
	}
	if err := c.runner.Register(c.scheduler, c.cfg.Jobs.ForecastSchedule, c.cfg.Jobs.AuditSchedule); err != nil {
		return err
	}
	c.scheduler.Start()
	return nil
}

// Stop gracefully stops all components.
func (c *Container) Stop(_ context.Context) error {
	c.logger.Info("stopping container components")

	if c.cfg.Jobs.Enabled && c.scheduler != nil {
		c.scheduler.Stop()
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

// Accessors

func (c *Container) Config() *config.Config                     { return c.cfg }
func (c *Container) Logger() *slog.Logger                       { return c.logger }
func (c *Container) Resolver() *credentials.Resolver            { return c.resolver }
func (c *Container) ProviderRegistry() *provider.Registry       { return c.providerRegistry }
func (c *Container) Aggregator() *costs.Aggregator              { return c.aggregator }
func (c *Container) Forecaster() *forecast.Engine               { return c.forecaster }
func (c *Container) Auditor() *audit.Auditor                    { return c.auditor }
func (c *Container) Generator() *terraform.Generator            { return c.generator }
func (c *Container) NotificationService() *notification.Service { return c.notifService }
func (c *Container) Scheduler() *jobs.Scheduler                 { return c.scheduler }
