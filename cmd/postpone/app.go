package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/postpone/internal/config"
	"github.com/ifuryst/postpone/internal/durable"
	"github.com/ifuryst/postpone/internal/service"
	"github.com/ifuryst/postpone/internal/service/caption"
	"github.com/ifuryst/postpone/internal/service/publisher/instagram"
	"github.com/ifuryst/postpone/internal/store"
	"github.com/ifuryst/postpone/pkg/git"
)

// app holds the wired services shared by process and serve
type app struct {
	store     *store.Store
	publisher *instagram.InstagramPublisher
	processor *service.Processor
	location  *time.Location
	attempts  *service.DBJournal
	db        *gorm.DB
	logger    *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	location, err := time.LoadLocation(cfg.Processor.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid processor timezone %q: %w", cfg.Processor.Timezone, err)
	}

	log, err := newDurableLog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	recordStore := newStore(cfg, log, logger)
	if err := recordStore.EnsureDirs(); err != nil {
		return nil, err
	}

	publishTimeout, err := time.ParseDuration(cfg.Publisher.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid publisher timeout %q: %w", cfg.Publisher.Timeout, err)
	}
	pub := instagram.NewInstagramPublisher(instagram.Config{
		BaseURL:       cfg.Publisher.BaseURL,
		Timeout:       publishTimeout,
		RatePerMinute: cfg.Publisher.RatePerMinute,
	}, logger)

	captionTimeout, err := time.ParseDuration(cfg.Caption.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid caption timeout %q: %w", cfg.Caption.Timeout, err)
	}
	generator := caption.NewGenerator(caption.Config{
		APIKey:      cfg.Caption.APIKey,
		BaseURL:     cfg.Caption.BaseURL,
		Model:       cfg.Caption.Model,
		MaxTokens:   cfg.Caption.MaxTokens,
		MaxChars:    cfg.Caption.MaxChars,
		DefaultTone: cfg.Caption.DefaultTone,
		Timeout:     captionTimeout,
	}, logger)
	if !generator.Enabled() {
		logger.Info("No caption API key configured, captions will not be generated")
	}

	a := &app{
		store:     recordStore,
		publisher: pub,
		location:  location,
		logger:    logger,
	}

	var journal service.Journal = service.NopJournal{}
	if cfg.Database.Enabled {
		db, err := service.OpenJournal(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.attempts = service.NewDBJournal(db, logger)
		journal = a.attempts
	}

	a.processor = service.NewProcessor(recordStore, pub, generator, cfg.Accounts, journal, service.ProcessorOptions{
		Location:       location,
		CommitFailures: cfg.Durable.CommitFailures,
	}, logger)

	return a, nil
}

func (a *app) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("Failed to close journal database", zap.Error(err))
		}
	}
}

func newStore(cfg *config.Config, log durable.Log, logger *zap.Logger) *store.Store {
	return store.New(cfg.Store, log, logger)
}

func newDurableLog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (durable.Log, error) {
	switch cfg.Durable.Backend {
	case durable.BackendGit:
		repo := git.NewRepository(cfg.Durable.Git, logger)
		if err := repo.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize git repository: %w", err)
		}
		if err := repo.ConfigureGitUser(ctx); err != nil {
			return nil, fmt.Errorf("failed to configure git user: %w", err)
		}
		// a cloned repository hosts the store unless the root was set explicitly
		if cfg.Durable.Git.URL != "" && cfg.Store.Root == "." {
			cfg.Store.Root = repo.GetLocalPath()
		}
		return durable.NewGitLog(repo, cfg.Store.Root, cfg.Durable.Push, logger), nil

	case durable.BackendS3:
		client, err := durable.NewS3Client(ctx, cfg.Durable.S3)
		if err != nil {
			return nil, err
		}
		return durable.NewS3Log(client, cfg.Durable.S3, cfg.Store.Root, logger), nil

	case durable.BackendLocal:
		logger.Warn("Durable backend is local, archivals are not replicated")
		return durable.LocalLog{}, nil
	}

	return nil, fmt.Errorf("unknown durable backend %q", cfg.Durable.Backend)
}
