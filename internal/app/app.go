// Package app wires configuration into the services both binaries run.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/contracts"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/export"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/ingest"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm/provider"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/mailer"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/normalize"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/otp"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/services/extraction"
)

// App owns the database handle and the repositories built on it.
type App struct {
	Config  *common.Config
	Logger  *slog.Logger
	DB      *repository.DB
	Records repository.RecordRepository
	Jobs    repository.ExtractJobRepository
	OTPs    repository.OTPRepository
}

// Open connects to the configured database and migrates it.
func Open(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Records: repository.NewRecordRepository(db, logger),
		Jobs:    repository.NewExtractJobRepository(db, logger),
		OTPs:    repository.NewOTPRepository(db, logger),
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Pipeline builds the extraction pipeline for the configured provider.
func (a *App) Pipeline() (*pipeline.Pipeline, error) {
	invoker, err := provider.New(a.Config.LLM, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	reg, err := contracts.DefaultRegistry()
	if err != nil {
		return nil, err
	}
	adapter := ingest.NewFromConfig(a.Config.Ingest, a.Logger)
	return pipeline.New(a.Logger, reg, adapter, invoker, normalize.New(a.Logger)), nil
}

// Extraction wraps the pipeline with job tracking and record storage.
func (a *App) Extraction() (*extraction.Service, error) {
	p, err := a.Pipeline()
	if err != nil {
		return nil, err
	}
	return extraction.NewService(p, a.Records, a.Jobs, a.Logger), nil
}

func (a *App) OTP() *otp.Service {
	m := mailer.New(mailer.ConfigFrom(a.Config.SMTP), a.Logger)
	return otp.NewService(a.OTPs, m, a.Logger,
		otp.WithTTL(a.Config.OTP.TTL.Duration),
		otp.WithDigits(a.Config.OTP.Digits),
	)
}

func (a *App) Export() *export.Service {
	return export.NewService(a.Records, a.Logger)
}
