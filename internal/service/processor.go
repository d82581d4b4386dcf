package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/config"
	"github.com/ifuryst/postpone/internal/models"
	"github.com/ifuryst/postpone/internal/service/publisher"
	"github.com/ifuryst/postpone/internal/store"
	"github.com/ifuryst/postpone/internal/telemetry"
)

// RecordStore is the part of the record store the processor drives
type RecordStore interface {
	Lock() (func(), error)
	ListPending() ([]store.Entry, error)
	WriteRecord(location string, record *models.ScheduleRecord) error
	IsArchived(location string) bool
	Archive(ctx context.Context, location string, record *models.ScheduleRecord) error
	CommitPending(ctx context.Context, locations []string, message string) error
}

type CaptionGenerator interface {
	Generate(ctx context.Context, brief, tone string) (string, error)
}

type AccountResolver interface {
	Resolve(slug string) (config.Account, error)
}

type ProcessorOptions struct {
	Location       *time.Location
	CommitFailures bool
}

// RunSummary counts what one processor run did
type RunSummary struct {
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Seen             int           `json:"seen"`
	Processed        int           `json:"processed"`
	Failed           int           `json:"failed"`
	Skipped          int           `json:"skipped"`
	AnnotationErrors int           `json:"annotation_errors"`
}

// Processor walks the pending records once per Run, submitting each eligible
// one and archiving it on success.
type Processor struct {
	store     RecordStore
	publisher publisher.Publisher
	generator CaptionGenerator
	accounts  AccountResolver
	journal   Journal
	logger    *zap.Logger
	opts      ProcessorOptions
	now       func() time.Time
	mu        sync.Mutex
}

func NewProcessor(
	recordStore RecordStore,
	pub publisher.Publisher,
	generator CaptionGenerator,
	accounts AccountResolver,
	journal Journal,
	opts ProcessorOptions,
	logger *zap.Logger,
) *Processor {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if journal == nil {
		journal = NopJournal{}
	}

	return &Processor{
		store:     recordStore,
		publisher: pub,
		generator: generator,
		accounts:  accounts,
		journal:   journal,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Run processes every pending record once. It returns an error only when the
// run could not start or an archival failed; per-record problems are logged
// and counted in the summary.
func (p *Processor) Run(ctx context.Context) (*RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := &RunSummary{StartedAt: p.now()}
	defer func() {
		summary.Duration = p.now().Sub(summary.StartedAt)
		telemetry.RunDuration.Observe(summary.Duration.Seconds())
	}()
	telemetry.Runs.Inc()

	unlock, err := p.store.Lock()
	if err != nil {
		return summary, err
	}
	defer unlock()

	entries, err := p.store.ListPending()
	if err != nil {
		return summary, err
	}
	summary.Seen = len(entries)
	telemetry.PendingGauge.Set(float64(len(entries)))

	p.logger.Info("Processing pending records", zap.Int("count", len(entries)))

	var annotated []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Run cancelled", zap.Error(err))
			break
		}

		outcome, err := p.processEntry(ctx, entry)
		if err != nil {
			var archiveErr *store.ArchiveError
			if errors.As(err, &archiveErr) {
				telemetry.RunsAborted.Inc()
				p.logger.Error("Archival failed, stopping run",
					zap.String("record", entry.Location),
					zap.String("stage", archiveErr.Stage),
					zap.Error(err))
				p.commitAnnotations(ctx, annotated)
				return summary, err
			}
			summary.AnnotationErrors++
			telemetry.AnnotationErrors.Inc()
			p.logger.Error("Failed to annotate record",
				zap.String("record", entry.Location),
				zap.Error(err))
		}

		switch outcome {
		case models.OutcomeProcessed:
			summary.Processed++
		case models.OutcomeFailed:
			summary.Failed++
			if err == nil {
				annotated = append(annotated, entry.Location)
			}
		default:
			summary.Skipped++
		}
		telemetry.RecordOutcomes.WithLabelValues(outcome).Inc()
	}

	p.commitAnnotations(ctx, annotated)

	p.logger.Info("Run completed",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

func (p *Processor) processEntry(ctx context.Context, entry store.Entry) (string, error) {
	logger := p.logger.With(
		zap.String("record", entry.Location),
		zap.String("platform", p.publisher.GetPlatformName()))

	if entry.Err != nil {
		logger.Warn("Skipping unreadable record", zap.Error(entry.Err))
		p.recordAttempt(ctx, entry.Location, models.OutcomeSkipped, WithReason(entry.Err.Error()))
		return models.OutcomeSkipped, nil
	}

	record := entry.Record
	logger = logger.With(zap.String("account", record.Account))

	if !record.IsPending() {
		logger.Debug("Skipping record that is not pending", zap.String("status", record.Status))
		return models.OutcomeSkipped, nil
	}

	skip := func(reason string, err error) (string, error) {
		logger.Warn(reason, zap.Error(err), zap.String("outcome", models.OutcomeSkipped))
		p.recordAttempt(ctx, entry.Location, models.OutcomeSkipped,
			WithAccount(record.Account), WithReason(fmt.Sprintf("%s: %v", reason, err)))
		return models.OutcomeSkipped, nil
	}

	if err := record.Validate(); err != nil {
		return skip("Skipping invalid record", err)
	}

	scheduledAt, err := models.ParseScheduledTime(record.ScheduledTime, p.opts.Location)
	if err != nil {
		return skip("Skipping record with unparsable scheduled_time", err)
	}

	if record.NeedsCaption() && p.generator != nil {
		caption, err := p.generator.Generate(ctx, record.Brief, record.Tone)
		if err != nil {
			telemetry.CaptionFailures.Inc()
			logger.Warn("Caption generation failed, continuing without caption", zap.Error(err))
		}
		record.Caption = caption
	}

	account, err := p.accounts.Resolve(record.Account)
	if err != nil {
		return skip("Skipping record with unresolvable account", err)
	}

	if p.store.IsArchived(entry.Location) {
		logger.Error("Archive copy already exists, pending copy is stale; not submitting",
			zap.String("outcome", models.OutcomeSkipped))
		p.recordAttempt(ctx, entry.Location, models.OutcomeSkipped,
			WithAccount(record.Account), WithReason("archive copy already exists"))
		return models.OutcomeSkipped, nil
	}

	result, err := p.publisher.CreateScheduledPost(ctx, publisher.PostRequest{
		IdentityID:     account.IGUserID,
		AccessToken:    account.AccessToken,
		MediaReference: record.MediaReference,
		MediaKind:      record.MediaKind,
		Caption:        record.Caption,
		ScheduledAt:    scheduledAt,
	})
	if err != nil {
		return skip("Skipping record that could not be submitted", err)
	}

	if !result.Success {
		logger.Warn("Publishing API rejected record",
			zap.Int("status_code", result.StatusCode),
			zap.ByteString("payload", result.Payload),
			zap.String("outcome", models.OutcomeFailed))
		p.recordAttempt(ctx, entry.Location, models.OutcomeFailed,
			WithAccount(record.Account), WithPayload(result.Payload))

		record.MarkFailed(result.Payload)
		if err := p.store.WriteRecord(entry.Location, record); err != nil {
			return models.OutcomeFailed, fmt.Errorf("failed to write failure annotation: %w", err)
		}
		return models.OutcomeFailed, nil
	}

	record.MarkProcessed(result.CreationID, p.now())
	if err := p.store.Archive(ctx, entry.Location, record); err != nil {
		return models.OutcomeProcessed, err
	}

	logger.Info("Record scheduled",
		zap.String("creation_id", result.CreationID),
		zap.String("outcome", models.OutcomeProcessed))
	p.recordAttempt(ctx, entry.Location, models.OutcomeProcessed,
		WithAccount(record.Account), WithCreationID(result.CreationID), WithPayload(result.Payload))
	return models.OutcomeProcessed, nil
}

func (p *Processor) recordAttempt(ctx context.Context, location, outcome string, options ...AttemptOption) {
	if err := p.journal.Record(ctx, location, outcome, options...); err != nil {
		p.logger.Warn("Failed to journal attempt",
			zap.String("record", location),
			zap.Error(err))
	}
}

func (p *Processor) commitAnnotations(ctx context.Context, locations []string) {
	if !p.opts.CommitFailures || len(locations) == 0 {
		return
	}
	message := fmt.Sprintf("Record %d failed schedule attempt(s)", len(locations))
	if err := p.store.CommitPending(ctx, locations, message); err != nil {
		p.logger.Warn("Failed to commit failure annotations",
			zap.Int("count", len(locations)),
			zap.Error(err))
	}
}
