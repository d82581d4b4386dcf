package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/postpone/internal/models"
)

// Journal keeps an audit trail of publish attempts
type Journal interface {
	Record(ctx context.Context, record, outcome string, options ...AttemptOption) error
}

// NopJournal drops every attempt; used when no database is configured
type NopJournal struct{}

func (NopJournal) Record(context.Context, string, string, ...AttemptOption) error {
	return nil
}

type DBJournal struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewDBJournal(db *gorm.DB, logger *zap.Logger) *DBJournal {
	return &DBJournal{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Record 记录一次发布尝试
func (j *DBJournal) Record(ctx context.Context, record, outcome string, options ...AttemptOption) error {
	attempt := NewAttempt(record, outcome, j.now(), options...)
	return j.db.WithContext(ctx).Create(attempt).Error
}

// RecentAttempts returns the latest attempts, newest first
func (j *DBJournal) RecentAttempts(ctx context.Context, limit int) ([]models.PublishAttempt, error) {
	var attempts []models.PublishAttempt
	err := j.db.WithContext(ctx).
		Order("attempted_at desc").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// NewAttempt builds the row for one attempt; Payload always holds valid JSON
func NewAttempt(record, outcome string, at time.Time, options ...AttemptOption) *models.PublishAttempt {
	attempt := &models.PublishAttempt{
		Record:      record,
		Outcome:     outcome,
		Payload:     "{}",
		AttemptedAt: at.UTC(),
	}

	// 应用选项
	for _, option := range options {
		option(attempt)
	}
	return attempt
}

// AttemptOption 发布尝试选项
type AttemptOption func(*models.PublishAttempt)

func WithAccount(account string) AttemptOption {
	return func(a *models.PublishAttempt) {
		a.Account = account
	}
}

func WithCreationID(creationID string) AttemptOption {
	return func(a *models.PublishAttempt) {
		a.CreationID = creationID
	}
}

func WithReason(reason string) AttemptOption {
	return func(a *models.PublishAttempt) {
		a.Reason = reason
	}
}

// WithPayload 设置接口返回内容，非法 JSON 会被忽略
func WithPayload(payload json.RawMessage) AttemptOption {
	return func(a *models.PublishAttempt) {
		if len(payload) > 0 && json.Valid(payload) {
			a.Payload = string(payload)
		}
	}
}
