package models

import (
	"time"
)

const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

type PublishAttempt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Record      string    `gorm:"size:255;not null;index" json:"record"`
	Account     string    `gorm:"size:100;index" json:"account"`
	Outcome     string    `gorm:"size:20;not null;index" json:"outcome"`
	CreationID  string    `gorm:"size:100" json:"creation_id"`
	Reason      string    `gorm:"type:text" json:"reason"`
	Payload     string    `gorm:"type:jsonb" json:"payload"`
	AttemptedAt time.Time `gorm:"not null;index" json:"attempted_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
