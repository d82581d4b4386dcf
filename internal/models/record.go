package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
)

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

var (
	ErrMissingField         = errors.New("missing required field")
	ErrInvalidScheduledTime = errors.New("invalid scheduled_time")
)

// ScheduleRecord is a single post waiting to be published, stored as one JSON file.
// Keys the processor does not know about are carried through untouched.
type ScheduleRecord struct {
	Account        string
	MediaReference string
	MediaKind      string
	Caption        string
	Brief          string
	Tone           string
	ScheduledTime  string
	Status         string
	CreationID     string
	ProcessedAt    *time.Time
	LastError      json.RawMessage

	Extra map[string]json.RawMessage
}

var stringFields = []string{
	"account", "media_reference", "media_kind", "caption", "brief", "tone",
	"scheduled_time", "status", "creation_id",
}

func (r *ScheduleRecord) stringField(key string) *string {
	switch key {
	case "account":
		return &r.Account
	case "media_reference":
		return &r.MediaReference
	case "media_kind":
		return &r.MediaKind
	case "caption":
		return &r.Caption
	case "brief":
		return &r.Brief
	case "tone":
		return &r.Tone
	case "scheduled_time":
		return &r.ScheduledTime
	case "status":
		return &r.Status
	case "creation_id":
		return &r.CreationID
	}
	return nil
}

func (r *ScheduleRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("schedule record must be a JSON object")
	}

	*r = ScheduleRecord{}

	// Older records name the media URL media_url.
	if legacy, ok := raw["media_url"]; ok {
		if _, current := raw["media_reference"]; !current {
			raw["media_reference"] = legacy
		}
		delete(raw, "media_url")
	}

	for _, key := range stringFields {
		value, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if isNull(value) {
			continue
		}
		if err := json.Unmarshal(value, r.stringField(key)); err != nil {
			return fmt.Errorf("field %s: expected a string", key)
		}
	}

	if value, ok := raw["processed_at"]; ok {
		delete(raw, "processed_at")
		if !isNull(value) {
			var at time.Time
			if err := json.Unmarshal(value, &at); err != nil {
				return fmt.Errorf("field processed_at: %w", err)
			}
			r.ProcessedAt = &at
		}
	}

	if value, ok := raw["last_error"]; ok {
		delete(raw, "last_error")
		if !isNull(value) {
			r.LastError = value
		}
	}

	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

func (r ScheduleRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+len(stringFields)+2)
	for k, v := range r.Extra {
		out[k] = v
	}

	for _, key := range stringFields {
		if value := *r.stringField(key); value != "" {
			out[key] = value
		}
	}
	if r.ProcessedAt != nil {
		out["processed_at"] = r.ProcessedAt.Format(time.RFC3339Nano)
	}
	if len(r.LastError) > 0 {
		out["last_error"] = r.LastError
	}

	return json.Marshal(out)
}

// IsPending reports whether the record is still eligible for submission
func (r *ScheduleRecord) IsPending() bool {
	return r.Status == StatusPending
}

// HasError reports whether a previous attempt failed
func (r *ScheduleRecord) HasError() bool {
	return len(r.LastError) > 0
}

// Validate checks the fields a submission cannot do without
func (r *ScheduleRecord) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Account) == "" {
		missing = append(missing, "account")
	}
	if strings.TrimSpace(r.MediaReference) == "" {
		missing = append(missing, "media_reference")
	}
	if strings.TrimSpace(r.ScheduledTime) == "" {
		missing = append(missing, "scheduled_time")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// NeedsCaption reports whether the caption should be generated from the brief
func (r *ScheduleRecord) NeedsCaption() bool {
	return strings.TrimSpace(r.Caption) == "" && strings.TrimSpace(r.Brief) != ""
}

// MarkProcessed records a successful submission
func (r *ScheduleRecord) MarkProcessed(creationID string, at time.Time) {
	r.Status = StatusProcessed
	r.CreationID = creationID
	at = at.UTC()
	r.ProcessedAt = &at
}

// MarkFailed stores the failure payload; the record stays pending
func (r *ScheduleRecord) MarkFailed(payload json.RawMessage) {
	r.LastError = payload
}

func isNull(value json.RawMessage) bool {
	return strings.TrimSpace(string(value)) == "null"
}
