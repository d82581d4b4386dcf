package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/durable"
	"github.com/ifuryst/postpone/internal/models"
)

type Config struct {
	Root         string `yaml:"root"`
	PendingDir   string `yaml:"pending_dir"`
	ProcessedDir string `yaml:"processed_dir"`
}

// Entry is one pending record file. Err is set, and Record nil, when the
// file could not be read or decoded.
type Entry struct {
	Location string
	Record   *models.ScheduleRecord
	Err      error
}

// Store keeps schedule records as JSON files: pending ones in the pending
// area, processed ones in the archive area under the same file name.
type Store struct {
	root         string
	pendingDir   string
	processedDir string
	log          durable.Log
	logger       *zap.Logger
	now          func() time.Time
}

func New(cfg Config, log durable.Log, logger *zap.Logger) *Store {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.PendingDir == "" {
		cfg.PendingDir = "schedules"
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.PendingDir, "processed")
	}
	if log == nil {
		log = durable.LocalLog{}
	}

	return &Store{
		root:         cfg.Root,
		pendingDir:   cfg.PendingDir,
		processedDir: cfg.ProcessedDir,
		log:          log,
		logger:       logger,
		now:          time.Now,
	}
}

// EnsureDirs creates both areas and a .gitignore that keeps the run lock out
// of the durable log.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.pendingDir, s.processedDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	ignore := filepath.Join(s.root, s.pendingDir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte(lockFile+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", ignore, err)
		}
	}
	return nil
}

// ListPending returns every record file in the pending area, sorted by file name.
func (s *Store) ListPending() ([]Entry, error) {
	dirEntries, err := os.ReadDir(filepath.Join(s.root, s.pendingDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending records: %w", err)
	}

	// os.ReadDir already sorts by file name
	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}

		record, err := s.ReadRecord(name)
		entries = append(entries, Entry{Location: name, Record: record, Err: err})
	}

	return entries, nil
}

// ReadRecord loads a pending record. Undecodable content is a *FormatError.
func (s *Store) ReadRecord(location string) (*models.ScheduleRecord, error) {
	path, err := s.pendingPath(location)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", location, err)
	}

	var record models.ScheduleRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &FormatError{Location: location, Err: err}
	}
	return &record, nil
}

// WriteRecord overwrites a pending record in place
func (s *Store) WriteRecord(location string, record *models.ScheduleRecord) error {
	path, err := s.pendingPath(location)
	if err != nil {
		return err
	}
	return writeJSON(path, record)
}

// Create writes a new pending record under a fresh, time-ordered file name
func (s *Store) Create(record *models.ScheduleRecord) (string, error) {
	if record.Status == "" {
		record.Status = models.StatusPending
	}

	location := fmt.Sprintf("%s-%s.json", s.now().UTC().Format("20060102T150405"), uuid.NewString())
	path, err := s.pendingPath(location)
	if err != nil {
		return "", err
	}
	if err := writeJSON(path, record); err != nil {
		return "", err
	}

	s.logger.Info("Schedule record created",
		zap.String("record", location),
		zap.String("account", record.Account))
	return location, nil
}

// IsArchived reports whether an archive copy with the same name exists
func (s *Store) IsArchived(location string) bool {
	_, err := os.Stat(filepath.Join(s.root, s.processedDir, filepath.Base(location)))
	return err == nil
}

// Archive moves a processed record into the archive area and commits the move
// to the durable log. The pending copy is removed only after the archive copy
// is on disk; the change is complete only once the durable log accepted it.
func (s *Store) Archive(ctx context.Context, location string, record *models.ScheduleRecord) error {
	pending, err := s.pendingPath(location)
	if err != nil {
		return &ArchiveError{Location: location, Stage: StageCheck, Err: err}
	}
	if s.IsArchived(location) {
		return &ArchiveError{Location: location, Stage: StageCheck, Err: ErrAlreadyArchived}
	}

	archived := filepath.Join(s.root, s.processedDir, location)
	if err := os.MkdirAll(filepath.Dir(archived), 0755); err != nil {
		return &ArchiveError{Location: location, Stage: StageWrite, Err: err}
	}
	if err := writeJSON(archived, record); err != nil {
		return &ArchiveError{Location: location, Stage: StageWrite, Err: err}
	}

	if err := os.Remove(pending); err != nil {
		return &ArchiveError{Location: location, Stage: StageRemove, Err: err}
	}

	change := durable.Change{
		Added:   []string{filepath.Join(s.processedDir, location)},
		Removed: []string{filepath.Join(s.pendingDir, location)},
		Message: fmt.Sprintf("Processed schedule %s (creation %s)", location, record.CreationID),
	}
	if err := s.log.Commit(ctx, change); err != nil {
		return &ArchiveError{Location: location, Stage: StageCommit, Err: err}
	}

	s.logger.Info("Schedule record archived",
		zap.String("record", location),
		zap.String("creation_id", record.CreationID))
	return nil
}

// CommitPending persists in-place annotations of pending records
func (s *Store) CommitPending(ctx context.Context, locations []string, message string) error {
	if len(locations) == 0 {
		return nil
	}

	change := durable.Change{Message: message}
	for _, location := range locations {
		change.Added = append(change.Added, filepath.Join(s.pendingDir, location))
	}
	return s.log.Commit(ctx, change)
}

func (s *Store) pendingPath(location string) (string, error) {
	if location == "" || filepath.Base(location) != location || strings.HasPrefix(location, ".") {
		return "", fmt.Errorf("invalid record location %q", location)
	}
	return filepath.Join(s.root, s.pendingDir, location), nil
}

// writeJSON replaces path atomically via a temp file in the same directory
func writeJSON(path string, record *models.ScheduleRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close record: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}
