package store

import (
	"errors"
	"fmt"
)

var (
	ErrLocked          = errors.New("record store is locked by another run")
	ErrAlreadyArchived = errors.New("archive copy already exists")
)

// FormatError reports a record file whose content cannot be decoded
type FormatError struct {
	Location string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed record %s: %v", e.Location, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Archive stages
const (
	StageCheck  = "check"
	StageWrite  = "write"
	StageRemove = "remove"
	StageCommit = "commit"
)

// ArchiveError reports a failed archival. Any ArchiveError leaves the store in a
// state that needs an operator: the batch must stop.
type ArchiveError struct {
	Location string
	Stage    string
	Err      error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive of %s failed at %s: %v", e.Location, e.Stage, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
