// Package durable persists record store changes to an external durable log
// (a git remote, an object store) so a completed archival survives the host.
package durable

import (
	"context"
	"fmt"
)

const (
	BackendGit   = "git"
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Change is one logical unit: every path in it is persisted together or the
// commit fails. Paths are relative to the store root.
type Change struct {
	Added   []string
	Removed []string
	Message string
}

func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Log persists changes made to the record store
type Log interface {
	Commit(ctx context.Context, change Change) error
}

// LocalLog keeps changes on the local filesystem only
type LocalLog struct{}

func (LocalLog) Commit(context.Context, Change) error {
	return nil
}

// CommitError wraps a failed durable commit with the backend that produced it
type CommitError struct {
	Backend string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s durable commit failed: %v", e.Backend, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
