package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

const lockFile = ".lock"

// Lock claims the pending area for one processor run. A crashed run leaves
// the lock file behind; it has to be removed by hand.
func (s *Store) Lock() (func(), error) {
	path := filepath.Join(s.root, s.pendingDir, lockFile)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	f.Close()

	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to release store lock", zap.String("path", path), zap.Error(err))
		}
	}, nil
}
