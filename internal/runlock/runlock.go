// Package runlock enforces single-run execution against a destination
// instance. Imports write to the destination's databases, and two runs
// interleaving their transactions is never acceptable.
package runlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld indicates another run already holds the destination lock.
var ErrHeld = errors.New("another migration run is already in progress")

// Lock is an exclusive file lock guarding one destination instance.
type Lock struct {
	path string
	lock *flock.Flock
}

// New creates a lock stored alongside the destination library database,
// so concurrent runs against the same instance contend on the same file
// regardless of where they were launched from.
func New(libraryDBPath string) *Lock {
	path := filepath.Join(filepath.Dir(libraryDBPath), ".jellybridge.lock")
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. A held lock returns ErrHeld.
func (l *Lock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock file %s)", ErrHeld, l.path)
	}
	return nil
}

// Release drops the lock. Safe to call if Acquire failed.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}
