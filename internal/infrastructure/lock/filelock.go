package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout is returned when the lock could not be acquired within MaxWait.
// Jobs treat it as fatal for the run.
var ErrTimeout = errors.New("lock acquisition timed out")

// Manager hands out named mutual-exclusion locks backed by atomically
// created directories. One physical host runs all jobs, so process liveness
// is enough for staleness detection.
type Manager struct {
	dir          string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger
}

// Lock is a held named lock. Release is idempotent and safe to defer.
type Lock struct {
	path     string
	released bool
}

func NewManager(dir string, pollInterval, maxWait time.Duration, logger *zap.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &Manager{dir: dir, pollInterval: pollInterval, maxWait: maxWait, logger: logger}
}

// Acquire blocks until the named lock is obtained, polling every
// pollInterval, and fails with ErrTimeout after maxWait. A lock whose
// recorded owner process is no longer alive is reclaimed.
func (m *Manager) Acquire(ctx context.Context, name string) (*Lock, error) {
	path := filepath.Join(m.dir, name+".lock")
	deadline := time.Now().Add(m.maxWait)

	for {
		lock, err := m.tryAcquire(path)
		if err != nil {
			return nil, err
		}
		if lock != nil {
			return lock, nil
		}

		if owner, ok := readOwner(path); ok && !processAlive(owner) {
			m.logger.Warn("Reclaiming stale lock",
				zap.String("path", path), zap.Int("owner_pid", owner))
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("failed to reclaim stale lock %s: %w", path, err)
			}
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held by another process after %s", ErrTimeout, name, m.maxWait)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

// tryAcquire attempts a single atomic creation. Returns (nil, nil) when the
// lock is already held.
func (m *Manager) tryAcquire(path string) (*Lock, error) {
	err := os.Mkdir(path, 0o755)
	if err != nil {
		if os.IsExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create lock %s: %w", path, err)
	}

	ownerFile := filepath.Join(path, "owner")
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(ownerFile, []byte(pid), 0o644); err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("failed to record lock owner: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	return os.RemoveAll(l.path)
}

func readOwner(path string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(path, "owner"))
	if err != nil {
		// Owner not recorded yet: the holder may be mid-acquisition, so do
		// not reclaim.
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
