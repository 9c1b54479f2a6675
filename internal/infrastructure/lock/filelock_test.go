package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestManager(t *testing.T, poll, maxWait time.Duration) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), poll, maxWait, zap.NewNop())
}

func TestAcquireAndRelease(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond, time.Second)

	lock, err := m.Acquire(context.Background(), "scanner")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := os.Stat(lock.path); err != nil {
		t.Fatalf("lock directory missing: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(lock.path); !os.IsNotExist(err) {
		t.Errorf("lock directory still present after release")
	}

	// Idempotent.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	// Reacquirable.
	lock2, err := m.Acquire(context.Background(), "scanner")
	if err != nil {
		t.Fatalf("reacquire error = %v", err)
	}
	defer lock2.Release()
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond, 100*time.Millisecond)

	lock, err := m.Acquire(context.Background(), "scanner")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	_, err = m.Acquire(context.Background(), "scanner")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("second Acquire() error = %v, want ErrTimeout", err)
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	m := newTestManager(t, 5*time.Millisecond, 2*time.Second)

	first, err := m.Acquire(context.Background(), "monitor")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var holders int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lock, err := m.Acquire(context.Background(), "monitor")
		if err != nil {
			t.Errorf("waiting Acquire() error = %v", err)
			return
		}
		if atomic.AddInt32(&holders, 1) != 1 {
			t.Error("two holders at once")
		}
		atomic.AddInt32(&holders, -1)
		lock.Release()
	}()

	atomic.AddInt32(&holders, 1)
	time.Sleep(50 * time.Millisecond)
	atomic.AddInt32(&holders, -1)
	first.Release()
	wg.Wait()
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond, time.Second)

	// A leftover lock from a dead process: pids above the kernel maximum can
	// never be alive.
	stale := filepath.Join(m.dir, "scanner.lock")
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stale, "owner"), []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := m.Acquire(context.Background(), "scanner")
	if err != nil {
		t.Fatalf("Acquire() error = %v, want stale lock reclaimed", err)
	}
	defer lock.Release()

	owner, ok := readOwner(stale)
	if !ok || owner != os.Getpid() {
		t.Errorf("owner = %d, want current pid %d", owner, os.Getpid())
	}
}

func TestAcquireKeepsLiveOwnersLock(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond, 100*time.Millisecond)

	// Held by a live process (ourselves): never reclaimed, so the second
	// acquisition times out.
	held := filepath.Join(m.dir, "scanner.lock")
	if err := os.Mkdir(held, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(held, "owner"), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := m.Acquire(context.Background(), "scanner")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrTimeout", err)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond, 10*time.Second)

	lock, err := m.Acquire(context.Background(), "scanner")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "scanner")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want context deadline", err)
	}
}

func TestAcquireMissingOwnerNotReclaimed(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond, 100*time.Millisecond)

	// Directory exists but the owner file is not written yet: the holder may
	// be mid-acquisition, so the lock must not be stolen.
	if err := os.Mkdir(filepath.Join(m.dir, "scanner.lock"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := m.Acquire(context.Background(), "scanner")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrTimeout", err)
	}
}
