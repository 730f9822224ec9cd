package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() {
		called.Store(true)
	})
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func waitFor(ch <-chan struct{}, d time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "tasks.db")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	var changes atomic.Int32
	w, err := New([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(func() { changes.Add(1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte("modified content"), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(w.Changed(), 2*time.Second) {
		t.Fatal("expected change to be detected")
	}
	if changes.Load() == 0 {
		t.Error("expected OnChange callback to run")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "tasks.db")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{tmpFile},
		WithForcePoll(true),
		WithPollInterval(30*time.Millisecond),
		WithDebounceDuration(20*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(tmpFile, []byte("a longer body than before"), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(w.Changed(), 2*time.Second) {
		t.Fatal("expected polling to detect the change")
	}
}

func TestWatcher_ForcePollEnv(t *testing.T) {
	t.Setenv("TUSK_FORCE_POLL", "yes")
	w, err := New([]string{filepath.Join(t.TempDir(), "tasks.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !w.IsPolling() {
		t.Error("TUSK_FORCE_POLL should select polling mode")
	}
}

func TestWatcher_SidecarCreatedLater(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	if err := os.WriteFile(db, []byte("db"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, poll := range []bool{false, true} {
		w, err := New(DatabasePaths(db),
			WithForcePoll(poll),
			WithPollInterval(30*time.Millisecond),
			WithDebounceDuration(20*time.Millisecond),
		)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Start(); err != nil {
			t.Fatal(err)
		}

		time.Sleep(60 * time.Millisecond)
		wal := db + "-wal"
		if err := os.WriteFile(wal, []byte("frame"), 0644); err != nil {
			t.Fatal(err)
		}
		if !waitFor(w.Changed(), 2*time.Second) {
			t.Errorf("poll=%v: expected WAL creation to count as a change", poll)
		}
		w.Stop()
		os.Remove(wal)
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	if err := os.WriteFile(db, []byte("db"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{db}, WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify unavailable")
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if waitFor(w.Changed(), 200*time.Millisecond) {
		t.Error("unrelated file should not trigger a change")
	}
}

func TestWatcher_StartTwice(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "tasks.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	w.Stop()
	if w.IsStarted() {
		t.Error("expected watcher to be stopped")
	}
	w.Stop()
}

func TestNew_Paths(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoPaths) {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}

	db := filepath.Join(t.TempDir(), "tasks.db")
	w, err := New([]string{db, db, db + "-wal"})
	if err != nil {
		t.Fatal(err)
	}
	if got := w.Paths(); len(got) != 2 {
		t.Errorf("expected duplicates removed, got %v", got)
	}
}
