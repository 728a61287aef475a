package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/combatlog/internal/event"
	"github.com/roach88/combatlog/internal/testutil"
)

// createTestStore creates a new store in a temp dir with deterministic
// fight ids ("fight-1", "fight-2", ...) and timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewSequentialIDs("fight")),
		WithClock(testutil.DefaultClock().Now),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvents returns a short retribution opener: two casts, a holy
// power gain, a spender and a buff application.
func createTestEvents() []event.Event {
	return testutil.NewLogBuilder().
		Cast(0, 20271).
		Gain(0, 20271, 9, 1).
		Cast(1500, 35395).
		Buff(1500, event.KindApplyBuff, 84963).
		Spend(3000, 85256, 9, 3).
		Events()
}
