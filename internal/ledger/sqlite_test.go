package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupSQLite creates a temporary SQLite ledger for testing.
func setupSQLite(t *testing.T, opts Options) *SQLite {
	t.Helper()

	led, err := OpenSQLite(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })
	return led
}

// TestOpenSQLite tests database opening and creation.
func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		led, err := OpenSQLite(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open ledger: %v", err)
		}
		defer led.Close()

		if _, err := os.Stat(filepath.Join(dbDir, sqliteFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false requires existing database", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false

		dbDir := filepath.Join(t.TempDir(), "missing")
		_, err := OpenSQLite(dbDir, opts)
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("directory should not have been created")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		led, err := OpenSQLite(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create ledger: %v", err)
		}
		if err := led.Record(context.Background(), "http://example.org/", testStart, nil); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := led.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		reopened, err := OpenSQLite(dbDir, opts)
		if err != nil {
			t.Fatalf("failed to reopen ledger: %v", err)
		}
		defer reopened.Close()

		count, err := reopened.Count(context.Background())
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Count = %d after reopen, want 1", count)
		}
	})
}

// TestSQLiteAdmission tests the admission rule against the SQLite backend.
func TestSQLiteAdmission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown identity is admissible", func(t *testing.T) {
		t.Parallel()

		led := setupSQLite(t, DefaultOptions())
		ok, err := led.IsAdmissible(ctx, "http://example.org/")
		if err != nil {
			t.Fatalf("IsAdmissible failed: %v", err)
		}
		if !ok {
			t.Error("never-recorded identity must be admissible")
		}
	})

	t.Run("recrawl disabled excludes permanently", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(testStart)
		opts := DefaultOptions()
		opts.Clock = clock.Now

		led := setupSQLite(t, opts)
		if err := led.Record(ctx, "http://example.org/a", testStart, nil); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		clock.Advance(1000 * time.Hour)
		if ok, _ := led.IsAdmissible(ctx, "http://example.org/a"); ok {
			t.Error("identity recorded without recrawl TTL must stay inadmissible")
		}
	})

	t.Run("recrawl window gates readmission", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(testStart)
		opts := DefaultOptions()
		opts.RecrawlTTL = time.Hour
		opts.Clock = clock.Now

		led := setupSQLite(t, opts)
		if err := led.Record(ctx, "http://example.org/a", testStart, nil); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		clock.Advance(59 * time.Minute)
		if ok, _ := led.IsAdmissible(ctx, "http://example.org/a"); ok {
			t.Error("identity must be inadmissible before the window elapses")
		}

		clock.Advance(time.Minute)
		if ok, _ := led.IsAdmissible(ctx, "http://example.org/a"); !ok {
			t.Error("identity must be admissible once the window elapses")
		}
	})

	t.Run("out-of-order write cannot rewind the window", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(testStart)
		opts := DefaultOptions()
		opts.RecrawlTTL = time.Hour
		opts.Clock = clock.Now

		led := setupSQLite(t, opts)
		uri := "http://example.org/a"

		if err := led.Record(ctx, uri, testStart.Add(30*time.Minute), nil); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := led.Record(ctx, uri, testStart, nil); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		clock.Advance(75 * time.Minute)
		if ok, _ := led.IsAdmissible(ctx, uri); ok {
			t.Error("stale write rewound the recrawl window")
		}
		clock.Advance(15 * time.Minute)
		if ok, _ := led.IsAdmissible(ctx, uri); !ok {
			t.Error("identity must be admissible after the window from the later write")
		}
	})
}

// TestSQLiteDueForRecrawl tests the indexed due walk.
func TestSQLiteDueForRecrawl(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	opts := DefaultOptions()
	opts.RecrawlTTL = 30 * time.Minute

	led := setupSQLite(t, opts)
	if err := led.Record(ctx, "http://a.example/", testStart, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := led.Record(ctx, "http://b.example/", testStart.Add(10*time.Minute), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := led.Record(ctx, "http://c.example/", testStart.Add(12*time.Hour), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var got []string
	err := led.DueForRecrawl(ctx, testStart.Add(45*time.Minute), func(uri string) bool {
		got = append(got, uri)
		return true
	})
	if err != nil {
		t.Fatalf("DueForRecrawl failed: %v", err)
	}

	want := []string{"http://a.example/", "http://b.example/"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("due walk = %v, want %v", got, want)
	}

	var stopped []string
	err = led.DueForRecrawl(ctx, testStart.Add(45*time.Minute), func(uri string) bool {
		stopped = append(stopped, uri)
		return false
	})
	if err != nil {
		t.Fatalf("DueForRecrawl failed: %v", err)
	}
	if len(stopped) != 1 {
		t.Errorf("stopped walk visited %d entries, want 1", len(stopped))
	}
}

// TestSQLiteLineage tests lineage edge storage.
func TestSQLiteLineage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stores and merges edges", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.Lineage = true
		led := setupSQLite(t, opts)

		parent := "http://example.org/parent"
		if err := led.Record(ctx, parent, testStart, []Child{
			{URI: "http://example.org/c1", DiscoveredAt: testStart},
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if err := led.Record(ctx, parent, testStart.Add(time.Hour), []Child{
			{URI: "http://example.org/c1", DiscoveredAt: testStart.Add(time.Hour)},
			{URI: "http://example.org/c2", DiscoveredAt: testStart.Add(time.Hour)},
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		children, err := led.Children(ctx, parent)
		if err != nil {
			t.Fatalf("Children failed: %v", err)
		}
		if len(children) != 2 {
			t.Fatalf("got %d children, want 2", len(children))
		}
		if children[0].URI != "http://example.org/c1" {
			t.Errorf("first child = %s", children[0].URI)
		}
		if !children[0].DiscoveredAt.Equal(testStart) {
			t.Error("duplicate edge must keep its first discovery time")
		}

		// The parent row itself is still a single identity.
		count, err := led.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Count = %d, want 1", count)
		}
	})

	t.Run("lineage off ignores children", func(t *testing.T) {
		t.Parallel()

		led := setupSQLite(t, DefaultOptions())
		parent := "http://example.org/parent"
		if err := led.Record(ctx, parent, testStart, []Child{
			{URI: "http://example.org/c1", DiscoveredAt: testStart},
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		children, err := led.Children(ctx, parent)
		if err != nil {
			t.Fatalf("Children failed: %v", err)
		}
		if len(children) != 0 {
			t.Errorf("lineage-disabled backend stored %d edges", len(children))
		}
	})
}
