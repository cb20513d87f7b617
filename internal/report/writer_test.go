package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CatherineChiramel/Squirrel/internal/ledger"
)

// testStats returns a fixed summary for writer tests.
func testStats() *Stats {
	return &Stats{
		Backend:     "memory",
		Known:       42,
		Due:         5,
		Recrawl:     true,
		RecrawlTTL:  24 * time.Hour,
		GeneratedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failCountLedger fails the Count call.
type failCountLedger struct {
	ledger.Ledger
	err error
}

func (f *failCountLedger) Count(context.Context) (int64, error) { return 0, f.err }

// failDueLedger fails the due-for-recrawl walk.
type failDueLedger struct {
	ledger.Ledger
	err error
}

func (f *failDueLedger) DueForRecrawl(context.Context, time.Time, func(string) bool) error {
	return f.err
}

// TestCollect tests stats collection against the memory ledger.
func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("counts known and due resources", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		led := ledger.NewMemory(ledger.Options{RecrawlTTL: time.Hour, Clock: clock.Now})
		t.Cleanup(func() { _ = led.Close() })

		ctx := context.Background()
		if err := led.Record(ctx, "http://a.example/", clock.Now(), nil); err != nil {
			t.Fatalf("Record(a) = %v, want nil", err)
		}
		if err := led.Record(ctx, "http://b.example/", clock.Now(), nil); err != nil {
			t.Fatalf("Record(b) = %v, want nil", err)
		}
		clock.Advance(90 * time.Minute)
		if err := led.Record(ctx, "http://c.example/", clock.Now(), nil); err != nil {
			t.Fatalf("Record(c) = %v, want nil", err)
		}
		clock.Advance(30 * time.Minute)

		stats, err := Collect(ctx, led, CollectOptions{
			Backend:    "memory",
			Recrawl:    true,
			RecrawlTTL: time.Hour,
			Clock:      clock.Now,
		})
		if err != nil {
			t.Fatalf("Collect() = %v, want nil", err)
		}

		if stats.Backend != "memory" {
			t.Errorf("Backend = %q, want memory", stats.Backend)
		}
		if stats.Known != 3 {
			t.Errorf("Known = %d, want 3", stats.Known)
		}
		// a and b were crawled two hours ago, c only thirty minutes ago
		if stats.Due != 2 {
			t.Errorf("Due = %d, want 2", stats.Due)
		}
		if !stats.GeneratedAt.Equal(clock.Now()) {
			t.Errorf("GeneratedAt = %v, want %v", stats.GeneratedAt, clock.Now())
		}
	})

	t.Run("count failure surfaces", func(t *testing.T) {
		t.Parallel()

		storeErr := errors.New("store unavailable")
		_, err := Collect(context.Background(), &failCountLedger{err: storeErr}, CollectOptions{})
		if !errors.Is(err, storeErr) {
			t.Errorf("Collect() error = %v, want wrapped %v", err, storeErr)
		}
	})

	t.Run("due walk failure surfaces", func(t *testing.T) {
		t.Parallel()

		storeErr := errors.New("store unavailable")
		led := &failDueLedger{Ledger: ledger.NewMemory(ledger.DefaultOptions()), err: storeErr}
		_, err := Collect(context.Background(), led, CollectOptions{})
		if !errors.Is(err, storeErr) {
			t.Errorf("Collect() error = %v, want wrapped %v", err, storeErr)
		}
	})
}

// TestSimpleWriter tests the human-readable stats writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes banner and fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(testStats()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "SQUIRREL FRONTIER STATS") {
			t.Error("expected output to contain banner")
		}
		if !strings.Contains(output, "memory") {
			t.Error("expected output to contain backend name")
		}
		if !strings.Contains(output, "Known Resources: 42") {
			t.Error("expected output to contain known count")
		}
		if !strings.Contains(output, "Due For Recrawl: 5") {
			t.Error("expected output to contain due count")
		}
		if !strings.Contains(output, "every 24h0m0s") {
			t.Error("expected output to contain recrawl policy")
		}
	})

	t.Run("disabled recrawl renders never", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		stats := testStats()
		stats.Recrawl = false

		if _, err := w.Write(stats); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Recrawl Policy:  never") {
			t.Error("expected output to render disabled recrawl as never")
		}
	})
}

// TestJSONWriter tests the JSON stats writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(testStats()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed Stats
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if parsed.Backend != "memory" {
			t.Errorf("expected backend memory, got %q", parsed.Backend)
		}
		if parsed.Known != 42 {
			t.Errorf("expected known 42, got %d", parsed.Known)
		}
		if parsed.RecrawlTTL != 24*time.Hour {
			t.Errorf("expected recrawl TTL 24h, got %v", parsed.RecrawlTTL)
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(testStats()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Compact JSON plus the trailing newline
		if got := strings.Count(buf.String(), "\n"); got != 1 {
			t.Errorf("expected 1 newline in compact output, got %d", got)
		}
	})

	t.Run("pretty print indents output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(testStats()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"") {
			t.Error("expected indented output")
		}
	})
}

// TestMarkdownWriter tests the Markdown stats writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(testStats()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "# Squirrel Frontier Stats") {
			t.Error("expected output to contain header")
		}
		if !strings.Contains(output, "Known Resources") {
			t.Error("expected output to contain known resources row")
		}
		if !strings.Contains(output, "`memory`") {
			t.Error("expected output to contain backend name")
		}
	})

	t.Run("includes freshness chart when recrawling", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(testStats()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "mermaid") {
			t.Error("expected output to contain mermaid chart")
		}
		if !strings.Contains(output, "due for recrawl") {
			t.Error("expected output to contain due alert")
		}
	})

	t.Run("disabled recrawl omits chart and notes the policy", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		stats := testStats()
		stats.Recrawl = false
		stats.Due = 0

		if _, err := w.Write(stats); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "mermaid") {
			t.Error("expected no chart when recrawl is disabled")
		}
		if !strings.Contains(output, "Recrawling is disabled") {
			t.Error("expected output to note disabled recrawl")
		}
	})
}
