package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/CatherineChiramel/Squirrel/internal/frontier"
	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

type completionCall struct {
	uri      string
	children []string
}

// fakeFrontier records calls and returns canned results so handler
// behavior can be tested without queues or ledgers.
type fakeFrontier struct {
	mu          sync.Mutex
	submitted   [][]string
	submitErr   error
	batch       []*resource.Resource
	batchSizes  []int
	completions []completionCall
	completeErr error
	stats       frontier.Stats
	statsErr    error
}

func (f *fakeFrontier) Submit(_ context.Context, refs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, refs)
	return f.submitErr
}

func (f *fakeFrontier) NextBatch(maxSize int) []*resource.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchSizes = append(f.batchSizes, maxSize)
	return f.batch
}

func (f *fakeFrontier) Completion(_ context.Context, crawled string, children []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, completionCall{uri: crawled, children: children})
	return f.completeErr
}

func (f *fakeFrontier) Snapshot(_ context.Context) (frontier.Stats, error) {
	return f.stats, f.statsErr
}

func newTestServer(f *fakeFrontier) *Server {
	return NewServer(f, Options{Addr: "127.0.0.1:0", BatchLimit: 4})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func mustResource(t *testing.T, ref string) *resource.Resource {
	t.Helper()

	res, err := resource.New(ref)
	if err != nil {
		t.Fatalf("resource.New(%q) error = %v", ref, err)
	}
	return res
}

func TestHandleSubmit(t *testing.T) {
	t.Parallel()

	t.Run("accepts references", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{}
		s := newTestServer(fake)

		body := `{"references": ["http://data.example/a.ttl", "http://data.example/b.ttl"]}`
		rec := doRequest(t, s, http.MethodPost, "/api/v1/submit", body)

		if rec.Code != http.StatusAccepted {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
		}

		var resp submitResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.Submitted != 2 {
			t.Errorf("Submitted = %d, want 2", resp.Submitted)
		}

		if len(fake.submitted) != 1 || len(fake.submitted[0]) != 2 {
			t.Errorf("submitted calls = %v, want one call with two references", fake.submitted)
		}
	})

	t.Run("rejects empty reference list", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/submit", `{"references": []}`)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/submit", `{"references": [`)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects GET", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/submit", "")

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("reports backend failure", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{submitErr: fmt.Errorf("ledger unavailable")}
		s := newTestServer(fake)

		body := `{"references": ["http://data.example/a.ttl"]}`
		rec := doRequest(t, s, http.MethodPost, "/api/v1/submit", body)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
		}
	})
}

func TestHandleBatch(t *testing.T) {
	t.Parallel()

	t.Run("claims a batch", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{batch: []*resource.Resource{
			mustResource(t, "http://data.example/a.ttl"),
			mustResource(t, "http://data.example/b.ttl"),
		}}
		s := newTestServer(fake)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/batch", `{"max": 2}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var resp batchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if len(resp.Resources) != 2 {
			t.Fatalf("len(Resources) = %d, want 2", len(resp.Resources))
		}
		if resp.Resources[0].URI != "http://data.example/a.ttl" {
			t.Errorf("Resources[0].URI = %q, want %q", resp.Resources[0].URI, "http://data.example/a.ttl")
		}
	})

	t.Run("empty body selects the configured limit", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{}
		s := newTestServer(fake)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/batch", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if len(fake.batchSizes) != 1 || fake.batchSizes[0] != 4 {
			t.Errorf("batch sizes = %v, want [4]", fake.batchSizes)
		}
	})

	t.Run("clamps oversized requests", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{}
		s := newTestServer(fake)

		doRequest(t, s, http.MethodPost, "/api/v1/batch", `{"max": 999}`)

		if len(fake.batchSizes) != 1 || fake.batchSizes[0] != 4 {
			t.Errorf("batch sizes = %v, want [4]", fake.batchSizes)
		}
	})

	t.Run("returns an empty array when nothing is dispatchable", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/batch", `{"max": 2}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), `"resources":[]`) {
			t.Errorf("body = %q, want empty resources array, not null", rec.Body.String())
		}
	})

	t.Run("rejects GET", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/batch", "")

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})
}

func TestHandleCompletion(t *testing.T) {
	t.Parallel()

	t.Run("records a completion", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{}
		s := newTestServer(fake)

		body := `{"uri": "http://data.example/a.ttl", "children": ["http://data.example/b.ttl"]}`
		rec := doRequest(t, s, http.MethodPost, "/api/v1/completion", body)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var resp completionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.Children != 1 {
			t.Errorf("Children = %d, want 1", resp.Children)
		}

		if len(fake.completions) != 1 {
			t.Fatalf("completions = %d, want 1", len(fake.completions))
		}
		if got := fake.completions[0].uri; got != "http://data.example/a.ttl" {
			t.Errorf("completion uri = %q, want %q", got, "http://data.example/a.ttl")
		}
	})

	t.Run("rejects missing uri", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/completion", `{"children": []}`)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("conflict for undispatched resource", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{completeErr: fmt.Errorf("frontier: %w", frontier.ErrNotDispatched)}
		s := newTestServer(fake)

		body := `{"uri": "http://data.example/a.ttl"}`
		rec := doRequest(t, s, http.MethodPost, "/api/v1/completion", body)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("bad request for malformed uri", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{completeErr: fmt.Errorf("frontier: %w", resource.ErrMalformedReference)}
		s := newTestServer(fake)

		body := `{"uri": "::not-a-uri::"}`
		rec := doRequest(t, s, http.MethodPost, "/api/v1/completion", body)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("reports backend failure", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{completeErr: fmt.Errorf("ledger unavailable")}
		s := newTestServer(fake)

		body := `{"uri": "http://data.example/a.ttl"}`
		rec := doRequest(t, s, http.MethodPost, "/api/v1/completion", body)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
		}
	})
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	t.Run("reports queue and ledger figures", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{stats: frontier.Stats{
			Pending:          7,
			InFlight:         2,
			BlockedAddresses: 1,
			KnownResources:   42,
		}}
		s := newTestServer(fake)

		rec := doRequest(t, s, http.MethodGet, "/api/v1/status", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var stats frontier.Stats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if stats != fake.stats {
			t.Errorf("stats = %+v, want %+v", stats, fake.stats)
		}
	})

	t.Run("reports backend failure", func(t *testing.T) {
		t.Parallel()

		fake := &fakeFrontier{statsErr: fmt.Errorf("ledger unavailable")}
		s := newTestServer(fake)

		rec := doRequest(t, s, http.MethodGet, "/api/v1/status", "")

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
		}
	})

	t.Run("rejects POST", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(&fakeFrontier{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/status", "{}")

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeFrontier{})
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("body = %q, want healthy status", rec.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeFrontier{})
	rec := doRequest(t, s, http.MethodGet, "/api/v1/status", "")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header is empty, want a correlation ID")
	}
}

func TestNewServerDefaults(t *testing.T) {
	t.Parallel()

	fake := &fakeFrontier{}
	s := NewServer(fake, Options{Addr: "127.0.0.1:0"})

	doRequest(t, s, http.MethodPost, "/api/v1/batch", "")

	if len(fake.batchSizes) != 1 || fake.batchSizes[0] != DefaultBatchLimit {
		t.Errorf("batch sizes = %v, want [%d]", fake.batchSizes, DefaultBatchLimit)
	}
}

func TestServerStart(t *testing.T) {
	t.Parallel()

	t.Run("serves until context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := newTestServer(&fakeFrontier{})
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		resp, err := http.Get("http://" + s.Addr() + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("fails on an unusable address", func(t *testing.T) {
		t.Parallel()

		s := NewServer(&fakeFrontier{}, Options{Addr: "256.0.0.1:bad"})
		if err := s.Start(context.Background()); err == nil {
			t.Error("Start() error = nil, want bind failure")
		}
	})
}
