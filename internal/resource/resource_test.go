package resource

import (
	"encoding/json"
	"testing"
	"time"
)

// TestNew tests Resource construction from raw references.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("builds canonical classified resource", func(t *testing.T) {
		t.Parallel()

		r, err := New("HTTP://DBpedia.org/sparql")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if r.URI != "http://dbpedia.org/sparql" {
			t.Errorf("URI = %q, want canonical form", r.URI)
		}
		if r.Host != "dbpedia.org" {
			t.Errorf("Host = %q, want dbpedia.org", r.Host)
		}
		if r.Type != TypeEndpoint {
			t.Errorf("Type = %v, want endpoint", r.Type)
		}
		if r.DiscoveredAt.IsZero() {
			t.Error("DiscoveredAt must be set")
		}
		if r.Resolved() {
			t.Error("a fresh resource must not be resolved")
		}
	})

	t.Run("options apply", func(t *testing.T) {
		t.Parallel()

		discovered := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		r, err := New("http://example.org/child",
			WithReferrer("http://example.org/parent"),
			WithDiscoveredAt(discovered),
		)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if r.Referrer != "http://example.org/parent" {
			t.Errorf("Referrer = %q", r.Referrer)
		}
		if !r.DiscoveredAt.Equal(discovered) {
			t.Errorf("DiscoveredAt = %v, want %v", r.DiscoveredAt, discovered)
		}
	})

	t.Run("malformed reference", func(t *testing.T) {
		t.Parallel()

		if _, err := New("not a uri"); err == nil {
			t.Error("expected error for malformed reference")
		}
	})
}

// TestResourceData tests the extensible attribute bag.
func TestResourceData(t *testing.T) {
	t.Parallel()

	r, err := New("http://example.org/")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, ok := r.GetData("missing"); ok {
		t.Error("GetData on empty bag must report absence")
	}

	r.SetData("depth", 3)
	v, ok := r.GetData("depth")
	if !ok {
		t.Fatal("GetData must find stored attribute")
	}
	if v.(int) != 3 {
		t.Errorf("stored attribute = %v, want 3", v)
	}
}

// TestTypeMarshalText tests the stable string form of resource types.
func TestTypeMarshalText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		want string
	}{
		{TypeUnknown, `"unknown"`},
		{TypeDump, `"dump"`},
		{TypeEndpoint, `"endpoint"`},
		{TypeDocument, `"document"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			b, err := json.Marshal(tt.typ)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("marshal = %s, want %s", b, tt.want)
			}

			var back Type
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if back != tt.typ {
				t.Errorf("round trip = %v, want %v", back, tt.typ)
			}
		})
	}

	t.Run("unknown text rejected", func(t *testing.T) {
		t.Parallel()

		var typ Type
		if err := typ.UnmarshalText([]byte("banana")); err == nil {
			t.Error("expected error for unknown type text")
		}
	})
}
