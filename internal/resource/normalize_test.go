package resource

import (
	"errors"
	"testing"
)

// TestNormalize tests canonical identity construction.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{
			name: "lowercases scheme and host",
			ref:  "HTTP://Example.ORG/Data",
			want: "http://example.org/Data",
		},
		{
			name: "preserves path case",
			ref:  "http://example.org/DataSet/File",
			want: "http://example.org/DataSet/File",
		},
		{
			name: "adds root path",
			ref:  "http://example.org",
			want: "http://example.org/",
		},
		{
			name: "strips default http port",
			ref:  "http://example.org:80/index",
			want: "http://example.org/index",
		},
		{
			name: "strips default https port",
			ref:  "https://example.org:443/",
			want: "https://example.org/",
		},
		{
			name: "keeps explicit non-default port",
			ref:  "http://example.org:8890/sparql",
			want: "http://example.org:8890/sparql",
		},
		{
			name: "keeps fragment",
			ref:  "http://example.org/ontology#Person",
			want: "http://example.org/ontology#Person",
		},
		{
			name: "keeps query order",
			ref:  "http://example.org/q?b=2&a=1",
			want: "http://example.org/q?b=2&a=1",
		},
		{
			name: "encodes internationalized host",
			ref:  "http://bücher.example/katalog",
			want: "http://xn--bcher-kva.example/katalog",
		},
		{
			name: "trims surrounding whitespace",
			ref:  "  http://example.org/a  ",
			want: "http://example.org/a",
		},
		{
			name: "keeps ipv6 literal brackets",
			ref:  "http://[2001:db8::1]:8080/x",
			want: "http://[2001:db8::1]:8080/x",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tt.ref)
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

// TestNormalizeErrors tests rejection of references that cannot become an
// identity.
func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty reference", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize("   ")
		if !errors.Is(err, ErrEmptyReference) {
			t.Errorf("expected ErrEmptyReference, got %v", err)
		}
	})

	t.Run("missing scheme", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize("example.org/data")
		if !errors.Is(err, ErrMalformedReference) {
			t.Errorf("expected ErrMalformedReference, got %v", err)
		}
	})

	t.Run("missing host", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize("mailto:user@example.org")
		if !errors.Is(err, ErrMalformedReference) {
			t.Errorf("expected ErrMalformedReference, got %v", err)
		}
	})

	t.Run("unparsable input", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize("http://exa mple.org/\x7f")
		if !errors.Is(err, ErrMalformedReference) {
			t.Errorf("expected ErrMalformedReference, got %v", err)
		}
	})

	t.Run("normalization is idempotent", func(t *testing.T) {
		t.Parallel()

		first, err := Normalize("HTTP://Example.ORG:80")
		if err != nil {
			t.Fatalf("first Normalize failed: %v", err)
		}
		second, err := Normalize(first)
		if err != nil {
			t.Fatalf("second Normalize failed: %v", err)
		}
		if first != second {
			t.Errorf("normalization not idempotent: %q != %q", first, second)
		}
	})
}
