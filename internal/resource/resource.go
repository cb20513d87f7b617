package resource

import (
	"fmt"
	"net/netip"
	"net/url"
	"time"
)

// Type is the coarse classification of a resource, derived from the URI
// shape alone. It is advisory: filters and scorers may use it, but no
// correctness property depends on it.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons. MarshalText/UnmarshalText provide the
// stable string form used in JSON payloads and storage backends.
type Type int

const (
	// TypeUnknown indicates the URI shape matched no known pattern.
	TypeUnknown Type = iota

	// TypeDump indicates an RDF dump file (possibly compressed), fetched
	// whole rather than dereferenced.
	TypeDump

	// TypeEndpoint indicates a SPARQL endpoint to be queried rather than
	// dereferenced.
	TypeEndpoint

	// TypeDocument indicates an ordinary dereferenceable document.
	TypeDocument
)

// String returns a human-readable representation of the type.
func (t Type) String() string {
	switch t {
	case TypeDump:
		return "dump"
	case TypeEndpoint:
		return "endpoint"
	case TypeDocument:
		return "document"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so the type serializes as
// its string form in JSON payloads.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	switch string(text) {
	case "dump":
		*t = TypeDump
	case "endpoint":
		*t = TypeEndpoint
	case "document":
		*t = TypeDocument
	case "unknown", "":
		*t = TypeUnknown
	default:
		return fmt.Errorf("unknown resource type %q", text)
	}
	return nil
}

// Resource is the unit of work: a discovered reference after normalization.
// Identity equality is by the canonical URI only; the remaining fields are
// attributes that never participate in equality.
type Resource struct {
	// URI is the canonical identity produced by Normalize.
	URI string `json:"uri"`

	// Host is the hostname component of the canonical URI, kept separate
	// so address resolution does not re-parse the URI.
	Host string `json:"host"`

	// Address is the resolved network address. It is the zero value until
	// Resolve succeeds; a resource with an invalid Address must never be
	// enqueued.
	Address netip.Addr `json:"address,omitzero"`

	// Type is the advisory classification tag.
	Type Type `json:"type"`

	// Referrer is the canonical identity of the resource whose crawl
	// discovered this one. Empty for seeds.
	Referrer string `json:"referrer,omitempty"`

	// DiscoveredAt is when this reference entered the frontier.
	DiscoveredAt time.Time `json:"discovered_at"`

	// Score is the advisory dispatch priority in [0,1]. Zero when no
	// scorer is configured; higher scores dispatch first among entries
	// that are otherwise tied in FIFO order.
	Score float64 `json:"score,omitempty"`

	// Data is an extensible attribute bag for values attached by
	// collaborators such as the scorer. Nil until first use.
	Data map[string]any `json:"data,omitempty"`
}

// Option configures a Resource during construction.
type Option func(*Resource)

// WithReferrer records the canonical identity of the discovering resource.
func WithReferrer(uri string) Option {
	return func(r *Resource) {
		r.Referrer = uri
	}
}

// WithDiscoveredAt overrides the discovery timestamp. Primarily for tests
// and for replaying recorded discoveries.
func WithDiscoveredAt(t time.Time) Option {
	return func(r *Resource) {
		r.DiscoveredAt = t
	}
}

// New builds a classified Resource from a raw reference. The reference is
// normalized into its canonical identity and tagged with a type; address
// resolution is a separate, later step.
func New(ref string, opts ...Option) (*Resource, error) {
	canonical, err := Normalize(ref)
	if err != nil {
		return nil, err
	}

	// Normalize output always re-parses; this only extracts the host.
	u, err := url.Parse(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedReference, err)
	}

	r := &Resource{
		URI:          canonical,
		Host:         u.Hostname(),
		Type:         Classify(canonical),
		DiscoveredAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolved reports whether the resource carries a resolved network address.
func (r *Resource) Resolved() bool {
	return r.Address.IsValid()
}

// SetData attaches an arbitrary value to the resource's attribute bag,
// allocating the bag on first use.
func (r *Resource) SetData(key string, value any) {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
}

// GetData returns the attribute stored under key, if any.
func (r *Resource) GetData(key string) (any, bool) {
	v, ok := r.Data[key]
	return v, ok
}
