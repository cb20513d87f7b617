package resource

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// Normalization errors.
var (
	// ErrEmptyReference is returned when the reference is empty or blank.
	ErrEmptyReference = errors.New("reference cannot be empty")
	// ErrMalformedReference is returned when the reference cannot be
	// parsed into a URI with a scheme and a host. Callers drop the item
	// and continue with the rest of the batch.
	ErrMalformedReference = errors.New("malformed reference")
)

// Normalize builds the canonical identity for a discovered reference.
//
// The canonical form lowercases the scheme and host, encodes
// internationalized hostnames with IDNA, strips default ports (80 for
// http, 443 for https), and rewrites an empty path as "/". The fragment,
// query order, and percent-encoding are preserved; see the package
// documentation for why.
func Normalize(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", ErrEmptyReference
	}

	u, err := url.Parse(norm.NFC.String(trimmed))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedReference, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: missing scheme in %q", ErrMalformedReference, ref)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrMalformedReference, ref)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	// Best effort: hosts that violate the strict IDNA profile (such as
	// names containing underscores) keep their lowercased form.
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if strings.Contains(host, ":") {
		// IPv6 literal; Hostname stripped the brackets.
		host = "[" + host + "]"
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}
