package resource

import (
	"net/url"
	"strings"
)

// Tokens extracts the structural tokens of a resource for the scorer: the
// scheme, userinfo, host, path segments, query keys and values, and the
// fragment, followed by the same sequence for the referrer when present.
//
// The order is fixed so that feature extraction is reproducible; consumers
// must not rely on the order carrying meaning.
func Tokens(r *Resource) []string {
	tokens := uriTokens(r.URI)
	if r.Referrer != "" {
		tokens = append(tokens, uriTokens(r.Referrer)...)
	}
	return tokens
}

// uriTokens splits one URI into its non-empty structural components.
func uriTokens(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	var tokens []string
	add := func(s string) {
		if s != "" {
			tokens = append(tokens, s)
		}
	}

	add(u.Scheme)
	if u.User != nil {
		add(u.User.Username())
	}
	add(u.Hostname())
	for _, seg := range strings.Split(u.Path, "/") {
		add(seg)
	}
	for _, part := range strings.FieldsFunc(u.RawQuery, func(r rune) bool {
		return r == '&' || r == '=' || r == ';'
	}) {
		add(part)
	}
	add(u.Fragment)
	return tokens
}
