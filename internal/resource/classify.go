package resource

import (
	"net/url"
	"path"
	"strings"
)

// dumpExtensions are file extensions that identify an RDF dump. Compressed
// dumps are recognized by stripping one archive extension first.
var dumpExtensions = map[string]struct{}{
	".rdf":    {},
	".ttl":    {},
	".nt":     {},
	".nq":     {},
	".n3":     {},
	".owl":    {},
	".trig":   {},
	".trix":   {},
	".jsonld": {},
}

// archiveExtensions are compression wrappers that may enclose a dump.
var archiveExtensions = map[string]struct{}{
	".gz":  {},
	".bz2": {},
	".zip": {},
	".tar": {},
	".xz":  {},
}

// Classify tags a canonical URI with a coarse type using only its shape.
// SPARQL endpoints are recognized by a "sparql" path segment, dumps by
// their file extension, and everything else reachable over HTTP counts as
// a dereferenceable document.
func Classify(uri string) Type {
	u, err := url.Parse(uri)
	if err != nil {
		return TypeUnknown
	}

	lower := strings.ToLower(u.Path)
	for _, seg := range strings.Split(lower, "/") {
		if seg == "sparql" {
			return TypeEndpoint
		}
	}

	ext := path.Ext(lower)
	if _, ok := archiveExtensions[ext]; ok {
		ext = path.Ext(strings.TrimSuffix(lower, ext))
	}
	if _, ok := dumpExtensions[ext]; ok {
		return TypeDump
	}

	switch u.Scheme {
	case "http", "https":
		return TypeDocument
	}
	return TypeUnknown
}
