package graph

import (
	"context"
	"errors"
	"time"
)

// Edge is one discovery relation: crawling Parent surfaced Child.
type Edge struct {
	Parent       string    `json:"parent"`
	Child        string    `json:"child"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// Logger records discovery edges. Implementations must be safe for
// concurrent use.
type Logger interface {
	// LogDiscovery records one edge from parent to every child. The
	// identities are canonical URIs.
	LogDiscovery(ctx context.Context, parent string, children []string) error
	// Close releases the sink's connections.
	Close() error
}

// Multi fans LogDiscovery out to every non-nil logger. Each logger is
// attempted even when an earlier one fails; the errors are joined.
// With no loggers it returns nil, which callers treat as disabled.
func Multi(loggers ...Logger) Logger {
	active := make(multiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			active = append(active, l)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	default:
		return active
	}
}

type multiLogger []Logger

func (m multiLogger) LogDiscovery(ctx context.Context, parent string, children []string) error {
	var errs []error
	for _, l := range m {
		if err := l.LogDiscovery(ctx, parent, children); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiLogger) Close() error {
	var errs []error
	for _, l := range m {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
