package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CypherRunner is the write surface of a managed transaction. The
// driver's own transaction type satisfies it.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

// SessionRunner abstracts neo4j.SessionWithContext.
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner abstracts neo4j.DriverWithContext.
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

// discoveryQuery merges both endpoints and the edge between them, so
// replaying a completion never duplicates graph elements.
const discoveryQuery = `MERGE (p:Resource {uri: $parent}) ` +
	`MERGE (c:Resource {uri: $child}) ` +
	`MERGE (p)-[r:DISCOVERED]->(c) ` +
	`ON CREATE SET r.first_seen = $at`

// Neo4jLogger merges discovery edges into a Neo4j property graph.
type Neo4jLogger struct {
	driver DriverSessioner
	clock  func() time.Time
}

// NewNeo4jLogger connects to the given Neo4j instance with basic auth.
func NewNeo4jLogger(uri, user, password string) (*Neo4jLogger, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect neo4j: %w", err)
	}
	return NewNeo4jLoggerWithDriver(&neo4jDriver{driver: driver}), nil
}

// NewNeo4jLoggerWithDriver wraps an existing driver. Tests use this to
// substitute a fake.
func NewNeo4jLoggerWithDriver(driver DriverSessioner) *Neo4jLogger {
	return &Neo4jLogger{driver: driver, clock: time.Now}
}

// LogDiscovery merges one DISCOVERED edge per child inside a single
// write transaction.
func (l *Neo4jLogger) LogDiscovery(ctx context.Context, parent string, children []string) (err error) {
	if len(children) == 0 {
		return nil
	}
	at := l.clock().UTC().Format(time.RFC3339)
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if cerr := session.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("graph: close neo4j session: %w", cerr)
		}
	}()

	_, err = session.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, child := range children {
			params := map[string]any{"parent": parent, "child": child, "at": at}
			if _, err := tx.Run(ctx, discoveryQuery, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: merge edges: %w", err)
	}
	return nil
}

// Close shuts the underlying driver down.
func (l *Neo4jLogger) Close() error {
	return l.driver.Close(context.Background())
}

// neo4jDriver adapts neo4j.DriverWithContext to DriverSessioner.
type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return &neo4jSession{session: d.driver.NewSession(ctx, config)}
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// neo4jSession adapts neo4j.SessionWithContext to SessionRunner.
type neo4jSession struct {
	session neo4j.SessionWithContext
}

func (s *neo4jSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}
