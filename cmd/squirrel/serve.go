package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CatherineChiramel/Squirrel/internal/api"
	"github.com/CatherineChiramel/Squirrel/internal/config"
	"github.com/CatherineChiramel/Squirrel/internal/filter"
	"github.com/CatherineChiramel/Squirrel/internal/frontier"
	"github.com/CatherineChiramel/Squirrel/internal/graph"
	"github.com/CatherineChiramel/Squirrel/internal/ledger"
	"github.com/CatherineChiramel/Squirrel/internal/log"
	"github.com/CatherineChiramel/Squirrel/internal/politeness"
	"github.com/CatherineChiramel/Squirrel/internal/predictor"
	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl frontier and its HTTP API",
		Long: `Serve runs the crawl frontier and exposes it to fetch workers over a
JSON HTTP API.

Workers interact with the frontier through four endpoints:
- POST /api/v1/submit     submit discovered references
- POST /api/v1/batch      claim the next batch of crawl work
- POST /api/v1/completion report a finished crawl and its children
- GET  /api/v1/status     queue and ledger figures

Examples:
  # Run with the in-memory ledger (state is lost on exit)
  squirrel serve

  # Persist known resources in SQLite and recrawl them daily
  squirrel serve --backend sqlite --recrawl --recrawl-ttl 24h

  # Share the ledger between frontier instances via Redis
  squirrel serve --backend redis --redis-addr 127.0.0.1:6379

  # Seed the frontier and publish the discovery graph to Kafka
  squirrel serve -s https://data.example/catalog.ttl --kafka-broker 127.0.0.1:9092

  # Use a custom configuration file
  squirrel serve -c myconfig.yaml`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	// Listen and ledger flags
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddr,
		"Listen address for the HTTP API")
	cmd.Flags().StringP("backend", "b", config.BackendMemory,
		"Ledger backend: memory, sqlite, redis, or postgres")
	cmd.Flags().String("data-dir", "",
		"Directory for the SQLite ledger (default: XDG data directory)")
	cmd.Flags().String("redis-addr", config.DefaultRedisAddr,
		"Redis server address for the redis backend")
	cmd.Flags().String("redis-password", "",
		"Redis server password for the redis backend")
	cmd.Flags().Int("redis-db", 0,
		"Redis database number for the redis backend")
	cmd.Flags().String("postgres-dsn", "",
		"PostgreSQL connection string for the postgres backend")

	// Admission flags
	cmd.Flags().StringSlice("scheme", []string{"http", "https"},
		"URI scheme admitted into the frontier (repeatable)")
	cmd.Flags().StringSlice("deny-host", nil,
		"Host rejected at admission (repeatable)")
	cmd.Flags().StringSliceP("seed", "s", nil,
		"Seed reference submitted at startup (repeatable)")

	// Recrawl flags
	cmd.Flags().Bool("recrawl", false,
		"Re-admit known resources after the recrawl TTL expires")
	cmd.Flags().Duration("recrawl-ttl", config.DefaultRecrawlTTL,
		"Age after which a known resource becomes due for recrawl")

	// Politeness and dispatch flags
	cmd.Flags().Int("per-address-limit", config.DefaultPerAddressLimit,
		"Maximum concurrently dispatched resources per network address")
	cmd.Flags().Int("batch-size", config.DefaultBatchSize,
		"Maximum resources handed out per batch request")
	cmd.Flags().Duration("lease-ttl", config.DefaultLeaseTTL,
		"How long a dispatched resource may stay unreported before requeue")
	cmd.Flags().Int("submit-concurrency", config.DefaultSubmitConcurrency,
		"Parallelism of reference admission, mostly DNS resolution")
	cmd.Flags().Duration("janitor-interval", config.DefaultJanitorInterval,
		"Interval between lease reclaim and recrawl resubmission sweeps")
	cmd.Flags().Int("resubmit-limit", config.DefaultResubmitLimit,
		"Maximum due resources resubmitted per janitor sweep")

	// Scoring flag
	cmd.Flags().Bool("scoring", false,
		"Score admitted resources with the online relevance model")

	// Graph sink flags
	cmd.Flags().StringSlice("kafka-broker", nil,
		"Kafka broker publishing discovery edges (repeatable)")
	cmd.Flags().String("kafka-topic", "",
		"Kafka topic for discovery edges (default: "+graph.DefaultEdgesTopic+")")
	cmd.Flags().String("neo4j-uri", "",
		"Neo4j URI recording the discovery graph (e.g., neo4j://127.0.0.1:7687)")
	cmd.Flags().String("neo4j-user", "",
		"Neo4j user for the graph sink")
	cmd.Flags().String("neo4j-password", "",
		"Neo4j password for the graph sink")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .squirrel.yaml in current directory, then XDG config)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	// Build config from file and flags
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	cfg.Verbose = getVerboseFlag(cmd)
	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runServe(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildServeConfig creates a Config from the configuration file and the
// serve command flags. Flags the user set override file values; unset
// flags leave file values alone.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("listen") {
		if cfg.ListenAddr, err = flags.GetString("listen"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("backend") {
		if cfg.LedgerBackend, err = flags.GetString("backend"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("data-dir") {
		if cfg.DataDir, err = flags.GetString("data-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-addr") {
		if cfg.RedisAddr, err = flags.GetString("redis-addr"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-password") {
		if cfg.RedisPassword, err = flags.GetString("redis-password"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-db") {
		if cfg.RedisDB, err = flags.GetInt("redis-db"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("postgres-dsn") {
		if cfg.PostgresDSN, err = flags.GetString("postgres-dsn"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("scheme") {
		if cfg.Schemes, err = flags.GetStringSlice("scheme"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("deny-host") {
		if cfg.DenyHosts, err = flags.GetStringSlice("deny-host"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("seed") {
		if cfg.Seeds, err = flags.GetStringSlice("seed"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("recrawl") {
		if cfg.Recrawl, err = flags.GetBool("recrawl"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("recrawl-ttl") {
		if cfg.RecrawlTTL, err = flags.GetDuration("recrawl-ttl"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("per-address-limit") {
		if cfg.PerAddressLimit, err = flags.GetInt("per-address-limit"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch-size") {
		if cfg.BatchSize, err = flags.GetInt("batch-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("lease-ttl") {
		if cfg.LeaseTTL, err = flags.GetDuration("lease-ttl"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("submit-concurrency") {
		if cfg.SubmitConcurrency, err = flags.GetInt("submit-concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("janitor-interval") {
		if cfg.JanitorInterval, err = flags.GetDuration("janitor-interval"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("resubmit-limit") {
		if cfg.ResubmitLimit, err = flags.GetInt("resubmit-limit"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("scoring") {
		if cfg.Scoring, err = flags.GetBool("scoring"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("kafka-broker") {
		if cfg.KafkaBrokers, err = flags.GetStringSlice("kafka-broker"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("kafka-topic") {
		if cfg.KafkaTopic, err = flags.GetString("kafka-topic"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("neo4j-uri") {
		if cfg.Neo4jURI, err = flags.GetString("neo4j-uri"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("neo4j-user") {
		if cfg.Neo4jUser, err = flags.GetString("neo4j-user"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("neo4j-password") {
		if cfg.Neo4jPassword, err = flags.GetString("neo4j-password"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadConfigFile merges an optional configuration file into cfg.
// If the user explicitly specified a config file path, error if not found.
// If no path specified, silently keep defaults when no file is found.
func loadConfigFile(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if explicit {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	fc, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := fc.Apply(cfg); err != nil {
		return fmt.Errorf("failed to apply config file %s: %w", path, err)
	}
	cfg.ConfigFilePath = path
	return nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Log output is sanitized so credentials in URIs never reach the logs.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureJSONLogger(os.Stderr, verbose)
}

// runServe wires the frontier from the configuration and serves it
// until the context is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting frontier",
		"backend", cfg.LedgerBackend,
		"listen", cfg.ListenAddr,
		"recrawl", cfg.Recrawl,
		"scoring", cfg.Scoring,
	)

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	queueOpts := politeness.Options{
		PerAddressLimit: cfg.PerAddressLimit,
		LeaseTTL:        cfg.LeaseTTL,
		Logger:          logger,
	}

	var scorer func(*resource.Resource) float64
	if cfg.Scoring {
		model := predictor.New(predictor.DefaultOptions())
		scorer = model.Score
		queueOpts.Scorer = model.Score
		logger.Info("relevance scoring enabled")
	}

	queue := politeness.NewQueue(queueOpts)

	graphLogger, err := buildGraphLogger(cfg, logger)
	if err != nil {
		return err
	}
	if graphLogger != nil {
		defer graphLogger.Close()
	}

	front, err := frontier.New(frontier.Options{
		Queue:             queue,
		Ledger:            led,
		Filters:           buildFilters(cfg, led),
		Graph:             graphLogger,
		Scorer:            scorer,
		Logger:            logger,
		SubmitConcurrency: cfg.SubmitConcurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to build frontier: %w", err)
	}

	server := api.NewServer(front, api.Options{
		Addr:       cfg.ListenAddr,
		BatchLimit: cfg.BatchSize,
		Logger:     logger,
	})
	if err := server.Start(ctx); err != nil {
		return err
	}

	if len(cfg.Seeds) > 0 {
		if err := front.Submit(ctx, cfg.Seeds); err != nil {
			return fmt.Errorf("failed to submit seeds: %w", err)
		}
		logger.Info("seeds submitted", "count", len(cfg.Seeds))
	}

	fmt.Printf("Squirrel frontier listening on %s\n", server.Addr())
	fmt.Printf("Ledger backend: %s\n\n", cfg.LedgerBackend)

	// Janitor goroutines run until shutdown; the API server stops on the
	// same context.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runLeaseJanitor(ctx, front, cfg, logger)
	})
	if cfg.Recrawl {
		g.Go(func() error {
			return runRecrawlJanitor(ctx, front, cfg, logger)
		})
	}

	err = g.Wait()
	logger.Info("frontier shutting down")
	return err
}

// runLeaseJanitor periodically force-releases expired dispatch leases
// so stuck workers cannot block an address forever. It returns when the
// context is cancelled.
func runLeaseJanitor(ctx context.Context, front *frontier.Frontier, cfg *config.Config, logger *slog.Logger) error {
	ticker := time.NewTicker(cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := front.ReclaimExpired(); n > 0 {
				logger.Warn("reclaimed expired dispatch leases", "count", n)
			}
		}
	}
}

// runRecrawlJanitor periodically resubmits known resources whose
// recrawl window has elapsed. It returns when the context is cancelled.
func runRecrawlJanitor(ctx context.Context, front *frontier.Frontier, cfg *config.Config, logger *slog.Logger) error {
	ticker := time.NewTicker(cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := front.ResubmitDue(ctx, cfg.ResubmitLimit)
			if err != nil {
				logger.Error("recrawl resubmission failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("resubmitted due resources", "count", n)
			}
		}
	}
}

// openLedger opens the configured ledger backend. The recrawl TTL is
// stamped at open time; a disabled recrawl policy pins records forever.
func openLedger(cfg *config.Config) (ledger.Ledger, error) {
	opts := ledger.DefaultOptions()
	opts.Lineage = true
	if cfg.Recrawl {
		opts.RecrawlTTL = cfg.RecrawlTTL
	}

	switch cfg.LedgerBackend {
	case config.BackendMemory:
		return ledger.NewMemory(opts), nil
	case config.BackendSQLite:
		led, err := ledger.OpenSQLite(cfg.DataDir, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
		}
		return led, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return ledger.NewRedis(client, opts), nil
	case config.BackendPostgres:
		led, err := ledger.NewPostgres(cfg.PostgresDSN, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres ledger: %w", err)
		}
		return led, nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownLedgerBackend, cfg.LedgerBackend)
	}
}

// buildFilters assembles the admission chain: scheme allow-list, then
// the optional host deny-list, then the known-resource check.
func buildFilters(cfg *config.Config, led ledger.Ledger) filter.Filter {
	chain := filter.Chain{filter.NewSchemeFilter(cfg.Schemes...)}
	if len(cfg.DenyHosts) > 0 {
		chain = append(chain, filter.NewHostFilter(cfg.DenyHosts...))
	}
	chain = append(chain, filter.NewKnownFilter(led))
	return chain
}

// buildGraphLogger assembles the configured discovery graph sinks.
// Returns nil when no sink is configured.
func buildGraphLogger(cfg *config.Config, logger *slog.Logger) (graph.Logger, error) {
	var sinks []graph.Logger

	if len(cfg.KafkaBrokers) > 0 {
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = graph.DefaultEdgesTopic
		}
		sinks = append(sinks, graph.NewKafkaLogger(cfg.KafkaBrokers, topic))
		logger.Info("kafka edge logging enabled",
			"brokers", cfg.KafkaBrokers,
			"topic", topic,
		)
	}

	if cfg.Neo4jURI != "" {
		neo, err := graph.NewNeo4jLogger(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect neo4j sink: %w", err)
		}
		sinks = append(sinks, neo)
		logger.Info("neo4j edge logging enabled", "uri", cfg.Neo4jURI)
	}

	return graph.Multi(sinks...), nil
}
