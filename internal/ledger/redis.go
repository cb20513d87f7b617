package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// redisRecordPrefix namespaces per-identity record keys.
	redisRecordPrefix = "squirrel:ledger:record:"
	// redisIndexKey is the sorted set indexing identities by their
	// next-eligible time in Unix milliseconds; +inf marks identities
	// with recrawling disabled.
	redisIndexKey = "squirrel:ledger:index"
	// redisTxRetries bounds optimistic transaction retries when two
	// writers race on the same identity.
	redisTxRetries = 5
	// redisDuePageSize is the page size for due-for-recrawl walks.
	redisDuePageSize = 256
)

// Redis is the shared ledger backend for multi-process frontiers.
//
// Design decision: Each identity is a JSON record under its own key, and
// one sorted set carries every identity scored by next-eligible time,
// because:
//  1. ZSCORE answers the admission check with a single round trip
//  2. ZCARD is the identity count, since every record has an index entry
//  3. ZRANGEBYSCORE walks the due set in eligibility order without
//     touching record keys
//
// Monotonic last-crawled merging uses an optimistic WATCH transaction on
// the record key; concurrent writers to the same identity retry, writers
// to different identities never conflict.
type Redis struct {
	client *redis.Client

	ttl     time.Duration
	lineage bool
	clock   func() time.Time
}

// NewRedis creates a redis-backed ledger on an existing client. The caller
// owns client configuration; Close closes the client.
func NewRedis(client *redis.Client, opts Options) *Redis {
	return &Redis{
		client:  client,
		ttl:     opts.RecrawlTTL,
		lineage: opts.Lineage,
		clock:   opts.clock(),
	}
}

// recordKey returns the record key for an identity.
func recordKey(uri string) string {
	return redisRecordPrefix + uri
}

// IsAdmissible implements Ledger.
func (r *Redis) IsAdmissible(ctx context.Context, uri string) (bool, error) {
	score, err := r.client.ZScore(ctx, redisIndexKey, uri).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query known resource index: %w", err)
	}
	if math.IsInf(score, 1) {
		return false, nil
	}
	return float64(r.clock().UnixMilli()) >= score, nil
}

// Record implements Ledger.
func (r *Redis) Record(ctx context.Context, uri string, crawledAt time.Time, children []Child) error {
	key := recordKey(uri)

	merge := func(tx *redis.Tx) error {
		rec := KnownResource{URI: uri}
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(cur, &rec); err != nil {
				return fmt.Errorf("failed to decode known resource %s: %w", uri, err)
			}
		case errors.Is(err, redis.Nil):
			// First write for this identity.
		default:
			return fmt.Errorf("failed to read known resource: %w", err)
		}

		if crawledAt.After(rec.LastCrawledAt) {
			rec.LastCrawledAt = crawledAt
		}
		rec.RecrawlTTL = r.ttl
		if r.lineage && len(children) > 0 {
			rec.Children = mergeChildren(rec.Children, children)
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode known resource %s: %w", uri, err)
		}

		score := math.Inf(1)
		if eligible, recrawls := eligibleAt(rec.LastCrawledAt, r.ttl); recrawls {
			score = float64(eligible.UnixMilli())
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: score, Member: uri})
			return nil
		})
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := r.client.Watch(ctx, merge, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to record known resource: %w", err)
	}
	return fmt.Errorf("failed to record known resource %s after %d conflicting writes", uri, redisTxRetries)
}

// Count implements Ledger.
func (r *Redis) Count(ctx context.Context) (int64, error) {
	count, err := r.client.ZCard(ctx, redisIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count known resources: %w", err)
	}
	return count, nil
}

// DueForRecrawl implements Ledger. Pages through the index in eligibility
// order; records written during the walk may shift pages, which is fine
// for a restartable query.
func (r *Redis) DueForRecrawl(ctx context.Context, now time.Time, visit func(uri string) bool) error {
	maxScore := strconv.FormatInt(now.UnixMilli(), 10)
	for offset := int64(0); ; offset += redisDuePageSize {
		uris, err := r.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    maxScore,
			Offset: offset,
			Count:  redisDuePageSize,
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to query due resources: %w", err)
		}
		for _, uri := range uris {
			if !visit(uri) {
				return nil
			}
		}
		if int64(len(uris)) < redisDuePageSize {
			return nil
		}
	}
}

// Get returns the stored record for an identity, or nil when unknown.
// Used by provenance queries and tests, not by scheduling.
func (r *Redis) Get(ctx context.Context, uri string) (*KnownResource, error) {
	payload, err := r.client.Get(ctx, recordKey(uri)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read known resource: %w", err)
	}
	var rec KnownResource
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode known resource %s: %w", uri, err)
	}
	return &rec, nil
}

// Lineage implements Ledger.
func (r *Redis) Lineage() bool {
	return r.lineage
}

// Close implements Ledger.
func (r *Redis) Close() error {
	return r.client.Close()
}
