package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Journal records Project Specification field versions in Redis. It is an audit
// trail only: nothing in a run ever reads it back.
// The journal is safe for concurrent use.
type Journal struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewJournal creates a journal writing under the given key prefix.
// An empty prefix falls back to DefaultPrefix.
func NewJournal(redisOpts *redis.Options, prefix string) (*Journal, error) {
	if redisOpts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsAny(prefix, ":*") {
		return nil, fmt.Errorf("invalid journal prefix %q: must not contain ':' or '*'", prefix)
	}

	return &Journal{
		rdb:    redis.NewClient(redisOpts),
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (j *Journal) Close() error {
	return j.rdb.Close()
}

// Ping verifies Redis connectivity.
func (j *Journal) Ping(ctx context.Context) error {
	return j.rdb.Ping(ctx).Err()
}

// Prefix returns the key prefix of this journal.
func (j *Journal) Prefix() string {
	return j.prefix
}

// StartRun registers a run so it shows up in ListRuns.
func (j *Journal) StartRun(ctx context.Context, runID string) error {
	if !isValidUUID(runID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	z := redis.Z{Score: float64(j.now().UnixMilli()), Member: runID}
	if err := j.rdb.ZAdd(ctx, RunsKey(j.prefix), z).Err(); err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}
	return nil
}

// ListRuns returns known run IDs, newest first.
func (j *Journal) ListRuns(ctx context.Context) ([]string, error) {
	runs, err := j.rdb.ZRevRange(ctx, RunsKey(j.prefix), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Record writes an entry, adds it to its field thread and publishes it.
func (j *Journal) Record(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}

	key := EntryKey(j.prefix, e.RunID, e.ID)
	if err := j.rdb.HSet(ctx, key, EntryToHash(e)).Err(); err != nil {
		return fmt.Errorf("failed to write entry to Redis: %w", err)
	}

	z := redis.Z{Score: ThreadScore(e.Version), Member: e.ID}
	if err := j.rdb.ZAdd(ctx, ThreadKey(j.prefix, e.RunID, e.Field), z).Err(); err != nil {
		return fmt.Errorf("failed to add entry to thread: %w", err)
	}

	entryJSON, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry for event: %w", err)
	}

	if err := j.rdb.Publish(ctx, SpecEventsChannel(j.prefix, e.RunID), entryJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish entry event: %w", err)
	}

	return nil
}

// RecordSpec records every field of spec whose JSON value differs from the latest
// recorded version, attributing the new versions to role. Returns the new entries.
func (j *Journal) RecordSpec(ctx context.Context, runID, role string, spec *ProjectSpec) ([]*Entry, error) {
	values, err := spec.FieldValues()
	if err != nil {
		return nil, err
	}

	var recorded []*Entry
	for _, field := range Fields {
		payload, ok := values[field]
		if !ok {
			continue
		}

		version := 1
		latestID, latestVersion, err := j.LatestVersion(ctx, runID, field)
		switch {
		case err == nil:
			latest, err := j.GetEntry(ctx, runID, latestID)
			if err != nil {
				return recorded, fmt.Errorf("failed to read latest %s: %w", field, err)
			}
			if latest.Payload == payload {
				continue
			}
			version = latestVersion + 1
		case !IsNotFound(err):
			return recorded, err
		}

		entry := &Entry{
			ID:             uuid.New().String(),
			RunID:          runID,
			Field:          field,
			Version:        version,
			Payload:        payload,
			ProducedByRole: role,
			CreatedAtMs:    j.now().UnixMilli(),
		}
		if err := j.Record(ctx, entry); err != nil {
			return recorded, err
		}
		recorded = append(recorded, entry)
	}

	return recorded, nil
}

// GetEntry retrieves an entry by run and ID.
// Returns (nil, redis.Nil) if the entry doesn't exist. Use IsNotFound() to check.
func (j *Journal) GetEntry(ctx context.Context, runID, entryID string) (*Entry, error) {
	return j.getByKey(ctx, EntryKey(j.prefix, runID, entryID))
}

// FindEntry retrieves an entry by ID without knowing its run.
// Returns (nil, redis.Nil) if no run holds it.
func (j *Journal) FindEntry(ctx context.Context, entryID string) (*Entry, error) {
	iter := j.rdb.Scan(ctx, 0, EntryKey(j.prefix, "*", entryID), 0).Iterator()
	for iter.Next(ctx) {
		return j.getByKey(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}
	return nil, redis.Nil
}

// ScanEntryIDs returns the IDs of entries whose ID starts with idPrefix, sorted.
// runID may be "*" to search every run.
func (j *Journal) ScanEntryIDs(ctx context.Context, runID, idPrefix string) ([]string, error) {
	seen := make(map[string]struct{})
	iter := j.rdb.Scan(ctx, 0, EntryKey(j.prefix, runID, idPrefix+"*"), 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		seen[key[strings.LastIndex(key, ":")+1:]] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (j *Journal) getByKey(ctx context.Context, key string) (*Entry, error) {
	hashData, err := j.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read entry from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	entry, err := HashToEntry(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize entry: %w", err)
	}
	return entry, nil
}

// LatestVersion returns the entry ID and version of the newest version of field.
// Returns ("", 0, redis.Nil) if the field was never recorded in this run.
func (j *Journal) LatestVersion(ctx context.Context, runID, field string) (entryID string, version int, err error) {
	results, err := j.rdb.ZRevRangeWithScores(ctx, ThreadKey(j.prefix, runID, field), 0, 0).Result()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get latest version from thread: %w", err)
	}
	if len(results) == 0 {
		return "", 0, redis.Nil
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return "", 0, fmt.Errorf("unexpected thread member type %T", results[0].Member)
	}
	return member, VersionFromScore(results[0].Score), nil
}

// ListEntries returns every entry of a run ordered by creation time, then field
// declaration order, then version. Malformed entries are skipped and reported
// through skipped.
func (j *Journal) ListEntries(ctx context.Context, runID string) (entries []*Entry, skipped []error, err error) {
	iter := j.rdb.Scan(ctx, 0, EntryKeyPattern(j.prefix, runID), 0).Iterator()
	for iter.Next(ctx) {
		entry, err := j.getByKey(ctx, iter.Val())
		if err != nil {
			skipped = append(skipped, fmt.Errorf("key %s: %w", iter.Val(), err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to scan entries: %w", err)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if ea.CreatedAtMs != eb.CreatedAtMs {
			return ea.CreatedAtMs < eb.CreatedAtMs
		}
		if fa, fb := fieldIndex(ea.Field), fieldIndex(eb.Field); fa != fb {
			return fa < fb
		}
		return ea.Version < eb.Version
	})

	return entries, skipped, nil
}

func fieldIndex(name string) int {
	for i, f := range Fields {
		if f == name {
			return i
		}
	}
	return len(Fields)
}

// Subscription represents an active Pub/Sub subscription to journal entries.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Entry
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of recorded entries.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Entry {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEntries subscribes to entries recorded for a run.
// Events are delivered on a buffered channel (size 10); Redis Pub/Sub is
// at-most-once so a slow subscriber may miss entries.
func (j *Journal) SubscribeEntries(ctx context.Context, runID string) (*Subscription, error) {
	pubsub := j.rdb.Subscribe(ctx, SpecEventsChannel(j.prefix, runID))

	// Wait for the subscription to be confirmed so no entry published after
	// this call returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to spec events: %w", err)
	}

	eventsChan := make(chan *Entry, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var entry Entry
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal entry event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &entry:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Thread returns every recorded version of field in ascending version order.
func (j *Journal) Thread(ctx context.Context, runID, field string) ([]ThreadVersion, error) {
	results, err := j.rdb.ZRangeWithScores(ctx, ThreadKey(j.prefix, runID, field), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}

	versions := make([]ThreadVersion, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		versions = append(versions, ThreadVersion{EntryID: member, Version: VersionFromScore(z.Score)})
	}
	return versions, nil
}
