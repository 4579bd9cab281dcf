package blackboard

import "fmt"

// Redis key pattern helpers
//
// All journal keys and Pub/Sub channels are namespaced by a prefix and the run ID
// so several runs can share one Redis server without interfering.
//
// Key pattern: {prefix}:{run_id}:{entity}:{id}
// Channel pattern: {prefix}:{run_id}:spec_events

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "autumn"

// EntryKey returns the Redis key for a journal entry.
// Pattern: {prefix}:{run_id}:entry:{entry_id}
func EntryKey(prefix, runID, entryID string) string {
	return fmt.Sprintf("%s:%s:entry:%s", prefix, runID, entryID)
}

// EntryKeyPattern returns the SCAN pattern matching every entry of a run.
// Pattern: {prefix}:{run_id}:entry:*
func EntryKeyPattern(prefix, runID string) string {
	return fmt.Sprintf("%s:%s:entry:*", prefix, runID)
}

// ThreadKey returns the Redis key for the version thread of one field.
// Pattern: {prefix}:{run_id}:thread:{field}
func ThreadKey(prefix, runID, field string) string {
	return fmt.Sprintf("%s:%s:thread:%s", prefix, runID, field)
}

// RunsKey returns the Redis key of the sorted set of known runs, scored by start time.
// Pattern: {prefix}:runs
func RunsKey(prefix string) string {
	return fmt.Sprintf("%s:runs", prefix)
}

// SpecEventsChannel returns the Pub/Sub channel carrying new entries of a run.
// Pattern: {prefix}:{run_id}:spec_events
func SpecEventsChannel(prefix, runID string) string {
	return fmt.Sprintf("%s:%s:spec_events", prefix, runID)
}
