package blackboard

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between entries and Redis hashes.
//
// Redis stores data as string-to-string maps (hashes). The payload is already a
// JSON document so it is stored verbatim in a single hash field.

// EntryToHash converts an Entry to a Redis hash.
func EntryToHash(e *Entry) map[string]interface{} {
	return map[string]interface{}{
		"id":               e.ID,
		"run_id":           e.RunID,
		"field":            e.Field,
		"version":          e.Version,
		"payload":          e.Payload,
		"produced_by_role": e.ProducedByRole,
		"created_at_ms":    e.CreatedAtMs,
	}
}

// HashToEntry converts a Redis hash back to an Entry.
func HashToEntry(hash map[string]string) (*Entry, error) {
	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	return &Entry{
		ID:             hash["id"],
		RunID:          hash["run_id"],
		Field:          hash["field"],
		Version:        version,
		Payload:        hash["payload"],
		ProducedByRole: hash["produced_by_role"],
		CreatedAtMs:    createdAtMs,
	}, nil
}
