// Package filter selects journal entries for the hoard and watch commands.
package filter

import (
	"path/filepath"

	"github.com/dyluth/autumn/pkg/blackboard"
)

// Criteria defines filtering criteria for entries.
// All filters are ANDed together; zero values match everything.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	FieldGlob        string // Glob pattern for the field name, e.g. "*_code"
	AgentRole        string // Exact match for produced_by_role
}

// Matches returns true if the entry matches all filter criteria.
func (c *Criteria) Matches(e *blackboard.Entry) bool {
	if c == nil {
		return true
	}

	if c.SinceTimestampMs > 0 && e.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.CreatedAtMs > c.UntilTimestampMs {
		return false
	}

	if c.FieldGlob != "" {
		matched, err := filepath.Match(c.FieldGlob, e.Field)
		if err != nil || !matched {
			return false
		}
	}

	if c.AgentRole != "" && e.ProducedByRole != c.AgentRole {
		return false
	}

	return true
}

// Validate rejects a malformed field glob before any entries are read.
func (c *Criteria) Validate() error {
	if c.FieldGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.FieldGlob, "")
	return err
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.FieldGlob != "" ||
		c.AgentRole != ""
}
