package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/google/uuid"
)

// GetEntry retrieves a single entry by ID and writes it as pretty-printed JSON.
// runID may be "" when the run is unknown.
func GetEntry(ctx context.Context, journal *blackboard.Journal, runID, entryID string, w io.Writer) error {
	if _, err := uuid.Parse(entryID); err != nil {
		return fmt.Errorf("invalid entry ID format: must be a valid UUID")
	}

	var (
		entry *blackboard.Entry
		err   error
	)
	if runID == "" {
		entry, err = journal.FindEntry(ctx, entryID)
	} else {
		entry, err = journal.GetEntry(ctx, runID, entryID)
	}
	if err != nil {
		if blackboard.IsNotFound(err) {
			return &EntryNotFoundError{EntryID: entryID}
		}
		return fmt.Errorf("failed to fetch entry: %w", err)
	}

	if err := FormatSingleJSON(w, entry); err != nil {
		return fmt.Errorf("failed to format entry: %w", err)
	}

	return nil
}

// EntryNotFoundError represents a specific "entry not found" error.
type EntryNotFoundError struct {
	EntryID string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("entry with ID '%s' not found", e.EntryID)
}

// IsNotFound returns true if the error is an EntryNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*EntryNotFoundError)
	return ok
}
