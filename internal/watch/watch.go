// Package watch streams journal entries as agents record them.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/autumn/internal/filter"
	"github.com/dyluth/autumn/pkg/blackboard"
)

// OutputFormat selects how streamed entries are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// Options controls a Stream.
type Options struct {
	Format  OutputFormat
	Filters *filter.Criteria
	// UntilField stops the stream after the first entry for this field.
	UntilField string
}

// Stream writes entries recorded for runID until ctx is cancelled, the
// subscription closes, or UntilField is seen. Subscription errors are written
// to errW and do not stop the stream.
func Stream(ctx context.Context, journal *blackboard.Journal, runID string, opts Options, w, errW io.Writer) error {
	sub, err := journal.SubscribeEntries(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to run %s: %w", runID, err)
	}
	defer sub.Close()

	if opts.Format == OutputFormatDefault {
		fmt.Fprintf(w, "👀 Watching run %s (Ctrl+C to stop)\n", runID)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case entry, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !opts.Filters.Matches(entry) {
				continue
			}
			if err := writeEntry(w, entry, opts.Format); err != nil {
				return err
			}
			if opts.UntilField != "" && entry.Field == opts.UntilField {
				return nil
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(errW, "⚠️  %v\n", err)
		}
	}
}

func writeEntry(w io.Writer, entry *blackboard.Entry, format OutputFormat) error {
	switch format {
	case OutputFormatJSONL:
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	default:
		_, err := fmt.Fprintln(w, FormatEntry(entry))
		return err
	}
}

// FormatEntry renders an entry as one human-readable line.
func FormatEntry(e *blackboard.Entry) string {
	ts := time.UnixMilli(e.CreatedAtMs).Format("15:04:05")
	if e.Version > 1 {
		return fmt.Sprintf("[%s] 🔄 Field Revised (v%d): %s by=%s, id=%s", ts, e.Version, e.Field, e.ProducedByRole, e.ID)
	}
	return fmt.Sprintf("[%s] ✨ Field Recorded: %s by=%s, id=%s", ts, e.Field, e.ProducedByRole, e.ID)
}

// PollForField polls until field has been recorded in runID and returns its
// latest entry. Polls every 200ms for up to timeout.
func PollForField(ctx context.Context, journal *blackboard.Journal, runID, field string, timeout time.Duration) (*blackboard.Entry, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for %s after %v", field, timeout)

		case <-ticker.C:
			entryID, _, err := journal.LatestVersion(ctx, runID, field)
			if err != nil {
				if blackboard.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query for %s: %w", field, err)
			}

			return journal.GetEntry(ctx, runID, entryID)
		}
	}
}
