// Package hoard prints the journal of Project Specification versions recorded
// by past runs.
package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/autumn/internal/filter"
	"github.com/dyluth/autumn/pkg/blackboard"
)

// OutputFormat specifies how to format the entry list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete entries as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat maps a --output flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (use 'default' or 'jsonl')", s)
	}
}

// ListEntries writes the entries of one run that match filters, oldest first.
// Malformed entries are reported on warn and skipped.
func ListEntries(ctx context.Context, journal *blackboard.Journal, runID string, format OutputFormat, filters *filter.Criteria, w, warn io.Writer) error {
	entries, skipped, err := journal.ListEntries(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	for _, s := range skipped {
		fmt.Fprintf(warn, "⚠️  Skipping malformed entry: %v\n", s)
	}

	matched := entries[:0]
	for _, e := range entries {
		if filters.Matches(e) {
			matched = append(matched, e)
		}
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, matched, runID)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, matched); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// ListRuns writes the recorded run IDs, newest first.
func ListRuns(ctx context.Context, journal *blackboard.Journal, w io.Writer) error {
	runs, err := journal.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	fmt.Fprintln(w, "Runs (newest first):")
	for _, run := range runs {
		fmt.Fprintf(w, "  %s\n", run)
	}
	return nil
}
