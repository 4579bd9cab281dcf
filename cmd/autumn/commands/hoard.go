package commands

import (
	"fmt"

	"github.com/dyluth/autumn/internal/filter"
	"github.com/dyluth/autumn/internal/hoard"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/resolver"
	"github.com/dyluth/autumn/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	hoardRunID        string
	hoardRedisURL     string
	hoardOutputFormat string
	hoardSince        string
	hoardUntil        string
	hoardField        string
	hoardAgent        string
	hoardListRuns     bool
)

var hoardCmd = &cobra.Command{
	Use:   "hoard [ENTRY_ID]",
	Short: "Inspect recorded Project Specification versions",
	Long: `Inspect the journal of Project Specification field versions.

List Mode (no ENTRY_ID):
  Displays the entries of one run (the newest unless --run is given) as a
  table or JSONL stream.

Get Mode (with ENTRY_ID):
  Displays one entry as pretty-printed JSON.
  Supports short IDs (e.g., "abc123" instead of the full UUID).

Filters (list mode only):
  --since, --until  - duration ("2h") or RFC3339 timestamp
  --field           - field name glob ("*_code", "project_scope")
  --agent           - exact producer ("Backend Developer")

Examples:
  # List every run
  autumn hoard --runs

  # Backend code versions of the newest run
  autumn hoard --field=backend_code

  # Pipe a run to jq
  autumn hoard --run 5f0c... --output=jsonl | jq -r .payload

  # One entry by short ID
  autumn hoard 9b1c2d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHoard,
}

func init() {
	hoardCmd.Flags().StringVar(&hoardRunID, "run", "", "Run ID (newest run if omitted)")
	hoardCmd.Flags().StringVar(&hoardRedisURL, "redis-url", "", "Journal Redis URL (defaults to journal.redis_url from the config)")
	hoardCmd.Flags().StringVarP(&hoardOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	hoardCmd.Flags().StringVar(&hoardSince, "since", "", "Show entries after time (duration or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardUntil, "until", "", "Show entries before time (duration or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardField, "field", "", "Filter by field name (glob pattern)")
	hoardCmd.Flags().StringVar(&hoardAgent, "agent", "", "Filter by producing agent (exact match)")
	hoardCmd.Flags().BoolVar(&hoardListRuns, "runs", false, "List recorded runs instead of entries")
	rootCmd.AddCommand(hoardCmd)
}

func runHoard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	isGetMode := len(args) > 0

	outputFormat, err := hoard.ParseOutputFormat(hoardOutputFormat)
	if err != nil && !isGetMode {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", hoardOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	journal, err := openReadJournal(ctx, cmd, hoardRedisURL)
	if err != nil {
		return err
	}
	defer journal.Close()

	if hoardListRuns {
		return hoard.ListRuns(ctx, journal, out)
	}

	if isGetMode {
		shortID := args[0]

		fullID, err := resolver.ResolveEntryID(ctx, journal, hoardRunID, shortID)
		if err != nil {
			if resolver.IsNotFoundError(err) {
				return printer.Error(
					fmt.Sprintf("entry with ID '%s' not found", shortID),
					"The specified entry does not exist in the journal.",
					[]string{"List entries of the newest run:\n  autumn hoard"},
				)
			}
			if resolver.IsAmbiguousError(err) {
				ambigErr := err.(*resolver.AmbiguousError)
				return printer.Error("ambiguous short ID", ambigErr.Error(), ambigErr.Suggestions())
			}
			return fmt.Errorf("failed to resolve entry ID: %w", err)
		}

		if err := hoard.GetEntry(ctx, journal, hoardRunID, fullID, out); err != nil {
			if hoard.IsNotFound(err) {
				return printer.Error(
					fmt.Sprintf("entry with ID '%s' not found", fullID),
					"The entry was resolved but could not be fetched.",
					[]string{"This might indicate a race condition. Try again."},
				)
			}
			return fmt.Errorf("failed to get entry: %w", err)
		}
		return nil
	}

	sinceMS, untilMS, err := timespec.ParseRange(hoardSince, hoardUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		FieldGlob:        hoardField,
		AgentRole:        hoardAgent,
	}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid field filter", err.Error(), []string{"Use a glob like '*_code'"})
	}

	runID := hoardRunID
	if runID == "" {
		if runID, err = latestRun(ctx, journal); err != nil {
			return err
		}
	}

	if err := hoard.ListEntries(ctx, journal, runID, outputFormat, criteria, out, cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	return nil
}
