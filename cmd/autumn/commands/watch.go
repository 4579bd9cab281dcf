package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/autumn/internal/filter"
	"github.com/dyluth/autumn/internal/hoard"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/watch"
	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	watchRunID        string
	watchRedisURL     string
	watchOutputFormat string
	watchField        string
	watchAgent        string
	watchUntilField   string
	watchWaitFor      string
	watchTimeout      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream Project Specification changes as agents record them",
	Long: `Stream journal entries of a run in real time.

Output Formats:
  default - Human-readable lines with timestamps
  jsonl   - Line-delimited JSON for programmatic processing

Examples:
  # Follow a run until the frontend is written
  autumn watch --run 5f0c... --until-field frontend_code

  # Block until the endpoint schema exists, then print it
  autumn watch --run 5f0c... --wait-for api_endpoint_schema --timeout 10m`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRunID, "run", "", "Run ID (newest run if omitted)")
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "", "Journal Redis URL (defaults to journal.redis_url from the config)")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	watchCmd.Flags().StringVar(&watchField, "field", "", "Only show fields matching this glob")
	watchCmd.Flags().StringVar(&watchAgent, "agent", "", "Only show entries produced by this agent")
	watchCmd.Flags().StringVar(&watchUntilField, "until-field", "", "Stop after the first entry for this field")
	watchCmd.Flags().StringVar(&watchWaitFor, "wait-for", "", "Poll until this field is recorded, print it and exit")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 5*time.Minute, "How long --wait-for polls")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "jsonl":
		outputFormat = watch.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	for _, field := range []string{watchUntilField, watchWaitFor} {
		if field != "" && !isField(field) {
			return printer.Error(
				"unknown field",
				fmt.Sprintf("%q is not a Project Specification field", field),
				blackboard.Fields,
			)
		}
	}

	journal, err := openReadJournal(ctx, cmd, watchRedisURL)
	if err != nil {
		return err
	}
	defer journal.Close()

	runID := watchRunID
	if runID == "" {
		if runID, err = latestRun(ctx, journal); err != nil {
			return err
		}
	}

	if watchWaitFor != "" {
		return waitForField(ctx, cmd, journal, runID)
	}

	criteria := &filter.Criteria{FieldGlob: watchField, AgentRole: watchAgent}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid field filter", err.Error(), []string{"Use a glob like '*_code'"})
	}

	return watch.Stream(ctx, journal, runID, watch.Options{
		Format:     outputFormat,
		Filters:    criteria,
		UntilField: watchUntilField,
	}, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func waitForField(ctx context.Context, cmd *cobra.Command, journal *blackboard.Journal, runID string) error {
	entry, err := watch.PollForField(ctx, journal, runID, watchWaitFor, watchTimeout)
	if err != nil {
		return printer.ErrorWithContext(
			fmt.Sprintf("%s was not recorded", watchWaitFor),
			err.Error(),
			map[string]string{"run": runID},
			[]string{"Check the run is still in progress:\n  autumn hoard --run " + runID},
		)
	}
	return hoard.FormatSingleJSON(cmd.OutOrStdout(), entry)
}

func isField(name string) bool {
	for _, f := range blackboard.Fields {
		if f == name {
			return true
		}
	}
	return false
}
