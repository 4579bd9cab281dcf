package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/autumn/internal/config"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// connectJournal opens and pings the journal at redisURL.
func connectJournal(ctx context.Context, redisURL, prefix string) (*blackboard.Journal, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	journal, err := blackboard.NewJournal(redisOpts, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	if err := journal.Ping(ctx); err != nil {
		journal.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", redisURL, err)
	}
	return journal, nil
}

// openReadJournal opens the journal for hoard and watch. The --redis-url flag
// wins; otherwise journal settings come from the config file.
func openReadJournal(ctx context.Context, cmd *cobra.Command, redisURL string) (*blackboard.Journal, error) {
	prefix := config.DefaultRunPrefix
	if redisURL == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, printer.Error(
				"journal not configured",
				fmt.Sprintf("No --redis-url given and the config could not be loaded: %v", err),
				[]string{"Pass the journal address:\n  --redis-url redis://localhost:6379/0"},
			)
		}
		redisURL, prefix = cfg.Journal.RedisURL, cfg.Journal.RunPrefix
	}

	if redisURL == "" {
		return nil, printer.Error(
			"journal not configured",
			"journal.redis_url is empty, so runs are not recorded.",
			[]string{
				"Set journal.redis_url in autumn.yml before running",
				"Or pass the journal address:\n  --redis-url redis://localhost:6379/0",
			},
		)
	}

	journal, err := connectJournal(ctx, redisURL, prefix)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			err.Error(),
			map[string]string{"redis_url": redisURL},
			[]string{"Check that Redis is running and reachable"},
		)
	}
	return journal, nil
}

// latestRun returns the newest recorded run ID.
func latestRun(ctx context.Context, journal *blackboard.Journal) (string, error) {
	runs, err := journal.ListRuns(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return "", printer.Error(
			"no runs recorded",
			"The journal holds no runs yet.",
			[]string{"Start one:\n  autumn run \"a website that ...\""},
		)
	}
	return runs[0], nil
}
