package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/agent"
	"github.com/dyluth/autumn/internal/architect"
	"github.com/dyluth/autumn/internal/backend"
	"github.com/dyluth/autumn/internal/build"
	"github.com/dyluth/autumn/internal/config"
	"github.com/dyluth/autumn/internal/docker"
	"github.com/dyluth/autumn/internal/frontend"
	"github.com/dyluth/autumn/internal/git"
	"github.com/dyluth/autumn/internal/llm"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/dyluth/autumn/internal/operator"
	"github.com/dyluth/autumn/internal/orchestrator"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/probe"
	"github.com/dyluth/autumn/internal/workspace"
	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runAutoApprove bool

var runCmd = &cobra.Command{
	Use:   "run [REQUEST...]",
	Short: "Build a website from a one-sentence request",
	Long: `Build a website from a one-sentence request.

The request is turned into a project description, then the Solutions
Architect, Backend Developer and Frontend Developer each take their turn.
Before generated code is built you are asked to confirm; --yes approves
without asking.

If REQUEST is omitted you are asked for it.

Examples:
  autumn run "a website that tracks my todo items"
  autumn run --yes --config ./autumn.yml "a crypto price dashboard"`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runAutoApprove, "yes", "y", false, "Approve running generated code without asking")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportError(err)
	}
	if runAutoApprove {
		cfg.Operator.AutoApprove = true
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return reportError(abort.New(abort.KindConfig, "logging", err))
	}
	defer logging.Sync(logger)

	logger.Debug("configuration loaded",
		zap.String("base_url", cfg.Provider.BaseURL),
		zap.String("model", cfg.Provider.Model),
		logging.Secret("api_key", cfg.Provider.APIKey),
		zap.Bool("auto_approve", cfg.Operator.AutoApprove))

	terminal := operator.NewTerminalGate(cmd.InOrStdin(), cmd.OutOrStdout())
	var gate operator.Gate = terminal
	if cfg.Operator.AutoApprove {
		gate = operator.AutoGate{}
	}

	request := strings.TrimSpace(strings.Join(args, " "))
	if request == "" {
		request, err = terminal.Ask(ctx, "What website are we building?")
		if err != nil {
			return reportError(abort.New(abort.KindPrecondition, "user request", err))
		}
	}

	warnDirtyOutputs(ctx, cfg)

	journal, runID, err := openRunJournal(ctx, cfg.Journal)
	if err != nil {
		return reportError(err)
	}
	if journal != nil {
		defer journal.Close()
	}

	requester := llm.NewRequester(llm.NewGateway(cfg.Provider, logger), logger)
	sink := workspace.NewFileSink("")
	runner, closeRunner, err := newBuildRunner(ctx, cfg.Build, runID, logger)
	if err != nil {
		return reportError(err)
	}
	defer closeRunner()
	prober := probe.NewHTTPProber(cfg.Probe.Timeout.Duration())

	deps := orchestrator.Deps{
		Requester: requester,
		RunID:     runID,
		Logger:    logger,
		Agents: func() []agent.Agent {
			return []agent.Agent{
				architect.New(requester, prober, cfg.Probe.Concurrency, logger),
				backend.New(requester, sink, runner, gate, backend.Paths{
					Template: cfg.Workspace.TemplatePath,
					Output:   cfg.Workspace.BackendOutput,
					BuildDir: cfg.Workspace.BuildDir,
				}, logger),
				frontend.New(requester, sink, gate, cfg.Workspace.FrontendOutput, logger),
			}
		},
	}
	if journal != nil {
		deps.Journal = journal
	}

	orch, err := orchestrator.New(deps)
	if err != nil {
		return reportError(err)
	}

	printer.Step("Articulating project description\n")
	if err := orch.ArticulateProjectDescription(ctx, request); err != nil {
		return reportError(err)
	}

	if err := orch.Run(ctx); err != nil {
		return reportError(err)
	}

	spec, err := orch.Spec()
	if err != nil {
		return reportError(abort.New(abort.KindInternal, "summary", err))
	}
	printSummary(cfg, spec, runID)
	return nil
}

// openRunJournal connects the optional journal and allocates a run ID.
func openRunJournal(ctx context.Context, cfg config.JournalConfig) (*blackboard.Journal, string, error) {
	if cfg.RedisURL == "" {
		return nil, "", nil
	}

	journal, err := connectJournal(ctx, cfg.RedisURL, cfg.RunPrefix)
	if err != nil {
		return nil, "", abort.New(abort.KindConfig, "journal", err)
	}
	return journal, uuid.NewString(), nil
}

// newBuildRunner builds on the host, or inside build.image when it is set.
func newBuildRunner(ctx context.Context, cfg config.BuildConfig, runID string, logger *zap.Logger) (build.Runner, func(), error) {
	if cfg.Image == "" {
		return build.NewCommandRunner(cfg.Command, cfg.Timeout.Duration(), logger), func() {}, nil
	}

	cli, err := docker.NewClient(ctx)
	if err != nil {
		return nil, nil, abort.New(abort.KindConfig, "build", err)
	}
	runner := build.NewContainerRunner(cli, cfg.Image, cfg.Command, cfg.Timeout.Duration(), runID, logger)
	return runner, func() { cli.Close() }, nil
}

// warnDirtyOutputs warns when generated files would overwrite uncommitted work.
func warnDirtyOutputs(ctx context.Context, cfg *config.Config) {
	dirty, err := git.NewChecker("").DirtyPaths(ctx, cfg.Workspace.BackendOutput, cfg.Workspace.FrontendOutput)
	if err != nil || len(dirty) == 0 {
		return
	}

	printer.Warning("These files have uncommitted changes and will be overwritten:\n")
	for _, line := range dirty {
		printer.Printf("  %s\n", line)
	}
}

func printSummary(cfg *config.Config, spec *blackboard.ProjectSpec, runID string) {
	printer.Println()
	if spec.ProjectDescription != nil {
		printer.Printf("Project: %s\n", *spec.ProjectDescription)
	}
	if spec.ProjectScope != nil {
		printer.Printf("Scope: crud=%t login=%t external_urls=%t\n",
			spec.ProjectScope.IsCRUDRequired,
			spec.ProjectScope.IsUserLoginAndLogout,
			spec.ProjectScope.IsExternalURLsRequired)
	}
	if len(spec.ExternalURLs) > 0 {
		printer.Printf("External URLs: %s\n", strings.Join(spec.ExternalURLs, ", "))
	}
	if spec.BackendCode != nil {
		printer.Printf("Backend: %s\n", cfg.Workspace.BackendOutput)
	}
	for _, r := range spec.APIEndpointSchema {
		printer.Printf("  %-6s %s\n", strings.ToUpper(r.Method), r.Route)
	}
	if spec.FrontendCode != nil {
		printer.Printf("Frontend: %s\n", cfg.Workspace.FrontendOutput)
	}
	if runID != "" {
		printer.Printf("\nJournal: autumn hoard --run %s\n", runID)
	}
}
