// Package backend implements the Backend Developer: it writes webserver code from
// a template, improves it, and verifies it compiles before extracting the REST
// endpoints it exposes.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/agent"
	"github.com/dyluth/autumn/internal/build"
	"github.com/dyluth/autumn/internal/llm"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/dyluth/autumn/internal/operator"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/prompts"
	"github.com/dyluth/autumn/internal/workspace"
	"github.com/dyluth/autumn/pkg/blackboard"
	"go.uber.org/zap"
)

const (
	Position  = "Backend Developer"
	Objective = "Develops backend code for webserver and json database"
)

// maxRepairPasses is how many times a failed build sends the code back to Working.
const maxRepairPasses = 1

// Paths locates the backend's files.
type Paths struct {
	Template string // code template read during Discovery
	Output   string // where generated code is written
	BuildDir string // directory the build runs in
}

// Backend is the second agent of a run.
type Backend struct {
	attrs     *agent.Attributes
	requester *llm.Requester
	sink      workspace.Sink
	runner    build.Runner
	gate      operator.Gate
	paths     Paths
	logger    *zap.Logger

	bugCount  int
	bugErrors string
	repairs   int
}

// New creates a backend developer.
func New(requester *llm.Requester, sink workspace.Sink, runner build.Runner, gate operator.Gate, paths Paths, logger *zap.Logger) *Backend {
	return &Backend{
		attrs:     agent.NewAttributes(Objective, Position),
		requester: requester,
		sink:      sink,
		runner:    runner,
		gate:      gate,
		paths:     paths,
		logger:    logger.With(logging.Component("backend")),
	}
}

// Attributes implements agent.Agent.
func (b *Backend) Attributes() *agent.Attributes {
	return b.attrs
}

// BugCount returns how many builds have failed since the last successful one.
func (b *Backend) BugCount() int {
	return b.bugCount
}

// RunPhase implements agent.Agent.
func (b *Backend) RunPhase(ctx context.Context, spec *blackboard.ProjectSpec) error {
	switch b.attrs.State() {
	case agent.StateDiscovery:
		return b.writeInitialCode(ctx, spec)
	case agent.StateWorking:
		return b.reviseCode(ctx, spec)
	case agent.StateUnitTesting:
		return b.verify(ctx, spec)
	default:
		return b.attrs.Transition(agent.StateFinished)
	}
}

func (b *Backend) writeInitialCode(ctx context.Context, spec *blackboard.ProjectSpec) error {
	description, err := spec.RequireDescription()
	if err != nil {
		return abort.New(abort.KindPrecondition, Position, err)
	}

	template, err := b.sink.Read(b.paths.Template)
	if err != nil {
		return abort.New(abort.KindPrecondition, Position, fmt.Errorf("code template: %w", err))
	}

	printer.Agent(printer.KindInfo, Position, "Writing initial backend code from template")

	input := fmt.Sprintf("CODE TEMPLATE: %s \n PROJECT DESCRIPTION: %s \n", template, description)
	if err := b.generate(ctx, spec, prompts.PrintBackendWebserverCode, input); err != nil {
		return err
	}

	return b.attrs.Transition(agent.StateWorking)
}

func (b *Backend) reviseCode(ctx context.Context, spec *blackboard.ProjectSpec) error {
	code, err := spec.RequireBackendCode()
	if err != nil {
		return abort.New(abort.KindPrecondition, Position, err)
	}

	if b.bugCount == 0 {
		printer.Agent(printer.KindInfo, Position, "Improving backend code against the project specification")

		specJSON, err := json.Marshal(spec)
		if err != nil {
			return abort.New(abort.KindInternal, Position, fmt.Errorf("failed to marshal project specification: %w", err))
		}
		input := fmt.Sprintf("CODE TEMPLATE: %s \n PROJECT SPECIFICATIONS: %s \n", code, specJSON)
		if err := b.generate(ctx, spec, prompts.PrintImprovedWebserverCode, input); err != nil {
			return err
		}
	} else {
		printer.Agent(printer.KindInfo, Position, fmt.Sprintf("Fixing backend code (failed builds: %d)", b.bugCount))

		input := fmt.Sprintf("BROKEN_CODE: %s \n ERROR_BUGS: %s \n THIS FUNCTION ONLY OUTPUTS CODE. JUST OUTPUT THE CODE.", code, b.bugErrors)
		if err := b.generate(ctx, spec, prompts.PrintFixedCode, input); err != nil {
			return err
		}
	}

	return b.attrs.Transition(agent.StateUnitTesting)
}

// generate asks for code, writes it to the output path and stores it.
func (b *Backend) generate(ctx context.Context, spec *blackboard.ProjectSpec, prompt prompts.Prompt, input string) error {
	reply, err := b.requester.RequestText(ctx, prompt, input, b.attrs)
	if err != nil {
		return err
	}

	code := llm.StripCodeFence(reply)
	if err := b.sink.Write(b.paths.Output, code); err != nil {
		return abort.New(abort.KindInternal, Position, err)
	}
	spec.SetBackendCode(code)

	b.logger.Info("backend code written",
		logging.Event("code_written"),
		zap.String("prompt", prompt.Name),
		zap.String("path", b.paths.Output),
		zap.Int("bytes", len(code)))
	return nil
}

func (b *Backend) verify(ctx context.Context, spec *blackboard.ProjectSpec) error {
	code, err := spec.RequireBackendCode()
	if err != nil {
		return abort.New(abort.KindPrecondition, Position, err)
	}

	printer.Agent(printer.KindTesting, Position, "Backend code unit testing: ensuring safe code")

	decision, err := b.gate.Confirm(ctx, Position, fmt.Sprintf("build %s containing generated code %s", b.paths.BuildDir, b.paths.Output))
	if err != nil {
		return fmt.Errorf("operator confirmation: %w", err)
	}
	if decision != operator.Approve {
		return abort.Errorf(abort.KindSafety, Position, "operator rejected running generated backend code")
	}

	printer.Agent(printer.KindTesting, Position, "Backend code unit testing: building web server")

	result, err := b.runner.RunBuild(ctx, b.paths.BuildDir)
	if err != nil {
		// The build could not run at all; rewriting the code would not help.
		printer.Agent(printer.KindError, Position, "Could not run the build: "+err.Error())
		b.logger.Warn("backend validation failed",
			logging.Event("validation_failed"),
			zap.Error(err))
		return b.attrs.Transition(agent.StateFinished)
	}

	if !result.Succeeded() {
		return b.recordFailedBuild(result)
	}

	b.bugCount = 0
	b.bugErrors = ""
	printer.Agent(printer.KindTesting, Position, "Backend server built successfully")

	routes, err := llm.RequestTyped[[]blackboard.RouteObject](ctx, b.requester, prompts.PrintRestAPIEndpoints, code, b.attrs)
	if err != nil {
		return err
	}
	spec.SetAPIEndpointSchema(routes)

	b.logger.Info("api endpoints extracted",
		logging.Event("endpoints_extracted"),
		zap.Int("routes", len(routes)))

	return b.attrs.Transition(agent.StateFinished)
}

func (b *Backend) recordFailedBuild(result build.Result) error {
	b.bugCount++
	b.bugErrors = result.Stderr
	if b.bugErrors == "" {
		b.bugErrors = result.Stdout
	}

	if b.repairs < maxRepairPasses {
		b.repairs++
		printer.Agent(printer.KindError, Position, "Build failed, sending code back for repair")
		b.logger.Info("backend build failed, repairing",
			logging.Event("repair_started"),
			zap.Int("exit_code", result.ExitCode),
			zap.Int("repair_pass", b.repairs))
		return b.attrs.Transition(agent.StateWorking)
	}

	printer.Agent(printer.KindError, Position, "Build still failing after repair, giving up")
	b.logger.Warn("backend validation failed",
		logging.Event("validation_failed"),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("bug_count", b.bugCount))
	return b.attrs.Transition(agent.StateFinished)
}
