// Package orchestrator turns a user request into a project description and hands
// the Project Specification to each agent in turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/agent"
	"github.com/dyluth/autumn/internal/llm"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/prompts"
	"github.com/dyluth/autumn/pkg/blackboard"
	"go.uber.org/zap"
)

const (
	Position  = "Project Manager"
	Objective = "Manage agents who are building an excellent website for the user"
)

// Journal records Project Specification field versions after each agent turn.
// *blackboard.Journal implements it.
type Journal interface {
	StartRun(ctx context.Context, runID string) error
	RecordSpec(ctx context.Context, runID, role string, spec *blackboard.ProjectSpec) ([]*blackboard.Entry, error)
}

// Deps holds everything a run needs. Requester and Agents are required; Journal
// is optional.
type Deps struct {
	Requester *llm.Requester
	Agents    func() []agent.Agent
	Journal   Journal
	RunID     string
	Logger    *zap.Logger
}

// Orchestrator runs one website build from request to finished specification.
type Orchestrator struct {
	attrs     *agent.Attributes
	board     *blackboard.Board
	requester *llm.Requester
	agents    func() []agent.Agent
	journal   Journal
	runID     string
	logger    *zap.Logger
	started   bool
}

// New creates an orchestrator with an empty specification.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Requester == nil {
		return nil, abort.Errorf(abort.KindInternal, "orchestrator", "requester is required")
	}
	if deps.Agents == nil {
		return nil, abort.Errorf(abort.KindInternal, "orchestrator", "agent factory is required")
	}
	if deps.Journal != nil && deps.RunID == "" {
		return nil, abort.Errorf(abort.KindInternal, "orchestrator", "run ID is required when journaling")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		attrs:     agent.NewAttributes(Objective, Position),
		board:     blackboard.NewBoard(),
		requester: deps.Requester,
		agents:    deps.Agents,
		journal:   deps.Journal,
		runID:     deps.RunID,
		logger:    logger.With(logging.Component("orchestrator"), zap.String("run_id", deps.RunID)),
	}, nil
}

// RunID returns the journal run ID, which may be empty.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// ArticulateProjectDescription converts the free-text request into the canonical
// goal statement and stores it as project_description.
func (o *Orchestrator) ArticulateProjectDescription(ctx context.Context, userRequest string) error {
	if userRequest == "" {
		return abort.Errorf(abort.KindPrecondition, Position, "user request cannot be empty")
	}

	goal, err := o.requester.RequestText(ctx, prompts.ConvertUserInputToGoal, userRequest, o.attrs)
	if err != nil {
		return err
	}

	lease, err := o.board.Acquire(Position)
	if err != nil {
		return abort.New(abort.KindInternal, Position, err)
	}
	lease.Spec().SetDescription(goal)
	lease.Release()

	o.logger.Info("project description articulated",
		logging.Event("description_articulated"),
		zap.Int("length", len(goal)))

	return o.record(ctx, Position)
}

// Run drives every agent to Finished in order. The first failure stops the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, a := range o.agents() {
		position := a.Attributes().Position()

		o.logger.Info("agent turn started", logging.Event("agent_started"), zap.String("agent", position))

		if err := o.turn(ctx, a); err != nil {
			o.logger.Error("agent turn failed",
				logging.Event("agent_failed"),
				zap.String("agent", position),
				zap.String("kind", string(abort.KindOf(err))),
				zap.Error(err))
			return attribute(position, err)
		}

		o.logger.Info("agent turn finished",
			logging.Event("agent_finished"),
			zap.String("agent", position),
			zap.Any("states", a.Attributes().History()))

		if err := o.record(ctx, position); err != nil {
			return err
		}
	}

	printer.Success("All agents finished\n")
	return nil
}

func (o *Orchestrator) turn(ctx context.Context, a agent.Agent) error {
	lease, err := o.board.Acquire(a.Attributes().Position())
	if err != nil {
		return err
	}
	defer lease.Release()

	return agent.Drive(ctx, a, lease.Spec())
}

// record journals the fields changed by role. A no-op without a journal.
func (o *Orchestrator) record(ctx context.Context, role string) error {
	if o.journal == nil {
		return nil
	}

	if !o.started {
		if err := o.journal.StartRun(ctx, o.runID); err != nil {
			return abort.New(abort.KindInternal, "journal", fmt.Errorf("failed to start run: %w", err))
		}
		o.started = true
	}

	spec, err := o.board.Snapshot()
	if err != nil {
		return abort.New(abort.KindInternal, "journal", err)
	}

	entries, err := o.journal.RecordSpec(ctx, o.runID, role, spec)
	if err != nil {
		return abort.New(abort.KindInternal, "journal", err)
	}

	for _, e := range entries {
		o.logger.Debug("field recorded",
			logging.Event("field_recorded"),
			zap.String("field", e.Field),
			zap.Int("version", e.Version),
			zap.String("entry_id", e.ID))
	}
	return nil
}

// Spec returns a copy of the Project Specification.
func (o *Orchestrator) Spec() (*blackboard.ProjectSpec, error) {
	return o.board.Snapshot()
}

// Memory returns the manager's own conversation history.
func (o *Orchestrator) Memory() []llm.Message {
	return o.attrs.Memory()
}

// attribute makes sure a failed turn names its agent.
func attribute(position string, err error) error {
	var ae *abort.Error
	if errors.As(err, &ae) {
		if ae.Step == position {
			return err
		}
		return fmt.Errorf("%s: %w", position, err)
	}
	return abort.New(abort.KindInternal, position, err)
}
