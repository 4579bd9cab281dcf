// Package frontend implements the Frontend Developer, which writes a single page
// UI against the endpoints the backend exposes.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/agent"
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
	Position  = "Frontend Developer"
	Objective = "Develops frontend code for the website"
)

// Frontend is the third agent of a run.
type Frontend struct {
	attrs     *agent.Attributes
	requester *llm.Requester
	sink      workspace.Sink
	gate      operator.Gate
	output    string
	logger    *zap.Logger
}

// New creates a frontend developer that writes its page to output.
func New(requester *llm.Requester, sink workspace.Sink, gate operator.Gate, output string, logger *zap.Logger) *Frontend {
	return &Frontend{
		attrs:     agent.NewAttributes(Objective, Position),
		requester: requester,
		sink:      sink,
		gate:      gate,
		output:    output,
		logger:    logger.With(logging.Component("frontend")),
	}
}

// Attributes implements agent.Agent.
func (f *Frontend) Attributes() *agent.Attributes {
	return f.attrs
}

// RunPhase implements agent.Agent.
func (f *Frontend) RunPhase(ctx context.Context, spec *blackboard.ProjectSpec) error {
	switch f.attrs.State() {
	case agent.StateDiscovery:
		if _, err := spec.RequireDescription(); err != nil {
			return abort.New(abort.KindPrecondition, Position, err)
		}
		return f.attrs.Transition(agent.StateWorking)
	case agent.StateWorking:
		return f.writePage(ctx, spec)
	case agent.StateUnitTesting:
		return f.review(ctx)
	default:
		return f.attrs.Transition(agent.StateFinished)
	}
}

func (f *Frontend) writePage(ctx context.Context, spec *blackboard.ProjectSpec) error {
	description, err := spec.RequireDescription()
	if err != nil {
		return abort.New(abort.KindPrecondition, Position, err)
	}

	routes := spec.APIEndpointSchema
	if routes == nil {
		routes = []blackboard.RouteObject{}
	}
	schema, err := json.Marshal(routes)
	if err != nil {
		return abort.New(abort.KindInternal, Position, fmt.Errorf("failed to marshal endpoint schema: %w", err))
	}

	printer.Agent(printer.KindInfo, Position, "Writing frontend code")

	input := fmt.Sprintf("PROJECT DESCRIPTION: %s \n API ENDPOINTS: %s \n", description, schema)
	reply, err := f.requester.RequestText(ctx, prompts.PrintFrontendCode, input, f.attrs)
	if err != nil {
		return err
	}

	code := llm.StripCodeFence(reply)
	if err := f.sink.Write(f.output, code); err != nil {
		return abort.New(abort.KindInternal, Position, err)
	}
	spec.SetFrontendCode(code)

	f.logger.Info("frontend code written",
		logging.Event("code_written"),
		zap.String("path", f.output),
		zap.Int("routes", len(routes)),
		zap.Int("bytes", len(code)))

	return f.attrs.Transition(agent.StateUnitTesting)
}

func (f *Frontend) review(ctx context.Context) error {
	printer.Agent(printer.KindTesting, Position, "Frontend code unit testing: ensuring safe code")

	decision, err := f.gate.Confirm(ctx, Position, "publish generated frontend page "+f.output)
	if err != nil {
		return fmt.Errorf("operator confirmation: %w", err)
	}
	if decision != operator.Approve {
		return abort.Errorf(abort.KindSafety, Position, "operator rejected generated frontend code")
	}

	printer.Agent(printer.KindTesting, Position, "Frontend code approved")
	return f.attrs.Transition(agent.StateFinished)
}
