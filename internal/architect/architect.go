// Package architect implements the Solutions Architect: it classifies the
// project scope and, when the site needs third-party data, picks external URLs
// and keeps only the ones that answer.
package architect

import (
	"context"
	"fmt"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/agent"
	"github.com/dyluth/autumn/internal/llm"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/probe"
	"github.com/dyluth/autumn/internal/prompts"
	"github.com/dyluth/autumn/pkg/blackboard"
	"go.uber.org/zap"
)

const (
	Position  = "Solutions Architect"
	Objective = "Gathers information and design solutions for website development"
)

// Architect is the first agent of a run.
type Architect struct {
	attrs       *agent.Attributes
	requester   *llm.Requester
	prober      probe.Prober
	concurrency int
	logger      *zap.Logger
}

// New creates an architect. concurrency bounds simultaneous URL probes.
func New(requester *llm.Requester, prober probe.Prober, concurrency int, logger *zap.Logger) *Architect {
	return &Architect{
		attrs:       agent.NewAttributes(Objective, Position),
		requester:   requester,
		prober:      prober,
		concurrency: concurrency,
		logger:      logger.With(logging.Component("architect")),
	}
}

// Attributes implements agent.Agent.
func (a *Architect) Attributes() *agent.Attributes {
	return a.attrs
}

// RunPhase implements agent.Agent.
func (a *Architect) RunPhase(ctx context.Context, spec *blackboard.ProjectSpec) error {
	switch a.attrs.State() {
	case agent.StateDiscovery:
		return a.discover(ctx, spec)
	case agent.StateUnitTesting:
		return a.testURLs(ctx, spec)
	default:
		return a.attrs.Transition(agent.StateFinished)
	}
}

func (a *Architect) discover(ctx context.Context, spec *blackboard.ProjectSpec) error {
	description, err := spec.RequireDescription()
	if err != nil {
		return abort.New(abort.KindPrecondition, Position, err)
	}

	printer.Agent(printer.KindInfo, Position, "Gathering information and design solutions for website development")

	scope, err := llm.RequestTyped[blackboard.ProjectScope](ctx, a.requester, prompts.PrintProjectScope, description, a.attrs)
	if err != nil {
		return err
	}
	spec.SetScope(scope)

	a.logger.Info("project scope classified",
		logging.Event("scope_classified"),
		zap.Bool("crud", scope.IsCRUDRequired),
		zap.Bool("login", scope.IsUserLoginAndLogout),
		zap.Bool("external_urls", scope.IsExternalURLsRequired))

	if !scope.IsExternalURLsRequired {
		return a.attrs.Transition(agent.StateFinished)
	}

	urls, err := llm.RequestTyped[[]string](ctx, a.requester, prompts.PrintSiteURLs, description, a.attrs)
	if err != nil {
		return err
	}
	spec.SetExternalURLs(urls)

	return a.attrs.Transition(agent.StateUnitTesting)
}

func (a *Architect) testURLs(ctx context.Context, spec *blackboard.ProjectSpec) error {
	if spec.ExternalURLs == nil {
		return abort.New(abort.KindPrecondition, Position,
			fmt.Errorf("%s: %w", blackboard.FieldExternalURLs, blackboard.ErrFieldMissing))
	}

	for _, u := range spec.ExternalURLs {
		printer.Agent(printer.KindTesting, Position, "Testing URL endpoint: "+u)
	}

	results := probe.CheckAll(ctx, a.prober, spec.ExternalURLs, a.concurrency)
	alive := make([]bool, len(results))
	for i, r := range results {
		if r.Alive() {
			alive[i] = true
			continue
		}
		reason := fmt.Sprintf("status %d", r.Status)
		if r.Err != nil {
			reason = r.Err.Error()
		}
		printer.Agent(printer.KindError, Position, fmt.Sprintf("Excluding faulty URL %s (%s)", r.URL, reason))
	}

	// Results are index-aligned with ExternalURLs and RetainURLs visits in order,
	// so duplicate URLs are judged by their own probe.
	next := 0
	removed := spec.RetainURLs(func(string) bool {
		keep := alive[next]
		next++
		return keep
	})

	a.logger.Info("external urls probed",
		logging.Event("urls_probed"),
		zap.Int("kept", len(spec.ExternalURLs)),
		zap.Strings("removed", removed))

	return a.attrs.Transition(agent.StateFinished)
}
