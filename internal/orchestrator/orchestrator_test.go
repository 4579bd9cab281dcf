package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/agent"
	"github.com/dyluth/autumn/internal/architect"
	"github.com/dyluth/autumn/internal/llm"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/probe"
	"github.com/dyluth/autumn/internal/prompts"
	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type promptSender struct {
	replies map[string]string
	asked   []string
}

func (s *promptSender) Send(ctx context.Context, msgs []llm.Message) (string, error) {
	for _, p := range prompts.All() {
		if strings.Contains(msgs[0].Content, p.Contract) {
			s.asked = append(s.asked, p.Name)
			if reply, ok := s.replies[p.Name]; ok {
				return reply, nil
			}
			return "", errors.New("no reply for " + p.Name)
		}
	}
	return "", errors.New("unknown prompt")
}

// stubAgent runs one phase that applies write to the spec.
type stubAgent struct {
	attrs *agent.Attributes
	write func(*blackboard.ProjectSpec) error
	seen  *[]string
}

func newStub(position string, seen *[]string, write func(*blackboard.ProjectSpec) error) *stubAgent {
	return &stubAgent{attrs: agent.NewAttributes("stub", position), write: write, seen: seen}
}

func (s *stubAgent) Attributes() *agent.Attributes { return s.attrs }

func (s *stubAgent) RunPhase(ctx context.Context, spec *blackboard.ProjectSpec) error {
	*s.seen = append(*s.seen, s.attrs.Position())
	if s.write != nil {
		if err := s.write(spec); err != nil {
			return err
		}
	}
	return s.attrs.Transition(agent.StateFinished)
}

type staticProber map[string]int

func (p staticProber) Probe(ctx context.Context, url string) (int, error) {
	return p[url], nil
}

func quiet(t *testing.T) {
	t.Helper()
	restore := printer.SetOutput(&strings.Builder{}, &strings.Builder{})
	t.Cleanup(restore)
}

func setupJournal(t *testing.T) *blackboard.Journal {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	journal, err := blackboard.NewJournal(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal
}

func goalSender() *promptSender {
	return &promptSender{replies: map[string]string{
		prompts.ConvertUserInputToGoal.Name: "build a website that tracks todo items",
	}}
}

func TestNew_RequiresDependencies(t *testing.T) {
	requester := llm.NewRequester(goalSender(), zap.NewNop())
	agents := func() []agent.Agent { return nil }

	tests := []struct {
		name string
		deps Deps
	}{
		{"missing requester", Deps{Agents: agents}},
		{"missing agents", Deps{Requester: requester}},
		{"journal without run ID", Deps{Requester: requester, Agents: agents, Journal: setupJournal(t)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.deps)
			assert.Error(t, err)
		})
	}
}

func TestArticulateProjectDescription(t *testing.T) {
	quiet(t)
	sender := goalSender()
	o, err := New(Deps{
		Requester: llm.NewRequester(sender, zap.NewNop()),
		Agents:    func() []agent.Agent { return nil },
	})
	require.NoError(t, err)

	require.NoError(t, o.ArticulateProjectDescription(context.Background(), "need a todo app"))

	spec, err := o.Spec()
	require.NoError(t, err)
	require.NotNil(t, spec.ProjectDescription)
	assert.Equal(t, "build a website that tracks todo items", *spec.ProjectDescription)
	assert.Len(t, o.Memory(), 2)

	err = o.ArticulateProjectDescription(context.Background(), "")
	assert.Equal(t, abort.KindPrecondition, abort.KindOf(err))
}

func TestRun_AgentsRunInOrderWithExclusiveAccess(t *testing.T) {
	quiet(t)
	var seen []string
	var o *Orchestrator

	agents := func() []agent.Agent {
		return []agent.Agent{
			newStub("first", &seen, func(spec *blackboard.ProjectSpec) error {
				assert.Equal(t, "first", o.board.Holder())
				spec.SetScope(blackboard.ProjectScope{IsCRUDRequired: true})
				return nil
			}),
			newStub("second", &seen, func(spec *blackboard.ProjectSpec) error {
				assert.Equal(t, "second", o.board.Holder())
				require.NotNil(t, spec.ProjectScope, "second agent sees the first agent's writes")
				spec.SetBackendCode("fn main() {}")
				return nil
			}),
		}
	}

	var err error
	o, err = New(Deps{Requester: llm.NewRequester(goalSender(), zap.NewNop()), Agents: agents})
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, seen)
	assert.Empty(t, o.board.Holder())

	spec, err := o.Spec()
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", *spec.BackendCode)
}

func TestRun_FailureStopsRunAndNamesAgent(t *testing.T) {
	quiet(t)
	var seen []string

	tests := []struct {
		name     string
		err      error
		wantKind abort.Kind
	}{
		{"plain error", errors.New("disk on fire"), abort.KindInternal},
		{"protocol error from a prompt", abort.Errorf(abort.KindProtocol, "print_project_scope", "bad json"), abort.KindProtocol},
		{"safety error from the agent", abort.Errorf(abort.KindSafety, "failing", "rejected"), abort.KindSafety},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			agents := func() []agent.Agent {
				return []agent.Agent{
					newStub("failing", &seen, func(*blackboard.ProjectSpec) error { return tt.err }),
					newStub("never", &seen, nil),
				}
			}
			o, err := New(Deps{Requester: llm.NewRequester(goalSender(), zap.NewNop()), Agents: agents})
			require.NoError(t, err)

			err = o.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, abort.KindOf(err))
			assert.Contains(t, err.Error(), "failing")
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, []string{"failing"}, seen)
			assert.Empty(t, o.board.Holder(), "lease is released on failure")
		})
	}
}

func TestRun_JournalsChangedFields(t *testing.T) {
	quiet(t)
	journal := setupJournal(t)
	runID := uuid.NewString()
	var seen []string

	agents := func() []agent.Agent {
		return []agent.Agent{
			newStub("Solutions Architect", &seen, func(spec *blackboard.ProjectSpec) error {
				spec.SetScope(blackboard.ProjectScope{IsCRUDRequired: true})
				return nil
			}),
			newStub("Backend Developer", &seen, func(spec *blackboard.ProjectSpec) error {
				spec.SetBackendCode("fn main() {}")
				return nil
			}),
			newStub("Frontend Developer", &seen, nil),
		}
	}

	o, err := New(Deps{
		Requester: llm.NewRequester(goalSender(), zap.NewNop()),
		Agents:    agents,
		Journal:   journal,
		RunID:     runID,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, o.ArticulateProjectDescription(ctx, "todo app"))
	require.NoError(t, o.Run(ctx))

	runs, err := journal.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{runID}, runs)

	entries, skipped, err := journal.ListEntries(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, entries, 3)

	byField := map[string]*blackboard.Entry{}
	for _, e := range entries {
		byField[e.Field] = e
		assert.Equal(t, 1, e.Version)
	}
	assert.Equal(t, Position, byField[blackboard.FieldProjectDescription].ProducedByRole)
	assert.Equal(t, "Solutions Architect", byField[blackboard.FieldProjectScope].ProducedByRole)
	assert.Equal(t, "Backend Developer", byField[blackboard.FieldBackendCode].ProducedByRole)
}

func TestRun_ArchitectEndToEnd(t *testing.T) {
	quiet(t)
	sender := &promptSender{replies: map[string]string{
		prompts.ConvertUserInputToGoal.Name: "build a website that shows crypto prices",
		prompts.PrintProjectScope.Name:      `{"is_crud_required": false, "is_user_login_and_logout": false, "is_external_urls_required": true}`,
		prompts.PrintSiteURLs.Name:          `["https://api.live.example", "https://api.dead.example"]`,
	}}
	requester := llm.NewRequester(sender, zap.NewNop())
	prober := staticProber{"https://api.live.example": 200, "https://api.dead.example": 404}

	o, err := New(Deps{
		Requester: requester,
		Agents: func() []agent.Agent {
			return []agent.Agent{architect.New(requester, prober, 2, zap.NewNop())}
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, o.ArticulateProjectDescription(ctx, "crypto prices please"))
	require.NoError(t, o.Run(ctx))

	spec, err := o.Spec()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://api.live.example"}, spec.ExternalURLs)
	assert.True(t, spec.ProjectScope.IsExternalURLsRequired)
	assert.Equal(t, []string{
		prompts.ConvertUserInputToGoal.Name,
		prompts.PrintProjectScope.Name,
		prompts.PrintSiteURLs.Name,
	}, sender.asked)
}

var _ probe.Prober = staticProber{}
