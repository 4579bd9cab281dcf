package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/dyluth/autumn/internal/prompts"
	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSender returns the next scripted reply or error on each call.
type scriptedSender struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]Message
}

func (s *scriptedSender) Send(ctx context.Context, msgs []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.calls)
	s.calls = append(s.calls, msgs)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("script exhausted")
}

type testCaller struct {
	position string
	memory   []Message
}

func (c *testCaller) Position() string         { return c.position }
func (c *testCaller) Remember(msgs ...Message) { c.memory = append(c.memory, msgs...) }

func newCaller() *testCaller { return &testCaller{position: "Solutions Architect"} }

func TestInstruction(t *testing.T) {
	msg := Instruction(prompts.PrintSiteURLs, "Solutions Architect", "build a forex site")

	assert.Equal(t, RoleSystem, msg.Role)
	assert.Contains(t, msg.Content, "FUNCTION: "+prompts.PrintSiteURLs.Contract)
	assert.Contains(t, msg.Content, "You are a function printer")
	assert.Contains(t, msg.Content, "Solutions Architect")
	assert.Contains(t, msg.Content, "Here is the input to the function: build a forex site.")
}

func TestRequestText_Success(t *testing.T) {
	sender := &scriptedSender{replies: []string{"build a website that tracks forex"}}
	caller := newCaller()
	r := NewRequester(sender, zap.NewNop())

	reply, err := r.RequestText(context.Background(), prompts.ConvertUserInputToGoal, "forex site", caller)
	require.NoError(t, err)
	assert.Equal(t, "build a website that tracks forex", reply)

	require.Len(t, sender.calls, 1)
	require.Len(t, sender.calls[0], 1)

	require.Len(t, caller.memory, 2)
	assert.Equal(t, sender.calls[0][0], caller.memory[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: reply}, caller.memory[1])
}

func TestRequestText_RetriesOnce(t *testing.T) {
	logger, logs := logging.NewTest()
	sender := &scriptedSender{
		errs:    []error{&TransportError{StatusCode: 503, Err: errors.New("unavailable")}},
		replies: []string{"", "ok"},
	}
	caller := newCaller()

	reply, err := NewRequester(sender, logger).RequestText(context.Background(), prompts.PrintFixedCode, "code", caller)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Len(t, sender.calls, 2)
	assert.Equal(t, sender.calls[0], sender.calls[1], "retry must resend the same conversation")
	assert.Len(t, caller.memory, 2, "failed attempt must not be remembered")
	assert.Equal(t, 1, logs.FilterMessage("exchange failed").Len())
}

func TestRequestText_TwoFailuresAreFatal(t *testing.T) {
	sender := &scriptedSender{errs: []error{errors.New("down"), errors.New("still down")}}
	caller := newCaller()

	_, err := NewRequester(sender, zap.NewNop()).RequestText(context.Background(), prompts.PrintProjectScope, "x", caller)
	require.Error(t, err)
	assert.Equal(t, abort.KindTransport, abort.KindOf(err))
	assert.Equal(t, prompts.PrintProjectScope.Name, abort.StepOf(err))
	assert.Contains(t, err.Error(), "still down")
	assert.Len(t, sender.calls, 2)
	assert.Empty(t, caller.memory)
}

func TestRequestText_CancelledContextNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sender := &scriptedSender{errs: []error{context.Canceled}}

	_, err := NewRequester(sender, zap.NewNop()).RequestText(ctx, prompts.PrintSiteURLs, "x", newCaller())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sender.calls, 1)
}

func TestRequestTyped_ProjectScope(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  blackboard.ProjectScope
	}{
		{
			name:  "plain json",
			reply: `{"is_crud_required": true, "is_user_login_and_logout": false, "is_external_urls_required": true}`,
			want:  blackboard.ProjectScope{IsCRUDRequired: true, IsExternalURLsRequired: true},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"is_crud_required\": false, \"is_user_login_and_logout\": true, \"is_external_urls_required\": false}\n```\n",
			want:  blackboard.ProjectScope{IsUserLoginAndLogout: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRequester(&scriptedSender{replies: []string{tt.reply}}, zap.NewNop())
			got, err := RequestTyped[blackboard.ProjectScope](context.Background(), r, prompts.PrintProjectScope, "desc", newCaller())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestTyped_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "prose", reply: "Sure! Here is the scope you asked for."},
		{name: "null", reply: "null"},
		{name: "wrong shape", reply: `["a", "b"]`},
		{name: "no flag set", reply: `{"is_crud_required": false, "is_user_login_and_logout": false, "is_external_urls_required": false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &scriptedSender{replies: []string{tt.reply, tt.reply}}
			r := NewRequester(sender, zap.NewNop())

			_, err := RequestTyped[blackboard.ProjectScope](context.Background(), r, prompts.PrintProjectScope, "desc", newCaller())
			require.Error(t, err)
			assert.Equal(t, abort.KindProtocol, abort.KindOf(err))
			assert.Len(t, sender.calls, 1, "protocol errors are never retried")
		})
	}
}

func TestRequestTyped_URLList(t *testing.T) {
	r := NewRequester(&scriptedSender{replies: []string{`["https://a.example", "https://b.example"]`}}, zap.NewNop())

	urls, err := RequestTyped[[]string](context.Background(), r, prompts.PrintSiteURLs, "desc", newCaller())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, urls)
}

func TestRequestTyped_TransportFailurePropagates(t *testing.T) {
	r := NewRequester(&scriptedSender{errs: []error{errors.New("a"), errors.New("b")}}, zap.NewNop())

	_, err := RequestTyped[[]string](context.Background(), r, prompts.PrintSiteURLs, "desc", newCaller())
	assert.Equal(t, abort.KindTransport, abort.KindOf(err))
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "  {\"a\":1}\n", want: "{\"a\":1}"},
		{in: "```\nfn main() {}\n```", want: "fn main() {}"},
		{in: "```rust\nfn main() {}\n```", want: "fn main() {}"},
		{in: "```json {\"a\":1}```", want: "```json {\"a\":1}```"},
		{in: "text with ``` inside", want: "text with ``` inside"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCodeFence(tt.in), "input %q", tt.in)
	}
}
