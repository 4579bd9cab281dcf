package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/dyluth/autumn/internal/prompts"
	"go.uber.org/zap"
)

// maxAttempts bounds how often one exchange is sent: the first try plus one retry.
const maxAttempts = 2

// Requester turns a prompt contract and an input into a model reply.
type Requester struct {
	sender Sender
	logger *zap.Logger
}

// NewRequester creates a requester sending through sender.
func NewRequester(sender Sender, logger *zap.Logger) *Requester {
	return &Requester{
		sender: sender,
		logger: logger.With(logging.Component("requester")),
	}
}

// Instruction builds the single system message that asks the model to act as the
// function described by prompt, applied to input.
func Instruction(prompt prompts.Prompt, position, input string) Message {
	content := fmt.Sprintf("FUNCTION: %s\n"+
		"INSTRUCTION: You are a function printer working for the %s. "+
		"You ONLY print the results of functions. Nothing else. No commentary. "+
		"Here is the input to the function: %s. "+
		"Print out what the function will return.",
		prompt.Contract, position, input)
	return Message{Role: RoleSystem, Content: content}
}

// RequestText sends prompt applied to input and returns the raw reply. A failed
// send is retried exactly once; a second failure is an abort.KindTransport error.
// On success the instruction and reply are appended to the caller's memory.
func (r *Requester) RequestText(ctx context.Context, prompt prompts.Prompt, input string, caller Caller) (string, error) {
	instruction := Instruction(prompt, caller.Position(), input)
	msgs := []Message{instruction}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := r.sender.Send(ctx, msgs)
		if err == nil {
			caller.Remember(instruction, Message{Role: RoleAssistant, Content: reply})
			r.logger.Debug("exchange completed",
				logging.Event("exchange_completed"),
				zap.String("prompt", prompt.Name),
				zap.String("agent", caller.Position()),
				zap.Int("attempt", attempt))
			return reply, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", prompt.Name, ctx.Err())
		}

		r.logger.Warn("exchange failed",
			logging.Event("exchange_failed"),
			zap.String("prompt", prompt.Name),
			zap.String("agent", caller.Position()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return "", abort.New(abort.KindTransport, prompt.Name,
		fmt.Errorf("no reply after %d attempts: %w", maxAttempts, lastErr))
}

// validator is implemented by reply types that carry their own contract checks.
type validator interface {
	Validate() error
}

// RequestTyped sends prompt applied to input and decodes the reply as JSON into T.
// Surrounding whitespace and one markdown code fence are stripped first. Decode
// and validation failures are abort.KindProtocol errors and are never retried.
func RequestTyped[T any](ctx context.Context, r *Requester, prompt prompts.Prompt, input string, caller Caller) (T, error) {
	var zero T

	reply, err := r.RequestText(ctx, prompt, input, caller)
	if err != nil {
		return zero, err
	}

	body := StripCodeFence(reply)
	if body == "null" {
		return zero, abort.Errorf(abort.KindProtocol, prompt.Name, "reply is JSON null")
	}

	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return zero, abort.New(abort.KindProtocol, prompt.Name,
			fmt.Errorf("reply does not decode as %T: %w", v, err))
	}

	if vd, ok := any(v).(validator); ok {
		if err := vd.Validate(); err != nil {
			return zero, abort.New(abort.KindProtocol, prompt.Name, err)
		}
	} else if vd, ok := any(&v).(validator); ok {
		if err := vd.Validate(); err != nil {
			return zero, abort.New(abort.KindProtocol, prompt.Name, err)
		}
	}

	return v, nil
}

// StripCodeFence trims surrounding whitespace and, if the text is wrapped in a
// single markdown code fence (optionally tagged with a language), removes it.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}

	inner := strings.TrimSuffix(text, "```")
	newline := strings.IndexByte(inner, '\n')
	if newline < 0 {
		return text
	}
	return strings.TrimSpace(inner[newline+1:])
}
