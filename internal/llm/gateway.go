package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dyluth/autumn/internal/config"
	"github.com/dyluth/autumn/internal/logging"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

// Sender delivers a conversation to the model and returns the text of its reply.
type Sender interface {
	Send(ctx context.Context, msgs []Message) (string, error)
}

// TransportError reports that no usable reply came back: the endpoint was
// unreachable, answered non-2xx, or returned an envelope without choices.
type TransportError struct {
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm transport: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Gateway is a Sender backed by an OpenAI-compatible Chat Completions endpoint.
type Gateway struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewGateway creates a gateway for the configured provider. SDK-level retries are
// disabled; Requester owns retry.
func NewGateway(cfg config.ProviderConfig, logger *zap.Logger) *Gateway {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey.Value()),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}

	if cfg.Organization != "" {
		opts = append(opts, option.WithHeader("OpenAI-Organization", cfg.Organization))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Duration()}))
	}

	logger = logger.With(logging.Component("llm_gateway"))
	logger.Debug("gateway configured",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		logging.Secret("api_key", cfg.APIKey))

	return &Gateway{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

// Send implements Sender. Only the content of the first choice is returned.
func (g *Gateway) Send(ctx context.Context, msgs []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(g.model),
		Messages: toParams(msgs),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &TransportError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", &TransportError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &TransportError{Err: errors.New("response contained no choices")}
	}

	g.logger.Debug("completion received",
		logging.Event("completion_received"),
		zap.String("completion_id", resp.ID),
		zap.Int64("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}
