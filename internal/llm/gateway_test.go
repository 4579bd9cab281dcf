package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dyluth/autumn/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [
    {"index": 0, "message": {"role": "assistant", "content": "first"}, "finish_reason": "stop"},
    {"index": 1, "message": {"role": "assistant", "content": "second"}, "finish_reason": "stop"}
  ],
  "usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
}`

func providerFor(url string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:      url + "/v1",
		Organization: "org-test",
		APIKey:       "sk-test",
		Model:        "test-model",
	}
}

func TestGateway_Send(t *testing.T) {
	var captured struct {
		path, auth, org string
		body            map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.org = r.Header.Get("OpenAI-Organization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured.body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	defer srv.Close()

	gw := NewGateway(providerFor(srv.URL), zap.NewNop())
	reply, err := gw.Send(context.Background(), []Message{
		{Role: RoleSystem, Content: "FUNCTION: f"},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "first", reply, "only the first choice is used")
	assert.Equal(t, "/v1/chat/completions", captured.path)
	assert.Equal(t, "Bearer sk-test", captured.auth)
	assert.Equal(t, "org-test", captured.org)
	assert.Equal(t, "test-model", captured.body["model"])

	msgs, ok := captured.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestGateway_Non2xxIsTransportError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}))
	defer srv.Close()

	_, err := NewGateway(providerFor(srv.URL), zap.NewNop()).Send(context.Background(), []Message{{Role: RoleSystem, Content: "x"}})

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, int32(1), hits.Load(), "SDK retries must be disabled")
}

func TestGateway_EmptyChoicesIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`)
	}))
	defer srv.Close()

	_, err := NewGateway(providerFor(srv.URL), zap.NewNop()).Send(context.Background(), []Message{{Role: RoleSystem, Content: "x"}})

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.Contains(t, err.Error(), "no choices")
}

func TestGateway_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewGateway(providerFor(url), zap.NewNop()).Send(context.Background(), []Message{{Role: RoleSystem, Content: "x"}})

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}
