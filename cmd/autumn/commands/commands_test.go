package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/autumn/internal/config"
	"github.com/dyluth/autumn/internal/printer"
	"github.com/dyluth/autumn/internal/prompts"
	"github.com/dyluth/autumn/internal/scaffold"
	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cannedReplies = map[string]string{
	prompts.ConvertUserInputToGoal.Name:     "build a website that tracks todo items",
	prompts.PrintProjectScope.Name:          `{"is_crud_required": true, "is_user_login_and_logout": false, "is_external_urls_required": false}`,
	prompts.PrintBackendWebserverCode.Name:  "```rust\nfn main() { /* v1 */ }\n```",
	prompts.PrintImprovedWebserverCode.Name: "fn main() { /* v2 */ }",
	prompts.PrintRestAPIEndpoints.Name:      `[{"route": "/todo", "is_route_dynamic": "false", "method": "get", "request_body": "None", "response": []}]`,
	prompts.PrintFrontendCode.Name:          "<html><body>todo</body></html>",
}

// fakeProvider answers chat completions by recognising the prompt contract in
// the instruction.
func fakeProvider(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var asked []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		reply := ""
		for _, p := range prompts.All() {
			if strings.Contains(body.Messages[0].Content, p.Contract) {
				mu.Lock()
				asked = append(asked, p.Name)
				mu.Unlock()
				reply = cannedReplies[p.Name]
				break
			}
		}

		content, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":`+string(content)+`}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &asked
}

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	restore := printer.SetOutput(&out, &out)
	defer restore()

	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()

	err := Execute()
	return out.String(), err
}

func TestRootCommand_ShowsHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "autumn")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := execute(t, "--goal", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRun_EndToEnd(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs a POSIX shell for the build command")
	}

	dir := t.TempDir()
	t.Chdir(dir)
	restore := printer.SetOutput(io.Discard, io.Discard)
	_, err := scaffold.Initialize(dir, false)
	restore()
	require.NoError(t, err)

	srv, asked := fakeProvider(t)
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Provider.BaseURL = srv.URL + "/v1"
	cfg.Provider.Organization = "org-test"
	cfg.Provider.APIKey = "sk-test"
	cfg.Build.Command = []string{"sh", "-c", "test -f src/main.rs"}
	cfg.Journal.RedisURL = "redis://" + mr.Addr()
	cfgPath := filepath.Join(dir, "autumn-test.yml")
	require.NoError(t, config.Write(cfgPath, cfg))

	out, err := execute(t, "run", "--config", cfgPath, "--yes", "I", "need", "a", "todo", "app")
	require.NoError(t, err, out)

	assert.Equal(t, []string{
		prompts.ConvertUserInputToGoal.Name,
		prompts.PrintProjectScope.Name,
		prompts.PrintBackendWebserverCode.Name,
		prompts.PrintImprovedWebserverCode.Name,
		prompts.PrintRestAPIEndpoints.Name,
		prompts.PrintFrontendCode.Name,
	}, *asked)

	backendCode, err := os.ReadFile(filepath.Join(dir, config.DefaultBackendOutput))
	require.NoError(t, err)
	assert.Equal(t, "fn main() { /* v2 */ }", string(backendCode))

	page, err := os.ReadFile(filepath.Join(dir, config.DefaultFrontendOutput))
	require.NoError(t, err)
	assert.Equal(t, "<html><body>todo</body></html>", string(page))

	assert.Contains(t, out, "Project: build a website that tracks todo items")
	assert.Contains(t, out, "GET    /todo")
	assert.Contains(t, out, "autumn hoard --run")

	out, err = execute(t, "hoard", "--config", cfgPath, "--field", "backend_code", "--output", "jsonl")
	require.NoError(t, err, out)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1, "fields are journaled once per agent turn")
	var entry blackboard.Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, "Backend Developer", entry.ProducedByRole)
	assert.Equal(t, `"fn main() { /* v2 */ }"`, entry.Payload)

	out, err = execute(t, "hoard", "--config", cfgPath, "--runs")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Runs (newest first):")
}

func TestRun_MissingCredentialsIsConfigError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("AUTUMN_PROVIDER_API_KEY", "")
	t.Setenv("OPEN_AI_KEY", "")
	t.Setenv("OPEN_AI_ORG", "")
	t.Setenv("AUTUMN_PROVIDER_ORGANIZATION", "")

	cfgPath := filepath.Join(dir, "autumn.yml")
	require.NoError(t, config.Write(cfgPath, config.Default()))

	out, err := execute(t, "run", "--config", cfgPath, "a todo app")
	require.Error(t, err)
	assert.Contains(t, out, "configuration error")
	assert.Contains(t, out, "kind: config")
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, "init")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(dir, config.DefaultPath))
	assert.FileExists(t, filepath.Join(dir, config.DefaultTemplatePath))

	out, err = execute(t, "init")
	require.Error(t, err)
	assert.Contains(t, out, "autumn init --force")
}
