package commands

import (
	"context"
	"errors"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/dyluth/autumn/internal/printer"
)

// reportError prints a run-terminating failure with a title and next steps
// chosen by its kind, and returns the error for cobra.
func reportError(err error) error {
	if err == nil {
		return nil
	}

	kind := abort.KindOf(err)
	details := map[string]string{"kind": string(kind)}
	if step := abort.StepOf(err); step != "" {
		details["step"] = step
	}

	var title string
	var suggestions []string

	switch kind {
	case abort.KindConfig:
		title = "configuration error"
		suggestions = []string{
			"Create a config file:\n  autumn init",
			"Or set credentials in the environment:\n  export AUTUMN_PROVIDER_ORGANIZATION=...\n  export AUTUMN_PROVIDER_API_KEY=...",
		}
	case abort.KindTransport:
		title = "LLM endpoint unreachable"
		suggestions = []string{
			"Check provider.base_url and your network connection",
			"Check that provider.api_key and provider.organization are valid",
		}
	case abort.KindProtocol:
		title = "LLM reply did not match the expected format"
		suggestions = []string{"Run again; replies vary between attempts", "Try a more capable provider.model"}
	case abort.KindSafety:
		title = "run stopped by operator"
		suggestions = []string{"Re-run with --yes to approve generated code without asking"}
	case abort.KindPrecondition:
		title = "agent ran before its input was ready"
		suggestions = []string{"Check that workspace.template_path exists (autumn init creates it)"}
	default:
		title = "run failed"
	}

	if errors.Is(err, context.Canceled) {
		title = "run interrupted"
		suggestions = nil
	}

	return printer.ErrorWithContext(title, err.Error(), details, suggestions)
}
