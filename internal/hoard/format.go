package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/autumn/pkg/blackboard"
)

// FormatTable writes entries as a table with columns ID, VER, FIELD, BY, AGE and
// PAYLOAD (truncated). Returns the number of entries formatted.
func FormatTable(w io.Writer, entries []*blackboard.Entry, runID string) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No entries found for run '%s'\n", runID)
		return 0
	}

	fmt.Fprintf(w, "Entries for run '%s':\n\n", runID)

	fmt.Fprintf(w, "%-10s %-4s %-12s %-20s %-8s %s\n",
		"ID", "VER", "FIELD", "BY", "AGE", "PAYLOAD")
	fmt.Fprintf(w, "%-10s %-4s %-12s %-20s %-8s %s\n",
		"----------", "----", "------------", "--------------------", "--------", "----------------------------------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-10s %-4s %-12s %-20s %-8s %s\n",
			formatID(e.ID),
			formatVersion(e.Version),
			formatField(e.Field),
			formatProducedBy(e.ProducedByRole),
			formatTimestamp(e.CreatedAtMs),
			formatPayload(e.Payload),
		)
	}

	countMsg := "entry"
	if len(entries) != 1 {
		countMsg = "entries"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), countMsg)

	return len(entries)
}

// FormatJSONL writes entries as line-delimited JSON, one entry per line.
func FormatJSONL(w io.Writer, entries []*blackboard.Entry) error {
	for _, entry := range entries {
		if err := FormatLine(w, entry); err != nil {
			return err
		}
	}
	return nil
}

// FormatLine writes one entry as a single line of JSON.
func FormatLine(w io.Writer, entry *blackboard.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry to JSON: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// FormatSingleJSON writes a single entry as pretty-printed JSON. A payload that
// decodes as JSON is embedded as a value rather than a string.
func FormatSingleJSON(w io.Writer, entry *blackboard.Entry) error {
	view := struct {
		*blackboard.Entry
		Payload json.RawMessage `json:"payload"`
	}{Entry: entry, Payload: json.RawMessage(entry.Payload)}
	if !json.Valid(view.Payload) {
		quoted, _ := json.Marshal(entry.Payload)
		view.Payload = quoted
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// formatID truncates an entry ID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatField shortens field names for the table.
func formatField(field string) string {
	switch field {
	case blackboard.FieldProjectDescription:
		return "description"
	case blackboard.FieldProjectScope:
		return "scope"
	case blackboard.FieldExternalURLs:
		return "urls"
	case blackboard.FieldBackendCode:
		return "backend"
	case blackboard.FieldFrontendCode:
		return "frontend"
	case blackboard.FieldAPIEndpointSchema:
		return "endpoints"
	}

	if len(field) > 12 {
		return field[:9] + "..."
	}
	return field
}

// formatPayload shows the first non-empty line of the payload, at most 40
// characters. String payloads are unquoted first so code reads naturally.
func formatPayload(payload string) string {
	var s string
	if err := json.Unmarshal([]byte(payload), &s); err == nil {
		payload = s
	}

	var firstLine string
	for _, line := range strings.Split(payload, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}

	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}
	return firstLine
}

func formatProducedBy(role string) string {
	if role == "" {
		return "-"
	}
	return role
}

func formatVersion(version int) string {
	return fmt.Sprintf("v%d", version)
}

// formatTimestamp renders a millisecond timestamp as a relative age.
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
