// Package resolver expands short entry ID prefixes to full UUIDs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/autumn/pkg/blackboard"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResolveEntryID resolves a short ID prefix to a full entry UUID. runID narrows
// the search to one run; "" searches every run.
//
// A full UUID is returned as-is once its existence is confirmed. Prefixes shorter
// than MinShortIDLength are rejected.
func ResolveEntryID(ctx context.Context, journal *blackboard.Journal, runID, shortID string) (string, error) {
	if runID == "" {
		runID = "*"
	}
	shortID = strings.ToLower(shortID)

	if _, err := uuid.Parse(shortID); err == nil && len(shortID) == 36 {
		matches, err := journal.ScanEntryIDs(ctx, runID, shortID)
		if err != nil {
			return "", fmt.Errorf("failed to verify entry existence: %w", err)
		}
		if len(matches) == 0 {
			return "", &NotFoundError{ShortID: shortID}
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}
	if strings.ContainsAny(shortID, "*?[]\\:") {
		return "", fmt.Errorf("short ID %q contains invalid characters", shortID)
	}

	matches, err := journal.ScanEntryIDs(ctx, runID, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for entry: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no entries matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no entries found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple entries matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d entries", e.ShortID, len(e.Matches))
}

// Suggestions lists the matching IDs (up to 10) for display under the error.
func (e *AmbiguousError) Suggestions() []string {
	shown := e.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}

	out := make([]string, 0, len(shown)+2)
	for _, id := range shown {
		out = append(out, "Candidate: "+id)
	}
	if len(e.Matches) > 10 {
		out = append(out, fmt.Sprintf("...and %d more", len(e.Matches)-10))
	}
	return append(out, "Use a longer prefix to uniquely identify the entry")
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
