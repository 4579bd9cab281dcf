// Package blackboard provides the shared Project Specification that autumn agents
// read and write during a run, the single-writer Board that hands it to one agent
// at a time, and an optional Redis journal of every field version.
package blackboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Field names as they appear in JSON, journal entries and error messages.
const (
	FieldProjectDescription = "project_description"
	FieldProjectScope       = "project_scope"
	FieldExternalURLs       = "external_urls"
	FieldBackendCode        = "backend_code"
	FieldFrontendCode       = "frontend_code"
	FieldAPIEndpointSchema  = "api_endpoint_schema"
)

// Fields lists every Project Specification field in declaration order.
var Fields = []string{
	FieldProjectDescription,
	FieldProjectScope,
	FieldExternalURLs,
	FieldBackendCode,
	FieldFrontendCode,
	FieldAPIEndpointSchema,
}

// ErrFieldMissing is returned when a phase reads a field whose producing phase
// has not run yet.
var ErrFieldMissing = errors.New("required field not present")

// ProjectSpec is the blackboard: a single record shared across all agents for the
// lifetime of one orchestration run. Nil fields are unset.
type ProjectSpec struct {
	ProjectDescription *string       `json:"project_description"`
	ProjectScope       *ProjectScope `json:"project_scope"`
	ExternalURLs       []string      `json:"external_urls"`
	BackendCode        *string       `json:"backend_code"`
	FrontendCode       *string       `json:"frontend_code"`
	APIEndpointSchema  []RouteObject `json:"api_endpoint_schema"`
}

// ProjectScope classifies what the requested website needs.
// At least one flag must be true.
type ProjectScope struct {
	IsCRUDRequired         bool `json:"is_crud_required"`
	IsUserLoginAndLogout   bool `json:"is_user_login_and_logout"`
	IsExternalURLsRequired bool `json:"is_external_urls_required"`
}

// RouteObject describes one REST endpoint of the generated backend.
type RouteObject struct {
	Route          string          `json:"route"`
	Method         string          `json:"method"`
	IsRouteDynamic bool            `json:"is_route_dynamic"`
	RequestBody    json.RawMessage `json:"request_body"`
	Response       json.RawMessage `json:"response"`
}

// Validate checks the producer-side contract that at least one flag is set.
func (s ProjectScope) Validate() error {
	if !s.IsCRUDRequired && !s.IsUserLoginAndLogout && !s.IsExternalURLsRequired {
		return fmt.Errorf("project scope has no capability set: at least one flag must be true")
	}
	return nil
}

// UnmarshalJSON accepts is_route_dynamic either as a JSON bool or as the strings
// "true"/"false", which is how the endpoint prompt asks for it.
func (r *RouteObject) UnmarshalJSON(data []byte) error {
	var raw struct {
		Route          string          `json:"route"`
		Method         string          `json:"method"`
		IsRouteDynamic json.RawMessage `json:"is_route_dynamic"`
		RequestBody    json.RawMessage `json:"request_body"`
		Response       json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	dynamic, err := parseLooseBool(raw.IsRouteDynamic)
	if err != nil {
		return fmt.Errorf("invalid is_route_dynamic for route %q: %w", raw.Route, err)
	}

	*r = RouteObject{
		Route:          raw.Route,
		Method:         raw.Method,
		IsRouteDynamic: dynamic,
		RequestBody:    raw.RequestBody,
		Response:       raw.Response,
	}
	return nil
}

func parseLooseBool(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("expected bool or string, got %s", raw)
	}
	return strconv.ParseBool(s)
}

// RequireDescription returns the project description or ErrFieldMissing.
func (p *ProjectSpec) RequireDescription() (string, error) {
	if p.ProjectDescription == nil {
		return "", fmt.Errorf("%s: %w", FieldProjectDescription, ErrFieldMissing)
	}
	return *p.ProjectDescription, nil
}

// RequireScope returns the project scope or ErrFieldMissing.
func (p *ProjectSpec) RequireScope() (ProjectScope, error) {
	if p.ProjectScope == nil {
		return ProjectScope{}, fmt.Errorf("%s: %w", FieldProjectScope, ErrFieldMissing)
	}
	return *p.ProjectScope, nil
}

// RequireBackendCode returns the generated backend code or ErrFieldMissing.
func (p *ProjectSpec) RequireBackendCode() (string, error) {
	if p.BackendCode == nil {
		return "", fmt.Errorf("%s: %w", FieldBackendCode, ErrFieldMissing)
	}
	return *p.BackendCode, nil
}

// SetDescription stores the canonical goal statement.
func (p *ProjectSpec) SetDescription(description string) {
	p.ProjectDescription = &description
}

// SetScope stores the scope classification.
func (p *ProjectSpec) SetScope(scope ProjectScope) {
	p.ProjectScope = &scope
}

// SetExternalURLs stores the candidate external endpoints. The slice is copied.
func (p *ProjectSpec) SetExternalURLs(urls []string) {
	p.ExternalURLs = append(make([]string, 0, len(urls)), urls...)
}

// SetBackendCode replaces the generated backend code.
func (p *ProjectSpec) SetBackendCode(code string) {
	p.BackendCode = &code
}

// SetFrontendCode replaces the generated frontend code.
func (p *ProjectSpec) SetFrontendCode(code string) {
	p.FrontendCode = &code
}

// SetAPIEndpointSchema replaces the route list.
func (p *ProjectSpec) SetAPIEndpointSchema(routes []RouteObject) {
	p.APIEndpointSchema = append(make([]RouteObject, 0, len(routes)), routes...)
}

// RetainURLs filters ExternalURLs in place, keeping only entries for which keep
// returns true. Order is preserved and nothing is ever added. Returns the removed
// URLs in their original order.
func (p *ProjectSpec) RetainURLs(keep func(url string) bool) []string {
	if p.ExternalURLs == nil {
		return nil
	}

	kept := p.ExternalURLs[:0]
	var removed []string
	for _, u := range p.ExternalURLs {
		if keep(u) {
			kept = append(kept, u)
		} else {
			removed = append(removed, u)
		}
	}
	p.ExternalURLs = kept
	return removed
}

// Clone returns a deep copy of the specification.
func (p *ProjectSpec) Clone() *ProjectSpec {
	out := &ProjectSpec{}
	if p.ProjectDescription != nil {
		out.SetDescription(*p.ProjectDescription)
	}
	if p.ProjectScope != nil {
		out.SetScope(*p.ProjectScope)
	}
	if p.ExternalURLs != nil {
		out.SetExternalURLs(p.ExternalURLs)
	}
	if p.BackendCode != nil {
		out.SetBackendCode(*p.BackendCode)
	}
	if p.FrontendCode != nil {
		out.SetFrontendCode(*p.FrontendCode)
	}
	if p.APIEndpointSchema != nil {
		routes := make([]RouteObject, len(p.APIEndpointSchema))
		for i, r := range p.APIEndpointSchema {
			routes[i] = r
			routes[i].RequestBody = append(json.RawMessage(nil), r.RequestBody...)
			routes[i].Response = append(json.RawMessage(nil), r.Response...)
		}
		out.APIEndpointSchema = routes
	}
	return out
}

// FieldValues returns the JSON encoding of every set field, keyed by field name.
// Unset fields are omitted. Used by the journal to detect changed fields.
func (p *ProjectSpec) FieldValues() (map[string]string, error) {
	values := make(map[string]string, len(Fields))
	add := func(name string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		values[name] = string(data)
		return nil
	}

	if p.ProjectDescription != nil {
		if err := add(FieldProjectDescription, *p.ProjectDescription); err != nil {
			return nil, err
		}
	}
	if p.ProjectScope != nil {
		if err := add(FieldProjectScope, *p.ProjectScope); err != nil {
			return nil, err
		}
	}
	if p.ExternalURLs != nil {
		if err := add(FieldExternalURLs, p.ExternalURLs); err != nil {
			return nil, err
		}
	}
	if p.BackendCode != nil {
		if err := add(FieldBackendCode, *p.BackendCode); err != nil {
			return nil, err
		}
	}
	if p.FrontendCode != nil {
		if err := add(FieldFrontendCode, *p.FrontendCode); err != nil {
			return nil, err
		}
	}
	if p.APIEndpointSchema != nil {
		if err := add(FieldAPIEndpointSchema, p.APIEndpointSchema); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Entry is one immutable version of a Project Specification field, as recorded
// in the journal after the agent that produced it finished its turn.
type Entry struct {
	ID             string `json:"id"`               // UUID of this entry
	RunID          string `json:"run_id"`           // UUID of the orchestration run
	Field          string `json:"field"`            // Project Specification field name
	Version        int    `json:"version"`          // Starts at 1 per (run, field)
	Payload        string `json:"payload"`          // JSON encoding of the field value
	ProducedByRole string `json:"produced_by_role"` // Agent position, or "user"
	CreatedAtMs    int64  `json:"created_at_ms"`
}

// Validate checks if the Entry has valid field values.
func (e *Entry) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}

	if !isValidUUID(e.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	if !isKnownField(e.Field) {
		return fmt.Errorf("unknown field: %q", e.Field)
	}

	if e.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", e.Version)
	}

	if e.ProducedByRole == "" {
		return fmt.Errorf("produced_by_role cannot be empty")
	}

	if !json.Valid([]byte(e.Payload)) {
		return fmt.Errorf("payload for %s is not valid JSON", e.Field)
	}

	return nil
}

func isKnownField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
