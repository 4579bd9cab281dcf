package blackboard

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectScope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scope   ProjectScope
		wantErr bool
	}{
		{name: "all false rejected", scope: ProjectScope{}, wantErr: true},
		{name: "crud only", scope: ProjectScope{IsCRUDRequired: true}},
		{name: "login only", scope: ProjectScope{IsUserLoginAndLogout: true}},
		{name: "external urls only", scope: ProjectScope{IsExternalURLsRequired: true}},
		{name: "all true", scope: ProjectScope{IsCRUDRequired: true, IsUserLoginAndLogout: true, IsExternalURLsRequired: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProjectScope_JSONFieldNames(t *testing.T) {
	var scope ProjectScope
	err := json.Unmarshal([]byte(`{"is_crud_required": true, "is_user_login_and_logout": false, "is_external_urls_required": true}`), &scope)
	require.NoError(t, err)
	assert.Equal(t, ProjectScope{IsCRUDRequired: true, IsExternalURLsRequired: true}, scope)
}

func TestRouteObject_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		dynamic bool
		wantErr bool
	}{
		{name: "bool true", input: `{"route":"/item/{id}","method":"get","is_route_dynamic":true,"request_body":{},"response":{}}`, dynamic: true},
		{name: "string true", input: `{"route":"/item/{id}","method":"get","is_route_dynamic":"true","request_body":{},"response":{}}`, dynamic: true},
		{name: "string false", input: `{"route":"/items","method":"get","is_route_dynamic":"false"}`},
		{name: "missing", input: `{"route":"/items","method":"get"}`},
		{name: "garbage string", input: `{"route":"/items","method":"get","is_route_dynamic":"maybe"}`, wantErr: true},
		{name: "number", input: `{"route":"/items","method":"get","is_route_dynamic":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RouteObject
			err := json.Unmarshal([]byte(tt.input), &r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dynamic, r.IsRouteDynamic)
			assert.NotEmpty(t, r.Route)
		})
	}
}

func TestProjectSpec_Require(t *testing.T) {
	spec := &ProjectSpec{}

	_, err := spec.RequireDescription()
	assert.ErrorIs(t, err, ErrFieldMissing)
	assert.Contains(t, err.Error(), FieldProjectDescription)

	_, err = spec.RequireScope()
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = spec.RequireBackendCode()
	assert.ErrorIs(t, err, ErrFieldMissing)

	spec.SetDescription("build a todo site")
	spec.SetScope(ProjectScope{IsCRUDRequired: true})
	spec.SetBackendCode("fn main() {}")

	desc, err := spec.RequireDescription()
	require.NoError(t, err)
	assert.Equal(t, "build a todo site", desc)

	scope, err := spec.RequireScope()
	require.NoError(t, err)
	assert.True(t, scope.IsCRUDRequired)

	code, err := spec.RequireBackendCode()
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", code)
}

func TestProjectSpec_SetExternalURLsCopies(t *testing.T) {
	urls := []string{"https://a.example", "https://b.example"}
	spec := &ProjectSpec{}
	spec.SetExternalURLs(urls)

	urls[0] = "mutated"
	assert.Equal(t, "https://a.example", spec.ExternalURLs[0])
}

func TestProjectSpec_RetainURLs(t *testing.T) {
	t.Run("keeps order and reports removed", func(t *testing.T) {
		spec := &ProjectSpec{}
		spec.SetExternalURLs([]string{"a", "b", "c", "d"})

		removed := spec.RetainURLs(func(u string) bool { return u == "a" || u == "c" })

		assert.Equal(t, []string{"a", "c"}, spec.ExternalURLs)
		assert.Equal(t, []string{"b", "d"}, removed)
	})

	t.Run("idempotent", func(t *testing.T) {
		spec := &ProjectSpec{}
		spec.SetExternalURLs([]string{"a", "b", "c"})
		keep := func(u string) bool { return u != "b" }

		spec.RetainURLs(keep)
		first := append([]string(nil), spec.ExternalURLs...)
		removed := spec.RetainURLs(keep)

		assert.Equal(t, first, spec.ExternalURLs)
		assert.Empty(t, removed)
	})

	t.Run("unset stays unset", func(t *testing.T) {
		spec := &ProjectSpec{}
		removed := spec.RetainURLs(func(string) bool { return false })
		assert.Nil(t, spec.ExternalURLs)
		assert.Nil(t, removed)
	})

	t.Run("empty list remains set", func(t *testing.T) {
		spec := &ProjectSpec{}
		spec.SetExternalURLs([]string{"a"})
		spec.RetainURLs(func(string) bool { return false })
		assert.NotNil(t, spec.ExternalURLs)
		assert.Empty(t, spec.ExternalURLs)
	})
}

func TestProjectSpec_Clone(t *testing.T) {
	spec := &ProjectSpec{}
	spec.SetDescription("desc")
	spec.SetScope(ProjectScope{IsExternalURLsRequired: true})
	spec.SetExternalURLs([]string{"https://api.example"})
	spec.SetAPIEndpointSchema([]RouteObject{{Route: "/x", Method: "get", Response: json.RawMessage(`{"a":1}`)}})

	clone := spec.Clone()
	assert.Equal(t, spec, clone)

	*clone.ProjectDescription = "changed"
	clone.ExternalURLs[0] = "changed"
	clone.APIEndpointSchema[0].Response[2] = 'b'

	assert.Equal(t, "desc", *spec.ProjectDescription)
	assert.Equal(t, "https://api.example", spec.ExternalURLs[0])
	assert.JSONEq(t, `{"a":1}`, string(spec.APIEndpointSchema[0].Response))
}

func TestProjectSpec_FieldValues(t *testing.T) {
	spec := &ProjectSpec{}
	values, err := spec.FieldValues()
	require.NoError(t, err)
	assert.Empty(t, values)

	spec.SetDescription("desc")
	spec.SetExternalURLs(nil)

	values, err = spec.FieldValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		FieldProjectDescription: `"desc"`,
		FieldExternalURLs:       `[]`,
	}, values)
}

func validEntry() *Entry {
	return &Entry{
		ID:             uuid.New().String(),
		RunID:          uuid.New().String(),
		Field:          FieldProjectScope,
		Version:        1,
		Payload:        `{"is_crud_required":true}`,
		ProducedByRole: "Solutions Architect",
		CreatedAtMs:    1700000000000,
	}
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Entry)
		errMsg string
	}{
		{name: "valid", mutate: func(e *Entry) {}},
		{name: "bad id", mutate: func(e *Entry) { e.ID = "nope" }, errMsg: "invalid entry ID"},
		{name: "bad run id", mutate: func(e *Entry) { e.RunID = "" }, errMsg: "invalid run ID"},
		{name: "unknown field", mutate: func(e *Entry) { e.Field = "database" }, errMsg: "unknown field"},
		{name: "zero version", mutate: func(e *Entry) { e.Version = 0 }, errMsg: "invalid version"},
		{name: "empty role", mutate: func(e *Entry) { e.ProducedByRole = "" }, errMsg: "produced_by_role"},
		{name: "invalid payload", mutate: func(e *Entry) { e.Payload = "{" }, errMsg: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(e)
			err := e.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
