package cue

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestValidator_Valid(t *testing.T) {
	v, err := NewManifestValidator()
	require.NoError(t, err)

	manifest, err := v.Validate([]byte(`{
  "name": "app",
  "version": "2.4.1",
  "tier": "complete",
  "architecture": "arm64",
  "runtime_version": "20.11.0",
  "components": [{"name": "formatter", "version": "1.0.0"}],
  "build": {"commit": "abc123"}
}`))
	require.NoError(t, err)

	assert.Equal(t, "app", manifest.Name)
	assert.Equal(t, "2.4.1", manifest.Version)
	assert.Equal(t, "complete", manifest.Tier)
	assert.Equal(t, "arm64", manifest.Architecture)
	assert.Equal(t, []string{"formatter"}, manifest.ComponentNames())
}

func TestManifestValidator_SchemaViolations(t *testing.T) {
	v, err := NewManifestValidator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		json      string
		wantField string
	}{
		{"missing version", `{"name": "app"}`, "version"},
		{"bad version", `{"name": "app", "version": "latest"}`, "version"},
		{"empty name", `{"name": "", "version": "1.0.0"}`, "name"},
		{"unknown tier", `{"name": "app", "version": "1.0.0", "tier": "huge"}`, "tier"},
		{"wrong type", `{"name": "app", "version": 1}`, "version"},
		{"component without name", `{"name": "app", "version": "1.0.0", "components": [{"version": "1"}]}`, "components.0.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate([]byte(tt.json))
			require.Error(t, err)

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr), "error %v is not a SchemaError", err)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestManifestValidator_MalformedJSON(t *testing.T) {
	v, err := NewManifestValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"name": "app", "version": `))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid JSON"), "got %v", err)
}

func TestManifestValidator_MalformedJSONNamesField(t *testing.T) {
	v, err := NewManifestValidator()
	require.NoError(t, err)

	_, err = v.Validate([]byte(`{"name": "app", "version": 1.2.3}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "version"`)
}

func TestMalformedField(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"valid", `{"name": "app"}`, ""},
		{"truncated value", `{"name": "app", "version": `, "version"},
		{"bad literal", `{"name": "app", "tier": full}`, "tier"},
		{"nested array", `{"components": [{"name": "a"}, {"name": }]}`, "components.1.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, malformedField([]byte(tt.json)))
		})
	}
}
