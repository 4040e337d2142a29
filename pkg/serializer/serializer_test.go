package serializer_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/serializer"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var bodyTransform = []siteconfig.FieldTransforms{
	{Field: "message", Transforms: []siteconfig.Transform{siteconfig.TransformFrontmatterContent}},
}

func TestSerialize_JSON(t *testing.T) {
	fields := core.Fields{"name": "Jane", "count": 3, "ok": true}

	data, err := serializer.Serialize(fields, siteconfig.FormatJSON, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\": \"Jane\"")

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, map[string]any{"name": "Jane", "count": 3.0, "ok": true}, back)
}

func TestSerialize_YAML(t *testing.T) {
	fields := core.Fields{"name": "Jane", "message": "multi\nline"}

	for _, format := range []siteconfig.Format{siteconfig.FormatYAML, siteconfig.FormatYML} {
		data, err := serializer.Serialize(fields, format, nil)
		require.NoError(t, err)

		var parsed core.Fields
		require.NoError(t, yaml.Unmarshal(data, &parsed))
		if diff := cmp.Diff(fields, parsed); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSerialize_Frontmatter(t *testing.T) {
	fields := core.Fields{"name": "Jane", "title": "First post", "message": "Hello **world**"}

	data, err := serializer.Serialize(fields, siteconfig.FormatFrontmatter, bodyTransform)
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.True(t, strings.HasSuffix(out, "---\nHello **world**\n"))
	assert.NotContains(t, out, "message:")
	assert.Contains(t, fields, "message", "input must not be mutated")

	header, body, ok := strings.Cut(strings.TrimPrefix(out, "---\n"), "---\n")
	require.True(t, ok)
	var parsed core.Fields
	require.NoError(t, yaml.Unmarshal([]byte(header), &parsed))
	parsed["message"] = strings.TrimSuffix(body, "\n")
	if diff := cmp.Diff(fields, parsed); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSerialize_FrontmatterOnlyBody(t *testing.T) {
	data, err := serializer.Serialize(core.Fields{"message": "just text"}, siteconfig.FormatFrontmatter, bodyTransform)
	require.NoError(t, err)
	assert.Equal(t, "---\n---\njust text\n", string(data))
}

func TestSerialize_Errors(t *testing.T) {
	fields := core.Fields{"name": "Jane", "message": "hi"}

	_, err := serializer.Serialize(fields, siteconfig.FormatFrontmatter, nil)
	assert.Equal(t, core.KindSerializationFailed, core.KindOf(err))
	assert.True(t, core.HasCode(err, core.CodeNoFrontmatterContent))

	two := append([]siteconfig.FieldTransforms{
		{Field: "name", Transforms: []siteconfig.Transform{siteconfig.TransformMD5, siteconfig.TransformFrontmatterContent}},
	}, bodyTransform...)
	_, err = serializer.Serialize(fields, siteconfig.FormatFrontmatter, two)
	assert.True(t, core.HasCode(err, core.CodeMultipleFrontmatter))
	assert.Equal(t, []string{"name", "message"}, core.FieldsFor(err, core.CodeMultipleFrontmatter))

	_, err = serializer.Serialize(fields, "toml", nil)
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))
	assert.True(t, core.HasCode(err, core.CodeInvalidFormat))

	_, err = serializer.Serialize(core.Fields{"fn": func() {}}, siteconfig.FormatJSON, nil)
	assert.Equal(t, core.KindSerializationFailed, core.KindOf(err))
}

func TestExtension(t *testing.T) {
	tests := map[siteconfig.Format]string{
		siteconfig.FormatJSON:        "json",
		siteconfig.FormatYAML:        "yml",
		siteconfig.FormatYML:         "yml",
		siteconfig.FormatFrontmatter: "md",
	}
	for format, want := range tests {
		got, err := serializer.Extension(format)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := serializer.Extension("csv")
	assert.True(t, core.HasCode(err, core.CodeInvalidFormat))
}
