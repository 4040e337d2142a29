// Package serializer turns processed fields into file bytes.
package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
	"gopkg.in/yaml.v3"
)

// Serializer writes one file format.
type Serializer interface {
	// Serialize converts the fields to bytes.
	Serialize(fields core.Fields, transforms []siteconfig.FieldTransforms) ([]byte, error)
}

var defaults = map[siteconfig.Format]Serializer{
	siteconfig.FormatJSON:        JSONSerializer{},
	siteconfig.FormatYAML:        YAMLSerializer{},
	siteconfig.FormatYML:         YAMLSerializer{},
	siteconfig.FormatFrontmatter: FrontmatterSerializer{},
}

// Serialize encodes fields in format.
func Serialize(fields core.Fields, format siteconfig.Format, transforms []siteconfig.FieldTransforms) ([]byte, error) {
	s, ok := defaults[format]
	if !ok {
		return nil, core.Errorf(core.KindUnsupportedFormat, core.CodeInvalidFormat, "unsupported format %q", format)
	}
	return s.Serialize(fields, transforms)
}

// Extension returns the file extension for format.
func Extension(format siteconfig.Format) (string, error) {
	ext, ok := format.Extension()
	if !ok {
		return "", core.Errorf(core.KindUnsupportedFormat, core.CodeInvalidFormat, "unsupported format %q", format)
	}
	return ext, nil
}

// --- JSON Serializer ---

// JSONSerializer writes indented JSON.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(fields core.Fields, _ []siteconfig.FieldTransforms) ([]byte, error) {
	data, err := json.MarshalIndent(map[string]any(fields), "", "  ")
	if err != nil {
		return nil, core.WrapError(core.KindSerializationFailed, core.CodeSerialization, err)
	}
	return data, nil
}

// --- YAML Serializer ---

// YAMLSerializer writes a YAML mapping.
type YAMLSerializer struct{}

func (YAMLSerializer) Serialize(fields core.Fields, _ []siteconfig.FieldTransforms) ([]byte, error) {
	return marshalYAML(fields)
}

// --- Frontmatter Serializer ---

// FrontmatterSerializer writes a YAML header followed by a body taken from
// the one field marked with the frontmatterContent transform.
type FrontmatterSerializer struct{}

func (FrontmatterSerializer) Serialize(fields core.Fields, transforms []siteconfig.FieldTransforms) ([]byte, error) {
	contentField, err := ContentField(transforms)
	if err != nil {
		return nil, err
	}

	header := fields.Clone()
	body := ""
	if v, ok := header[contentField]; ok && v != nil {
		body = fmt.Sprint(v)
	}
	delete(header, contentField)

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(header) > 0 {
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(map[string]any(header)); err != nil {
			return nil, core.WrapError(core.KindSerializationFailed, core.CodeSerialization, err)
		}
		if err := encoder.Close(); err != nil {
			return nil, core.WrapError(core.KindSerializationFailed, core.CodeSerialization, err)
		}
	}
	buf.WriteString("---\n")
	buf.WriteString(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ContentField returns the single field declared with frontmatterContent.
func ContentField(transforms []siteconfig.FieldTransforms) (string, error) {
	var names []string
	for _, ft := range transforms {
		if ft.Has(siteconfig.TransformFrontmatterContent) {
			names = append(names, ft.Field)
		}
	}

	switch len(names) {
	case 0:
		return "", core.NewError(core.KindSerializationFailed, core.CodeNoFrontmatterContent)
	case 1:
		return names[0], nil
	}
	return "", core.NewError(core.KindSerializationFailed, core.CodeMultipleFrontmatter, names...)
}

// --- Helpers ---

func marshalYAML(fields core.Fields) (data []byte, err error) {
	// yaml.v3 panics on values it cannot represent.
	defer func() {
		if r := recover(); r != nil {
			err = core.WrapError(core.KindSerializationFailed, core.CodeSerialization, fmt.Errorf("%v", r))
		}
	}()

	data, err = yaml.Marshal(map[string]any(fields))
	if err != nil {
		return nil, core.WrapError(core.KindSerializationFailed, core.CodeSerialization, err)
	}
	return data, nil
}
