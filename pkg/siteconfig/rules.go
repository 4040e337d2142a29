package siteconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format is the file encoding entries are written in.
type Format string

const (
	FormatJSON        Format = "json"
	FormatYAML        Format = "yaml"
	FormatYML         Format = "yml"
	FormatFrontmatter Format = "frontmatter"
)

// Extension returns the file extension for the format.
// ok is false for formats discuss cannot write.
func (f Format) Extension() (ext string, ok bool) {
	switch f {
	case FormatJSON:
		return "json", true
	case FormatYAML, FormatYML:
		return "yml", true
	case FormatFrontmatter:
		return "md", true
	}
	return "", false
}

// DateFormat selects how a generated date is rendered.
type DateFormat string

const (
	DateTimestamp        DateFormat = "timestamp"
	DateTimestampSeconds DateFormat = "timestamp-seconds"
	DateISO8601          DateFormat = "iso8601"
)

// Rule is a generated-field synthesis rule. The concrete types are
// LiteralRule, DateRule, SlugifyRule and UnknownRule.
type Rule interface {
	isRule()
}

// LiteralRule assigns a configured value as is.
type LiteralRule struct {
	Value any
}

// DateRule synthesizes the current time.
type DateRule struct {
	Format DateFormat
}

// SlugifyRule derives a lower-cased slug from another field.
// Field is empty when options.field was not a string; the rule is then a no-op.
type SlugifyRule struct {
	Field string
}

// UnknownRule is a rule of a type discuss does not know. It writes nothing.
type UnknownRule struct {
	Type string
}

func (LiteralRule) isRule() {}
func (DateRule) isRule()    {}
func (SlugifyRule) isRule() {}
func (UnknownRule) isRule() {}

// GeneratedField binds a rule to the field it writes.
type GeneratedField struct {
	Name string
	Rule Rule
}

// Transform is a declarative one-way mapping applied to a field.
type Transform string

const (
	TransformMD5                Transform = "md5"
	TransformFrontmatterContent Transform = "frontmatterContent"
)

// FieldTransforms lists the transforms declared for one field, in order.
type FieldTransforms struct {
	Field      string
	Transforms []Transform
}

// Has reports whether t is declared.
func (ft FieldTransforms) Has(t Transform) bool {
	for _, x := range ft.Transforms {
		if x == t {
			return true
		}
	}
	return false
}

// parseGeneratedFields keeps the declaration order of the mapping so rules
// that read other generated fields behave predictably.
func parseGeneratedFields(node *yaml.Node) ([]GeneratedField, error) {
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("generatedFields must be a mapping")
	}

	out := make([]GeneratedField, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		rule, err := parseRule(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("generatedFields.%s: %w", name, err)
		}
		out = append(out, GeneratedField{Name: name, Rule: rule})
	}
	return out, nil
}

func parseRule(node *yaml.Node) (Rule, error) {
	if node.Kind != yaml.MappingNode {
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, err
		}
		return LiteralRule{Value: value}, nil
	}

	var raw struct {
		Type    string         `yaml:"type"`
		Options map[string]any `yaml:"options"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}

	switch raw.Type {
	case "date":
		format, _ := raw.Options["format"].(string)
		return DateRule{Format: DateFormat(format)}, nil
	case "slugify":
		field, _ := raw.Options["field"].(string)
		return SlugifyRule{Field: field}, nil
	default:
		return UnknownRule{Type: raw.Type}, nil
	}
}

// parseTransforms accepts both `field: md5` and `field: [md5, ...]`.
func parseTransforms(node *yaml.Node) ([]FieldTransforms, error) {
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("transforms must be a mapping")
	}

	out := make([]FieldTransforms, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		field := node.Content[i].Value
		value := node.Content[i+1]

		var names []string
		switch value.Kind {
		case yaml.ScalarNode:
			names = []string{value.Value}
		case yaml.SequenceNode:
			if err := value.Decode(&names); err != nil {
				return nil, fmt.Errorf("transforms.%s: %w", field, err)
			}
		default:
			return nil, fmt.Errorf("transforms.%s must be a string or a list", field)
		}

		ft := FieldTransforms{Field: field}
		for _, n := range names {
			ft.Transforms = append(ft.Transforms, Transform(n))
		}
		out = append(out, ft)
	}
	return out, nil
}
