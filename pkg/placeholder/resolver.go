// Package placeholder resolves {...} tokens in path, filename and commit
// message templates.
//
// The grammar is fixed: {@timestamp}, {@id} and dotted paths into the
// fields, options and parameters of an entry (e.g. {fields.name},
// {options.slug}, {parameters.branch}). Unresolved paths become "".
package placeholder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

const (
	// Timestamp resolves to the current time in epoch milliseconds.
	Timestamp = "@timestamp"
	// ID resolves to the unique entry identifier.
	ID = "@id"
)

var tokenPattern = regexp.MustCompile(`\{(.*?)\}`)

// Context is what placeholders are resolved against.
type Context struct {
	Fields     core.Fields
	Options    core.Options
	Parameters core.Parameters
	ID         string
	Now        time.Time
}

// Resolve replaces every placeholder in template.
//
// All occurrences of a token are replaced together and replacement values are
// never scanned again, so a field containing "{@id}" is written verbatim.
func Resolve(template string, c Context) string {
	matches := tokenPattern.FindAllString(template, -1)
	if len(matches) == 0 {
		return template
	}

	values := make(map[string]string, len(matches))
	quoted := make([]string, 0, len(matches))
	for _, token := range matches {
		if _, seen := values[token]; seen {
			continue
		}
		values[token] = c.lookup(token[1 : len(token)-1])
		quoted = append(quoted, regexp.QuoteMeta(token))
	}

	replacer := regexp.MustCompile(strings.Join(quoted, "|"))
	return replacer.ReplaceAllStringFunc(template, func(token string) string {
		return values[token]
	})
}

func (c Context) lookup(name string) string {
	switch name {
	case Timestamp:
		now := c.Now
		if now.IsZero() {
			now = time.Now()
		}
		return strconv.FormatInt(now.UnixMilli(), 10)
	case ID:
		return c.ID
	}

	var current any = c.root()
	for _, segment := range strings.Split(name, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[segment]
		case core.Fields:
			current = node[segment]
		case core.Options:
			current = node[segment]
		default:
			return ""
		}
		if current == nil {
			return ""
		}
	}
	return Stringify(current)
}

func (c Context) root() map[string]any {
	return map[string]any{
		"fields":  c.Fields,
		"options": c.Options,
		"parameters": map[string]any{
			"service":    c.Parameters.Service,
			"username":   c.Parameters.Username,
			"repository": c.Parameters.Repository,
			"branch":     c.Parameters.Branch,
			"property":   c.Parameters.Property,
			"version":    c.Parameters.Version,
		},
	}
}

// Stringify renders a field value the way it is substituted into templates.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
