package fields

import (
	"strings"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
	"github.com/gosimple/slug"
)

// ISO8601 is the layout of generated dates: RFC 3339 with milliseconds.
const ISO8601 = "2006-01-02T15:04:05.000Z07:00"

// Generate applies the generated-field rules of cfg in declaration order.
// Rules see the fields written by the rules before them.
func Generate(fields core.Fields, cfg *siteconfig.Config, now time.Time) {
	for _, gf := range cfg.GeneratedFields {
		switch r := gf.Rule.(type) {
		case siteconfig.LiteralRule:
			fields[gf.Name] = r.Value
		case siteconfig.DateRule:
			fields[gf.Name] = formatDate(now, r.Format)
		case siteconfig.SlugifyRule:
			if r.Field == "" {
				continue
			}
			if src, ok := fields[r.Field].(string); ok {
				fields[gf.Name] = strings.ToLower(slug.Make(src))
			}
		}
	}
}

func formatDate(now time.Time, format siteconfig.DateFormat) any {
	switch format {
	case siteconfig.DateTimestamp:
		return now.UnixMilli()
	case siteconfig.DateTimestampSeconds:
		return now.Unix()
	default:
		return now.UTC().Format(ISO8601)
	}
}
