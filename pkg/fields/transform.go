package fields

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/placeholder"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
)

// Transform applies the value transforms declared in cfg.
//
// md5 replaces a present, truthy value with its hex digest. frontmatterContent
// is a serializer directive and unknown transforms are ignored.
func Transform(ctx context.Context, fields core.Fields, cfg *siteconfig.Config) error {
	for _, ft := range cfg.Transforms {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, t := range ft.Transforms {
			if t != siteconfig.TransformMD5 {
				continue
			}
			value, ok := fields[ft.Field]
			if !ok || !truthy(value) {
				continue
			}
			sum := md5.Sum([]byte(placeholder.Stringify(value)))
			fields[ft.Field] = hex.EncodeToString(sum[:])
		}
	}
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}
