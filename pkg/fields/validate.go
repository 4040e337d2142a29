package fields

import (
	"slices"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
)

// Validate trims every string field in place and checks fields against the
// allow-list and the required list.
//
// A field that is not allowed is only rejected when it carries a value: an
// empty disallowed field is tolerated and kept. Both problems are reported in
// a single error whose field lists are sorted.
func Validate(fields core.Fields, cfg *siteconfig.Config) error {
	var invalid, missing []string

	for name, value := range fields {
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			fields[name] = s
			value = s
		}
		if !cfg.IsAllowed(name) && !isEmpty(value) {
			invalid = append(invalid, name)
		}
	}

	for _, name := range cfg.RequiredFields {
		if isEmpty(fields[name]) {
			missing = append(missing, name)
		}
	}

	var errs []*core.Error
	if len(missing) > 0 {
		slices.Sort(missing)
		errs = append(errs, core.NewError(core.KindFieldValidationFailed, core.CodeMissingRequiredFields, missing...))
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		errs = append(errs, core.NewError(core.KindFieldValidationFailed, core.CodeInvalidFields, invalid...))
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	head := errs[0]
	head.Errs = errs[1:]
	return head
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}
