package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestError_Combined(t *testing.T) {
	err := &core.Error{
		Kind: core.KindFieldValidationFailed,
		Code: core.CodeInvalidFields,
		Errs: []*core.Error{
			core.NewError(core.KindFieldValidationFailed, core.CodeMissingRequiredFields, "name"),
			core.NewError(core.KindFieldValidationFailed, core.CodeInvalidFields, "spam"),
		},
	}

	wrapped := fmt.Errorf("processing entry: %w", err)

	assert.Equal(t, core.KindFieldValidationFailed, core.KindOf(wrapped))
	assert.True(t, core.HasCode(wrapped, core.CodeMissingRequiredFields))
	assert.True(t, core.HasCode(wrapped, core.CodeInvalidFields))
	assert.False(t, core.HasCode(wrapped, core.CodeIsSpam))
	assert.Equal(t, []string{"name"}, core.FieldsFor(wrapped, core.CodeMissingRequiredFields))
	assert.Contains(t, err.Error(), "MISSING_REQUIRED_FIELDS [name]")
}

func TestError_WrapsCause(t *testing.T) {
	err := core.WrapError(core.KindGatewayWriteFailed, core.CodeFileExists, core.ErrFileExists)

	assert.True(t, errors.Is(err, core.ErrFileExists))
	assert.Equal(t, core.KindGatewayWriteFailed, core.KindOf(err))
	assert.Equal(t, "", string(core.KindOf(errors.New("plain"))))
}

func TestOptions_Accessors(t *testing.T) {
	opts := core.Options{
		"parent":    "abc",
		"subscribe": "email",
		"redirect":  "https://example.com/thanks",
		"origin":    "https://example.com/post",
		"reCaptcha": map[string]any{"siteKey": "key", "secret": "sec"},
	}

	assert.Equal(t, "abc", opts.Parent())
	assert.Equal(t, "email", opts.Subscribe())
	assert.Equal(t, "https://example.com/thanks", opts.Redirect())
	assert.Equal(t, "https://example.com/post", opts.Origin())
	siteKey, secret := opts.ReCaptcha()
	assert.Equal(t, "key", siteKey)
	assert.Equal(t, "sec", secret)
	assert.Equal(t, "", core.Options{}.Parent())
}

func TestThreadID_ScopedToRepository(t *testing.T) {
	a := core.ThreadID(core.Parameters{Username: "u", Repository: "blog"}, "1")
	b := core.ThreadID(core.Parameters{Username: "u", Repository: "site"}, "1")

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, core.ThreadID(core.Parameters{Username: "u", Repository: "blog"}, "1"))
}
