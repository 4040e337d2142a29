package server

import (
	"net/url"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/go-playground/form/v4"
)

// entryForm is the urlencoded shape of a submission: fields[name],
// options[parent], options[reCaptcha][siteKey] and so on.
type entryForm struct {
	Fields            map[string]string `form:"fields"`
	Options           formOptions       `form:"options"`
	RecaptchaResponse string            `form:"g-recaptcha-response"`
}

type formOptions struct {
	Parent        string `form:"parent"`
	Subscribe     string `form:"subscribe"`
	Redirect      string `form:"redirect"`
	RedirectError string `form:"redirectError"`
	Origin        string `form:"origin"`
	ReCaptcha     struct {
		SiteKey string `form:"siteKey"`
		Secret  string `form:"secret"`
	} `form:"reCaptcha"`
}

var formDecoder = newFormDecoder()

func newFormDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetNamespacePrefix("[")
	d.SetNamespaceSuffix("]")
	return d
}

// decodeForm maps a urlencoded submission onto an entryBody. Options that
// were not sent stay absent.
func decodeForm(values url.Values) (*entryBody, error) {
	var f entryForm
	if err := formDecoder.Decode(&f, values); err != nil {
		return nil, err
	}

	body := &entryBody{
		Fields:            make(core.Fields, len(f.Fields)),
		Options:           core.Options{},
		RecaptchaResponse: f.RecaptchaResponse,
	}
	for k, v := range f.Fields {
		body.Fields[k] = v
	}

	for key, v := range map[string]string{
		"parent":        f.Options.Parent,
		"subscribe":     f.Options.Subscribe,
		"redirect":      f.Options.Redirect,
		"redirectError": f.Options.RedirectError,
		"origin":        f.Options.Origin,
	} {
		if v != "" {
			body.Options[key] = v
		}
	}
	if rc := f.Options.ReCaptcha; rc.SiteKey != "" || rc.Secret != "" {
		body.Options["reCaptcha"] = map[string]any{"siteKey": rc.SiteKey, "secret": rc.Secret}
	}
	return body, nil
}
