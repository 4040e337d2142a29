// Package core holds the domain types and the ports of discuss.
//
// Nothing in here talks to the outside world: the entry pipeline works on
// these types and reaches the version-control host, the spam classifier and
// the notification service only through the interfaces in ports.go.
package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fields is a submission: field name to scalar value (string, number, bool).
// It is mutated while it moves through the pipeline.
type Fields map[string]any

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field value as a string and whether it was one.
func (f Fields) String(name string) (string, bool) {
	s, ok := f[name].(string)
	return s, ok
}

// Options are the caller-supplied directives of a submission
// (parent, subscribe, redirect, origin...). The pipeline never mutates them.
type Options map[string]any

// Clone returns a shallow copy of the options.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

func (o Options) str(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	case float64, int, int64, bool:
		return fmt.Sprint(v)
	}
	return ""
}

// Parent is the id of the entry this one replies to.
func (o Options) Parent() string { return o.str("parent") }

// Subscribe names the field holding the address to subscribe to the parent thread.
func (o Options) Subscribe() string { return o.str("subscribe") }

// Redirect is the URL the caller is sent to after a successful submission.
func (o Options) Redirect() string { return o.str("redirect") }

// RedirectError is the URL the caller is sent to after a failed submission.
func (o Options) RedirectError() string { return o.str("redirectError") }

// Origin is the page the submission was made from.
func (o Options) Origin() string { return o.str("origin") }

// ReCaptcha returns the reCAPTCHA credentials sent along with the submission.
func (o Options) ReCaptcha() (siteKey, secret string) {
	m, ok := o["reCaptcha"].(map[string]any)
	if !ok {
		return "", ""
	}
	siteKey, _ = m["siteKey"].(string)
	secret, _ = m["secret"].(string)
	return siteKey, secret
}

// Parameters identify the target of a submission: which repository, which
// branch and which block of the site configuration.
type Parameters struct {
	Service    string `json:"service,omitempty" yaml:"service,omitempty"`
	Username   string `json:"username" yaml:"username"`
	Repository string `json:"repository" yaml:"repository"`
	Branch     string `json:"branch" yaml:"branch"`
	Property   string `json:"property" yaml:"property"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Slug returns "username/repository".
func (p Parameters) Slug() string {
	return p.Username + "/" + p.Repository
}

// Requester describes who sent the submission. It is transport metadata and
// is never written to the repository.
type Requester struct {
	IP              string
	UserAgent       string
	CaptchaResponse string
}

// Result is what a successful submission returns to the caller.
type Result struct {
	Fields Fields `json:"fields"`
	// Redirect is options.redirect, empty when none was given.
	Redirect string `json:"redirect,omitempty"`
	// ReviewID is set when the entry went through moderation.
	ReviewID string `json:"reviewId,omitempty"`
	// Path is the file the entry was written to.
	Path string `json:"path"`
}

// HasRedirect reports whether the caller asked to be redirected.
func (r Result) HasRedirect() bool { return r.Redirect != "" }

// ThreadID derives the subscription list identifier of a parent entry. It is
// scoped to the repository so ids never collide across sites.
func ThreadID(p Parameters, parent string) string {
	sum := md5.Sum([]byte(strings.Join([]string{p.Username, p.Repository, parent}, "-")))
	return hex.EncodeToString(sum[:])
}
