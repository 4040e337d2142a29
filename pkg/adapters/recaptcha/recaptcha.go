// Package recaptcha verifies reCAPTCHA responses with the siteverify API.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

// DefaultEndpoint is Google's siteverify URL.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// ErrRejected is returned when siteverify does not accept the response.
var ErrRejected = errors.New("recaptcha response rejected")

// Verifier implements core.CaptchaVerifier.
type Verifier struct {
	endpoint string
	http     *http.Client
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(v *Verifier) { v.endpoint = endpoint }
}

// New creates a verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{endpoint: DefaultEndpoint, http: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks response with secret. An empty response is rejected without
// a network call.
func (v *Verifier) Verify(ctx context.Context, secret, response, remoteIP string) error {
	if response == "" {
		return fmt.Errorf("%w: missing-input-response", ErrRejected)
	}

	form := url.Values{"secret": {secret}, "response": {response}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("siteverify returned %s", resp.Status)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode siteverify response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ", "))
	}
	return nil
}

var _ core.CaptchaVerifier = (*Verifier)(nil)
