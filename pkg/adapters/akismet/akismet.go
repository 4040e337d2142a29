// Package akismet classifies submissions with the Akismet comment-check API.
package akismet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

// Client calls comment-check for one Akismet key.
type Client struct {
	key      string
	blog     string
	endpoint string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides https://<key>.rest.akismet.com.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(endpoint, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for key. blog is the front page of the site the
// submissions come from.
func New(key, blog string, opts ...Option) *Client {
	c := &Client{
		key:      key,
		blog:     blog,
		endpoint: "https://" + key + ".rest.akismet.com",
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckSpam implements core.SpamChecker.
func (c *Client) CheckSpam(ctx context.Context, in core.SpamCheck) (bool, error) {
	form := url.Values{
		"blog":                 {c.blog},
		"user_ip":              {in.IP},
		"user_agent":           {in.UserAgent},
		"comment_type":         {in.Type},
		"comment_author":       {in.Author},
		"comment_author_email": {in.AuthorEmail},
		"comment_author_url":   {in.AuthorURL},
		"comment_content":      {in.Content},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/1.1/comment-check", strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build akismet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "discuss/1")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to call akismet: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return false, fmt.Errorf("failed to read akismet response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("akismet returned %s", resp.Status)
	}

	switch strings.TrimSpace(string(body)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if help := resp.Header.Get("X-akismet-debug-help"); help != "" {
		return false, fmt.Errorf("akismet rejected the request: %s", help)
	}
	return false, fmt.Errorf("unexpected akismet response %q", body)
}

var _ core.SpamChecker = (*Client)(nil)
