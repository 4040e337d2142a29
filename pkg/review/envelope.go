// Package review renders review request bodies and carries the callback
// state a moderated entry needs once its review is merged.
package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

// Version is the envelope version written by Embed.
const Version = 1

const (
	markerPrefix = "<!--discuss:callback:v"
	markerSuffix = "-->"
)

var (
	// ErrNoEnvelope is returned by Extract when the body carries no callback state.
	ErrNoEnvelope = errors.New("no callback envelope found")
	// ErrUnsupportedVersion is returned by Extract for envelopes newer than Version.
	ErrUnsupportedVersion = errors.New("unsupported callback envelope version")
)

// Envelope is the state replayed when a review request is merged.
type Envelope struct {
	Version    int             `json:"version"`
	ConfigPath string          `json:"configPath"`
	Fields     core.Fields     `json:"fields"`
	Options    core.Options    `json:"options"`
	Parameters core.Parameters `json:"parameters"`
}

// Marker renders the envelope as an HTML comment. JSON escaping of '<' and
// '>' guarantees the payload never terminates the comment early.
func (e Envelope) Marker() (string, error) {
	if e.Version == 0 {
		e.Version = Version
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode callback envelope: %w", err)
	}
	return markerPrefix + strconv.Itoa(e.Version) + " " + string(payload) + markerSuffix, nil
}

// Embed appends the envelope marker to body.
func Embed(body string, e Envelope) (string, error) {
	marker, err := e.Marker()
	if err != nil {
		return "", err
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body + "\n" + marker, nil
}

// Extract recovers the envelope embedded in body. When several markers are
// present the last one wins.
func Extract(body string) (*Envelope, error) {
	start := strings.LastIndex(body, markerPrefix)
	if start < 0 {
		return nil, ErrNoEnvelope
	}
	rest := body[start+len(markerPrefix):]

	end := strings.Index(rest, markerSuffix)
	if end < 0 {
		return nil, ErrNoEnvelope
	}
	rest = rest[:end]

	versionText, payload, ok := strings.Cut(rest, " ")
	if !ok {
		return nil, ErrNoEnvelope
	}
	version, err := strconv.Atoi(versionText)
	if err != nil {
		return nil, fmt.Errorf("invalid callback envelope version %q: %w", versionText, err)
	}
	if version > Version {
		return nil, fmt.Errorf("%w: v%d", ErrUnsupportedVersion, version)
	}

	var e Envelope
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, fmt.Errorf("failed to decode callback envelope: %w", err)
	}
	return &e, nil
}
