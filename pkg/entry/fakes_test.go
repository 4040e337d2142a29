package entry_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

type write struct {
	Path    string
	Branch  string
	Message string
	Content string
}

// memoryGateway is an in-memory repository with branches and review requests.
type memoryGateway struct {
	mu       sync.Mutex
	files    map[string]map[string][]byte
	heads    map[string]string
	writes   []write
	reviews  map[string]*core.ReviewRequest
	deleted  []string
	connects int
}

func newMemoryGateway(config string) *memoryGateway {
	return &memoryGateway{
		files:   map[string]map[string][]byte{"main": {"discuss.yml": []byte(config)}},
		heads:   map[string]string{"main": "sha-main"},
		reviews: make(map[string]*core.ReviewRequest),
	}
}

func (g *memoryGateway) Connect(context.Context, core.Parameters) (core.Gateway, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connects++
	return g, nil
}

func (g *memoryGateway) ReadFile(_ context.Context, path, ref string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.files[ref][path]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", path, ref, core.ErrNotFound)
	}
	return data, nil
}

func (g *memoryGateway) WriteFile(_ context.Context, path string, content []byte, branch, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	files, ok := g.files[branch]
	if !ok {
		return fmt.Errorf("branch %s: %w", branch, core.ErrNotFound)
	}
	if _, exists := files[path]; exists {
		return core.ErrFileExists
	}
	files[path] = content
	g.writes = append(g.writes, write{Path: path, Branch: branch, Message: message, Content: string(content)})
	return nil
}

func (g *memoryGateway) CreateBranch(_ context.Context, name, fromSHA string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for branch, sha := range g.heads {
		if sha != fromSHA {
			continue
		}
		copied := make(map[string][]byte, len(g.files[branch]))
		for p, c := range g.files[branch] {
			copied[p] = c
		}
		g.files[name] = copied
		g.heads[name] = "sha-" + name
		return nil
	}
	return fmt.Errorf("commit %s: %w", fromSHA, core.ErrNotFound)
}

func (g *memoryGateway) HeadCommit(_ context.Context, branch string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sha, ok := g.heads[branch]
	if !ok {
		return "", core.ErrNotFound
	}
	return sha, nil
}

func (g *memoryGateway) OpenReviewRequest(_ context.Context, d core.ReviewDraft) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprint(len(g.reviews) + 1)
	g.reviews[id] = &core.ReviewRequest{
		ID:         id,
		State:      core.ReviewOpen,
		HeadBranch: d.Head,
		BaseBranch: d.Base,
		Title:      d.Title,
		Body:       d.Body,
	}
	return id, nil
}

func (g *memoryGateway) GetReviewRequest(_ context.Context, id string) (*core.ReviewRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rr, ok := g.reviews[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *rr
	return &cp, nil
}

func (g *memoryGateway) DeleteBranch(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.files, name)
	delete(g.heads, name)
	g.deleted = append(g.deleted, name)
	return nil
}

func (g *memoryGateway) merge(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reviews[id].State = core.ReviewMerged
	g.reviews[id].Merged = true
}

type stubSpam struct {
	spam   bool
	err    error
	checks []core.SpamCheck
}

func (s *stubSpam) CheckSpam(_ context.Context, c core.SpamCheck) (bool, error) {
	s.checks = append(s.checks, c)
	return s.spam, s.err
}

type recordingNotifier struct {
	mu            sync.Mutex
	subscriptions map[string][]string
	notifications []core.Notification
	err           error
}

func (n *recordingNotifier) Subscribe(_ context.Context, threadID, address string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subscriptions == nil {
		n.subscriptions = make(map[string][]string)
	}
	n.subscriptions[threadID] = append(n.subscriptions[threadID], address)
	return n.err
}

func (n *recordingNotifier) Notify(_ context.Context, msg core.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, msg)
	return n.err
}

type stubCaptcha struct {
	err    error
	secret string
}

func (c *stubCaptcha) Verify(_ context.Context, secret, response, _ string) error {
	c.secret = secret
	if response == "" {
		return errors.New("missing-input-response")
	}
	return c.err
}

// prefixDecrypter treats "enc:<x>" as the ciphertext of x.
type prefixDecrypter struct{}

func (prefixDecrypter) Decrypt(s string) (string, error) {
	if len(s) < 4 || s[:4] != "enc:" {
		return "", errors.New("not a ciphertext")
	}
	return s[4:], nil
}

// syncRunner runs background tasks inline.
func syncRunner(ctx context.Context, fn func(context.Context) error) {
	_ = fn(ctx)
}
