package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/eduardoboucas/jekyll-discuss/pkg/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteConfig = `
comments:
  allowedFields: ["name", "message"]
  requiredFields: ["name"]
  branch: main
  format: json
  path: "_data/comments"
`

// stubGateway holds files on main only, plus review requests set up by tests.
type stubGateway struct {
	mu      sync.Mutex
	files   map[string][]byte
	reviews map[string]*core.ReviewRequest
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		files:   map[string][]byte{"discuss.yml": []byte(siteConfig)},
		reviews: make(map[string]*core.ReviewRequest),
	}
}

func (g *stubGateway) Connect(context.Context, core.Parameters) (core.Gateway, error) { return g, nil }

func (g *stubGateway) ReadFile(_ context.Context, path, _ string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.files[path]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

func (g *stubGateway) WriteFile(_ context.Context, path string, content []byte, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.files[path]; ok {
		return core.ErrFileExists
	}
	g.files[path] = content
	return nil
}

func (g *stubGateway) CreateBranch(context.Context, string, string) error { return nil }

func (g *stubGateway) HeadCommit(context.Context, string) (string, error) { return "sha", nil }

func (g *stubGateway) OpenReviewRequest(context.Context, core.ReviewDraft) (string, error) {
	return "", fmt.Errorf("not supported")
}

func (g *stubGateway) GetReviewRequest(_ context.Context, id string) (*core.ReviewRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rr, ok := g.reviews[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return rr, nil
}

type upperEncrypter struct{}

func (upperEncrypter) Encrypt(s string) (string, error) { return strings.ToUpper(s), nil }

func newTestServer(t *testing.T, opts ...Option) (*Server, *stubGateway) {
	t.Helper()
	gw := newStubGateway()
	svc, err := entry.NewService(gw, entry.WithIDGenerator(func() string { return "abc" }))
	require.NoError(t, err)
	return New(svc, opts...), gw
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestEntry_Form(t *testing.T) {
	s, gw := newTestServer(t)

	rec := do(s, formRequest("/v1/entry/jane/blog/main/comments", url.Values{
		"fields[name]":    {" Jane "},
		"fields[message]": {"Hello"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Jane", resp.Fields["name"])
	assert.Contains(t, gw.files, "_data/comments/abc.json")
}

func TestEntry_JSONRedirect(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"fields":{"name":"Jane"},"options":{"redirect":"https://blog.example.com/thanks"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/entry/github/jane/blog/main/comments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := do(s, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://blog.example.com/thanks", rec.Header().Get("Location"))
}

func TestEntry_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantCode   string
		wantData   []string
		wantErrors []string
	}{
		{
			name:       "missing and invalid fields",
			path:       "/v1/entry/jane/blog/main/comments",
			form:       url.Values{"fields[website]": {"x"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   core.CodeMissingRequiredFields,
			wantData:   []string{"name"},
			wantErrors: []string{core.CodeMissingRequiredFields, core.CodeInvalidFields},
		},
		{
			name:       "branch mismatch",
			path:       "/v1/entry/jane/blog/dev/comments",
			form:       url.Values{"fields[name]": {"Jane"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   core.CodeBranchMismatch,
		},
		{
			name:       "missing block",
			path:       "/v1/entry/jane/blog/main/reviews",
			form:       url.Values{"fields[name]": {"Jane"}},
			wantStatus: http.StatusNotFound,
			wantCode:   core.CodeMissingConfigBlock,
			wantData:   []string{"reviews"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(s, formRequest(tt.path, tt.form))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.Equal(t, tt.wantData, resp.Data)
			assert.Equal(t, tt.wantErrors, resp.Errors)
		})
	}
}

func TestEntry_RedirectError(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, formRequest("/v1/entry/jane/blog/main/comments", url.Values{
		"options[redirectError]": {"https://blog.example.com/oops"},
	}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://blog.example.com/oops", rec.Header().Get("Location"))
}

func TestEntry_FileExists(t *testing.T) {
	s, _ := newTestServer(t)
	form := url.Values{"fields[name]": {"Jane"}}

	require.Equal(t, http.StatusOK, do(s, formRequest("/v1/entry/jane/blog/main/comments", form)).Code)
	rec := do(s, formRequest("/v1/entry/jane/blog/main/comments", form))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRenderError_Unknown(t *testing.T) {
	status, resp := renderError(fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, codeUnknown, resp.ErrorCode)
}

func TestGitLabWebhook(t *testing.T) {
	s, gw := newTestServer(t, WithGitLabWebhookToken("tok"))

	env := review.Envelope{
		Version:    review.Version,
		Fields:     core.Fields{"name": "Jane"},
		Options:    core.Options{},
		Parameters: core.Parameters{Username: "jane", Repository: "blog", Branch: "main", Property: "comments"},
	}
	body, err := review.Embed("Please review", env)
	require.NoError(t, err)
	gw.reviews["7"] = &core.ReviewRequest{ID: "7", Merged: true, State: core.ReviewMerged, HeadBranch: "discuss_abc", Body: body}

	payload := func(action string) []byte {
		b, _ := json.Marshal(map[string]any{
			"object_kind":       "merge_request",
			"project":           map[string]any{"path_with_namespace": "jane/blog"},
			"object_attributes": map[string]any{"iid": 7, "action": action, "target_branch": "main"},
		})
		return b
	}
	newReq := func(token string, b []byte) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhook/gitlab", bytes.NewReader(b))
		req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
		req.Header.Set("X-Gitlab-Token", token)
		return req
	}

	rec := do(s, newReq("tok", payload("merge")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Outcome)
	assert.True(t, resp.Outcome.Handled)

	rec = do(s, newReq("tok", payload("close")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ignored":true`)

	rec = do(s, newReq("nope", payload("merge")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGitHubWebhook_Ignored(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhook/github", strings.NewReader(`{"zen":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "ping")

	rec := do(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ignored":true`)
}

func TestEncrypt(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/v1/encrypt/secret", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	s, _ = newTestServer(t, WithEncrypter(upperEncrypter{}))
	rec = do(s, httptest.NewRequest(http.MethodGet, "/v1/encrypt/secret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SECRET", rec.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDecodeForm(t *testing.T) {
	got, err := decodeForm(url.Values{
		"fields[name]":                {"Jane"},
		"fields[email]":               {"jane@example.com"},
		"options[reCaptcha][siteKey]": {"k"},
		"options[reCaptcha][secret]":  {"s"},
		"options[parent]":             {"a", "b"},
		"g-recaptcha-response":        {"r"},
	})
	require.NoError(t, err)

	assert.Equal(t, core.Fields{"name": "Jane", "email": "jane@example.com"}, got.Fields)
	assert.Equal(t, "a", got.Options.Parent())
	siteKey, secret := got.Options.ReCaptcha()
	assert.Equal(t, "k", siteKey)
	assert.Equal(t, "s", secret)
	assert.Equal(t, "r", got.RecaptchaResponse)
	assert.NotContains(t, got.Options, "redirect")

	empty, err := decodeForm(url.Values{})
	require.NoError(t, err)
	assert.Empty(t, empty.Fields)
	assert.Empty(t, empty.Options)
}
