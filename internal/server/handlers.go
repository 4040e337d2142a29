package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/github"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/gitlab"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/labstack/echo/v4"
)

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeUnknown        = "UNKNOWN_ERROR"
	codeNotConfigured  = "NOT_CONFIGURED"
)

type entryBody struct {
	Fields            core.Fields  `json:"fields"`
	Options           core.Options `json:"options"`
	RecaptchaResponse string       `json:"g-recaptcha-response"`
}

type entryResponse struct {
	Success  bool        `json:"success"`
	Fields   core.Fields `json:"fields"`
	ReviewID string      `json:"reviewId,omitempty"`
}

type errorResponse struct {
	Success   bool     `json:"success"`
	ErrorCode string   `json:"errorCode"`
	Data      []string `json:"data,omitempty"`
	// Errors lists every code of a combined failure.
	Errors []string `json:"errors,omitempty"`
}

type webhookResponse struct {
	Ignored bool                `json:"ignored,omitempty"`
	Outcome *entry.MergeOutcome `json:"outcome,omitempty"`
}

func bindEntry(c echo.Context) (*entryBody, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body entryBody
		if err := c.Bind(&body); err != nil {
			return nil, err
		}
		return &body, nil
	}

	values, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	return decodeForm(values)
}

// handleEntry processes one submission. Successful submissions redirect to
// options.redirect when given; failed ones to options.redirectError.
func (s *Server) handleEntry(c echo.Context) error {
	body, err := bindEntry(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeInvalidRequest})
	}
	if body.Fields == nil {
		body.Fields = core.Fields{}
	}
	if body.Options == nil {
		body.Options = core.Options{}
	}

	req := entry.Request{
		Parameters: core.Parameters{
			Service:    c.Param("service"),
			Username:   c.Param("username"),
			Repository: c.Param("repository"),
			Branch:     c.Param("branch"),
			Property:   c.Param("property"),
			Version:    "1",
		},
		Fields:  body.Fields,
		Options: body.Options,
		Requester: core.Requester{
			IP:              c.RealIP(),
			UserAgent:       c.Request().UserAgent(),
			CaptchaResponse: body.RecaptchaResponse,
		},
	}

	res, err := s.service.Process(c.Request().Context(), req)
	if err != nil {
		s.logger.Warn("entry rejected", "repository", req.Parameters.Slug(), "error", err)
		if to := body.Options.RedirectError(); to != "" {
			return c.Redirect(http.StatusFound, to)
		}
		status, resp := renderError(err)
		return c.JSON(status, resp)
	}

	if res.HasRedirect() {
		return c.Redirect(http.StatusFound, res.Redirect)
	}
	return c.JSON(http.StatusOK, entryResponse{Success: true, Fields: res.Fields, ReviewID: res.ReviewID})
}

// renderError maps a pipeline failure to a status and a body that carries
// only stable codes and field names.
func renderError(err error) (int, errorResponse) {
	var e *core.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, errorResponse{ErrorCode: codeUnknown}
	}

	resp := errorResponse{ErrorCode: e.Code, Data: e.Fields}
	if len(e.Errs) > 0 {
		resp.Errors = core.Codes(e)
	}
	return statusFor(e), resp
}

func statusFor(e *core.Error) int {
	switch e.Kind {
	case core.KindFieldValidationFailed, core.KindBranchMismatch, core.KindSpamRejected:
		return http.StatusBadRequest
	case core.KindOriginRejected, core.KindCaptchaRejected:
		return http.StatusForbidden
	case core.KindConfigMissing:
		return http.StatusNotFound
	case core.KindConfigInvalid, core.KindSerializationFailed, core.KindUnsupportedFormat:
		return http.StatusUnprocessableEntity
	case core.KindGatewayWriteFailed:
		if e.Code == core.CodeFileExists {
			return http.StatusConflict
		}
		return http.StatusBadGateway
	case core.KindGatewayReadFailed, core.KindGatewayReviewFailed, core.KindSpamCheckFailed, core.KindNotificationFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleGitHubWebhook(c echo.Context) error {
	pr, err := github.ParseWebhook(c.Request(), s.githubSecret)
	switch {
	case errors.Is(err, github.ErrIgnoredEvent):
		return c.JSON(http.StatusOK, webhookResponse{Ignored: true})
	case err != nil:
		s.logger.Warn("github webhook rejected", "error", err)
		return c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeInvalidRequest})
	}
	return s.closeReview(c, pr.Parameters, pr.ReviewID, pr.Merged)
}

func (s *Server) handleGitLabWebhook(c echo.Context) error {
	mr, err := gitlab.ParseWebhook(c.Request(), s.gitlabToken)
	switch {
	case errors.Is(err, gitlab.ErrIgnoredEvent):
		return c.JSON(http.StatusOK, webhookResponse{Ignored: true})
	case errors.Is(err, gitlab.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, errorResponse{ErrorCode: codeInvalidRequest})
	case err != nil:
		s.logger.Warn("gitlab webhook rejected", "error", err)
		return c.JSON(http.StatusBadRequest, errorResponse{ErrorCode: codeInvalidRequest})
	}
	return s.closeReview(c, mr.Parameters, mr.ReviewID, mr.Merged)
}

func (s *Server) closeReview(c echo.Context, params core.Parameters, reviewID string, merged bool) error {
	if !merged {
		return c.JSON(http.StatusOK, webhookResponse{Ignored: true})
	}

	out, err := s.service.ProcessReview(c.Request().Context(), params, reviewID)
	if err != nil {
		s.logger.Error("failed to process merged review", "repository", params.Slug(), "review", reviewID, "error", err)
		status, resp := renderError(err)
		return c.JSON(status, resp)
	}
	return c.JSON(http.StatusOK, webhookResponse{Outcome: out})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.service.State(),
	})
}

func (s *Server) handleEncrypt(c echo.Context) error {
	if s.encrypter == nil {
		return c.JSON(http.StatusNotImplemented, errorResponse{ErrorCode: codeNotConfigured})
	}
	out, err := s.encrypter.Encrypt(c.Param("text"))
	if err != nil {
		s.logger.Error("failed to encrypt", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{ErrorCode: codeUnknown})
	}
	return c.String(http.StatusOK, out)
}
