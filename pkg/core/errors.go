package core

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	// ErrFileExists is returned by Gateway.WriteFile when the target path already has content.
	ErrFileExists = errors.New("file already exists")
	// ErrNotFound is returned by gateways when a file, branch or review does not exist.
	ErrNotFound = errors.New("not found")
)

// Kind is the stable category of a pipeline failure.
type Kind string

const (
	KindConfigMissing         Kind = "ConfigMissing"
	KindConfigInvalid         Kind = "ConfigInvalid"
	KindOriginRejected        Kind = "OriginRejected"
	KindBranchMismatch        Kind = "BranchMismatch"
	KindCaptchaRejected       Kind = "CaptchaRejected"
	KindSpamRejected          Kind = "SpamRejected"
	KindSpamCheckFailed       Kind = "SpamCheckFailed"
	KindFieldValidationFailed Kind = "FieldValidationFailed"
	KindSerializationFailed   Kind = "SerializationFailed"
	KindUnsupportedFormat     Kind = "UnsupportedFormat"
	KindGatewayReadFailed     Kind = "GatewayReadFailed"
	KindGatewayWriteFailed    Kind = "GatewayWriteFailed"
	KindGatewayReviewFailed   Kind = "GatewayReviewFailed"
	KindNotificationFailed    Kind = "NotificationFailed"
)

// Error codes surfaced to callers.
const (
	CodeMissingConfigBlock    = "MISSING_CONFIG_BLOCK"
	CodeMissingConfigFields   = "MISSING_CONFIG_FIELDS"
	CodeInvalidConfig         = "INVALID_CONFIG"
	CodeMissingOrigin         = "MISSING_ORIGIN"
	CodeInvalidOrigin         = "INVALID_ORIGIN"
	CodeBranchMismatch        = "BRANCH_MISMATCH"
	CodeRecaptchaMissing      = "RECAPTCHA_MISSING_CREDENTIALS"
	CodeRecaptchaMismatch     = "RECAPTCHA_CONFIG_MISMATCH"
	CodeRecaptchaInvalid      = "RECAPTCHA_INVALID_INPUT_RESPONSE"
	CodeIsSpam                = "IS_SPAM"
	CodeSpamCheckFailed       = "SPAM_CHECK_FAILED"
	CodeMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	CodeInvalidFields         = "INVALID_FIELDS"
	CodeNoFrontmatterContent  = "NO_FRONTMATTER_CONTENT_TRANSFORM"
	CodeMultipleFrontmatter   = "MULTIPLE_FRONTMATTER_CONTENT_TRANSFORMS"
	CodeSerialization         = "SERIALIZATION_ERROR"
	CodeInvalidFormat         = "INVALID_FORMAT"
	CodeReadFailed            = "READING_FILE"
	CodeWriteFailed           = "WRITING_FILE"
	CodeFileExists            = "FILE_EXISTS"
	CodeReviewFailed          = "CREATING_REVIEW"
	CodeNotificationFailed    = "NOTIFICATION_FAILED"
)

// Error is a structured pipeline failure. It carries a stable Kind and Code
// plus diagnostic data (field-name lists) and never exposes raw internals
// through Error() beyond the wrapped cause.
type Error struct {
	Kind   Kind
	Code   string
	Fields []string
	Err    error
	// Errs holds combined failures (e.g. missing-required plus invalid fields).
	Errs []*Error
}

// NewError creates an Error with the given kind and code.
func NewError(kind Kind, code string, fields ...string) *Error {
	return &Error{Kind: kind, Code: code, Fields: fields}
}

// WrapError creates an Error with a wrapped cause.
func WrapError(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code)
	if len(e.Fields) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.Fields, ", "))
		sb.WriteString("]")
	}
	for _, sub := range e.Errs {
		sb.WriteString("; ")
		sb.WriteString(sub.Error())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes the cause and the combined failures to errors.Is/As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	for _, sub := range e.Errs {
		errs = append(errs, sub)
	}
	return errs
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasCode reports whether any *Error in err's tree carries code.
func HasCode(err error, code string) bool {
	found := false
	walk(err, func(e *Error) {
		if e.Code == code {
			found = true
		}
	})
	return found
}

// FieldsFor returns the field list attached to the first *Error with code.
func FieldsFor(err error, code string) []string {
	var out []string
	walk(err, func(e *Error) {
		if out == nil && e.Code == code {
			out = e.Fields
		}
	})
	return out
}

// Codes flattens every code in err's tree, outermost first.
func Codes(err error) []string {
	var codes []string
	walk(err, func(e *Error) {
		codes = append(codes, e.Code)
	})
	return codes
}

func walk(err error, fn func(*Error)) {
	if err == nil {
		return
	}
	if e, ok := err.(*Error); ok {
		fn(e)
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			walk(inner, fn)
		}
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), fn)
	}
}

// Errorf is a convenience for wrapping an arbitrary cause into a Kind/Code pair.
func Errorf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf(format, args...)}
}
