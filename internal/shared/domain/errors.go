package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error for propagation and transport mapping.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindNotAuthorized  Kind = "not_authorized"
	KindTransientStore Kind = "transient_store_error"
)

// Error is a business or infrastructure failure with a stable machine-readable code.
//
// Two errors match under errors.Is when their codes are equal, so a sentinel
// decorated with WithDetail still matches the sentinel itself.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]int64
	cause   error
}

// NewError creates a sentinel error.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%d", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail returns a copy of e annotated with a numeric detail.
func (e *Error) WithDetail(key string, value int64) *Error {
	cp := e.clone()
	cp.Details[key] = value
	return cp
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := e.clone()
	cp.Message = fmt.Sprintf(format, args...)
	return cp
}

// Wrap returns a copy of e that records cause.
func (e *Error) Wrap(cause error) *Error {
	cp := e.clone()
	cp.cause = cause
	return cp
}

func (e *Error) clone() *Error {
	details := make(map[string]int64, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// Shared sentinel errors.
var (
	ErrInvalidInput     = NewError(KindInvalidInput, "invalid_input", "invalid input")
	ErrNegativeAmount   = NewError(KindInvalidInput, "negative_amount", "amount must not be negative")
	ErrNotFound         = NewError(KindNotFound, "not_found", "resource not found")
	ErrNotAuthorized    = NewError(KindNotAuthorized, "not_authorized", "actor is not allowed to perform this action")
	ErrTransientStore   = NewError(KindTransientStore, "transient_store_error", "store temporarily unavailable, retry later")
	ErrConcurrentUpdate = NewError(KindTransientStore, "concurrent_update", "record was modified concurrently")
)

// KindOf returns the kind of err, or an empty kind if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the request with backoff.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientStore
}

// IsConflict reports whether err is an expected business conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
