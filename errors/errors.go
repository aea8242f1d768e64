// Package errors implements the failure taxonomy from spec.md §7: each job
// outcome the queue and orchestrator produce is one of these typed errors,
// which callers can test for with errors.As/errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies which row of the §7 taxonomy an error belongs to. It is
// the value surfaced to callers as `error.code` on a terminal failed job.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeAuthorization     Code = "authorization"
	CodeQuota             Code = "quota"
	CodeExternalTransient Code = "external_transient"
	CodeExternalPermanent Code = "external_permanent"
	CodeInvariant         Code = "invariant_violation"
	CodeCancelled         Code = "cancelled"
	CodeStreamDrop        Code = "stream_drop"
)

// TaxonomyError is the common shape surfaced on a terminal failed job:
// {error.code, message, details}.
type TaxonomyError struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *TaxonomyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TaxonomyError) Unwrap() error { return e.cause }

func newTaxonomy(code Code, message string, cause error, details map[string]any) *TaxonomyError {
	return &TaxonomyError{Code: code, Message: message, cause: cause, Details: details}
}

func Validation(message string, cause error) error {
	return newTaxonomy(CodeValidation, message, cause, nil)
}

func Authorization(message string, cause error) error {
	return newTaxonomy(CodeAuthorization, message, cause, nil)
}

func Quota(message string, cause error) error {
	return newTaxonomy(CodeQuota, message, cause, nil)
}

// ExternalTransient marks a failure the queue should retry with backoff
// (model service / storage / fabric timeout or 5xx).
func ExternalTransient(message string, cause error) error {
	return newTaxonomy(CodeExternalTransient, message, cause, nil)
}

// ExternalPermanent marks a failure that must not be retried (model service
// 4xx, schema violation).
func ExternalPermanent(message string, cause error) error {
	return Unretriable(newTaxonomy(CodeExternalPermanent, message, cause, nil))
}

// Invariant marks an internal invariant violation (e.g. unexpected embedding
// dimension): terminal, logged with a stack trace by the caller, not retried.
func Invariant(message string, cause error) error {
	return Unretriable(newTaxonomy(CodeInvariant, message, cause, nil))
}

func Cancelled(message string) error {
	return Unretriable(newTaxonomy(CodeCancelled, message, nil, nil))
}

// StreamDrop marks a live-stream backpressure drop: counted in statistics,
// never retried (spec.md §4.4, §7).
func StreamDrop(message string) error {
	return Unretriable(newTaxonomy(CodeStreamDrop, message, nil, nil))
}

func CodeOf(err error) (Code, bool) {
	var t *TaxonomyError
	if errors.As(err, &t) {
		return t.Code, true
	}
	return "", false
}

// UnretriableError wraps an error that the job queue must never retry,
// regardless of attempts remaining — mirrors the teacher's
// errors.UnretriableError pattern exactly.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{err}
}

func (e UnretriableError) Unwrap() error { return e.error }

// IsUnretriable reports whether err (or anything it wraps) was marked
// unretriable.
func IsUnretriable(err error) bool {
	var u UnretriableError
	return errors.As(err, &u)
}

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidJWT     = errors.New("invalid jwt")
)

// ObjectNotFoundError reports a missing job/frame/scene/embedding lookup.
type ObjectNotFoundError struct {
	msg   string
	cause error
}

func (e ObjectNotFoundError) Error() string { return e.msg }
func (e ObjectNotFoundError) Unwrap() error { return e.cause }

func NewObjectNotFoundError(msg string, cause error) error {
	if cause != nil {
		msg = fmt.Sprintf("object not found: %s: %s", msg, cause)
	} else {
		msg = fmt.Sprintf("object not found: %s", msg)
	}
	return Unretriable(ObjectNotFoundError{msg: msg, cause: cause})
}

func IsObjectNotFound(err error) bool {
	var o ObjectNotFoundError
	return errors.As(err, &o)
}
