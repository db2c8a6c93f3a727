package domain

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which member of the pipeline's error taxonomy an
// error belongs to. The Task Runtime and Stage Graph Executor branch on
// Kind, never on concrete Go types, so a new adapter can introduce errors
// without either package importing it.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindProvider            ErrorKind = "provider"
	KindQuota               ErrorKind = "quota"
	KindContentPolicy       ErrorKind = "content_policy"
	KindTimeout             ErrorKind = "timeout"
	KindIncompleteMaterials ErrorKind = "incomplete_materials"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindCancelled           ErrorKind = "cancelled"
)

// maxErrorMessageBytes is the truncation bound for operator-readable error
// messages surfaced on Task/Job rows (§7).
const maxErrorMessageBytes = 4 * 1024

// Error is the uniform error value every package in the pipeline returns
// for domain-level failures. The Task Runtime inspects Kind to decide
// whether to retry (§4.4); the Executor only ever sees terminal Kind values.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match on Kind alone, so callers can write
// errors.Is(err, &domain.Error{Kind: domain.KindQuota}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func truncate(msg string) string {
	if len(msg) <= maxErrorMessageBytes {
		return msg
	}
	return msg[:maxErrorMessageBytes]
}

func newErr(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: truncate(fmt.Sprintf(format, args...))}
}

func wrapErr(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: truncate(fmt.Sprintf(format, args...)), Cause: cause}
}

func NewValidationError(format string, args ...interface{}) *Error {
	return newErr(KindValidation, format, args...)
}

func NewNotFoundError(format string, args ...interface{}) *Error {
	return newErr(KindNotFound, format, args...)
}

func NewConflictError(format string, args ...interface{}) *Error {
	return newErr(KindConflict, format, args...)
}

func NewProviderError(cause error, format string, args ...interface{}) *Error {
	return wrapErr(KindProvider, cause, format, args...)
}

func NewQuotaError(cause error, format string, args ...interface{}) *Error {
	return wrapErr(KindQuota, cause, format, args...)
}

func NewContentPolicyError(format string, args ...interface{}) *Error {
	return newErr(KindContentPolicy, format, args...)
}

func NewTimeoutError(cause error, format string, args ...interface{}) *Error {
	return wrapErr(KindTimeout, cause, format, args...)
}

// IncompleteMaterialsError additionally carries the list of missing
// artifact references the caller needs to remediate (§4.6 step 1).
type IncompleteMaterialsError struct {
	*materialsBase
	Missing []string
}

// materialsBase names the embedded *Error so that its Error method is
// promoted rather than shadowed by a field called Error.
type materialsBase = Error

func NewIncompleteMaterialsError(missing []string) *IncompleteMaterialsError {
	return &IncompleteMaterialsError{
		materialsBase: newErr(KindIncompleteMaterials, "missing required artifacts: %v", missing),
		Missing: missing,
	}
}

func NewMalformedResponseError(cause error, format string, args ...interface{}) *Error {
	return wrapErr(KindMalformedResponse, cause, format, args...)
}

func NewCancelledError() *Error {
	return newErr(KindCancelled, "operation cancelled")
}

// IsNotFound reports whether err is, or wraps, a domain.Error of KindNotFound.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// Retryable reports whether the Task Runtime's retry policy (§4.4, §7)
// should schedule another attempt for an error of this kind. Validation,
// not-found, conflict, content-policy and cancellation are terminal.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindProvider, KindQuota, KindTimeout:
		return true
	case KindMalformedResponse:
		return true // retried once, then failed — see worker.Dispatcher.finish
	default:
		return false
	}
}
