package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Kind classifies a failure that callers are expected to handle. Errors
// without a Kind are internal failures.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a classified failure whose message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Details interface{}
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...interface{}) *Error {
	return New(KindInvalid, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

// KindOf reports the Kind of err, looking through wrapped errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func statusAndCode(kind Kind) (int, string) {
	switch kind {
	case KindInvalid:
		return http.StatusBadRequest, ErrCodeInvalidInput
	case KindUnauthorized:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case KindForbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case KindConflict:
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// StatusCode maps err to the HTTP status it is reported with.
func StatusCode(err error) int {
	status, _ := statusAndCode(KindOf(err))
	return status
}

// WriteAppError writes err as an error envelope. Internal failures are logged
// and reported with a generic message.
func WriteAppError(w http.ResponseWriter, err error) {
	var e *Error
	if !stderrors.As(err, &e) {
		log.Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
		return
	}

	status, code := statusAndCode(e.Kind)
	WriteError(w, status, code, e.Message, e.Details)
}
