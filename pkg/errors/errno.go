// Package errors provides structured error codes for the service.
//
// Error Code Format: AABBCCC (7 digits)
//
//	AA  (00-99): service code
//	BB  (00-99): category code
//	CCC (000-999): sequence within the category
//
// Usage:
//
//	return errors.ErrInvalidParam.WithMessage("query is required")
//	return errors.ErrBackendUnavailable.WithCause(err)
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
)

// Errno is a structured error with a code, an HTTP status and messages.
type Errno struct {
	// Code is the unique error code.
	Code int `json:"code"`

	// HTTP is the HTTP status returned for this error.
	HTTP int `json:"-"`

	// MessageEN is the English message.
	MessageEN string `json:"message"`

	// MessageZH is the Chinese message.
	MessageZH string `json:"message_zh,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// Is matches on error code.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause returns a copy carrying cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// WithMessage returns a copy with a custom English message.
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.MessageEN = msg
	return &c
}

// WithMessagef returns a copy with a formatted English message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message returns the message for lang, falling back to English.
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// HTTPStatus returns the HTTP status code, 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

var (
	registry   = make(map[int]*Errno)
	registryMu sync.RWMutex
)

// Register records e and panics on a duplicate code.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[code]
	return e, ok
}

// FromError converts any error to an Errno, wrapping unknown errors as ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code int) bool {
	var e *Errno
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}
