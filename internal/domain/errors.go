package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed or missing request input. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransientUpstream marks a timeout or network failure of an external collaborator.
	ErrTransientUpstream = errors.New("transient upstream failure")
	// ErrNoValidSignal is returned when neither text nor image classification produced a result.
	ErrNoValidSignal = errors.New("no valid classification signal")
	// ErrAuthMissing means no bearer credential is available.
	ErrAuthMissing = errors.New("auth credential missing")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Code is a stable machine-readable error identifier surfaced by the API.
type Code string

const (
	CodeInvalidInput        Code = "invalid_input"
	CodeNoValidSignal       Code = "no_valid_signal"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeUnauthorized        Code = "unauthorized"
	CodeNotFound            Code = "not_found"
	CodeInternal            Code = "server_error"
)

// Error pairs a sentinel with a human readable detail.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// InputError builds an ErrInvalidInput with detail.
func InputError(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

// TransientError wraps err as an ErrTransientUpstream.
func TransientError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrTransientUpstream, Detail: err.Error()}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientUpstream)
}

// CodeOf maps an error onto its API code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNoValidSignal):
		return CodeNoValidSignal
	case errors.Is(err, ErrTransientUpstream):
		return CodeUpstreamUnavailable
	case errors.Is(err, ErrAuthMissing):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	}
	return CodeInternal
}
