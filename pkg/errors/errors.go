// Package errors defines the coded errors shared by the elk library, CLI and
// HTTP API.
//
// Every failure that crosses a package boundary is an [*Error] carrying a
// [Code]. Callers branch on the code, never on message text:
//
//	if errors.Is(err, errors.ErrCodeJavaNotFound) {
//	    // suggest installing a JDK
//	}
//
// Codes group into categories by prefix ([Code.Category]). The HTTP API maps
// categories to status codes and the CLI uses them to pick exit hints.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeJavaNotFound Code = "JAVA_NOT_FOUND"
	ErrCodeJavaVersion  Code = "JAVA_VERSION"

	ErrCodeNetwork          Code = "NETWORK_ERROR"
	ErrCodeTimeout          Code = "TIMEOUT"
	ErrCodeDownloadFailed   Code = "DOWNLOAD_FAILED"
	ErrCodeChecksumMismatch Code = "CHECKSUM_MISMATCH"
	ErrCodeExtractFailed    Code = "EXTRACT_FAILED"

	// Failures of the ELK server process or the pipes to it.
	ErrCodeServerUnavailable Code = "SERVER_UNAVAILABLE"
	ErrCodeServerFailed      Code = "SERVER_FAILED"
	ErrCodeServerError       Code = "SERVER_ERROR"
	ErrCodeConnectionFailed  Code = "CONNECTION_FAILED"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Category groups related codes.
type Category int

const (
	CategoryOther Category = iota
	CategoryInvalid
	CategoryNotFound
	CategoryNetwork
	CategoryServer
	CategoryJava
)

// Category classifies c by its prefix or suffix. Unknown codes fall into
// CategoryOther.
func (c Code) Category() Category {
	s := string(c)
	switch {
	case c == ErrCodeConnectionFailed, strings.HasPrefix(s, "SERVER_"):
		return CategoryServer
	case strings.HasPrefix(s, "JAVA_"):
		return CategoryJava
	case strings.HasPrefix(s, "INVALID_"):
		return CategoryInvalid
	case strings.HasSuffix(s, "NOT_FOUND"):
		return CategoryNotFound
	case c == ErrCodeNetwork, c == ErrCodeTimeout, c == ErrCodeDownloadFailed,
		c == ErrCodeChecksumMismatch, c == ErrCodeExtractFailed:
		return CategoryNetwork
	}
	return CategoryOther
}

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error that keeps cause reachable through errors.Is/As.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Cause = cause
	return e
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// Is reports whether the outermost *Error in err's chain has the given code.
// Codes of wrapped causes are not consulted.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// UserMessage returns the message without the code prefix or cause, falling
// back to err.Error() for uncoded errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInvalid reports whether err was caused by bad caller input.
func IsInvalid(err error) bool {
	return GetCode(err).Category() == CategoryInvalid
}

// IsServer reports whether err originates from the ELK server process.
func IsServer(err error) bool {
	return GetCode(err).Category() == CategoryServer
}
