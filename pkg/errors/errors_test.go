package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"plain", New(ErrCodeInvalidGraph, "edge %s has no targets", "e1"), "INVALID_GRAPH: edge e1 has no targets"},
		{"wrapped", Wrap(ErrCodeServerFailed, errors.New("exit status 1"), "elk-server exited"), "SERVER_FAILED: elk-server exited: exit status 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Wrap(ErrCodeConnectionFailed, cause, "write request")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(fmt.Errorf("layout: %w", err), cause) {
		t.Error("cause not reachable through an outer fmt wrap")
	}

	var target *Error
	if !errors.As(fmt.Errorf("layout: %w", err), &target) || target.Code != ErrCodeConnectionFailed {
		t.Errorf("errors.As did not find the coded error: %v", target)
	}
}

func TestIsAndGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want Code
	}{
		{"direct", New(ErrCodeJavaNotFound, "x"), ErrCodeJavaNotFound, ErrCodeJavaNotFound},
		{"outer code wins", Wrap(ErrCodeServerUnavailable, New(ErrCodeJavaNotFound, "inner"), "outer"), ErrCodeServerUnavailable, ErrCodeServerUnavailable},
		{"behind fmt wrap", fmt.Errorf("ctx: %w", New(ErrCodeTimeout, "x")), ErrCodeTimeout, ErrCodeTimeout},
		{"plain", errors.New("plain"), ErrCodeInternal, ""},
		{"nil", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %q, want %q", got, tt.want)
			}
			wantIs := tt.want != "" && tt.want == tt.code
			if got := Is(tt.err, tt.code); got != wantIs {
				t.Errorf("Is(%q) = %v, want %v", tt.code, got, wantIs)
			}
		})
	}

	if Is(Wrap(ErrCodeServerUnavailable, New(ErrCodeJavaNotFound, "inner"), "outer"), ErrCodeJavaNotFound) {
		t.Error("Is matched the code of a wrapped cause")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(Wrap(ErrCodeDownloadFailed, errors.New("EOF"), "fetch release")); got != "fetch release" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{ErrCodeInvalidInput, CategoryInvalid},
		{ErrCodeInvalidConfig, CategoryInvalid},
		{ErrCodeFileNotFound, CategoryNotFound},
		{ErrCodeNotFound, CategoryNotFound},
		{ErrCodeJavaNotFound, CategoryJava},
		{ErrCodeJavaVersion, CategoryJava},
		{ErrCodeChecksumMismatch, CategoryNetwork},
		{ErrCodeTimeout, CategoryNetwork},
		{ErrCodeServerError, CategoryServer},
		{ErrCodeConnectionFailed, CategoryServer},
		{ErrCodeInternal, CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInvalidIsServer(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		invalid     bool
		serverCause bool
	}{
		{"invalid graph", New(ErrCodeInvalidGraph, "x"), true, false},
		{"server error", New(ErrCodeServerError, "x"), false, true},
		{"connection", Wrap(ErrCodeConnectionFailed, errors.New("broken pipe"), "x"), false, true},
		{"download", New(ErrCodeDownloadFailed, "x"), false, false},
		{"plain", errors.New("x"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalid(tt.err); got != tt.invalid {
				t.Errorf("IsInvalid() = %v, want %v", got, tt.invalid)
			}
			if got := IsServer(tt.err); got != tt.serverCause {
				t.Errorf("IsServer() = %v, want %v", got, tt.serverCause)
			}
		})
	}
}
