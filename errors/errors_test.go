package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindArg, "usage error"},
		{KindParse, "parse error"},
		{KindOS, "os error"},
		{KindSeccomp, "seccomp error"},
		{Kind(999), "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTraceError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TraceError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "<nil>",
		},
		{
			name: "full error",
			err: &TraceError{
				Op:     "parse policy",
				Kind:   KindArg,
				Detail: "malformed replace argument",
				Err:    fmt.Errorf("bad input"),
			},
			expected: "parse policy: malformed replace argument: bad input",
		},
		{
			name: "kind only",
			err: &TraceError{
				Kind: KindSeccomp,
			},
			expected: "seccomp error",
		},
		{
			name: "with underlying error, no detail",
			err: &TraceError{
				Op:   "ptrace attach",
				Kind: KindOS,
				Err:  fmt.Errorf("no such process"),
			},
			expected: "ptrace attach: os error: no such process",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("TraceError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTraceError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")
	err := &TraceError{Op: "test", Kind: KindOS, Err: underlying}

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	var nilErr *TraceError
	if got := nilErr.Unwrap(); got != nil {
		t.Errorf("nil.Unwrap() = %v, want nil", got)
	}
}

func TestTraceError_Is(t *testing.T) {
	err1 := &TraceError{Kind: KindArg, Op: "test1"}
	err2 := &TraceError{Kind: KindArg, Op: "test2"}
	err3 := &TraceError{Kind: KindOS, Op: "test3"}

	if !err1.Is(err2) {
		t.Error("err1.Is(err2) should be true (same kind)")
	}
	if err1.Is(err3) {
		t.Error("err1.Is(err3) should be false (different kind)")
	}
	if err1.Is(fmt.Errorf("some error")) {
		t.Error("err1.Is(fmt.Errorf(...)) should be false")
	}

	var nilErr *TraceError
	if !nilErr.Is(nil) {
		t.Error("nil.Is(nil) should be true")
	}
}

func TestNew(t *testing.T) {
	err := New(KindArg, "validate", "path is empty")

	if err.Kind != KindArg {
		t.Errorf("Kind = %v, want %v", err.Kind, KindArg)
	}
	if err.Op != "validate" {
		t.Errorf("Op = %q, want %q", err.Op, "validate")
	}
	if err.Detail != "path is empty" {
		t.Errorf("Detail = %q, want %q", err.Detail, "path is empty")
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := Wrap(underlying, KindOS, "open file")

	if err.Err != underlying {
		t.Error("Wrapped error should preserve underlying error")
	}
	if err.Kind != KindOS {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOS)
	}
	if err.Op != "open file" {
		t.Errorf("Op = %q, want %q", err.Op, "open file")
	}
}

func TestWrapWithDetail(t *testing.T) {
	underlying := fmt.Errorf("syscall failed")
	err := WrapWithDetail(underlying, KindSeccomp, "filter", "invalid architecture")

	if err.Detail != "invalid architecture" {
		t.Errorf("Detail = %q, want %q", err.Detail, "invalid architecture")
	}
}

func TestIsKind(t *testing.T) {
	err := &TraceError{Kind: KindOS}
	wrapped := fmt.Errorf("wrapped: %w", err)

	if !IsKind(err, KindOS) {
		t.Error("IsKind(err, KindOS) should be true")
	}
	if !IsKind(wrapped, KindOS) {
		t.Error("IsKind(wrapped, KindOS) should be true")
	}
	if IsKind(err, KindArg) {
		t.Error("IsKind(err, KindArg) should be false")
	}
	if IsKind(fmt.Errorf("plain error"), KindOS) {
		t.Error("IsKind(plain error, KindOS) should be false")
	}
}

func TestGetKind(t *testing.T) {
	err := &TraceError{Kind: KindSeccomp}
	wrapped := fmt.Errorf("wrapped: %w", err)

	kind, ok := GetKind(err)
	if !ok || kind != KindSeccomp {
		t.Errorf("GetKind(err) = (%v, %v), want (%v, true)", kind, ok, KindSeccomp)
	}

	kind, ok = GetKind(wrapped)
	if !ok || kind != KindSeccomp {
		t.Errorf("GetKind(wrapped) = (%v, %v), want (%v, true)", kind, ok, KindSeccomp)
	}

	_, ok = GetKind(fmt.Errorf("plain error"))
	if ok {
		t.Error("GetKind(plain error) should return false")
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  *TraceError
		kind Kind
	}{
		{"ErrNoProgram", ErrNoProgram, KindArg},
		{"ErrMalformedReplace", ErrMalformedReplace, KindArg},
		{"ErrMalformedMode", ErrMalformedMode, KindArg},
		{"ErrNulByte", ErrNulByte, KindArg},
		{"ErrUnknownSyscall", ErrUnknownSyscall, KindOS},
		{"ErrSeccompInit", ErrSeccompInit, KindSeccomp},
		{"ErrSeccompLoad", ErrSeccompLoad, KindSeccomp},
		{"ErrPtraceAttach", ErrPtraceAttach, KindOS},
		{"ErrChildMemoryIO", ErrChildMemoryIO, KindOS},
		{"ErrRegisterIO", ErrRegisterIO, KindOS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("%s.Kind = %v, want %v", tt.name, tt.err.Kind, tt.kind)
			}
			wrapped := Wrap(fmt.Errorf("underlying"), tt.kind, "test")
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(wrapped, %s) should be true", tt.name)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	underlying := fmt.Errorf("no such file")
	err1 := Wrap(underlying, KindOS, "peek data")
	err2 := fmt.Errorf("open handler failed: %w", err1)

	if !errors.Is(err2, ErrChildMemoryIO) {
		t.Error("errors.Is should find ErrChildMemoryIO in chain")
	}

	var terr *TraceError
	if !errors.As(err2, &terr) {
		t.Error("errors.As should find TraceError in chain")
	}
	if terr.Op != "peek data" {
		t.Errorf("terr.Op = %q, want %q", terr.Op, "peek data")
	}

	if errors.Unwrap(err1) != underlying {
		t.Error("Unwrap should return underlying error")
	}
}
