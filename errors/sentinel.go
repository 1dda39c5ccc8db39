// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Policy/argument errors.
var (
	// ErrNoProgram indicates no PROGRAM was given after "--".
	ErrNoProgram = &TraceError{
		Kind:   KindArg,
		Detail: "no program specified after --",
	}

	// ErrMalformedReplace indicates a FILE=REPLACE argument had an empty
	// left-hand side or more than one "=".
	ErrMalformedReplace = &TraceError{
		Kind:   KindArg,
		Detail: "malformed replace argument (expected FILE=REPLACE)",
	}

	// ErrMalformedMode indicates a FILE:MODE argument used a mode other
	// than "r" or "w".
	ErrMalformedMode = &TraceError{
		Kind:   KindArg,
		Detail: "malformed mode suffix (expected :r or :w)",
	}

	// ErrNulByte indicates a policy path contains a NUL byte and so cannot
	// be represented to the kernel.
	ErrNulByte = &TraceError{
		Kind:   KindArg,
		Detail: "path contains a NUL byte",
	}

	// ErrUnknownSyscall indicates a trace event fired for an unrecognized
	// syscall number.
	ErrUnknownSyscall = &TraceError{
		Kind:   KindOS,
		Detail: "unrecognized syscall at trace event",
	}
)

// Seccomp errors.
var (
	// ErrSeccompInit indicates the filter could not be initialized.
	ErrSeccompInit = &TraceError{
		Kind:   KindSeccomp,
		Detail: "failed to initialize seccomp filter",
	}

	// ErrSeccompLoad indicates the filter could not be loaded into the kernel.
	ErrSeccompLoad = &TraceError{
		Kind:   KindSeccomp,
		Detail: "failed to load seccomp filter",
	}
)

// Debug-interface / process errors.
var (
	// ErrPtraceAttach indicates a ptrace attach or initial wait failed.
	ErrPtraceAttach = &TraceError{
		Kind:   KindOS,
		Detail: "failed to attach tracer",
	}

	// ErrChildMemoryIO indicates a peek/poke against tracee memory failed.
	ErrChildMemoryIO = &TraceError{
		Kind:   KindOS,
		Detail: "child memory I/O error",
	}

	// ErrRegisterIO indicates a register read or write failed.
	ErrRegisterIO = &TraceError{
		Kind:   KindOS,
		Detail: "register read/write error",
	}
)
