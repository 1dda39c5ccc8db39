// Package memio implements the word-granularity peek/poke codec the tracer
// uses to read and write byte buffers in a tracee's address space through
// the ptrace debug interface.
package memio

import (
	"syscall"

	noopErrors "noop/errors"
)

// wordSize is the machine word size in bytes on amd64.
const wordSize = 8

// Read walks the tracee's memory starting at addr, one machine word at a
// time, and returns the bytes read. If n is nil, reading stops at the first
// NUL byte encountered (the addr is assumed to hold a NUL-terminated C
// string); otherwise reading stops once n bytes have been collected. In
// either case the result never includes the NUL terminator.
func Read(pid int, addr uint64, n *int) ([]byte, error) {
	var result []byte
	word := make([]byte, wordSize)

	for {
		if n != nil && len(result) >= *n {
			return result[:*n], nil
		}

		read, err := syscall.PtracePeekData(pid, uintptr(addr), word)
		if err != nil {
			return nil, noopErrors.Wrap(err, noopErrors.KindOS, "peek tracee memory")
		}
		if read != len(word) {
			return nil, noopErrors.WrapWithDetail(syscall.EIO, noopErrors.KindOS, "peek tracee memory", "short read")
		}

		for _, b := range word {
			if b == 0 {
				return result, nil
			}
			result = append(result, b)
			if n != nil && len(result) >= *n {
				return result, nil
			}
		}

		addr += wordSize
	}
}

// Write copies data into the tracee's address space at addr, padding with
// zero bytes up to a multiple of the machine word size, and emitting one
// word-sized poke per chunk. The written region is always NUL-terminated:
// callers that need an exact-length string should size their destination
// buffer with that in mind.
func Write(pid int, addr uint64, data []byte) error {
	padded := make([]byte, 0, roundUp(len(data)+1, wordSize))
	padded = append(padded, data...)
	for len(padded) < cap(padded) {
		padded = append(padded, 0)
	}

	for i := 0; i < len(padded); i += wordSize {
		chunk := padded[i : i+wordSize]
		written, err := syscall.PtracePokeData(pid, uintptr(addr)+uintptr(i), chunk)
		if err != nil {
			return noopErrors.Wrap(err, noopErrors.KindOS, "poke tracee memory")
		}
		if written != len(chunk) {
			return noopErrors.WrapWithDetail(syscall.EIO, noopErrors.KindOS, "poke tracee memory", "short write")
		}
	}
	return nil
}

func roundUp(n, multiple int) int {
	if n%multiple == 0 {
		return n
	}
	return n + (multiple - n%multiple)
}
