// Package seccompfilter builds and installs the kernel-side BPF filter the
// tracee runs under: ALLOW by default, TRACE(0) for the open-family
// syscalls the tracer wants to intercept.
package seccompfilter

import (
	"syscall"
	"unsafe"

	noopErrors "noop/errors"

	"noop/abi"
)

// Seccomp constants (linux/seccomp.h, linux/filter.h).
const (
	secModeFilter = 2

	retKillProcess uint32 = 0x80000000
	retTrace       uint32 = 0x7ff00000
	retAllow       uint32 = 0x7fff0000

	prSetNoNewPrivs = 38
	prSetSeccomp    = 22
)

// BPF instruction class/opcode constants (linux/bpf_common.h).
const (
	bpfLD  = 0x00
	bpfJMP = 0x05
	bpfRET = 0x06
	bpfW   = 0x00
	bpfABS = 0x20
	bpfJEQ = 0x10
	bpfK   = 0x00
)

// Byte offsets within struct seccomp_data.
const (
	offsetNR   = 0
	offsetArch = 4
)

// auditArchX86_64 is the AUDIT_ARCH_X86_64 value struct seccomp_data.arch
// carries for a native 64-bit syscall. A 32-bit compat syscall (entered via
// int 0x80 or the compat entry point) reports a different arch value and
// would otherwise let a tracee bypass the filter by using the 32-bit
// syscall numbering, where __NR_open/__NR_openat differ from their amd64
// numbers.
const auditArchX86_64 uint32 = 0xc000003e

// sockFilter is a single BPF instruction (struct sock_filter).
type sockFilter struct {
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

// sockFprog is the BPF program handed to PR_SET_SECCOMP (struct sock_fprog).
type sockFprog struct {
	Len    uint16
	Filter *sockFilter
}

func bpfStmt(code uint16, k uint32) sockFilter {
	return sockFilter{Code: code, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) sockFilter {
	return sockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

// Build constructs the BPF program: load the syscall number, jump to a
// TRACE return for each intercepted syscall, and otherwise fall through to
// ALLOW. Traced syscall numbers come from abi.Numbers(), so the filter and
// the descriptor table can never drift apart.
func Build() []sockFilter {
	numbers := abi.Numbers()

	var filter []sockFilter

	// Step 1: reject anything that isn't a native x86_64 syscall, so a
	// 32-bit compat syscall can't reach the kernel under a different
	// numbering than abi.Numbers() checks below.
	filter = append(filter, bpfStmt(bpfLD|bpfW|bpfABS, offsetArch))
	filter = append(filter, bpfJump(bpfJMP|bpfJEQ|bpfK, auditArchX86_64, 1, 0))
	filter = append(filter, bpfStmt(bpfRET|bpfK, retKillProcess))

	// Step 2: load the syscall number and dispatch per abi.Numbers().
	filter = append(filter, bpfStmt(bpfLD|bpfW|bpfABS, offsetNR))

	// Each rule is: JEQ nr -> (skip straight to its own RET TRACE), fall
	// through otherwise. The program lays out all N JEQs, then one RET
	// ALLOW, then N RET TRACEs in the same order as the JEQs; from JEQ
	// index i that RET is always exactly len(numbers) instructions ahead
	// (the remaining JEQs, the RET ALLOW, and the RET TRACEs already
	// passed cancel out to a constant offset).
	jt := uint8(len(numbers))
	for _, nr := range numbers {
		filter = append(filter, bpfJump(bpfJMP|bpfJEQ|bpfK, uint32(nr), jt, 0))
	}
	// Default: ALLOW.
	filter = append(filter, bpfStmt(bpfRET|bpfK, retAllow))
	// One RET TRACE per traced syscall, in the same order as the JEQ rules
	// above so each jt lands on its own.
	for range numbers {
		filter = append(filter, bpfStmt(bpfRET|bpfK, retTrace))
	}

	return filter
}

// Install sets PR_SET_NO_NEW_PRIVS and loads the filter from Build() into
// the calling thread via PR_SET_SECCOMP. It must run in the tracee, after
// fork and before exec, on the same OS thread that will exec the target.
func Install() error {
	if _, _, errno := syscall.Syscall(syscall.SYS_PRCTL, prSetNoNewPrivs, 1, 0); errno != 0 {
		return noopErrors.Wrap(errno, noopErrors.KindSeccomp, "prctl(PR_SET_NO_NEW_PRIVS)")
	}

	filter := Build()
	if len(filter) == 0 {
		return noopErrors.ErrSeccompInit
	}

	prog := sockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}

	if _, _, errno := syscall.Syscall(syscall.SYS_PRCTL, prSetSeccomp, secModeFilter, uintptr(unsafe.Pointer(&prog))); errno != 0 {
		return noopErrors.Wrap(errno, noopErrors.KindSeccomp, "prctl(PR_SET_SECCOMP)")
	}

	return nil
}
