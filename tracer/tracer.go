// Package tracer implements the fork/exec/ptrace trap loop: it forks the
// target program under a seccomp filter that traps on open-family
// syscalls, and on every trap reads the tracee's registers and memory,
// consults the policy, and optionally rewrites the call before letting it
// proceed.
package tracer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"noop/abi"
	noopErrors "noop/errors"
	"noop/memio"
	"noop/policy"
	"noop/seccompfilter"
	"noop/utils"
)

// bootstrapSubcommand is the hidden cobra subcommand name the tracer
// re-execs itself as, so that seccomp installation and PTRACE_TRACEME run
// in a fresh process image rather than between fork and exec of a Go
// process (which Go's runtime does not allow hooking into directly).
const bootstrapSubcommand = "tracee-bootstrap"

// Environment variables used to hand the target program and its argument
// vector across the re-exec boundary.
const (
	envTarget = "_NOOP_TARGET"
	envArgs   = "_NOOP_ARGS"
)

// argsSeparator joins entries of envArgs. NUL cannot appear in argv
// elements, so it is a safe separator.
const argsSeparator = "\x00"

// Config controls one tracing run.
type Config struct {
	// Policy is the set of open rules to enforce.
	Policy *policy.Policy
	// Program is the target executable.
	Program string
	// Args are the target's argv, not including argv[0].
	Args []string
	// Log, when true, writes a per-call log line to Stderr for every
	// intercepted open and a summary line when the tracee exits.
	Log bool
	// Stderr is where log lines are written. Defaults to os.Stderr.
	Stderr io.Writer
	// Logger receives diagnostic (non-protocol) messages: bootstrap
	// failures, fatal tracer errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Run forks Program under the seccomp filter, traces it to completion, and
// returns the tracee's exit code (propagated as the tracer's own exit
// code) or an error if the tracer itself failed.
func Run(cfg Config) (int, error) {
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	self, err := os.Executable()
	if err != nil {
		return 1, noopErrors.Wrap(err, noopErrors.KindOS, "resolve self executable")
	}

	sp, err := utils.NewSyncPipe()
	if err != nil {
		return 1, noopErrors.Wrap(err, noopErrors.KindOS, "create sync pipe")
	}
	defer sp.Close()

	// The re-exec to self is a plain, untraced fork+exec: the bootstrap
	// subcommand marks itself trace-me on its own, so that the *next*
	// exec (of the real target, inside Bootstrap) is the one event this
	// parent waits for. There is deliberately no PTRACE_TRACEME in
	// SysProcAttr here, to avoid stopping at the wrong exec.
	cmd := exec.Command(self, bootstrapSubcommand)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		envTarget+"="+cfg.Program,
		envArgs+"="+joinArgs(cfg.Args),
	)
	cmd.ExtraFiles = []*os.File{sp.ChildFile()}

	if err := cmd.Start(); err != nil {
		return 1, noopErrors.Wrap(err, noopErrors.KindOS, "start tracee")
	}
	sp.CloseChild()
	pid := cmd.Process.Pid

	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &ws, 0, nil); err != nil {
		return 1, noopErrors.Wrap(err, noopErrors.KindOS, "wait for initial stop")
	}

	if ws.Exited() || ws.Signaled() {
		// Bootstrap failed before reaching the target's exec (traceme,
		// seccomp install, or the exec itself failed). A traceme or
		// seccomp failure was written to the sync pipe before the process
		// went away; an exec failure was printed to stderr and leaves the
		// pipe empty.
		bootErr := sp.WaitWithError()
		if bootErr == nil {
			bootErr = fmt.Errorf("tracee exited during bootstrap")
		}
		wrapped := noopErrors.Wrap(bootErr, noopErrors.KindSeccomp, "tracee bootstrap")
		cfg.Logger.Error("tracee bootstrap failed", "pid", pid, "error", wrapped)
		return 1, wrapped
	}

	if err := syscall.PtraceSetOptions(pid, unix.PTRACE_O_EXITKILL|unix.PTRACE_O_TRACESECCOMP); err != nil {
		syscall.Kill(pid, syscall.SIGKILL)
		wrapped := noopErrors.Wrap(err, noopErrors.KindOS, "set ptrace options")
		cfg.Logger.Error("failed to set ptrace options", "pid", pid, "error", wrapped)
		return 1, wrapped
	}

	return trapLoop(pid, cfg)
}

// joinArgs/splitArgs encode the target argv across the re-exec's
// environment, since exec.Command cannot pass a slice directly through an
// env var.
func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += argsSeparator
		}
		out += a
	}
	return out
}

func splitArgs(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(joined); i++ {
		if joined[i] == argsSeparator[0] {
			out = append(out, joined[start:i])
			start = i + 1
		}
	}
	out = append(out, joined[start:])
	return out
}

// Bootstrap runs in the re-exec'd child, before the target is exec'd. It
// marks itself trace-me, installs the seccomp filter, and execs the
// target named by envTarget/envArgs. On a traceme, seccomp or target-lookup
// failure it reports the error on fd 3 (the inherited sync pipe child end)
// and exits non-zero; the pipe is closed before the exec, so an exec
// failure is printed to stderr instead. It never returns on success, since
// Exec replaces the process image.
func Bootstrap() {
	// Traceme, the seccomp install and the exec must all happen on one OS
	// thread.
	runtime.LockOSThread()

	sp := os.NewFile(3, "syncpipe-child")

	fail := func(op string, err error) {
		if sp != nil {
			fmt.Fprintf(sp, "%s: %v", op, err)
			sp.Close()
		}
		os.Exit(127)
	}

	if _, _, errno := syscall.Syscall(syscall.SYS_PTRACE, syscall.PTRACE_TRACEME, 0, 0); errno != 0 {
		fail("ptrace traceme", errno)
	}

	if err := seccompfilter.Install(); err != nil {
		fail("install seccomp filter", err)
	}

	target := os.Getenv(envTarget)
	if target == "" {
		fail("read target", noopErrors.ErrNoProgram)
	}
	args := splitArgs(os.Getenv(envArgs))
	argv := append([]string{target}, args...)

	if sp != nil {
		sp.Close()
	}

	if err := syscall.Exec(target, argv, os.Environ()); err != nil {
		// sp is already closed; report via stderr, the pipe can no longer
		// be used to signal the parent once closed above.
		fmt.Fprintf(os.Stderr, "noop: exec %s: %v\n", target, err)
		os.Exit(127)
	}
}

// trapLoop is the parent-side main loop: continue, wait, dispatch.
func trapLoop(pid int, cfg Config) (int, error) {
	handled := 0

	for {
		if err := syscall.PtraceCont(pid, 0); err != nil {
			wrapped := noopErrors.Wrap(err, noopErrors.KindOS, "ptrace cont")
			cfg.Logger.Error("ptrace cont failed", "pid", pid, "error", wrapped)
			return 1, wrapped
		}

		var ws syscall.WaitStatus
		_, err := syscall.Wait4(pid, &ws, 0, nil)
		if err != nil {
			wrapped := noopErrors.Wrap(err, noopErrors.KindOS, "wait4")
			cfg.Logger.Error("wait4 failed", "pid", pid, "error", wrapped)
			return 1, wrapped
		}

		if ws.Exited() {
			if cfg.Log {
				fmt.Fprintf(cfg.Stderr, "SUMMARY:\n%d open calls handled\n", handled)
			}
			return ws.ExitStatus(), nil
		}

		if ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}

		if !ws.Stopped() {
			continue
		}

		if ws.StopSignal() == syscall.SIGTRAP && ws.TrapCause() == unix.PTRACE_EVENT_SECCOMP {
			if err := handleOpen(pid, cfg); err != nil {
				cfg.Logger.Error("failed to handle intercepted open", "pid", pid, "error", err)
				return 1, err
			}
			handled++
			continue
		}

		// Any other stop: nothing to do, the next PtraceCont at the top
		// of the loop resumes the tracee.
	}
}

// handleOpen implements the open handler: read the path and flags out of
// the tracee, consult the policy, and rewrite the call in place if needed.
func handleOpen(pid int, cfg Config) error {
	var regs syscall.PtraceRegs
	if err := syscall.PtraceGetRegs(pid, &regs); err != nil {
		return noopErrors.Wrap(err, noopErrors.KindOS, "ptrace getregs")
	}

	desc, ok := abi.From(regs.Orig_rax)
	if !ok {
		return noopErrors.ErrUnknownSyscall
	}

	pathAddr := regValue(&regs, desc.PathArg)
	flags := regValue(&regs, desc.FlagsArg)

	rawPath, err := memio.Read(pid, pathAddr, nil)
	if err != nil {
		return noopErrors.Wrap(err, noopErrors.KindOS, "read tracee path")
	}
	path := string(rawPath)
	canonicalPath := policy.Canonicalize(path)

	mode := policy.OpenTypeFromFlags(flags)
	action, hasRule := cfg.Policy.Lookup(canonicalPath)
	allowed := true
	replacement := ""
	isReplace := false
	if hasRule {
		allowed = action.Allows(mode)
		replacement, isReplace = action.IsReplace()
	}

	cfg.Logger.Debug("intercepted open", "syscall", desc.Name, "path", path, "mode", mode.String(), "allowed", allowed)

	if cfg.Log {
		line := fmt.Sprintf("%s(%q, %s)", desc.Name, path, mode)
		if !allowed {
			line += " BLOCKED"
		} else if isReplace {
			line += fmt.Sprintf(" => %s", replacement)
		}
		fmt.Fprintln(cfg.Stderr, line)
	}

	dirty := false

	if isReplace {
		newPath := append([]byte(replacement), 0)
		addr := regs.Rsp - 128 - uint64(len(newPath))
		if err := memio.Write(pid, addr, newPath); err != nil {
			return noopErrors.Wrap(err, noopErrors.KindOS, "write replacement path")
		}
		setRegValue(&regs, desc.PathArg, addr)
		dirty = true
	}

	if !allowed {
		regs.Orig_rax = ^uint64(0)
		dirty = true
	}

	if dirty {
		if err := syscall.PtraceSetRegs(pid, &regs); err != nil {
			return noopErrors.Wrap(err, noopErrors.KindOS, "ptrace setregs")
		}
	}

	return nil
}

// regValue/setRegValue index into the register snapshot by the abstract
// abi.Register the syscall descriptor names, so the handler never hardcodes
// which field belongs to which syscall.
func regValue(regs *syscall.PtraceRegs, r abi.Register) uint64 {
	switch r {
	case abi.RDI:
		return regs.Rdi
	case abi.RSI:
		return regs.Rsi
	case abi.RDX:
		return regs.Rdx
	case abi.R8:
		return regs.R8
	default:
		return 0
	}
}

func setRegValue(regs *syscall.PtraceRegs, r abi.Register, v uint64) {
	switch r {
	case abi.RDI:
		regs.Rdi = v
	case abi.RSI:
		regs.Rsi = v
	case abi.RDX:
		regs.Rdx = v
	case abi.R8:
		regs.R8 = v
	}
}
