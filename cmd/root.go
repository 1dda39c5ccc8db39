// Package cmd implements the noop command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	noopErrors "noop/errors"
	"noop/logging"
	"noop/policy"
	"noop/tracer"
)

var (
	logEnabled bool
	logFormat  string
	debug      bool
)

// rootCmd is noop's single command: `noop [-l] [policy...] -- PROGRAM [ARG]...`.
var rootCmd = &cobra.Command{
	Use:   "noop [-l] [FILE[:rw] | FILE=REPLACE]... -- PROGRAM [ARG]...",
	Short: "Trace and selectively block or redirect a program's file opens",
	Long: `noop runs PROGRAM under a ptrace+seccomp sandbox that intercepts every
open-family syscall. Before "--", each argument declares a policy rule
against a path:

  FILE            block every open of FILE
  FILE:r          block read-mode opens of FILE
  FILE:w          block write-mode opens of FILE
  FILE=REPLACE    transparently redirect opens of FILE to REPLACE

Everything after "--" is PROGRAM and its arguments, run unmodified except
for the opens the policy intercepts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&logEnabled, "log", "l", false, "log each intercepted open call to stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "set the format for diagnostic log output (text or json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level diagnostic logging")
}

// setupLogging installs the default diagnostic logger from the --debug and
// --log-format flags. It runs before RunE, so tracer.Run always sees the
// logger the user asked for.
func setupLogging() {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logging.SetDefault(logging.NewLogger(logging.Config{
		Level:  level,
		Format: logFormat,
		Output: os.Stderr,
	}))
}

// Execute runs the root command and returns the process exit code: the
// tracee's own exit code on success, 1 on a usage error (after printing
// usage), and 1 on any other tracer failure.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if kind, ok := noopErrors.GetKind(err); ok && kind == noopErrors.KindArg {
			fmt.Fprint(os.Stderr, rootCmd.UsageString())
		}
		return 1
	}
	return exitCode
}

// exitCode carries the tracee's propagated exit code out of RunE, since
// cobra's Execute only reports success/failure, not an arbitrary code.
var exitCode int

func runRoot(cmd *cobra.Command, args []string) error {
	dashAt := cmd.ArgsLenAtDash()
	if dashAt < 0 {
		return noopErrors.ErrNoProgram
	}

	policyArgs := args[:dashAt]
	programArgs := args[dashAt:]
	if len(programArgs) == 0 {
		return noopErrors.ErrNoProgram
	}

	p, err := policy.Parse(policyArgs)
	if err != nil {
		return err
	}

	code, err := tracer.Run(tracer.Config{
		Policy:  p,
		Program: programArgs[0],
		Args:    programArgs[1:],
		Log:     logEnabled,
		Stderr:  os.Stderr,
		Logger:  logging.Default(),
	})
	if err != nil {
		return err
	}

	exitCode = code
	return nil
}
