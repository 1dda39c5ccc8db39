package cmd

import (
	"github.com/spf13/cobra"

	"noop/tracer"
)

// bootstrapCmd is the internal re-exec target: it marks itself trace-me,
// installs the seccomp filter, and execs the real target program. It is
// never invoked directly by a user; tracer.Run launches it by re-executing
// the noop binary itself.
var bootstrapCmd = &cobra.Command{
	Use:    "tracee-bootstrap",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		tracer.Bootstrap()
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}
