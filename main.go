// Command noop traces a program's open-family syscalls via ptrace and
// seccomp, selectively blocking or redirecting them per a user-supplied
// policy.
package main

import (
	"os"

	"noop/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
