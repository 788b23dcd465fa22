package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vorinsk/isolate/internal/fatal"
	"github.com/vorinsk/isolate/internal/sandbox"
)

// childInitCmd is the hidden re-exec target: the parent starts a fresh copy
// of this binary with Cloneflags set so the clone enters new namespaces,
// then execs `isolate __child_init <rootfs> -- <argv...>`. It is never
// invoked directly by a user and is not listed in --help.
var childInitCmd = &cobra.Command{
	Use:                sandbox.ChildInitArg + " <rootfs> -- <cmd> [args...]",
	Hidden:             true,
	DisableFlagParsing: true,
	RunE:               runChildInit,
}

func runChildInit(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%s: missing rootfs path", sandbox.ChildInitArg)
	}
	rootfsPath := args[0]
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "--" {
		rest = rest[1:]
	}

	err := sandbox.ChildMain(rootfsPath, rest)
	// ChildMain returns a non-nil error only on failure: a successful exec
	// replaces this process image and never comes back here, and the empty
	// argv case (which launch never passes) returns nil. There is no caller left to
	// hand an error to once we're this deep into the child's side of a
	// launch, so this is one of the two places the runtime exits directly
	// rather than propagating an error up through RunE.
	fatal.OnError(sandbox.ChildInitArg, err)
	return nil
}
