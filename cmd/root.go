// Package cmd wires the runtime's external interface as a Cobra command
// tree: a default invocation that launches a sandboxed command, a hidden
// subcommand that runs the child side of a launch after the runtime
// re-execs itself, and a version command.
package cmd

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X github.com/vorinsk/isolate/cmd.version=...".
var version = "dev"

// configPathEnv names the environment variable carrying an optional
// profile override path. A flag can't be used for this: the bare
// invocation's own flag parsing is disabled so the sandboxed command's
// flags pass through untouched, so the override path is read from the
// environment instead.
const configPathEnv = "ISOLATE_CONFIG"

// RootCmd is the top-level command. Unlike a typical CLI, the runtime's
// primary invocation is not a named subcommand: `isolate <cmd> [args...]`
// runs the command directly, matching the external interface's bare
// <program> <cmd> [args...] shape. RunE does the work instead of dispatching
// to a subcommand, so Cobra's arg parsing never tries to interpret the
// sandboxed command's own flags.
var RootCmd = &cobra.Command{
	Use:                "isolate [cmd] [args...]",
	Short:              "Run a command inside an isolated namespace, cgroup, and network sandbox",
	DisableFlagParsing: true,
	Args:               cobra.ArbitraryArgs,
	RunE:               runDefault,
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(childInitCmd)
}

// Execute runs the command tree; main calls this and exits non-zero on
// error.
func Execute() error {
	return RootCmd.Execute()
}
