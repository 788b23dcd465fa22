package cmd

import (
	"fmt"
	"os"

	"github.com/vorinsk/isolate/internal/fatal"
	"github.com/vorinsk/isolate/internal/lock"
	"github.com/vorinsk/isolate/internal/profile"
	"github.com/vorinsk/isolate/internal/sandbox"

	"github.com/spf13/cobra"
)

// runCmd is the explicit form of the primary invocation: `isolate run --
// <program> [args...]`. The bare form (no subcommand, handled by RootCmd's
// own RunE) dispatches to the same launch function, so either spelling
// produces identical behavior.
var runCmd = &cobra.Command{
	Use:                "run -- <program> [args...]",
	Short:              "Run a command inside an isolated namespace, cgroup, and network sandbox",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return launch(stripDoubleDash(args))
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
}

// runDefault is RootCmd's own RunE for the bare `isolate <program>
// [args...]` form.
func runDefault(cmd *cobra.Command, args []string) error {
	return launch(args)
}

func stripDoubleDash(args []string) []string {
	if len(args) > 0 && args[0] == "--" {
		return args[1:]
	}
	return args
}

// launch loads the active profile, acquires the launch lock, and hands the
// requested command off to the sandbox orchestrator.
func launch(args []string) error {
	if len(args) == 0 {
		fmt.Println("Nothing to do!")
		return nil
	}

	p, err := profile.Load(os.Getenv(configPathEnv))
	if err != nil {
		return err
	}

	guard, err := lock.Acquire(lock.DefaultPath)
	if err != nil {
		return err
	}
	defer guard.Release()

	fatal.Log.Infof("launching %v under %s", args, p.GroupName)

	result, err := sandbox.Launch(&sandbox.Request{Profile: p, Argv: args})
	if err != nil {
		return err
	}

	fatal.Log.Infof("sandbox interfaces: host=%s sandbox=%s", p.HostVeth.Name, p.SandboxVeth.Name)
	_ = result // the CNI-shaped result is available to callers that want it; the CLI itself only logs a summary
	return nil
}
