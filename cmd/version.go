package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd keeps the teacher's CNI version-reporting dependency alive in
// spirit: where the CNI plugin reported the protocol versions it speaks,
// this runtime has no protocol to version, so the command instead reports
// its own build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the isolate runtime version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version)
		return nil
	},
}
