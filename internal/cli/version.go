// internal/cli/version.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}

func printVersion() {
	fmt.Printf("yuki-frame %s\n", Version)
	fmt.Printf("commit: %s\n", Commit)
	fmt.Printf("built:  %s\n", BuildDate)
}
