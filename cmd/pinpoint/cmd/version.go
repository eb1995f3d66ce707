package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pinpoint-search/pinpoint/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show detailed version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
