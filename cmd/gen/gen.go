package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for moepserver",
	Long:  `Generate documentation for moepserver: command docs and the packet reference`,
}

func init() {
	RootCmd.AddCommand(DocsCmd)
	RootCmd.AddCommand(PacketsCmd)
}
