package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moep/moepserver/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "moepserver",
	Short: "Game server for the Moep card game",
	Long: `Game server for the Moep card game

Clients connect over TCP and speak a line based protocol, every line is a
two digit packet tag followed by a JSON object.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
