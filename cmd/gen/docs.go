package gen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/moep/moepserver/internal/meta"
)

var (
	docsDir    string
	docsFormat string
)

var DocsCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"man"},
	Short:   "Generate man pages or markdown for the moepserver commands",
	Long: `This command documents moepserver and all of its commands, either as
	man pages (the default) or as markdown. The files are written to the
	"man" directory under the current directory unless --dir is given.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(docsDir); os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "Directory", docsDir, "does not exist, creating...")
			if err := os.MkdirAll(docsDir, 0750); err != nil {
				return err
			}
		}

		version := meta.GetInfo().Version
		if version == "" {
			version = "dev"
		}

		root := cmd.Root()
		root.DisableAutoGenTag = true

		fmt.Fprintf(cmd.OutOrStdout(), "Generating %s docs for moepserver %s in %s ...\n", docsFormat, version, filepath.Clean(docsDir))

		var err error
		switch docsFormat {
		case "man":
			err = doc.GenManTree(root, &doc.GenManHeader{
				Section: "1",
				Manual:  "moepserver Manual",
				Source:  "moepserver " + version,
			}, docsDir)
		case "markdown":
			err = doc.GenMarkdownTree(root, docsDir)
		default:
			return fmt.Errorf("Unknown docs format '%s', expected man or markdown", docsFormat)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Done.")
		return nil
	},
}

func init() {
	flags := DocsCmd.PersistentFlags()

	flags.StringVar(&docsDir, "dir", "man", "The directory to write the docs to")
	flags.StringVar(&docsFormat, "format", "man", "Either man or markdown")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
