package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Documentation generators",
	Long:  `Generate man pages or markdown reference docs for every command`,
}

var (
	outDir string
)

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVar(&outDir, "dir", "", "the directory to write to (default \"man/\" or \"docs/\")")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}

	RootCmd.AddCommand(ManPagesCmd)
	RootCmd.AddCommand(MarkdownCmd)
}
