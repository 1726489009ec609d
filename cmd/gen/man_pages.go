package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/imubridge/internal/meta"
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for imubridge",
	Long: `Generates up-to-date man pages for the bridge and simulator commands,
in the "man" directory under the current directory unless --dir is given.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := prepareDir(cmd, "man")
		if err != nil {
			return err
		}

		header := &doc.GenManHeader{
			Section: "1",
			Manual:  "imubridge Manual",
			Source:  fmt.Sprintf("imubridge %s", meta.GetInfo().Version),
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Generating man pages in", dir, "...")

		if err := doc.GenManTree(cmd.Root(), header, dir); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Done.")
		return nil
	},
}

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate a markdown command reference",

	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := prepareDir(cmd, "docs")
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Generating markdown reference in", dir, "...")

		return doc.GenMarkdownTree(cmd.Root(), dir)
	},
}

// prepareDir resolves --dir (falling back to def) and creates it if needed.
func prepareDir(cmd *cobra.Command, def string) (string, error) {
	dir := outDir
	if dir == "" {
		dir = def
	}

	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}

	if _, err := os.Stat(dir); err != nil && os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Directory", dir, "does not exist, creating...")
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", err
		}
	}

	cmd.Root().DisableAutoGenTag = true

	return dir, nil
}
