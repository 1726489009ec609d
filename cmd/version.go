package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/luma/imubridge/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(meta.GetInfo())
	},
}
