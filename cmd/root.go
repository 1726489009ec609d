package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/imubridge/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "imubridge",
	Short: "Bridge an inertial/environmental sensor to MQTT and HTTP",
	Long: `Bridge an inertial/environmental sensor to MQTT and HTTP

imubridge talks to a sensor over a line-oriented TCP protocol, decodes its
status frames and publishes supply voltage, temperature, yaw, pitch and roll.
It can also simulate the sensor for testing.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(BridgeCmd)
	RootCmd.AddCommand(SimulateCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
