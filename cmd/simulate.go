package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/imubridge/internal/env"
	"github.com/luma/imubridge/transport"
)

var (
	// The host the simulated sensor listens on
	simHost string

	// The port the simulated sensor listens on
	simPort int

	simReuseport bool
	simTrace     bool
	simWobble    bool
	simLogLevel  string
)

func init() {
	flags := SimulateCmd.PersistentFlags()

	flags.StringVarP(&simHost, "host", "a", transport.DefaultHost, "The host to listen on")
	flags.IntVarP(&simPort, "port", "p", transport.DefaultPort, "The port to listen for the bridge on")
	flags.BoolVar(&simReuseport, "reuseport", false, "Set SO_REUSEPORT on the listening socket")
	flags.BoolVar(&simTrace, "trace", false, "Log every command and frame")
	flags.BoolVar(&simWobble, "wobble", false, "Emit a slowly changing attitude instead of a fixed frame")
	flags.StringVar(&simLogLevel, "log-level", "info", "Log level")
}

var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated sensor",
	Long: `Run a simulated sensor

The simulator accepts one bridge at a time. After a start command it sends a
status frame every interval until the bridge sends stop or disconnects.

Usage
	imubridge simulate --port 2000

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		level := simLogLevel
		if simTrace {
			level = "debug"
		}

		log, err := env.MakeLogger(level)
		if err != nil {
			return err
		}
		defer log.Sync()

		var source transport.FrameSource = transport.StaticFrame(transport.ReferenceFrame)
		if simWobble {
			source = transport.NewWobbleSource()
		}

		sim := transport.NewSimulator(transport.Options{
			Host:      simHost,
			Port:      simPort,
			Reuseport: simReuseport,
			Trace:     simTrace,
			Source:    source,
			Log:       log.Named("simulator"),
		})

		if err := sim.Start(ctx); err != nil {
			return err
		}

		// Listen for the interrupt signal.
		<-ctx.Done()

		signalStop()
		log.Info("Shutting down")

		if err := sim.Close(); err != nil {
			log.Error("Simulator forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}
