package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/imubridge/api"
	"github.com/luma/imubridge/client"
	"github.com/luma/imubridge/internal/env"
	"github.com/luma/imubridge/publish"
	"github.com/luma/imubridge/storage"
)

const (
	reconnectInterval = time.Second
	reconnectMax      = 30 * time.Second
)

var (
	// Optional YAML parameters file
	paramsFile string
)

func init() {
	flags := BridgeCmd.PersistentFlags()

	flags.StringVar(&paramsFile, "params", "", "A YAML parameters file overriding the environment")
}

var BridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Connect to a sensor and publish its readings",
	Long: `Connect to a sensor and publish its readings

The bridge connects to SENSOR_IP:SENSOR_PORT, asks the sensor to stream every
SENSOR_INTERVAL milliseconds and publishes each reading to the in-memory store
(served over HTTP) and, when SENSOR_MQTT_BROKER is set, to MQTT.

Usage
	imubridge bridge --params params.yaml

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx, paramsFile)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		store := storage.NewInmemoryStore()
		defer store.Close()

		publishers := []publish.Publisher{publish.NewStorePublisher(store)}

		if conf.MQTTBroker != "" {
			mqttPub, err := publish.DialMQTT(ctx, publish.MQTTOptions{
				Broker:      conf.MQTTBroker,
				ClientID:    conf.MQTTClientID,
				TopicPrefix: conf.MQTTTopicPrefix,
				Log:         log.Named("mqtt"),
			})
			if err != nil {
				return err
			}
			defer mqttPub.Close()

			publishers = append(publishers, mqttPub)
		}

		conn := client.New(client.Options{
			PollTimeout: conf.PollInterval,
			DialTimeout: conf.DialTimeout,
			Publisher:   publish.Multi(publishers...),
			Log:         log.Named("client"),
		})

		s := &http.Server{
			Addr: conf.HTTPAddr,
			Handler: api.NewRouter(api.Options{
				Controller: conn,
				Store:      store,
				DebugHTTP:  conf.DebugHTTP,
				Log:        log.Named("api"),
			}),
		}

		// Initializing the server in a goroutine so that
		// it won't block the sensor session below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Bridging",
			zap.String("sensor", conf.Endpoint()),
			zap.Uint16("intervalMs", conf.Interval),
			zap.String("httpAddr", conf.HTTPAddr),
			zap.Bool("mqtt", conf.MQTTBroker != ""))

		sessionErr := runSessions(ctx, conn, conf, log)

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if conn.Streaming() {
			if err := conn.SendStop(); err != nil {
				log.Warn("Failed to stop the sensor", zap.Error(err))
			}
		}

		if err := conn.Disconnect(); err != nil {
			log.Warn("Failed to disconnect cleanly", zap.Error(err))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return sessionErr
	},
}

// runSessions keeps a session with the sensor alive until ctx is done.
// Without SENSOR_RECONNECT the first connect or session failure is returned.
func runSessions(ctx context.Context, conn *client.Conn, conf *env.Config, log *zap.Logger) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := conn.Connect(ctx, conf.Endpoint()); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			log.Error("Failed to connect to sensor", zap.Error(err))
			if !conf.Reconnect {
				return err
			}

			attempt++
			sleepBackoff(ctx, attempt)
			continue
		}

		attempt = 0

		// A stop request ends the session on the sensor side. Stay connected
		// but silent until the next start request.
		if conn.Forwarding() {
			if err := conn.SendStart(resumeInterval(conn, conf)); err != nil {
				log.Warn("Failed to start the sensor", zap.Error(err))
			}
		} else {
			log.Info("Sensor stopped on request, waiting for a start")
		}

		err := conn.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if !conf.Reconnect {
			return err
		}

		log.Info("Sensor session ended, reconnecting", zap.Error(err))
		sleepBackoff(ctx, 1)
	}
}

// resumeInterval keeps the cadence of the last start request across
// reconnects.
func resumeInterval(conn *client.Conn, conf *env.Config) uint16 {
	if interval := conn.Interval(); interval != 0 {
		return interval
	}

	return conf.Interval
}

func sleepBackoff(ctx context.Context, attempt int) {
	wait := min(reconnectInterval*time.Duration(attempt), reconnectMax)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
