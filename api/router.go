// Package api exposes the sensor control operations and the latest reading
// over HTTP.
package api

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/imubridge/client"
	"github.com/luma/imubridge/storage"
)

// Controller is implemented by client.Conn.
type Controller interface {
	StartSensor(interval uint16) client.Result
	StopSensor() client.Result
}

type Options struct {
	Controller Controller

	// Store holds the latest reading, one key per quantity
	Store storage.Store

	DebugHTTP bool

	Log *zap.Logger
}

type handlers struct {
	controller Controller
	store      storage.Store
	log        *zap.Logger
}

func NewRouter(options Options) *gin.Engine {
	gin.DisableConsoleColor()
	if !options.DebugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	h := &handlers{
		controller: options.Controller,
		store:      options.Store,
		log:        log,
	}

	r.GET("/ping", h.ping)

	r.POST("/start_sensor", h.startSensor)
	r.POST("/stop_sensor", h.stopSensor)

	r.GET("/api/reading", h.reading)
	r.GET("/api/reading/:quantity", h.quantity)
	r.GET("/ws", h.stream)

	return r
}
