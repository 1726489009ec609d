package transport

import (
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on. 0 picks a free port, see Simulator.Addr()
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// Trace logs every frame sent and command received. This is only useful in local debugging
	Trace bool

	// Source produces the frames emitted while streaming. Defaults to StaticFrame.
	Source FrameSource

	Log *zap.Logger
}
