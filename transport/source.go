package transport

import (
	"math"
	"time"

	"github.com/luma/imubridge/protocol"
)

// FrameSource supplies the measurement emitted on each tick.
type FrameSource interface {
	Next() protocol.StatusFrame
}

// ReferenceFrame is what a simulated sensor reports by default: 5.000V,
// 25.0°C, yaw 15.0°, pitch -10.0° and roll 7.5°.
var ReferenceFrame = protocol.StatusFrame{
	SupplyVoltage:  5000,
	EnvTemperature: 250,
	Yaw:            150,
	Pitch:          -100,
	Roll:           75,
}

// StaticFrame always returns the same frame.
type StaticFrame protocol.StatusFrame

func (s StaticFrame) Next() protocol.StatusFrame {
	return protocol.StatusFrame(s)
}

// WobbleSource sways pitch and roll around the reference frame and slowly
// rotates yaw, so a dashboard has something to draw.
type WobbleSource struct {
	start time.Time
	now   func() time.Time
}

func NewWobbleSource() *WobbleSource {
	return &WobbleSource{start: time.Now(), now: time.Now}
}

func (w *WobbleSource) Next() protocol.StatusFrame {
	t := w.now().Sub(w.start).Seconds()

	frame := ReferenceFrame
	frame.Yaw = int16(math.Mod(t*50, 3600))
	frame.Pitch = int16(150 * math.Sin(t*0.5))
	frame.Roll = int16(100 * math.Sin(t*0.3))

	return frame
}

var _ FrameSource = StaticFrame{}
var _ FrameSource = (*WobbleSource)(nil)
