package client

import (
	"errors"

	"go.uber.org/zap"

	"github.com/luma/imubridge/protocol"
)

const (
	MsgStarted      = "Sensor started."
	MsgStopped      = "Sensor stopped."
	MsgNotConnected = "No connection to sensor."
)

// Result answers a control request.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StartSensor enables forwarding and tells the sensor to stream every
// interval milliseconds.
func (c *Conn) StartSensor(interval uint16) Result {
	if err := (protocol.StartCommand{Interval: interval}).Validate(); err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	c.forwarding.Store(true)

	if err := c.SendStart(interval); err != nil {
		return c.failed("start", err)
	}

	return Result{Success: true, Message: MsgStarted}
}

// StopSensor disables forwarding and tells the sensor to stop. Forwarding
// stays disabled even if the command could not be delivered.
func (c *Conn) StopSensor() Result {
	c.forwarding.Store(false)

	if err := c.SendStop(); err != nil {
		return c.failed("stop", err)
	}

	return Result{Success: true, Message: MsgStopped}
}

func (c *Conn) failed(op string, err error) Result {
	c.log.Error("Failed to send command", zap.String("command", op), zap.Error(err))

	if errors.Is(err, ErrNotConnected) {
		return Result{Success: false, Message: MsgNotConnected}
	}

	return Result{Success: false, Message: err.Error()}
}
