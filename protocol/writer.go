package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

var (
	Terminal = []byte("\r\n")

	hexDigits = "0123456789ABCDEF"
)

// EncodeCommand produces the wire form of a command. A StartCommand with a
// zero interval is rejected with ErrInvalidInterval.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case StartCommand:
		return encodeStart(c)

	case *StartCommand:
		return encodeStart(*c)

	case StopCommand, *StopCommand:
		return encodeMessage(TagStop, nil), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func encodeStart(c StartCommand) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var payload [2]byte
	binary.LittleEndian.PutUint16(payload[:], c.Interval)

	return encodeMessage(TagStart, payload[:]), nil
}

// EncodeStatus produces the 25 byte wire form of a status frame.
func EncodeStatus(f StatusFrame) []byte {
	var payload [statusPayloadSize]byte

	binary.LittleEndian.PutUint16(payload[0:2], f.SupplyVoltage)
	binary.LittleEndian.PutUint16(payload[2:4], uint16(f.EnvTemperature))
	binary.LittleEndian.PutUint16(payload[4:6], uint16(f.Yaw))
	binary.LittleEndian.PutUint16(payload[6:8], uint16(f.Pitch))
	binary.LittleEndian.PutUint16(payload[8:10], uint16(f.Roll))

	return encodeMessage(TagStatus, payload[:])
}

func WriteCommand(w io.Writer, cmd Command) error {
	b, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	_, err = w.Write(b)
	return err
}

func WriteStatus(w io.Writer, f StatusFrame) error {
	_, err := w.Write(EncodeStatus(f))
	return err
}

// encodeMessage lays out <tag><uppercase hex payload>\r\n in a single
// allocation.
func encodeMessage(tag Tag, payload []byte) []byte {
	b := make([]byte, 0, len(tag)+len(payload)*2+len(Terminal))
	b = append(b, string(tag)...)

	for _, v := range payload {
		b = append(b, hexDigits[v>>4], hexDigits[v&0x0f])
	}

	return append(b, Terminal...)
}
