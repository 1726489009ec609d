package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// StartCommandSize is the encoded length of a start command, terminator included
	StartCommandSize = 9

	// StopCommandSize is the encoded length of a stop command, terminator included
	StopCommandSize = 5

	// StatusFrameSize is the encoded length of a status frame, terminator included
	StatusFrameSize = 25

	// MaxMessageSize bounds a single line. Anything longer is discarded.
	MaxMessageSize = 64

	statusPayloadSize = 10
)

var (
	ErrMalformedCommand = errors.New("Command is malformed")
	ErrMalformedFrame   = errors.New("Status frame is malformed")
	ErrUnknownCommand   = errors.New("Unknown command could not be encoded")
	ErrInvalidInterval  = errors.New("Interval must be greater than zero")
	ErrMessageTooLong   = errors.New("Message exceeds the maximum message size")

	PrefixStart  = []byte(TagStart)
	PrefixStop   = []byte(TagStop)
	PrefixStatus = []byte(TagStatus)
)

// DecodeCommand parses a single command line. The trailing `\n` is optional,
// as is a `\r` before it.
//
// Every failure wraps ErrMalformedCommand.
func DecodeCommand(data []byte) (Command, error) {
	raw := RemoveTrailingCR(RemoveTrailingLF(data))

	switch {
	case bytes.HasPrefix(raw, PrefixStart):
		payload := raw[len(PrefixStart):]
		if len(payload) != hex.EncodedLen(2) {
			return nil, fmt.Errorf("%w: '%s' has a %d byte payload, expected %d",
				ErrMalformedCommand, raw, len(payload), hex.EncodedLen(2))
		}

		var interval [2]byte
		if _, err := hex.Decode(interval[:], payload); err != nil {
			return nil, fmt.Errorf("%w: '%s' is not valid hex: %v", ErrMalformedCommand, raw, err)
		}

		cmd := StartCommand{Interval: binary.LittleEndian.Uint16(interval[:])}
		if err := cmd.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
		}

		return cmd, nil

	case bytes.HasPrefix(raw, PrefixStop):
		if len(raw) != len(PrefixStop) {
			return nil, fmt.Errorf("%w: '%s' carries an unexpected payload", ErrMalformedCommand, raw)
		}

		return StopCommand{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tag in '%s'", ErrMalformedCommand, raw)
	}
}

// DecodeStatus parses a complete status frame, tag and `\r\n` terminator
// included. The length is checked before anything is decoded, so a frame
// either decodes completely or not at all.
//
// Every failure wraps ErrMalformedFrame.
func DecodeStatus(data []byte) (StatusFrame, error) {
	var frame StatusFrame

	if len(data) != StatusFrameSize {
		return frame, fmt.Errorf("%w: got %d bytes, expected %d",
			ErrMalformedFrame, len(data), StatusFrameSize)
	}

	if !bytes.HasPrefix(data, PrefixStatus) {
		return frame, fmt.Errorf("%w: unexpected tag '%s'", ErrMalformedFrame, data[:len(PrefixStatus)])
	}

	if !bytes.HasSuffix(data, Terminal) {
		return frame, fmt.Errorf("%w: missing terminator", ErrMalformedFrame)
	}

	var payload [statusPayloadSize]byte
	if _, err := hex.Decode(payload[:], data[len(PrefixStatus):len(data)-len(Terminal)]); err != nil {
		return frame, fmt.Errorf("%w: payload is not valid hex: %v", ErrMalformedFrame, err)
	}

	frame.SupplyVoltage = binary.LittleEndian.Uint16(payload[0:2])
	frame.EnvTemperature = int16(binary.LittleEndian.Uint16(payload[2:4]))
	frame.Yaw = int16(binary.LittleEndian.Uint16(payload[4:6]))
	frame.Pitch = int16(binary.LittleEndian.Uint16(payload[6:8]))
	frame.Roll = int16(binary.LittleEndian.Uint16(payload[8:10]))

	return frame, nil
}

// Reader frames a byte stream into `\n` terminated messages.
//
// Unlike a bare bufio.Reader, data read before an error (typically a read
// deadline expiring) is kept and prepended to the next message, so a frame
// split across reads is never lost.
type Reader struct {
	r          *bufio.Reader
	pending    []byte
	discarding bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, MaxMessageSize)}
}

// ReadMessage returns the next complete message, terminator included.
//
// Lines longer than MaxMessageSize are dropped up to and including their
// terminator, after which ErrMessageTooLong is returned. The stream remains
// usable.
func (r *Reader) ReadMessage() ([]byte, error) {
	for {
		chunk, err := r.r.ReadSlice('\n')

		if r.discarding {
			if err == nil {
				r.discarding = false
				return nil, ErrMessageTooLong
			}

			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}

			return nil, err
		}

		r.pending = append(r.pending, chunk...)

		if len(r.pending) > MaxMessageSize {
			r.pending = nil

			if err == nil {
				return nil, ErrMessageTooLong
			}

			r.discarding = true
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}

			return nil, err
		}

		switch {
		case err == nil:
			msg := r.pending
			r.pending = nil
			return msg, nil

		case errors.Is(err, bufio.ErrBufferFull):
			continue

		default:
			return nil, err
		}
	}
}

// Buffered reports whether a partial message is waiting for its terminator.
func (r *Reader) Buffered() bool {
	return len(r.pending) > 0 || r.r.Buffered() > 0
}

func RemoveTrailingLF(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return data[:len(data)-1]
	}

	return data
}

func RemoveTrailingCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		// Remove the optional trailing \r
		return data[:len(data)-1]
	}

	return data
}
