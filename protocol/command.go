package protocol

// Tag is the three character prefix identifying a message type.
type Tag string

const (
	TagStart  Tag = "#03"
	TagStop   Tag = "#09"
	TagStatus Tag = "$11"
)

// Command is an instruction sent to a sensor. It is either a StartCommand
// or a StopCommand.
type Command interface {
	GetTag() Tag
}

// StartCommand asks the sensor to emit a status frame every Interval
// milliseconds. Sending it while already streaming changes the cadence.
type StartCommand struct {
	Interval uint16
}

func (StartCommand) GetTag() Tag {
	return TagStart
}

// Validate returns ErrInvalidInterval when the interval is zero.
func (s StartCommand) Validate() error {
	if s.Interval == 0 {
		return ErrInvalidInterval
	}

	return nil
}

type StopCommand struct{}

func (StopCommand) GetTag() Tag {
	return TagStop
}

var _ Command = StartCommand{}
var _ Command = StopCommand{}
