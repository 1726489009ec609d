package protocol

// StatusFrame holds the raw integer fields of a status message.
type StatusFrame struct {
	// SupplyVoltage in millivolts
	SupplyVoltage uint16

	// EnvTemperature in tenths of a degree Celsius
	EnvTemperature int16

	// Yaw, Pitch and Roll in tenths of a degree
	Yaw   int16
	Pitch int16
	Roll  int16
}

// Reading is a StatusFrame scaled to physical units.
type Reading struct {
	// SupplyVoltage in volts
	SupplyVoltage float64 `json:"supply_voltage"`

	// EnvTemperature in degrees Celsius
	EnvTemperature float64 `json:"env_temperature"`

	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Reading converts the raw frame fields into physical units.
func (f StatusFrame) Reading() Reading {
	return Reading{
		SupplyVoltage:  float64(f.SupplyVoltage) / 1000,
		EnvTemperature: float64(f.EnvTemperature) / 10,
		Yaw:            float64(f.Yaw) / 10,
		Pitch:          float64(f.Pitch) / 10,
		Roll:           float64(f.Roll) / 10,
	}
}

// Quantity names a single physical value carried by a Reading.
type Quantity string

const (
	QuantitySupplyVoltage  Quantity = "supply_voltage"
	QuantityEnvTemperature Quantity = "env_temperature"
	QuantityYaw            Quantity = "yaw"
	QuantityPitch          Quantity = "pitch"
	QuantityRoll           Quantity = "roll"
)

// Quantities lists every quantity in wire order.
var Quantities = []Quantity{
	QuantitySupplyVoltage,
	QuantityEnvTemperature,
	QuantityYaw,
	QuantityPitch,
	QuantityRoll,
}

// Value returns the value of a single quantity. ok is false for an unknown
// quantity.
func (r Reading) Value(q Quantity) (value float64, ok bool) {
	switch q {
	case QuantitySupplyVoltage:
		return r.SupplyVoltage, true
	case QuantityEnvTemperature:
		return r.EnvTemperature, true
	case QuantityYaw:
		return r.Yaw, true
	case QuantityPitch:
		return r.Pitch, true
	case QuantityRoll:
		return r.Roll, true
	default:
		return 0, false
	}
}
