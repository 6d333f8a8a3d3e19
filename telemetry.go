package racechrono

import "math"

// Field names a telemetry value. The names are used in configuration and by
// the sources when reporting samples.
type Field string

const (
	FieldRPM            Field = "rpm"
	FieldOilPressure    Field = "oil_pressure"
	FieldSpeed          Field = "speed"
	FieldFuelRemaining  Field = "fuel_remaining"
	FieldFuelLevel      Field = "fuel_level"
	FieldOilTemp        Field = "oil_temp"
	FieldCoolantTemp    Field = "coolant_temp"
	FieldAirIntakeTemp  Field = "air_intake_temp"
	FieldBatteryVoltage Field = "battery_voltage"
	FieldLatitude       Field = "latitude"
	FieldLongitude      Field = "longitude"
	FieldAltitude       Field = "altitude"
	FieldTrack          Field = "track"
	FieldGPSSpeed       Field = "gps_speed"
	FieldGasPedalAngle  Field = "gas_pedal_angle"
)

// Sample is a new value for one field, reported by a source.
type Sample struct {
	Field Field
	Value float64
}

type Telemetry struct {
	RPM         float32
	OilPressure float32
	Speed       float32

	FuelRemaining float32
	FuelLevel     uint8

	OilTemp        float32
	CoolantTemp    float32
	AirIntakeTemp  float32
	BatteryVoltage float32

	Latitude      float64
	Longitude     float64
	Altitude      float32
	Track         float32
	GPSSpeed      float32
	GasPedalAngle uint8
}

type fieldAccess struct {
	get func(t *Telemetry) float64
	set func(t *Telemetry, v float64)
}

func float32Field(p func(t *Telemetry) *float32) fieldAccess {
	return fieldAccess{
		get: func(t *Telemetry) float64 { return float64(*p(t)) },
		set: func(t *Telemetry, v float64) { *p(t) = float32(v) },
	}
}

func uint8Field(p func(t *Telemetry) *uint8) fieldAccess {
	return fieldAccess{
		get: func(t *Telemetry) float64 { return float64(*p(t)) },
		set: func(t *Telemetry, v float64) { *p(t) = clampUint8(v) },
	}
}

func float64Field(p func(t *Telemetry) *float64) fieldAccess {
	return fieldAccess{
		get: func(t *Telemetry) float64 { return *p(t) },
		set: func(t *Telemetry, v float64) { *p(t) = v },
	}
}

var telemetryFields = map[Field]fieldAccess{
	FieldRPM:            float32Field(func(t *Telemetry) *float32 { return &t.RPM }),
	FieldOilPressure:    float32Field(func(t *Telemetry) *float32 { return &t.OilPressure }),
	FieldSpeed:          float32Field(func(t *Telemetry) *float32 { return &t.Speed }),
	FieldFuelRemaining:  float32Field(func(t *Telemetry) *float32 { return &t.FuelRemaining }),
	FieldFuelLevel:      uint8Field(func(t *Telemetry) *uint8 { return &t.FuelLevel }),
	FieldOilTemp:        float32Field(func(t *Telemetry) *float32 { return &t.OilTemp }),
	FieldCoolantTemp:    float32Field(func(t *Telemetry) *float32 { return &t.CoolantTemp }),
	FieldAirIntakeTemp:  float32Field(func(t *Telemetry) *float32 { return &t.AirIntakeTemp }),
	FieldBatteryVoltage: float32Field(func(t *Telemetry) *float32 { return &t.BatteryVoltage }),
	FieldLatitude:       float64Field(func(t *Telemetry) *float64 { return &t.Latitude }),
	FieldLongitude:      float64Field(func(t *Telemetry) *float64 { return &t.Longitude }),
	FieldAltitude:       float32Field(func(t *Telemetry) *float32 { return &t.Altitude }),
	FieldTrack:          float32Field(func(t *Telemetry) *float32 { return &t.Track }),
	FieldGPSSpeed:       float32Field(func(t *Telemetry) *float32 { return &t.GPSSpeed }),
	FieldGasPedalAngle:  uint8Field(func(t *Telemetry) *uint8 { return &t.GasPedalAngle }),
}

// Get returns the value of field f. ok is false for unknown fields.
func (t *Telemetry) Get(f Field) (v float64, ok bool) {
	access, ok := telemetryFields[f]
	if !ok {
		return 0, false
	}
	return access.get(t), true
}

// Apply sets every sample on t and reports whether any value changed.
// Samples for unknown fields are skipped.
func (t *Telemetry) Apply(samples ...Sample) (changed bool) {
	for _, s := range samples {
		access, ok := telemetryFields[s.Field]
		if !ok {
			continue
		}
		before := access.get(t)
		access.set(t, s.Value)
		if access.get(t) != before {
			changed = true
		}
	}
	return changed
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(v)
}
