package racechrono

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SpoofMapping sends a telemetry field to RaceChrono as CAN ID. The field
// value is multiplied by Scale and clamped to a single byte.
type SpoofMapping struct {
	Field Field
	ID    uint32
	Scale float64
}

type spoofField struct {
	SpoofMapping
	value func(t *Telemetry) float64
}

func (f *spoofField) byteValue(t *Telemetry) uint8 {
	return clampUint8(f.value(t) * f.Scale)
}

// SpoofForwarder sends telemetry to RaceChrono as spoofed CAN frames.
type SpoofForwarder struct {
	spoofer     CANSpoofer
	fields      []spoofField
	passthrough map[uint32]bool
}

// NewSpoofForwarder returns a forwarder sending mappings through spoofer. Raw
// frames are passed on for the IDs in passthrough.
func NewSpoofForwarder(spoofer CANSpoofer, mappings []SpoofMapping, passthrough []uint32) (*SpoofForwarder, error) {
	fwd := &SpoofForwarder{
		spoofer:     spoofer,
		passthrough: make(map[uint32]bool, len(passthrough)),
	}
	for _, m := range mappings {
		access, ok := telemetryFields[m.Field]
		if !ok {
			return nil, errors.Errorf("unknown telemetry field %q", m.Field)
		}
		if m.Scale == 0 {
			m.Scale = 1
		}
		fwd.fields = append(fwd.fields, spoofField{
			SpoofMapping: m,
			value:        access.get,
		})
	}
	for _, id := range passthrough {
		fwd.passthrough[id] = true
	}
	return fwd, nil
}

// Forward sends every mapped field whose byte value changed, or every mapped
// field if prevTelemetry is nil.
func (fwd *SpoofForwarder) Forward(newTelemetry *Telemetry, prevTelemetry *Telemetry) error {
	var lastErr error
	for i := range fwd.fields {
		f := &fwd.fields[i]
		v := f.byteValue(newTelemetry)
		if prevTelemetry != nil && v == f.byteValue(prevTelemetry) {
			continue
		}
		if err := fwd.spoofer.Update(f.ID, v); err != nil {
			lastErr = errors.Wrapf(err, "unable to send %s", f.Field)
		}
	}
	return lastErr
}

// ForwardRaw sends the first data byte of frames on the passthrough list.
func (fwd *SpoofForwarder) ForwardRaw(id uint32, data []byte) error {
	if !fwd.passthrough[id] {
		return nil
	}
	if len(data) == 0 {
		log.WithField("canID", id).Debug("empty passthrough frame")
		return nil
	}
	return fwd.spoofer.Update(id, data[0])
}
