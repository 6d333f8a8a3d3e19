package racechrono

import (
	"context"

	"github.com/jd3nn1s/kw1281"
	"github.com/jd3nn1s/racechrono/lemoncan"
	"github.com/jd3nn1s/skytraq"
)

type KW1281 interface {
	Close() error
	Start(context.Context, kw1281.Callbacks) error
}

type GPS interface {
	Close() error
	Start(context.Context, skytraq.Callbacks) error
}

type CANBus interface {
	Close() error
	Start(context.Context, lemoncan.Callbacks) error
}

// CANSpoofer sends a single byte sample to RaceChrono as a CAN frame.
type CANSpoofer interface {
	Update(id uint32, data uint8) error
}

// Forwarder is given every telemetry change. prevTelemetry is nil when
// everything should be sent regardless of change.
type Forwarder interface {
	Forward(newTelemetry *Telemetry, prevTelemetry *Telemetry) error
}

// RawForwarder is given CAN frames from the sensor bus that are not decoded
// into telemetry.
type RawForwarder interface {
	ForwardRaw(id uint32, data []byte) error
}
