package racechrono

import (
	"context"

	"github.com/jd3nn1s/racechrono/lemoncan"
)

// to allow testing
var canBusConnect = func(p string) (CANBus, error) {
	return lemoncan.Connect(p)
}

// canBusSource reads the sensor CAN bus. Frames the bus does not decode are
// handed to raw.
type canBusSource struct {
	portName string
	conn     CANBus
	raw      func(frame rawFrame)
}

type rawFrame struct {
	ID   uint32
	Data []byte
}

func (bus *canBusSource) Name() string {
	return "canbus"
}

func (bus *canBusSource) Open() error {
	conn, err := canBusConnect(bus.portName)
	if err != nil {
		return err
	}
	bus.conn = conn
	return nil
}

func (bus *canBusSource) Close() error {
	if bus.conn == nil {
		return nil
	}
	err := bus.conn.Close()
	bus.conn = nil
	return err
}

func (bus *canBusSource) Run(ctx context.Context, emit EmitFn) error {
	sensor := func(field Field) lemoncan.IntResultFn {
		return func(v int) {
			emit(Sample{Field: field, Value: float64(v)})
		}
	}
	cb := lemoncan.Callbacks{
		OilTemp:     sensor(FieldOilTemp),
		CoolantTemp: sensor(FieldCoolantTemp),
		Fuel:        sensor(FieldFuelLevel),
	}
	if bus.raw != nil {
		cb.Raw = func(id uint32, data []byte) {
			bus.raw(rawFrame{ID: id, Data: append([]byte(nil), data...)})
		}
	}
	return bus.conn.Start(ctx, cb)
}
