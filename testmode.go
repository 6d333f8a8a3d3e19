package racechrono

import (
	"context"
	"time"
)

// ramp sweeps a field between min and max and back.
type ramp struct {
	field    Field
	min, max float64
	step     float64
	every    time.Duration
}

var testRamps = []ramp{
	{field: FieldGPSSpeed, min: 0, max: 100, step: 1, every: 20 * time.Millisecond},
	{field: FieldLatitude, min: 51.5, max: 51.51, step: 0.00001, every: 20 * time.Millisecond},
	{field: FieldLongitude, min: -0.13, max: -0.12, step: 0.00001, every: 20 * time.Millisecond},
	{field: FieldRPM, min: 0, max: 6000, step: 100, every: 250 * time.Millisecond},
	{field: FieldSpeed, min: 0, max: 120, step: 2, every: 250 * time.Millisecond},
	{field: FieldCoolantTemp, min: 0, max: 120, step: 5, every: time.Second},
	{field: FieldFuelLevel, min: 0, max: 24, step: 1, every: time.Second},
}

// next returns the value after v and the direction to continue in, turning
// around at either end.
func (r ramp) next(v float64, up bool) (float64, bool) {
	if up {
		v += r.step
	} else {
		v -= r.step
	}
	if v >= r.max {
		return r.max, false
	}
	if v <= r.min {
		return r.min, true
	}
	return v, up
}

func (r ramp) run(ctx context.Context, emit EmitFn) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	v, up := r.min, true
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		emit(Sample{Field: r.field, Value: v})
		v, up = r.next(v, up)
	}
}

// runTestMode feeds ramping values for a handful of fields until ctx is done.
func runTestMode(ctx context.Context, emit EmitFn) {
	for _, r := range testRamps {
		go r.run(ctx, emit)
	}
}
