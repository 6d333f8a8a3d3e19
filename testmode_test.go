package racechrono

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRampNext(t *testing.T) {
	r := ramp{field: FieldRPM, min: 0, max: 300, step: 100}

	v, up := r.min, true
	var values []float64
	for i := 0; i < 7; i++ {
		v, up = r.next(v, up)
		values = append(values, v)
	}
	assert.Equal(t, []float64{100, 200, 300, 200, 100, 0, 100}, values)
}

func TestTestRampsUseKnownFields(t *testing.T) {
	for _, r := range testRamps {
		_, ok := telemetryFields[r.field]
		assert.True(t, ok, "%s", r.field)
		assert.Less(t, r.min, r.max, "%s", r.field)
		assert.Positive(t, r.step, "%s", r.field)
	}
}
