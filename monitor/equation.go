package monitor

import (
	"math"
)

// RawInvalid is the raw value RaceChrono sends when an equation has no data.
const RawInvalid = math.MaxInt32

// EquationConfig describes an equation to register with RaceChrono.
type EquationConfig struct {
	Expression string
	Scale      float64
}

// Equation is a registered monitor. Its index in the monitor is also its
// channel ID on the wire.
type Equation struct {
	index      uint8
	expression string
	scale      float64
	scaleInv   float64

	value float64
	valid bool
}

func newEquation(index uint8, cfg EquationConfig) *Equation {
	return &Equation{
		index:      index,
		expression: cfg.Expression,
		scale:      cfg.Scale,
		scaleInv:   1 / cfg.Scale,
	}
}

// Index is the equation's channel ID.
func (eq *Equation) Index() uint8 {
	return eq.index
}

// Expression is the text registered with RaceChrono.
func (eq *Equation) Expression() string {
	return eq.expression
}

// Scale is the factor RaceChrono multiplies the value by before sending.
func (eq *Equation) Scale() float64 {
	return eq.scale
}

// Value returns the last value received. ok is false when there is no data.
func (eq *Equation) Value() (v float64, ok bool) {
	return eq.value, eq.valid
}

// UpdateFromRaw stores raw scaled down by the equation's scale factor.
func (eq *Equation) UpdateFromRaw(raw int32) {
	if raw == RawInvalid {
		eq.Clear()
		return
	}
	eq.value = float64(raw) * eq.scaleInv
	eq.valid = true
}

// Clear forgets the stored value.
func (eq *Equation) Clear() {
	eq.value = 0
	eq.valid = false
}

// EquationValue is a point in time copy of an equation.
type EquationValue struct {
	Index      uint8
	Expression string
	Value      float64
	Valid      bool
}

func (eq *Equation) snapshot() EquationValue {
	return EquationValue{
		Index:      eq.index,
		Expression: eq.expression,
		Value:      eq.value,
		Valid:      eq.valid,
	}
}
