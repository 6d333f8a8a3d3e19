package racechrono

import (
	"context"
	"testing"

	"github.com/jd3nn1s/kw1281"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withValue(m kw1281.Measurement, value interface{}) *kw1281.Measurement {
	m.MeasurementValue = &kw1281.MeasurementValue{Value: value}
	return &m
}

func TestECUSource(t *testing.T) {
	origECUConnect := ecuConnect
	defer func() {
		ecuConnect = origECUConnect
	}()
	stub := newDeviceStub[kw1281.Callbacks]()
	var port string
	ecuConnect = func(p string) (KW1281, error) {
		port = p
		return stub, nil
	}

	src := &ecuSource{portName: "/dev/obd"}
	assert.NoError(t, src.Close(), "closing an unopened source is a no-op")
	require.NoError(t, src.Open())
	assert.Equal(t, "/dev/obd", port)

	c := &collector{}
	stop := startSource(src, c.emit)
	cb := <-stub.started
	cb.ECUDetails(&kw1281.ECUDetails{PartNumber: "030906032E", Details: []string{"1.6l R4"}})
	cb.Measurement(kw1281.GroupRPMCoolantTemp, []*kw1281.Measurement{
		withValue(kw1281.Measurement{Metric: kw1281.MetricRPM}, 3200),
		withValue(kw1281.Measurement{Metric: kw1281.MetricCoolantTemp}, 85),
		withValue(kw1281.Measurement{Metric: kw1281.MetricSpeed}, 88),
	})
	assert.Equal(t, context.Canceled, stop())

	assert.Equal(t, 3200.0, c.get(FieldRPM))
	assert.Equal(t, 88.0, c.get(FieldSpeed))
	assert.Zero(t, c.get(FieldCoolantTemp), "coolant temperature comes from the sensor bus")

	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
	assert.Equal(t, 1, stub.closeCount())
}

func TestECUOpenError(t *testing.T) {
	origECUConnect := ecuConnect
	defer func() {
		ecuConnect = origECUConnect
	}()
	ecuConnect = func(string) (KW1281, error) {
		return nil, errors.New("no such port")
	}

	src := &ecuSource{portName: "/dev/obd"}
	assert.Error(t, src.Open())
	assert.NoError(t, src.Close())
}

func TestECUSamples(t *testing.T) {
	samples := ecuSamples([]*kw1281.Measurement{
		withValue(kw1281.Measurement{Metric: kw1281.MetricBatteryVoltage}, float32(13.5)),
		withValue(kw1281.Measurement{Metric: kw1281.MetricThrottleAngle}, 12.0),
		withValue(kw1281.Measurement{Metric: kw1281.MetricAirIntakeTemp}, 31),
		withValue(kw1281.Measurement{Metric: kw1281.MetricRPM}, "not a number"),
		{Metric: kw1281.MetricSpeed},
		nil,
	})
	assert.Equal(t, []Sample{
		{Field: FieldBatteryVoltage, Value: 13.5},
		{Field: FieldGasPedalAngle, Value: 12},
		{Field: FieldAirIntakeTemp, Value: 31},
	}, samples)
}

// ECU samples end up in the spoofed frames RaceChrono receives.
func TestECUSamplesSpoofed(t *testing.T) {
	spoofer := &spooferStub{}
	fwd, err := NewSpoofForwarder(spoofer, []SpoofMapping{
		{Field: FieldRPM, ID: 0x100, Scale: 0.01},
		{Field: FieldGasPedalAngle, ID: 0x101},
	}, nil)
	require.NoError(t, err)

	telem := Telemetry{}
	telem.Apply(ecuSamples([]*kw1281.Measurement{
		withValue(kw1281.Measurement{Metric: kw1281.MetricRPM}, 4550),
		withValue(kw1281.Measurement{Metric: kw1281.MetricThrottleAngle}, 87.6),
	})...)
	require.NoError(t, fwd.Forward(&telem, nil))
	assert.Equal(t, []uint8{46}, spoofer.sent(0x100))
	assert.Equal(t, []uint8{88}, spoofer.sent(0x101))
}

func TestToFloat64(t *testing.T) {
	for _, val := range []interface{}{int(2), float32(2), float64(2)} {
		v, ok := toFloat64(val)
		assert.True(t, ok, "%T", val)
		assert.Equal(t, 2.0, v)
	}
	_, ok := toFloat64("2")
	assert.False(t, ok)
}
