package racechrono

import (
	"context"

	"github.com/jd3nn1s/kw1281"
	log "github.com/sirupsen/logrus"
)

// to allow testing
var ecuConnect = func(p string) (KW1281, error) {
	return kw1281.Connect(p)
}

// ecuSource reads measurement groups from the engine ECU over KW1281.
type ecuSource struct {
	portName string
	conn     KW1281
}

func (e *ecuSource) Name() string {
	return "ecu"
}

func (e *ecuSource) Open() error {
	conn, err := ecuConnect(e.portName)
	if err != nil {
		return err
	}
	e.conn = conn
	return nil
}

func (e *ecuSource) Close() error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

func (e *ecuSource) Run(ctx context.Context, emit EmitFn) error {
	return e.conn.Start(ctx, kw1281.Callbacks{
		ECUDetails: func(details *kw1281.ECUDetails) {
			log.WithFields(log.Fields{
				"partNumber": details.PartNumber,
				"details":    details.Details,
			}).Info("ecu connected")
		},
		Measurement: func(_ kw1281.MeasurementGroup, measurements []*kw1281.Measurement) {
			emit(ecuSamples(measurements)...)
		},
	})
}

// ecuSamples converts the measurements of one group to samples. Coolant
// temperature is left to the sensor bus.
func ecuSamples(measurements []*kw1281.Measurement) []Sample {
	samples := make([]Sample, 0, len(measurements))
	for _, m := range measurements {
		if m == nil || m.MeasurementValue == nil {
			continue
		}
		var field Field
		switch m.Metric {
		case kw1281.MetricRPM:
			field = FieldRPM
		case kw1281.MetricSpeed:
			field = FieldSpeed
		case kw1281.MetricThrottleAngle:
			field = FieldGasPedalAngle
		case kw1281.MetricAirIntakeTemp:
			field = FieldAirIntakeTemp
		case kw1281.MetricBatteryVoltage:
			field = FieldBatteryVoltage
		default:
			continue
		}
		v, ok := toFloat64(m.Value)
		if !ok {
			log.WithFields(log.Fields{
				"field": field,
				"value": m.Value,
			}).Warn("unexpected ecu value type")
			continue
		}
		samples = append(samples, Sample{Field: field, Value: v})
	}
	return samples
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
