// Package racechrono collects vehicle telemetry from the ECU, GPS and sensor
// CAN bus and forwards it to RaceChrono.
package racechrono

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	sampleBufferSize = 16
	rawBufferSize    = 16

	defaultResendInterval = time.Second
)

// Sources selects which telemetry sources the bridge runs. An empty port
// disables the source.
type Sources struct {
	ECUPort string
	GPSPort string
	CANPort string
}

// Bridge merges samples from all sources into a single Telemetry and hands
// every change to its forwarders. Telemetry is owned by the goroutine
// calling Run.
type Bridge struct {
	Telemetry Telemetry

	samples chan []Sample
	rawChan chan rawFrame

	forwarders     []Forwarder
	rawForwarders  []RawForwarder
	testMode       bool
	resendInterval time.Duration
}

// NewBridge returns a bridge with no forwarders that resends every
// second.
func NewBridge() *Bridge {
	return &Bridge{
		samples:        make(chan []Sample, sampleBufferSize),
		rawChan:        make(chan rawFrame, rawBufferSize),
		resendInterval: defaultResendInterval,
	}
}

// AddForwarder adds fwd to the forwarders given every telemetry change.
func (b *Bridge) AddForwarder(fwd Forwarder) {
	b.forwarders = append(b.forwarders, fwd)
}

// AddRawForwarder adds fwd to the forwarders given undecoded sensor bus
// frames.
func (b *Bridge) AddRawForwarder(fwd RawForwarder) {
	b.rawForwarders = append(b.rawForwarders, fwd)
}

// SetTestMode replaces the real sources with generated data.
func (b *Bridge) SetTestMode(testMode bool) {
	b.testMode = testMode
}

// SetResendInterval sets how often the full telemetry is forwarded even when
// nothing changed. Zero disables resending.
func (b *Bridge) SetResendInterval(d time.Duration) {
	b.resendInterval = d
}

// Start launches the sources in the background.
func (b *Bridge) Start(ctx context.Context, sources Sources) {
	emit := b.emitter(ctx)
	if b.testMode {
		log.Info("test mode, generating telemetry")
		runTestMode(ctx, emit)
		return
	}

	var srcs []source
	if sources.CANPort != "" {
		srcs = append(srcs, &canBusSource{portName: sources.CANPort, raw: b.queueRaw})
	}
	if sources.ECUPort != "" {
		srcs = append(srcs, &ecuSource{portName: sources.ECUPort})
	}
	if sources.GPSPort != "" {
		srcs = append(srcs, &gpsSource{portName: sources.GPSPort})
	}
	for _, src := range srcs {
		go func(src source) {
			err := supervise(ctx, src, emit)
			log.WithFields(log.Fields{
				"source": src.Name(),
				"err":    err,
			}).Info("source stopped")
		}(src)
	}
}

// emitter returns the EmitFn sources report to. It blocks until Run takes
// the samples or ctx is done.
func (b *Bridge) emitter(ctx context.Context) EmitFn {
	return func(samples ...Sample) {
		if len(samples) == 0 {
			return
		}
		select {
		case b.samples <- samples:
		case <-ctx.Done():
		}
	}
}

// queueRaw hands a frame to Run, dropping it when Run is behind.
func (b *Bridge) queueRaw(frame rawFrame) {
	select {
	case b.rawChan <- frame:
	default:
		log.WithField("canID", frame.ID).Debug("raw frame queue full, dropping")
	}
}

// Run forwards telemetry until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	var resend <-chan time.Time
	if b.resendInterval > 0 {
		ticker := time.NewTicker(b.resendInterval)
		defer ticker.Stop()
		resend = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resend:
			b.forward(nil)
		case samples := <-b.samples:
			b.update(samples...)
		case frame := <-b.rawChan:
			b.forwardRaw(frame)
		}
	}
}

// update applies samples and forwards the telemetry if it changed.
func (b *Bridge) update(samples ...Sample) (changed bool) {
	prevTelemetry := b.Telemetry
	if !b.Telemetry.Apply(samples...) {
		return false
	}
	b.forward(&prevTelemetry)
	return true
}

func (b *Bridge) forward(prevTelemetry *Telemetry) {
	telemCopy := b.Telemetry
	for _, fwd := range b.forwarders {
		if err := fwd.Forward(&telemCopy, prevTelemetry); err != nil {
			log.WithField("err", err).Error("unable to forward telemetry")
		}
	}
}

func (b *Bridge) forwardRaw(frame rawFrame) {
	for _, fwd := range b.rawForwarders {
		if err := fwd.ForwardRaw(frame.ID, frame.Data); err != nil {
			log.WithFields(log.Fields{
				"err":   err,
				"canID": frame.ID,
			}).Error("unable to forward can frame")
		}
	}
}
