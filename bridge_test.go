package racechrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	b := NewBridge()
	fwd := &forwarderStub{}
	b.AddForwarder(fwd)

	assert.True(t, b.update(Sample{Field: FieldOilTemp, Value: 96}, Sample{Field: FieldRPM, Value: 2500}))
	require.Len(t, fwd.telemetry, 1)
	assert.Equal(t, float32(96), fwd.telemetry[0].OilTemp)
	assert.Equal(t, float32(2500), fwd.telemetry[0].RPM)
	assert.Equal(t, Telemetry{}, *fwd.prevTelemetry[0])

	assert.False(t, b.update(Sample{Field: FieldOilTemp, Value: 96}))
	assert.Len(t, fwd.telemetry, 1, "unchanged telemetry is not forwarded")

	// other sources leave earlier fields alone
	assert.True(t, b.update(Sample{Field: FieldLatitude, Value: 51.5}))
	require.Len(t, fwd.telemetry, 2)
	assert.Equal(t, float32(96), fwd.telemetry[1].OilTemp)
	assert.Equal(t, 51.5, fwd.telemetry[1].Latitude)
	assert.Equal(t, fwd.telemetry[0], *fwd.prevTelemetry[1])

	assert.False(t, b.update(Sample{Field: "boost", Value: 1}), "unknown fields are skipped")
}

func TestRun(t *testing.T) {
	b := NewBridge()
	b.SetResendInterval(0)
	spoofer := &spooferStub{}
	fwd, err := NewSpoofForwarder(spoofer, []SpoofMapping{
		{Field: FieldSpeed, ID: 0x123},
	}, []uint32{0x400})
	require.NoError(t, err)
	b.AddForwarder(fwd)
	raw := &rawForwarderStub{frames: make(chan rawFrame, 1)}
	b.AddRawForwarder(raw)
	b.AddRawForwarder(fwd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	b.emitter(ctx)(Sample{Field: FieldSpeed, Value: 42})
	b.queueRaw(rawFrame{ID: 0x400, Data: []byte{7}})
	assert.Equal(t, rawFrame{ID: 0x400, Data: []byte{7}}, <-raw.frames)

	assert.Eventually(t, func() bool {
		return len(spoofer.sent(0x123)) == 1 && len(spoofer.sent(0x400)) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []uint8{42}, spoofer.sent(0x123))
	assert.Equal(t, []uint8{7}, spoofer.sent(0x400))

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestEmitterAfterCancel(t *testing.T) {
	b := NewBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emit := b.emitter(ctx)
	// nothing reads samples, emit must not block
	for i := 0; i < sampleBufferSize+1; i++ {
		emit(Sample{Field: FieldRPM, Value: float64(i)})
	}
	emit()
}

func TestQueueRawFull(t *testing.T) {
	b := NewBridge()
	for i := 0; i < rawBufferSize+1; i++ {
		b.queueRaw(rawFrame{ID: uint32(i)})
	}
	assert.Len(t, b.rawChan, rawBufferSize, "frames are dropped when the queue is full")
}

func TestRunResend(t *testing.T) {
	b := NewBridge()
	b.SetResendInterval(5 * time.Millisecond)
	fwd := &forwarderStub{}
	done := make(chan struct{})
	b.AddForwarder(&doneForwarder{fwd: fwd, after: 2, done: done})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = b.Run(ctx)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("telemetry was not resent")
	}
	cancel()
	for _, prev := range fwd.prevTelemetry[:2] {
		assert.Nil(t, prev, "resends forward everything")
	}
}

// doneForwarder closes done after the given number of forwards
type doneForwarder struct {
	fwd   *forwarderStub
	after int
	done  chan struct{}
}

func (d *doneForwarder) Forward(newTelemetry *Telemetry, prevTelemetry *Telemetry) error {
	if len(d.fwd.telemetry) >= d.after {
		return nil
	}
	err := d.fwd.Forward(newTelemetry, prevTelemetry)
	if len(d.fwd.telemetry) == d.after {
		close(d.done)
	}
	return err
}

func TestStartTestMode(t *testing.T) {
	b := NewBridge()
	b.SetTestMode(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx, Sources{ECUPort: "/dev/does-not-exist"})

	seen := make(map[Field]bool)
	timeout := time.After(time.Second)
	for !seen[FieldGPSSpeed] || !seen[FieldRPM] {
		select {
		case samples := <-b.samples:
			for _, s := range samples {
				seen[s.Field] = true
			}
		case <-timeout:
			t.Fatalf("no generated samples, saw %v", seen)
		}
	}
}
