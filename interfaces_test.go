package racechrono

import (
	"context"
	"sync"
)

// deviceStub stands in for a connected ECU, GPS or sensor bus. Start hands
// the callbacks to the test and blocks until ctx is done or fail is sent to.
type deviceStub[C any] struct {
	started chan C
	fail    chan error

	mu     sync.Mutex
	closed int
}

func newDeviceStub[C any]() *deviceStub[C] {
	return &deviceStub[C]{
		started: make(chan C, 1),
		fail:    make(chan error),
	}
}

func (d *deviceStub[C]) Start(ctx context.Context, cb C) error {
	d.started <- cb
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-d.fail:
		return err
	}
}

func (d *deviceStub[C]) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *deviceStub[C]) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// collector gathers emitted samples into telemetry.
type collector struct {
	mu        sync.Mutex
	telemetry Telemetry
	batches   [][]Sample
}

func (c *collector) emit(samples ...Sample) {
	if len(samples) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, samples)
	c.telemetry.Apply(samples...)
}

func (c *collector) get(f Field) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.telemetry.Get(f)
	return v
}

func (c *collector) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

// startSource opens src and runs it in the background until the returned
// stop function is called.
func startSource(src source, emit EmitFn) (stop func() error) {
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- src.Run(ctx, emit)
	}()
	return func() error {
		cancel()
		return <-errChan
	}
}

type spooferStub struct {
	mu      sync.Mutex
	updates map[uint32][]uint8
	calls   int
	err     error
}

func (s *spooferStub) Update(id uint32, data uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[uint32][]uint8)
	}
	s.calls++
	s.updates[id] = append(s.updates[id], data)
	return s.err
}

func (s *spooferStub) sent(id uint32) []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[id]
}

type forwarderStub struct {
	telemetry     []Telemetry
	prevTelemetry []*Telemetry
}

func (fwd *forwarderStub) Forward(newTelemetry *Telemetry, prevTelemetry *Telemetry) error {
	fwd.telemetry = append(fwd.telemetry, *newTelemetry)
	fwd.prevTelemetry = append(fwd.prevTelemetry, prevTelemetry)
	return nil
}

type rawForwarderStub struct {
	frames chan rawFrame
}

func (fwd *rawForwarderStub) ForwardRaw(id uint32, data []byte) error {
	fwd.frames <- rawFrame{ID: id, Data: data}
	return nil
}
