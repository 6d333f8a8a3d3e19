// Package monitor implements the RaceChrono DIY monitor API: equations are
// registered with the app over the config characteristic and the app writes
// back their evaluated values on the notify characteristic.
//
// The app gives no explicit signal when it goes away, so the monitor keeps a
// single liveness timer. Every acknowledgement or value update pushes the
// timer back. If it fires while active, an update of all values is requested;
// if it fires again before anything arrives, the equations are reset and
// registered from scratch.
package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/jd3nn1s/racechrono/diy"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultInitTimeout    = 1000 * time.Millisecond
	DefaultRefreshTimeout = 1500 * time.Millisecond
	DefaultResetTimeout   = 3000 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid monitor configuration")

// State of the registration with the app.
type State uint8

const (
	StateUninitialized State = iota
	StateStarted
	StateActive
	StateForcedRefresh
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateStarted:
		return "STARTED"
	case StateActive:
		return "ACTIVE"
	case StateForcedRefresh:
		return "FORCED_REFRESH"
	default:
		return "UNKNOWN"
	}
}

// Config holds the liveness timeouts. ResetTimeout must be greater than
// RefreshTimeout.
type Config struct {
	// InitTimeout is the retry interval while equations are unacknowledged.
	InitTimeout time.Duration
	// RefreshTimeout is how long the app may stay silent before an update
	// of all values is requested.
	RefreshTimeout time.Duration
	// ResetTimeout is how long the app may stay silent before the equations
	// are registered again.
	ResetTimeout time.Duration
}

// DefaultConfig returns the default liveness timeouts.
func DefaultConfig() Config {
	return Config{
		InitTimeout:    DefaultInitTimeout,
		RefreshTimeout: DefaultRefreshTimeout,
		ResetTimeout:   DefaultResetTimeout,
	}
}

func (c Config) validate() error {
	if c.InitTimeout <= 0 || c.RefreshTimeout <= 0 || c.ResetTimeout <= 0 {
		return errors.Wrap(ErrInvalidConfig, "timeouts must be positive")
	}
	if c.ResetTimeout <= c.RefreshTimeout {
		return errors.Wrapf(ErrInvalidConfig, "reset timeout %v must be greater than refresh timeout %v",
			c.ResetTimeout, c.RefreshTimeout)
	}
	return nil
}

// Monitor registers equations with the app and tracks their values. All
// methods are safe to call from the transport's write callbacks and the
// timer concurrently.
type Monitor struct {
	mu sync.Mutex

	transport diy.Transport
	timer     Timer
	cfg       Config

	eqs   []*Equation
	state State

	// incremented on every arm, callbacks from older arms are ignored
	timerGen uint64

	droppedRecords uint64
}

// New validates the configuration and returns a monitor in the
// uninitialized state. Call Start to begin registering equations.
func New(transport diy.Transport, timer Timer, cfg Config, equations ...EquationConfig) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(equations) > maxEquations {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d equations configured, at most %d supported",
			len(equations), maxEquations)
	}

	m := &Monitor{
		transport: transport,
		timer:     timer,
		cfg:       cfg,
		eqs:       make([]*Equation, 0, len(equations)),
	}
	for i, eq := range equations {
		if eq.Expression == "" {
			return nil, errors.Wrapf(ErrInvalidConfig, "equation %d has no expression", i)
		}
		if len(eq.Expression) > maxExpressionSize {
			return nil, errors.Wrapf(ErrInvalidConfig, "equation %d is %d bytes, at most %d supported",
				i, len(eq.Expression), maxExpressionSize)
		}
		if !(eq.Scale > 0) || math.IsInf(eq.Scale, 0) {
			return nil, errors.Wrapf(ErrInvalidConfig, "equation %d has invalid scale %v", i, eq.Scale)
		}
		m.eqs = append(m.eqs, newEquation(uint8(i), eq))
	}
	return m, nil
}

// Start moves the monitor out of the uninitialized state and makes the first
// registration attempt.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUninitialized {
		return
	}
	m.setState(StateStarted)
	m.configureEquations()
}

// Stop disarms the liveness timer and returns to the uninitialized state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timerGen++
	m.timer.Disarm()
	m.setState(StateUninitialized)
}

// Reset asks the app to drop all equations, forgets all values and
// registers the equations again.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// UpdateAll asks the app to send the current value of every equation.
func (m *Monitor) UpdateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateAll()
}

// State returns the current registration state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DataValid reports whether the equations have been registered and values
// are current or at most one refresh cycle old.
func (m *Monitor) DataValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive || m.state == StateForcedRefresh
}

// Value returns the value of equation i. ok is false if there is no data or
// no such equation.
func (m *Monitor) Value(i int) (v float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.eqs) {
		return 0, false
	}
	return m.eqs[i].Value()
}

// Equations returns a copy of every equation and its value.
func (m *Monitor) Equations() []EquationValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]EquationValue, len(m.eqs))
	for i, eq := range m.eqs {
		values[i] = eq.snapshot()
	}
	return values
}

// DroppedRecords returns how many value records referenced an unknown
// equation.
func (m *Monitor) DroppedRecords() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.droppedRecords
}

// HandleWrite processes a write from the app on one of the monitor
// characteristics.
func (m *Monitor) HandleWrite(ch diy.Channel, data []byte) {
	switch ch {
	case diy.ChannelMonitorConfig:
		m.handleConfigWrite(data)
	case diy.ChannelMonitorNotify:
		m.handleNotifyWrite(data)
	default:
		log.WithField("channel", ch).Warn("monitor: write on unexpected channel")
	}
}

func (m *Monitor) handleConfigWrite(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateUninitialized {
		return
	}
	if !isAck(data) {
		log.WithField("data", data).Debug("monitor: ignoring config write")
		return
	}
	log.WithField("equation", data[1]).Debug("monitor: equation acknowledged")
	m.refresh()
}

// handleNotifyWrite applies value records. Any applied record counts as
// hearing from the app, so a monitor still waiting in Started becomes Active.
func (m *Monitor) handleNotifyWrite(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateUninitialized {
		return
	}

	applied := 0
	for _, rec := range DecodeValues(data) {
		if int(rec.ID) >= len(m.eqs) {
			m.droppedRecords++
			log.WithFields(log.Fields{
				"id":        rec.ID,
				"equations": len(m.eqs),
			}).Warn("monitor: value for unknown equation")
			continue
		}
		m.eqs[rec.ID].UpdateFromRaw(rec.Raw)
		applied++
	}
	if applied > 0 {
		m.refresh()
	}
}

// refresh pushes the liveness timer back after the app was heard from.
func (m *Monitor) refresh() {
	m.arm(m.cfg.RefreshTimeout)
	m.setState(StateActive)
}

func (m *Monitor) timeout(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.timerGen {
		return
	}

	switch m.state {
	case StateStarted:
		log.Debug("monitor: no acknowledgement, registering equations again")
		m.arm(m.cfg.InitTimeout)
		m.configureEquations()
	case StateActive:
		log.Debug("monitor: app silent, requesting update of all values")
		m.arm(m.cfg.ResetTimeout - m.cfg.RefreshTimeout)
		m.setState(StateForcedRefresh)
		m.updateAll()
	case StateForcedRefresh:
		log.Info("monitor: app did not respond to update request, resetting")
		m.reset()
	}
}

func (m *Monitor) arm(d time.Duration) {
	m.timerGen++
	gen := m.timerGen
	m.timer.Arm(d, func() {
		m.timeout(gen)
	})
}

func (m *Monitor) setState(s State) {
	if s == m.state {
		return
	}
	log.WithFields(log.Fields{
		"from": m.state,
		"to":   s,
	}).Info("monitor: state change")
	m.state = s
}

func (m *Monitor) connected() bool {
	return m.transport.ConnectedPeers() > 0
}

func (m *Monitor) configureEquations() {
	defer m.arm(m.cfg.RefreshTimeout)
	if !m.connected() {
		return
	}
	for _, eq := range m.eqs {
		for _, chunk := range EncodeRegistration(eq.index, eq.expression) {
			m.indicate(chunk)
		}
	}
	log.WithField("equations", len(m.eqs)).Debug("monitor: equations sent")
}

func (m *Monitor) updateAll() {
	if !m.connected() {
		return
	}
	m.indicate([]byte{CommandUpdateAll})
}

func (m *Monitor) reset() {
	if m.connected() {
		m.indicate([]byte{CommandReset})
	}
	for _, eq := range m.eqs {
		eq.Clear()
	}
	m.setState(StateStarted)
	m.configureEquations()
}

func (m *Monitor) indicate(data []byte) {
	if err := m.transport.Indicate(diy.ChannelMonitorConfig, data); err != nil {
		log.WithFields(log.Fields{
			"err":     err,
			"command": data[0],
		}).Error("monitor: unable to send to app")
	}
}
