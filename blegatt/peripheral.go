// Package blegatt exposes the RaceChrono DIY service as a BLE peripheral.
package blegatt

import (
	"sync"

	"github.com/jd3nn1s/racechrono/diy"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

type characteristic interface {
	Write(p []byte) (n int, err error)
}

type advertiser interface {
	Start() error
}

// Peripheral is a diy.Transport backed by a bluetooth adapter. Register
// write handlers with Handle before calling Start.
type Peripheral struct {
	adapter *bluetooth.Adapter
	name    string

	mu       sync.RWMutex
	peers    int
	chars    map[diy.Channel]characteristic
	handlers map[diy.Channel]diy.WriteHandler
	adv      advertiser
}

// NewPeripheral returns a peripheral advertising as name once started.
func NewPeripheral(adapter *bluetooth.Adapter, name string) *Peripheral {
	return &Peripheral{
		adapter:  adapter,
		name:     name,
		chars:    make(map[diy.Channel]characteristic),
		handlers: make(map[diy.Channel]diy.WriteHandler),
	}
}

// Handle routes writes on ch to h.
func (p *Peripheral) Handle(ch diy.Channel, h diy.WriteHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[ch] = h
}

// Start enables the adapter, starts counting connected centrals, adds the
// DIY service and starts advertising.
func (p *Peripheral) Start() error {
	if err := p.adapter.Enable(); err != nil {
		return errors.Wrap(err, "unable to enable bluetooth adapter")
	}
	if err := p.trackConnections(); err != nil {
		return errors.Wrap(err, "unable to track connections")
	}

	var canMain, canFilter, monConfig, monNotify bluetooth.Characteristic
	err := p.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.New16BitUUID(diy.ServiceUUID),
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &canMain,
				UUID:   bluetooth.New16BitUUID(uint16(diy.ChannelCANMain)),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				Handle:     &canFilter,
				UUID:       bluetooth.New16BitUUID(uint16(diy.ChannelCANFilter)),
				Flags:      bluetooth.CharacteristicWritePermission,
				WriteEvent: p.writeEvent(diy.ChannelCANFilter),
			},
			{
				Handle:     &monConfig,
				UUID:       bluetooth.New16BitUUID(uint16(diy.ChannelMonitorConfig)),
				Flags:      bluetooth.CharacteristicIndicatePermission | bluetooth.CharacteristicWritePermission,
				WriteEvent: p.writeEvent(diy.ChannelMonitorConfig),
			},
			{
				Handle:     &monNotify,
				UUID:       bluetooth.New16BitUUID(uint16(diy.ChannelMonitorNotify)),
				Flags:      bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: p.writeEvent(diy.ChannelMonitorNotify),
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "unable to add racechrono service")
	}

	adv := p.adapter.DefaultAdvertisement()
	err = adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    p.name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.New16BitUUID(diy.ServiceUUID)},
	})
	if err != nil {
		return errors.Wrap(err, "unable to configure advertisement")
	}

	p.mu.Lock()
	p.chars[diy.ChannelCANMain] = &canMain
	p.chars[diy.ChannelCANFilter] = &canFilter
	p.chars[diy.ChannelMonitorConfig] = &monConfig
	p.chars[diy.ChannelMonitorNotify] = &monNotify
	p.adv = adv
	p.mu.Unlock()

	if err := adv.Start(); err != nil {
		return errors.Wrap(err, "unable to start advertising")
	}
	log.WithField("name", p.name).Info("advertising racechrono service")
	return nil
}

// ConnectedPeers returns the number of centrals currently connected.
func (p *Peripheral) ConnectedPeers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peers
}

// Indicate writes data to ch. Whether subscribers are indicated or notified
// follows the characteristic's flags.
func (p *Peripheral) Indicate(ch diy.Channel, data []byte) error {
	return p.write(ch, data)
}

// Notify writes data to ch, see Indicate.
func (p *Peripheral) Notify(ch diy.Channel, data []byte) error {
	return p.write(ch, data)
}

func (p *Peripheral) write(ch diy.Channel, data []byte) error {
	if len(data) > diy.MaxPayload {
		return errors.Errorf("%d bytes exceeds maximum payload of %d", len(data), diy.MaxPayload)
	}
	p.mu.RLock()
	c, ok := p.chars[ch]
	p.mu.RUnlock()
	if !ok {
		return errors.Errorf("no characteristic for %v", ch)
	}
	if _, err := c.Write(data); err != nil {
		return errors.Wrapf(err, "unable to write %v", ch)
	}
	return nil
}

func (p *Peripheral) writeEvent(ch diy.Channel) func(bluetooth.Connection, int, []byte) {
	return func(_ bluetooth.Connection, offset int, value []byte) {
		if offset != 0 {
			log.WithFields(log.Fields{
				"channel": ch,
				"offset":  offset,
			}).Warn("ignoring write at offset")
			return
		}
		p.dispatch(ch, value)
	}
}

func (p *Peripheral) dispatch(ch diy.Channel, data []byte) {
	p.mu.RLock()
	h, ok := p.handlers[ch]
	p.mu.RUnlock()
	if !ok {
		log.WithField("channel", ch).Debug("no handler for write")
		return
	}
	// handlers may keep the slice
	h.HandleWrite(ch, append([]byte(nil), data...))
}

func (p *Peripheral) connectionChanged(connected bool) {
	p.mu.Lock()
	if connected {
		p.peers++
	} else if p.peers > 0 {
		p.peers--
	}
	peers := p.peers
	adv := p.adv
	p.mu.Unlock()

	log.WithFields(log.Fields{
		"connected": connected,
		"peers":     peers,
	}).Info("central connection changed")

	if !connected && adv != nil {
		if err := adv.Start(); err != nil {
			log.WithField("err", err).Warn("unable to restart advertising")
		}
	}
}
