// Package canspoof feeds sensor values to RaceChrono as if they were frames
// read from a vehicle CAN bus.
package canspoof

import (
	"encoding/binary"

	"github.com/jd3nn1s/racechrono/diy"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const frameSize = 5

// EncodeFrame packs a CAN ID (little endian) and a single data byte.
func EncodeFrame(id uint32, data uint8) []byte {
	frame := make([]byte, frameSize)
	binary.LittleEndian.PutUint32(frame[0:4], id)
	frame[4] = data
	return frame
}

// Spoofer publishes frames on the CAN main characteristic. It holds no
// state; every update is an independent best effort sample.
type Spoofer struct {
	transport diy.Transport
}

// New returns a Spoofer sending frames over transport.
func New(transport diy.Transport) *Spoofer {
	return &Spoofer{
		transport: transport,
	}
}

// Update sends a frame for id. Nothing is sent while no central is
// connected.
func (s *Spoofer) Update(id uint32, data uint8) error {
	if s.transport.ConnectedPeers() == 0 {
		return nil
	}
	log.WithFields(log.Fields{
		"canID": id,
		"data":  data,
	}).Debug("sending spoofed can frame")
	if err := s.transport.Notify(diy.ChannelCANMain, EncodeFrame(id, data)); err != nil {
		return errors.Wrapf(err, "unable to send can frame 0x%x", id)
	}
	return nil
}

// HandleWrite logs filter requests written by RaceChrono.
func (s *Spoofer) HandleWrite(ch diy.Channel, data []byte) {
	if ch != diy.ChannelCANFilter {
		log.WithField("channel", ch).Warn("canspoof: write on unexpected channel")
		return
	}
	f, err := ParseFilter(data)
	if err != nil {
		log.WithField("err", err).Warn("canspoof: unable to parse filter")
		return
	}
	log.WithFields(log.Fields{
		"command":  f.Command,
		"interval": f.Interval,
		"canID":    f.ID,
	}).Info("canspoof: filter requested")
}
