// Package diy holds the identifiers shared by everything that talks to the
// RaceChrono DIY BLE API, and the contract a BLE transport has to fulfil.
package diy

import "fmt"

// ServiceUUID is the 16-bit UUID RaceChrono looks for when scanning.
const ServiceUUID uint16 = 0x1FF8

// MaxPayload is the largest value RaceChrono accepts in a single write,
// indication or notification.
const MaxPayload = 20

// Channel identifies a characteristic of the DIY service by its 16-bit UUID.
type Channel uint16

const (
	ChannelCANMain       Channel = 0x0001
	ChannelCANFilter     Channel = 0x0002
	ChannelMonitorConfig Channel = 0x0005
	ChannelMonitorNotify Channel = 0x0006
)

func (c Channel) String() string {
	switch c {
	case ChannelCANMain:
		return "can-main"
	case ChannelCANFilter:
		return "can-filter"
	case ChannelMonitorConfig:
		return "monitor-config"
	case ChannelMonitorNotify:
		return "monitor-notify"
	}
	return fmt.Sprintf("channel(0x%04x)", uint16(c))
}

// Transport sends values to connected centrals.
type Transport interface {
	// ConnectedPeers returns the number of currently connected centrals.
	ConnectedPeers() int
	// Indicate sends data on ch and asks the central to acknowledge it.
	Indicate(ch Channel, data []byte) error
	// Notify sends data on ch without acknowledgement.
	Notify(ch Channel, data []byte) error
}

// WriteHandler receives values written by a central.
type WriteHandler interface {
	HandleWrite(ch Channel, data []byte)
}

// WriteHandlerFunc adapts an ordinary function to a WriteHandler.
type WriteHandlerFunc func(ch Channel, data []byte)

func (f WriteHandlerFunc) HandleWrite(ch Channel, data []byte) {
	f(ch, data)
}
