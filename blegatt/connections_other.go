//go:build !linux

package blegatt

import "tinygo.org/x/bluetooth"

func (p *Peripheral) trackConnections() error {
	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		p.connectionChanged(connected)
	})
	return nil
}
