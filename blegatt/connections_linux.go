//go:build linux

package blegatt

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
)

// trackConnections counts centrals from BlueZ device signals on the system
// bus. The BlueZ backend of the bluetooth package never calls the adapter's
// connect handler.
func (p *Peripheral) trackConnections() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return errors.Wrap(err, "unable to connect to system bus")
	}

	rules := []string{
		fmt.Sprintf("type='signal',sender='%s',interface='%s',member='PropertiesChanged',arg0='%s'",
			bluezBus, dbusProperties, bluezDevice),
		fmt.Sprintf("type='signal',sender='%s',interface='%s',member='InterfacesRemoved'",
			bluezBus, dbusObjectManager),
	}
	for _, rule := range rules {
		if call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
			return errors.Wrap(call.Err, "unable to add signal match")
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	w := newDeviceWatcher(p.connectionChanged)
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err = conn.Object(bluezBus, "/").Call(dbusObjectManager+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		conn.RemoveSignal(signals)
		return errors.Wrap(err, "unable to list bluez devices")
	}
	w.load(objects)
	go w.run(signals)
	return nil
}
