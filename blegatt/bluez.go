package blegatt

import (
	"sync"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"
)

const (
	bluezBus          = "org.bluez"
	bluezDevice       = "org.bluez.Device1"
	dbusProperties    = "org.freedesktop.DBus.Properties"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	propertiesChanged = dbusProperties + ".PropertiesChanged"
	interfacesRemoved = dbusObjectManager + ".InterfacesRemoved"
)

// deviceWatcher follows the Connected property of BlueZ devices and reports
// every device that connects or disconnects.
type deviceWatcher struct {
	onChange func(connected bool)

	mu        sync.Mutex
	connected map[dbus.ObjectPath]bool
}

func newDeviceWatcher(onChange func(connected bool)) *deviceWatcher {
	return &deviceWatcher{
		onChange:  onChange,
		connected: make(map[dbus.ObjectPath]bool),
	}
}

func (w *deviceWatcher) setConnected(path dbus.ObjectPath, connected bool) {
	w.mu.Lock()
	was := w.connected[path]
	if connected {
		w.connected[path] = true
	} else {
		delete(w.connected, path)
	}
	w.mu.Unlock()

	if was == connected {
		return
	}
	log.WithFields(log.Fields{
		"device":    path,
		"connected": connected,
	}).Debug("bluez device connection changed")
	w.onChange(connected)
}

// load records the devices that are already connected, from the result of
// GetManagedObjects.
func (w *deviceWatcher) load(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) {
	for path, ifaces := range objects {
		props, ok := ifaces[bluezDevice]
		if !ok {
			continue
		}
		if connected, ok := connectedProperty(props); ok && connected {
			w.setConnected(path, true)
		}
	}
}

func (w *deviceWatcher) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case propertiesChanged:
		if len(sig.Body) < 2 {
			return
		}
		if iface, _ := sig.Body[0].(string); iface != bluezDevice {
			return
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}
		if connected, ok := connectedProperty(changed); ok {
			w.setConnected(sig.Path, connected)
		}
	case interfacesRemoved:
		if len(sig.Body) < 2 {
			return
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}
		ifaces, _ := sig.Body[1].([]string)
		for _, iface := range ifaces {
			if iface == bluezDevice {
				w.setConnected(path, false)
			}
		}
	}
}

// run handles signals until the channel is closed.
func (w *deviceWatcher) run(signals <-chan *dbus.Signal) {
	for sig := range signals {
		w.handleSignal(sig)
	}
}

func connectedProperty(props map[string]dbus.Variant) (connected bool, ok bool) {
	v, ok := props["Connected"]
	if !ok {
		return false, false
	}
	connected, ok = v.Value().(bool)
	return connected, ok
}
