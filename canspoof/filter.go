package canspoof

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// FilterCommand is the first byte of a write to the CAN filter
// characteristic.
type FilterCommand uint8

const (
	FilterDenyAll  FilterCommand = 0
	FilterAllowAll FilterCommand = 1
	FilterAllowID  FilterCommand = 2
)

func (c FilterCommand) String() string {
	switch c {
	case FilterDenyAll:
		return "deny-all"
	case FilterAllowAll:
		return "allow-all"
	case FilterAllowID:
		return "allow-id"
	}
	return "unknown"
}

// Filter is a decoded filter request. Interval is the notification interval
// the app asks for; ID is only set for FilterAllowID.
type Filter struct {
	Command  FilterCommand
	Interval time.Duration
	ID       uint32
}

// ParseFilter decodes a write to the CAN filter characteristic. Multi-byte
// fields are big endian.
func ParseFilter(data []byte) (Filter, error) {
	if len(data) == 0 {
		return Filter{}, errors.New("empty filter command")
	}
	f := Filter{Command: FilterCommand(data[0])}
	switch f.Command {
	case FilterDenyAll:
		return f, nil
	case FilterAllowAll:
		if len(data) < 3 {
			return Filter{}, errors.Errorf("allow all filter too short: %d bytes", len(data))
		}
	case FilterAllowID:
		if len(data) < 7 {
			return Filter{}, errors.Errorf("allow id filter too short: %d bytes", len(data))
		}
		f.ID = binary.BigEndian.Uint32(data[3:7])
	default:
		return Filter{}, errors.Errorf("unknown filter command %d", data[0])
	}
	f.Interval = time.Duration(binary.BigEndian.Uint16(data[1:3])) * time.Millisecond
	return f, nil
}
