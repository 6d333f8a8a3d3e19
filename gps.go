package racechrono

import (
	"context"
	"math"

	"github.com/jd3nn1s/skytraq"
	log "github.com/sirupsen/logrus"
)

const (
	// maximum horizontal dilution of precision
	maxHDOP = 500

	// latitude and longitude arrive in 1e-7 degrees, altitude in cm
	degreeScale   = 1e7
	altitudeScale = 100
)

// to allow testing
var gpsConnect = func(p string) (GPS, error) {
	return skytraq.Connect(p)
}

// gpsSource reads navigation fixes from a SkyTraq receiver.
type gpsSource struct {
	portName string
	conn     GPS
}

func (g *gpsSource) Name() string {
	return "gps"
}

func (g *gpsSource) Open() error {
	conn, err := gpsConnect(g.portName)
	if err != nil {
		return err
	}
	g.conn = conn
	return nil
}

func (g *gpsSource) Close() error {
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

func (g *gpsSource) Run(ctx context.Context, emit EmitFn) error {
	return g.conn.Start(ctx, skytraq.Callbacks{
		SoftwareVersion: func(version skytraq.SoftwareVersion) {
			log.WithField("version", version).Info("gps connected")
		},
		NavData: func(navData skytraq.NavData) {
			emit(gpsSamples(navData)...)
		},
	})
}

// gpsSamples converts a fix to samples. Fixes without satellites or with poor
// precision give none.
func gpsSamples(navData skytraq.NavData) []Sample {
	if navData.Fix == skytraq.FixNone {
		log.Debug("no satellite fix")
		return nil
	}
	if navData.HDOP > maxHDOP {
		log.WithField("HDOP", navData.HDOP).Debug("poor resolution")
		return nil
	}
	vx, vy := float64(navData.VX), float64(navData.VY)
	return []Sample{
		{Field: FieldLatitude, Value: float64(navData.Latitude) / degreeScale},
		{Field: FieldLongitude, Value: float64(navData.Longitude) / degreeScale},
		{Field: FieldAltitude, Value: float64(navData.Altitude) / altitudeScale},
		{Field: FieldGPSSpeed, Value: math.Hypot(vx, vy)},
		{Field: FieldTrack, Value: track(vx, vy)},
	}
}

// track returns the direction of travel in degrees, 0 to 360. No movement
// gives 0.
func track(vx, vy float64) float64 {
	if vx == 0 && vy == 0 {
		return 0
	}
	deg := math.Atan2(vx, vy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
