package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jd3nn1s/racechrono"
	"github.com/jd3nn1s/racechrono/blegatt"
	"github.com/jd3nn1s/racechrono/canspoof"
	"github.com/jd3nn1s/racechrono/diy"
	"github.com/jd3nn1s/racechrono/monitor"
	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

var configFile = flag.String("config", "racechrono.toml", "configuration file")
var testMode = flag.Bool("testmode", false, "generate test data")
var printTelemetry = flag.Bool("print-telemetry", false, "print telemetry to stdout")
var debug = flag.Bool("debug", false, "enable debug logging")
var valueInterval = flag.Duration("value-interval", 5*time.Second, "how often monitor values are logged")

type printForwarder struct{}

func (printForwarder) Forward(newTelemetry *racechrono.Telemetry, prevTelemetry *racechrono.Telemetry) error {
	fmt.Printf("%+v\n", *newTelemetry)
	return nil
}

func main() {
	flag.Parse()
	log.SetLevel(log.InfoLevel)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	config, err := racechrono.LoadConfig(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	peripheral := blegatt.NewPeripheral(bluetooth.DefaultAdapter, config.Name)

	monCfg, equations := config.MonitorSettings()
	mon, err := monitor.New(peripheral, monitor.NewAfterFuncTimer(), monCfg, equations...)
	if err != nil {
		log.Fatal("unable to create monitor: ", err)
	}
	spoofer := canspoof.New(peripheral)

	peripheral.Handle(diy.ChannelMonitorConfig, mon)
	peripheral.Handle(diy.ChannelMonitorNotify, mon)
	peripheral.Handle(diy.ChannelCANFilter, spoofer)
	if err := peripheral.Start(); err != nil {
		log.Fatal("unable to start bluetooth peripheral: ", err)
	}
	mon.Start()
	defer mon.Stop()

	fwder, err := racechrono.NewSpoofForwarder(spoofer, config.SpoofMappings(), config.Passthrough)
	if err != nil {
		log.Fatal("unable to create can spoof forwarder: ", err)
	}

	bridge := racechrono.NewBridge()
	bridge.AddForwarder(fwder)
	bridge.AddRawForwarder(fwder)
	if *printTelemetry {
		bridge.AddForwarder(printForwarder{})
	}
	bridge.SetTestMode(*testMode)
	bridge.SetResendInterval(config.ResendInterval.Duration)
	bridge.Start(ctx, config.Sources())

	if len(equations) > 0 {
		go logMonitorValues(ctx, mon, *valueInterval)
	}

	if err := bridge.Run(ctx); err != nil && err != context.Canceled {
		log.Error("bridge stopped: ", err)
	}
}

func logMonitorValues(ctx context.Context, mon *monitor.Monitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !mon.DataValid() {
			log.WithField("state", mon.State()).Info("monitor values not available")
			continue
		}
		for _, eq := range mon.Equations() {
			entry := log.WithFields(log.Fields{
				"id":         eq.Index,
				"expression": eq.Expression,
			})
			if !eq.Valid {
				entry.Info("no data")
				continue
			}
			entry.WithField("value", eq.Value).Info("monitor value")
		}
	}
}
