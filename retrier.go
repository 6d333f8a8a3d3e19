package racechrono

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	retryMinSleep = time.Second
	retryMaxSleep = 30 * time.Second
)

// EmitFn hands samples from a source to the bridge.
type EmitFn func(samples ...Sample)

// source is a telemetry device that is reopened whenever it fails.
type source interface {
	Name() string
	Open() error
	Close() error
	// Run reports samples until the device fails or ctx is done.
	Run(ctx context.Context, emit EmitFn) error
}

// supervise keeps src running until ctx is done. After a failure the
// source is closed and reopened. The pause between attempts doubles with
// each consecutive failure up to retryMaxSleep and drops back once an open
// succeeds.
func supervise(ctx context.Context, src source, emit EmitFn) error {
	logger := log.WithField("source", src.Name())
	sleep := retryMinSleep
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := src.Open(); err != nil {
			logger.WithFields(log.Fields{
				"err":   err,
				"retry": sleep,
			}).Warn("unable to open")
		} else {
			logger.Info("opened")
			sleep = retryMinSleep
			err = src.Run(ctx, emit)
			if ctx.Err() != nil {
				closeSource(logger, src)
				return ctx.Err()
			}
			logger.WithField("err", err).Error("stopped, reconnecting")
		}
		closeSource(logger, src)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		sleep = nextRetrySleep(sleep)
	}
}

func nextRetrySleep(d time.Duration) time.Duration {
	if d *= 2; d > retryMaxSleep {
		return retryMaxSleep
	}
	return d
}

func closeSource(logger *log.Entry, src source) {
	if err := src.Close(); err != nil {
		logger.WithField("err", err).Warn("unable to close")
	}
}
