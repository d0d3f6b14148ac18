package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/bt"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/buzzer"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/config"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/logging"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/wearable"
)

// app holds what every subcommand needs: config, logger and the link to
// the wearable, real or simulated.
type app struct {
	cfg    config.Config
	log    *logging.Logger
	logger *log.Logger
	link   *link.Link
	panel  *wearable.Panel
}

// newApp loads the config and builds the link. stderr mirrors the log to the
// terminal for commands that do not draw a dashboard.
func newApp(v *viper.Viper, stderr bool) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	lg := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stderr:     stderr,
	})
	a := &app{cfg: cfg, log: lg, logger: lg.Logger}

	transport, err := a.newTransport()
	if err != nil {
		_ = lg.Close()
		return nil, err
	}
	a.link = link.New(transport, link.Config{
		ConnectTimeout:    cfg.Link.ConnectTimeout,
		Backoff:           cfg.Link.Backoff,
		CommandTimeout:    cfg.Link.CommandTimeout,
		DisconnectTimeout: cfg.Link.DisconnectTimeout,
	}, a.logger)
	return a, nil
}

func (a *app) newTransport() (link.Transport, error) {
	if a.cfg.Simulate {
		sim := wearable.NewSimulator(wearable.DefaultConfig(), a.logger)
		if a.cfg.SimulateHTTPAddr != "" {
			a.panel = sim.StartPanel(a.cfg.SimulateHTTPAddr)
		}
		a.logger.Printf("App: using the simulated wearable")
		return sim, nil
	}

	transport, err := bt.NewTransport(bluetooth.DefaultAdapter, bt.Target{
		Address:            a.cfg.Device.Address,
		Name:               a.cfg.Device.Name,
		ServiceUUID:        a.cfg.Device.ServiceUUID,
		CharacteristicUUID: a.cfg.Device.CharacteristicUUID,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("bluetooth transport: %w", err)
	}
	return transport, nil
}

// openBuzzer drives the configured GPIO pin, or only logs the cues when the
// buzzer is disabled or the pin cannot be opened.
func (a *app) openBuzzer() *buzzer.Dispatcher {
	var pin buzzer.Pin = buzzer.LogPin{Name: a.cfg.Buzzer.Pin, Logger: a.logger}
	if a.cfg.Buzzer.Enabled {
		gpioPin, err := buzzer.OpenGPIO(a.cfg.Buzzer.Pin)
		if err != nil {
			a.logger.Printf("App: %v, buzzer cues will only be logged", err)
		} else {
			pin = gpioPin
		}
	}
	return buzzer.NewDispatcher(pin, buzzer.Config{
		Short:     a.cfg.Buzzer.Short,
		Long:      a.cfg.Buzzer.Long,
		ActiveLow: a.cfg.Buzzer.ActiveLow,
	}, a.logger)
}

func (a *app) close() {
	a.link.Disconnect()
	if a.panel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.panel.Shutdown(ctx); err != nil {
			a.logger.Printf("App: control panel shutdown: %v", err)
		}
	}
	a.logger.Printf("App: closed")
	_ = a.log.Close()
}
