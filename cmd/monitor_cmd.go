package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/telemetry"
)

func newMonitorCmd(v *viper.Viper) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print wearable telemetry and link state to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), v, cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print every decoded notification, not just the 1 Hz readings")
	return cmd
}

func runMonitor(ctx context.Context, v *viper.Viper, out io.Writer, raw bool) error {
	a, err := newApp(v, true)
	if err != nil {
		return err
	}
	defer a.close()

	recorder := telemetry.NewRecorder(telemetry.RecorderArgs{
		Source:   a.link,
		Interval: a.cfg.TelemetryInterval,
		Logger:   a.logger,
	})

	if raw {
		unlisten := a.link.OnSample(func(s link.TelemetrySample) {
			fmt.Fprintf(out, "%s notify bpm=%d spo2=%d valid=%t\n",
				s.ObservedAt.Format("15:04:05.000"), s.HeartRateBpm, s.SpO2Pct, s.Valid())
		})
		defer unlisten()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.link.ConnectInBackground()

	readings := make(chan telemetry.Reading, 4)
	unlistenReadings := recorder.Listen(readings)
	defer unlistenReadings()
	states := make(chan link.ConnectionState, 4)
	unlistenStates := a.link.ListenToState(states)
	defer unlistenStates()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return recorder.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case s := <-states:
				fmt.Fprintf(out, "link %s\n", s)
			case r := <-readings:
				if r.At.IsZero() {
					continue
				}
				fmt.Fprintf(out, "%s hr=%s spo2=%s battery=%s voltage=%s\n",
					r.At.Format("15:04:05"), r.HeartRateText(), r.SpO2Text(), r.BatteryText(), r.VoltageText())
			}
		}
	})
	return g.Wait()
}
