package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/plan"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/session"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/telemetry"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/ui"
)

func newSessionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Run a training session on the poolside dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd.Context(), v)
		},
	}
}

func runSession(ctx context.Context, v *viper.Viper) error {
	a, err := newApp(v, false)
	if err != nil {
		return err
	}
	defer a.close()

	tasks, err := plan.Load(a.cfg.PlanDir)
	if err != nil {
		return err
	}
	a.logger.Printf("App: loaded %d tasks from %s", len(tasks), a.cfg.PlanDir)

	sessionLog, err := telemetry.OpenSessionLog(a.cfg.SessionDir, time.Now())
	if err != nil {
		return err
	}
	defer func() {
		if err := sessionLog.Finish(); err != nil {
			a.logger.Printf("App: session log: %v", err)
		}
		if err := sessionLog.Close(); err != nil {
			a.logger.Printf("App: session log: %v", err)
		}
	}()
	a.logger.Printf("App: logging session to %s", sessionLog.Path())

	bz := a.openBuzzer()
	defer func() {
		if err := bz.Close(); err != nil {
			a.logger.Printf("App: buzzer: %v", err)
		}
	}()

	recorder := telemetry.NewRecorder(telemetry.RecorderArgs{
		Source:   a.link,
		Sink:     sessionLog,
		Interval: a.cfg.TelemetryInterval,
		Logger:   a.logger,
	})

	runner := session.NewRunner(session.RunnerArgs{
		Tasks:        tasks,
		LeadIn:       a.cfg.Clock.LeadIn,
		TickInterval: a.cfg.Clock.Tick,
		Buzzer:       bz,
		Pacer:        a.link,
		Marker:       sessionLog,
		Logger:       a.logger,
	})
	// turns the pacer off when quitting mid-session, before the link closes
	defer runner.Shutdown()

	dashboard := ui.NewDashboard(ui.DashboardArgs{
		App:        tview.NewApplication(),
		Session:    runner,
		Connection: a.link,
		Readings:   recorder,
		Logs:       a.log.Tap,
		Logger:     a.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.link.ConnectInBackground()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return recorder.Run(gctx)
	})
	g.Go(func() error {
		// leaving the dashboard ends the session
		defer stop()
		if err := dashboard.Run(gctx); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	})
	return g.Wait()
}
