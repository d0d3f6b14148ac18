package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
)

func newPacerCmd(v *viper.Viper) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "pacer <seconds>",
		Short: "Set the wearable's pacer interval; 0 turns it off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || secs < 0 {
				return fmt.Errorf("pacer: %q is not a number of seconds", args[0])
			}
			if err := runPacer(cmd.Context(), v, secs, wait); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pacer set to %ds\n", secs)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the wearable to connect")
	return cmd
}

func runPacer(ctx context.Context, v *viper.Viper, secs int64, wait time.Duration) error {
	a, err := newApp(v, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	states := make(chan link.ConnectionState, 4)
	unlisten := a.link.ListenToState(states)
	defer unlisten()
	a.link.ConnectInBackground()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pacer: wearable not connected after %v: %w", wait, link.ErrNotConnected)
		case s := <-states:
			if s != link.Connected {
				continue
			}
			return a.link.SendCommand(secs)
		}
	}
}
