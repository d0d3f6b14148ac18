package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	var configPath string

	root := &cobra.Command{
		Use:           "pool-assistant",
		Short:         "Poolside pace clock with wearable telemetry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.ReadFile(v, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./pool-assistant.yaml or ~/.pool-assistant/pool-assistant.yaml)")
	if err := config.BindFlags(v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(newSessionCmd(v))
	root.AddCommand(newMonitorCmd(v))
	root.AddCommand(newPacerCmd(v))
	return root
}
