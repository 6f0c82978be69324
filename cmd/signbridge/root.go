package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/store"
)

// options carries the loaded configuration to subcommands.
type options struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "signbridge",
		Short:         "Real-time static ASL sign recognition",
		Long:          `SignBridge turns a camera feed into a stable stream of recognized ASL letters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./signbridge.yaml or ~/.signbridge/signbridge.yaml)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newLabelsCmd(opts),
		newStatsCmd(opts),
		newTemplatesCmd(opts),
	)
	return rootCmd
}

// storeFor opens the database named in cfg.
func storeFor(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}
