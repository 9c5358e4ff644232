package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/platform/config"
	"ace-hls-relay/internal/platform/logger"
)

func newEngineCmd(v *viper.Viper) *cobra.Command {
	engineCmd := &cobra.Command{
		Use:   "engine",
		Short: "Talk to the streaming engine directly",
	}
	engineCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the engine version, or fail if it is unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			eng := engine.New(engine.Config{
				BaseURL: cfg.EngineBaseURL(),
				Timeout: cfg.EngineTimeout,
				Logger:  logger.New(cfg.LogLevel, cfg.LogFormat),
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.EngineTimeout)
			defer cancel()
			info, err := eng.CheckEngine(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "engine %s (code %d) at %s\n", info.Version, info.Code, eng.BaseURL())
			return nil
		},
	})
	return engineCmd
}
