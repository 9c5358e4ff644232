package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ace-hls-relay/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:     "ace-hls-relay",
		Short:   "HTTP relay that exposes a local streaming engine as browser-playable HLS",
		Version: version,
		Long: `ace-hls-relay starts and stops streams on a local Ace Stream engine,
tracks them as sessions, and proxies their HLS manifests and segments so
browsers can play them. Running it without a subcommand is the same as
"ace-hls-relay serve".

Settings come from flags, then environment variables (a .env file in the
working directory is loaded first), then built-in defaults.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(v)
		},
	}
	cobra.CheckErr(config.BindFlags(v, root.PersistentFlags()))

	root.AddCommand(newServeCmd(v), newEngineCmd(v))
	return root
}
