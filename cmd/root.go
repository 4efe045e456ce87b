package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vainnor/active-flights/config"
)

var (
	flagAddr     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "active-flights",
	Short: "Tracks active flights reported by game clients",
	Long: `active-flights keeps an in-memory list of flights reported by clients
and serves it over HTTP (/fetch, /new, /update, /remove), a websocket
feed (/ws) and Prometheus metrics (/metrics).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}
		return Serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address host:port (overrides HOST and PORT)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("addr") {
		host, port, err := splitAddr(flagAddr)
		if err != nil {
			return err
		}
		cfg.Host, cfg.Port = host, port
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
