// Package cli implements the research-agent command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/experimentein/research-agent/internal/config"
	"github.com/experimentein/research-agent/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// created at init time
	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research-agent",
		Short: "Research agent — conversational assistant over a research dashboard",
		Long:  "Research agent answers questions about indexed papers, runs vector searches through an MCP tool server, and links every answer back to the dashboard.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig reads the config file and rebuilds the logger at the level the
// file asks for, unless the flag overrode it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if logLevel == "" && cfg.Logging.Level != "" {
		log = logging.New(nil, cfg.Logging.Level)
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
