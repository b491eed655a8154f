package main

import (
	"github.com/banky/go-symmio/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	var (
		envFile    string
		configPath string
		logLevel   string
		jsonLogs   bool
	)

	root := &cobra.Command{
		Use:           "symmio",
		Short:         "Trade on a Symmio diamond and its solvers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}

			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			logger, err := newLogger(cmd.ErrOrStderr(), level, jsonLogs)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = logger
			a.logger.Debug().Interface("config", cfg.Redacted()).Msg("config loaded")
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", "", "env file to load instead of .env")
	flags.StringVar(&configPath, "config", "", "optional TOML config file")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&jsonLogs, "json-logs", false, "log JSON lines instead of console output")
	flags.BoolVar(&a.wait, "wait", false, "wait for each transaction receipt")

	root.AddCommand(
		newLoginCmd(a),
		newInstantCmd(a),
		newQuoteCmd(a),
		newSettleCmd(a),
		newFundingCmd(a),
		newAccountCmd(a),
		newMultiAccountCmd(a),
		newViewCmd(a),
		newOptionsCmd(a),
		newBotCmd(a),
	)
	return root
}
