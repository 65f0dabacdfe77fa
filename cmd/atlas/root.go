package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
	flagBackend  string
	flagDatabase string
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "atlas is the streaming chat and map client for the Atlas guide backend",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging(flagLogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "db", "", "local chat database path (overrides config)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(replayCmd)
}

func initLogging(level string) {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
	log.Logger = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger()
}
