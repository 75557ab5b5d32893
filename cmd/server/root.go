package main

import (
	"strings"

	"notes-api/internal/config"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	EnvFile  string
	LogLevel string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.EnvFile, "env-file", "", "Path to the .env file (default: .env in the working directory)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides LOG_LEVEL")
}

var rootCmd = &cobra.Command{
	Use:   "notes-api",
	Short: "Notes API server",
	Long:  `notes-api serves a personal notes REST API with cookie sessions, search, sorting and an admin area.`,
	Example: `notes-api serve
  notes-api serve --env-file /etc/notes-api/.env --log-level debug
  notes-api migrate up`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

// loadConfig reads the configuration and applies the log level, the flag
// taking precedence over LOG_LEVEL.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(rootCmdPersistentFlags.EnvFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if rootCmdPersistentFlags.LogLevel != "" {
		level = rootCmdPersistentFlags.LogLevel
	}
	setLogLevel(level)
	return cfg, nil
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func Execute() error {
	return rootCmd.Execute()
}
