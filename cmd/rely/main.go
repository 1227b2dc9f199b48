package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagConfig    string
	flagPeriod    string
)

var rootCmd = &cobra.Command{
	Use:   "rely",
	Short: "Durability and expected data loss of disks, RAID sets, RADOS pools and sites",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging(flagLogLevel, flagLogFormat)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log.level", "info", "log severity (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log.format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "yaml file overriding the default parameters")
	rootCmd.PersistentFlags().StringVar(&flagPeriod, "period", "", "modeled period (e.g. 1y, 30d, 6h)")

	rootCmd.AddCommand(runCmd, serveCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(logLevel string, logFormat string) {
	switch logFormat {
	case "text":
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:   slogLevel(logLevel),
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		})))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slogLevel(logLevel),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.LevelKey:
					a.Key = "severity"
					return a
				case slog.MessageKey:
					a.Key = "message"
					return a
				default:
					return a
				}
			},
		})))
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	return slog.LevelInfo
}
