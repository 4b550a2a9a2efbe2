package commands

import (
	"context"
	"fmt"
	"log/slog"
	"matrusp-crawler/internal/components/telemetry"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const log_file_suffix = "_crawler.log"

var (
	verbosity int
	noLogFile bool
	logFile   *os.File
)

var rootCmd = &cobra.Command{
	Use:           "crawler",
	Short:         "crawler downloads the JupiterWeb course catalog into the MatrUSP dataset.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !noLogFile {
			name := time.Now().Format("2006-01-02T15-04-05") + log_file_suffix
			f, err := os.Create(name)
			if err != nil {
				return fmt.Errorf("create log file: %w", err)
			}
			logFile = f
			telemetry.InitSlog(telemetry.VerbosityLevel(verbosity), f)
			return nil
		}
		telemetry.InitSlog(telemetry.VerbosityLevel(verbosity), nil)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase console log verbosity (-v warnings, -vv info, -vvv debug)")
	rootCmd.PersistentFlags().BoolVar(&noLogFile, "no-log-file", false, "do not write the JSON log file into the working directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", default_config, "configuration file (json5 or yaml), a missing file means defaults")
}

// Execute runs the command line, Ctrl+C cancels the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	slog.Error("crawler failed", "err", err.Error())
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
