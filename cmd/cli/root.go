package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "aurora",
	Short:         "Aurora media converter",
	Long:          `Batch-convert image trees to WebP or PNG and compress video trees with ffmpeg, mirroring the input layout into an output directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	envFile   string
	debug     bool
	historyDB string
	noHistory bool

	logger = zerolog.Nop()
)

// Execute runs the root command. SIGINT and SIGTERM cancel the running batch.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func setupLogging(debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to .env file to load before running commands")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "Path to the run history database")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not record runs in the history database")

	// Load .env file if provided before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger = setupLogging(debug)
		if envFile == "" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file '%s': %w", envFile, err)
		}
		logger.Debug().Str("file", envFile).Msg("Loaded environment file")
		return nil
	}
}
