package commands

import (
	"fmt"
	"os"
	"time"

	"pixpack/config"
	"pixpack/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pixpack",
	Short: "Shrink image archives to a byte budget",
	Long: `Reads a zip of images, re-encodes each image to fit the given size and dimension
limits, and streams a new zip out. Runs as an HTTP service (serve) or one-shot (shrink).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(config.KeyDataDir, "./data", "Directory for the pebble stores")
	rootCmd.PersistentFlags().String(config.KeyServeDir, "./serve", "Directory served under /files/")
	rootCmd.PersistentFlags().Int(config.KeyPort, 8080, "HTTP port")
	rootCmd.PersistentFlags().String(config.KeyJWTSecret, "", "HS256 secret for job tokens")
	rootCmd.PersistentFlags().String(config.KeyLogFile, "", "Also log to this file")
	rootCmd.PersistentFlags().String(config.KeyLogLevel, "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().String(config.KeyCodec, config.CodecNative, "Image backend: native or magick")
	rootCmd.PersistentFlags().Int64(config.KeyMaxUploadBytes, 512*1024*1024, "Max uploaded archive size in bytes")
	rootCmd.PersistentFlags().Int64(config.KeyMaxEntryBytes, 64*1024*1024, "Max uncompressed entry size in bytes")
	rootCmd.PersistentFlags().Duration(config.KeyRetention, 7*24*time.Hour, "How long job records are kept")

	for _, key := range []string{
		config.KeyDataDir, config.KeyServeDir, config.KeyPort, config.KeyJWTSecret,
		config.KeyLogFile, config.KeyLogLevel, config.KeyCodec, config.KeyMaxUploadBytes,
		config.KeyMaxEntryBytes, config.KeyRetention,
	} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
}

// setup loads configuration and initializes the logger for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	if err := logger.Init(config.GetLogFile(), true); err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(config.GetLogLevel()))
	return nil
}
