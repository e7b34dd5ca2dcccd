package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys understood by the config layer. Environment variables use the PIXPACK_ prefix with
// dashes replaced by underscores (PIXPACK_DATA_DIR, PIXPACK_MAX_ENTRY_BYTES, ...).
const (
	KeyDataDir        = "data-dir"
	KeyServeDir       = "serve-dir"
	KeyPort           = "port"
	KeyJWTSecret      = "jwt-secret"
	KeyLogFile        = "log-file"
	KeyLogLevel       = "log-level"
	KeyCodec          = "codec"
	KeyMaxUploadBytes = "max-upload-bytes"
	KeyMaxEntryBytes  = "max-entry-bytes"
	KeyRetention      = "retention"
)

const (
	CodecNative = "native"
	CodecMagick = "magick"
)

func init() {
	setDefaults()

	viper.SetEnvPrefix("PIXPACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setDefaults() {
	viper.SetDefault(KeyDataDir, "./data")
	viper.SetDefault(KeyServeDir, "./serve")
	viper.SetDefault(KeyPort, 8080)
	viper.SetDefault(KeyJWTSecret, "")
	viper.SetDefault(KeyLogFile, "")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyCodec, CodecNative)
	viper.SetDefault(KeyMaxUploadBytes, int64(512*1024*1024))
	viper.SetDefault(KeyMaxEntryBytes, int64(64*1024*1024))
	viper.SetDefault(KeyRetention, 7*24*time.Hour)
}

// Load reads the optional pixpack.yaml from the working directory or $HOME/.pixpack.
// A missing file is not an error; a malformed one is.
func Load() error {
	viper.SetConfigName("pixpack")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.pixpack")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Validate checks the loaded configuration for errors
func Validate() error {
	if GetDataDir() == "" {
		return fmt.Errorf("%s cannot be empty", KeyDataDir)
	}
	if GetDirectServeBaseDir() == "" {
		return fmt.Errorf("%s cannot be empty", KeyServeDir)
	}
	if p := GetPort(); p <= 0 || p > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", KeyPort, p)
	}
	switch GetCodec() {
	case CodecNative, CodecMagick:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", KeyCodec, CodecNative, CodecMagick, GetCodec())
	}
	if GetMaxUploadBytes() <= 0 {
		return fmt.Errorf("%s must be positive", KeyMaxUploadBytes)
	}
	if GetMaxEntryBytes() <= 0 {
		return fmt.Errorf("%s must be positive", KeyMaxEntryBytes)
	}
	if GetRetention() <= 0 {
		return fmt.Errorf("%s must be positive", KeyRetention)
	}
	return nil
}

// GetDataDir returns the directory holding the pebble databases.
// Read at call time so env changes apply without a restart.
func GetDataDir() string {
	return viper.GetString(KeyDataDir)
}

// GetCredentialsDBPath returns {data-dir}/credentials.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetFailuresDBPath returns {data-dir}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns {data-dir}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetDirectServeBaseDir returns the base directory for archives served by the HTTP server.
// Only administrators can set it; tokens can choose a folder below it but never the root.
func GetDirectServeBaseDir() string {
	return viper.GetString(KeyServeDir)
}

func GetPort() int {
	return viper.GetInt(KeyPort)
}

// GetJWTSecret returns the HS256 secret shared with token issuers.
func GetJWTSecret() string {
	return viper.GetString(KeyJWTSecret)
}

func GetLogFile() string {
	return viper.GetString(KeyLogFile)
}

func GetLogLevel() string {
	return viper.GetString(KeyLogLevel)
}

// GetCodec returns the configured image backend, native or magick.
func GetCodec() string {
	return strings.ToLower(viper.GetString(KeyCodec))
}

func GetMaxUploadBytes() int64 {
	return viper.GetInt64(KeyMaxUploadBytes)
}

// GetMaxEntryBytes is the largest uncompressed entry the pipeline will read into memory.
func GetMaxEntryBytes() int64 {
	return viper.GetInt64(KeyMaxEntryBytes)
}

// GetRetention is how long success and failure records are kept.
func GetRetention() time.Duration {
	return viper.GetDuration(KeyRetention)
}
