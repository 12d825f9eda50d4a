/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee DFA commands. Provides common
configuration loading, logging setup, and helpers used across all command
implementations.
*/

package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-dfa/pkg/codec"
	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
	"github.com/kleascm/akaylee-dfa/pkg/logging"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("AKAYLEE_DFA")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging configures the logging system
func SetupLogging() error {
	logLevel := viper.GetString("log_level")
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return nil
}

// buildLogger creates the session logger from the logging flags
func buildLogger() (*logging.Logger, error) {
	format := logging.LogFormat(viper.GetString("log_format"))
	if viper.GetBool("json_logs") {
		format = logging.LogFormatJSON
	}

	config := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    format,
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Timestamp: true,
		Caller:    false,
		Colors:    true,
		Compress:  viper.GetBool("log_compress"),
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	return logging.NewLogger(config)
}

// resolveInput returns the reference input block from configuration
func resolveInput(config *interfaces.Config) (interfaces.Block, error) {
	if config.InputHex != "" {
		input, err := codec.ParseBlock(config.InputHex, config.BlockSize)
		if err != nil {
			return nil, fmt.Errorf("bad reference input: %w", err)
		}
		return input, nil
	}
	return codec.DefaultInput(config.BlockSize), nil
}

// parseFaultMasks converts mask strings like "0xff" or "15" into bytes
func parseFaultMasks(raw []string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	masks := make([]byte, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad fault mask %q: %w", s, err)
		}
		masks = append(masks, byte(v))
	}
	return masks, nil
}
