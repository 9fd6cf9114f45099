package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/perimeter/pkg/perimeter/config"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/metadata"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initializeLogging is the PersistentPreRunE hook. It loads configuration,
// creates the XDG directories and starts file logging.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	loaded, err := config.LoadWith(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg = loaded

	if err := ensureDirectories(); err != nil {
		return err
	}

	consoleLevel := cfg.Logging.ConsoleLevel
	if getVerbose() {
		consoleLevel = "debug"
	}

	// The terminal UI owns the screen; its log panel reads the buffer instead.
	bufferSize := 0
	if viper.GetBool("interactive") {
		consoleLevel = ""
		bufferSize = logging.DefaultBufferSize
	}

	rot := cfg.Logging.Rotation
	return logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Path:         logPath(cfg),
		Rotation:     logging.ParseRotation(rot.MaxSize, rot.MaxAge, rot.MaxBackups, rot.Daily),
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
		BufferSize:   bufferSize,
	})
}

func ensureDirectories() error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	for _, dir := range []string{config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// newResolver builds the resolver used by every command. Failed queries are
// reported through the "metadata" component logger.
func newResolver(c *config.Config) (*metadata.Resolver, error) {
	format, err := metadata.ParsePermissionFormat(c.PermissionFormat)
	if err != nil {
		return nil, err
	}
	return metadata.New(
		metadata.WithPermissionFormat(format),
		metadata.WithDiagnostics(logging.Get("metadata")),
	), nil
}

func logPath(c *config.Config) string {
	if c.Logging.Path != "" {
		return c.Logging.Path
	}
	return config.DefaultLogPath()
}
