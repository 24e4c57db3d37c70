// Package runtime holds the process-wide state shared by CLI commands:
// loaded settings, build metadata and the central logger.
package runtime

import (
	"fmt"

	"github.com/australis-energy/leadgate/internal/buildinfo"
	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/logger"
)

// Context is created once per command invocation, after settings load.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Info

	central *logger.CentralLogger
}

// New builds the central logger from settings. Debug raises the default
// level to debug.
func New(settings *conf.Settings, build *buildinfo.Info) (*Context, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = "debug"
			logCfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return &Context{Settings: settings, Build: build, central: central}, nil
}

// Logger returns the logger for module.
func (c *Context) Logger(module string) logger.Logger {
	return c.central.Module(module)
}

// Close flushes and closes log outputs.
func (c *Context) Close() error {
	return c.central.Close()
}
