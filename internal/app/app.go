package app

import (
	"io"
	"log/slog"

	"github.com/vk/modforge/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// When no providers are passed the built-in capability set is used.
func NewApp(outW io.Writer, cfg *Config, providers ...registry.Provider) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(providers) == 0 {
		providers = defaultProviders(cfg.KVValues)
	}
	for _, p := range providers {
		p.Register(reg)
	}
	logger.Debug("Capability providers registered.", "capabilities", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfg,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
