package main

import (
	"fmt"
	"io"

	"github.com/kingrea/reflex-console/internal/client"
	"github.com/kingrea/reflex-console/internal/config"
	"github.com/kingrea/reflex-console/internal/logbook"
)

// session bundles what every non-interactive command needs.
type session struct {
	cfg *config.Config
	log *logbook.Logbook
	api *client.Client
}

func loadConfig() (*config.Config, error) {
	return config.NewConfig(projectDir, config.Overrides{
		BaseURL:      apiBase,
		PollInterval: pollInterval,
		Timeout:      apiTimeout,
		LogLevel:     logLevel,
	})
}

// openSession loads config and builds a client whose failures are logged.
// Log lines are mirrored to stderr so scripted runs see them too.
func openSession(stderr io.Writer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.LogPath(),
		logbook.WithLevel(logbook.ParseLevel(cfg.Project.Log.Level)),
		logbook.WithMirror(stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	api := client.New(cfg.BaseURL(),
		client.WithTimeout(cfg.Project.API.Timeout),
		client.WithNotifier(func(err *client.TransportError) {
			lb.Debug("api: %v", err)
		}),
	)
	return &session{cfg: cfg, log: lb, api: api}, nil
}
