package main

import (
	"fmt"

	"github.com/coder/quartz"

	"github.com/treeline/discround/internal/server"
	"github.com/treeline/discround/internal/store"
	"github.com/treeline/discround/internal/store/sqlite"
)

// ServerCmd runs the HTTP scoring server.
type ServerCmd struct {
	Config string `kong:"default='discround.hcl',help='Path to HCL configuration file'"`
	Addr   string `kong:"help='Override the configured listen address (host:port)'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServerCmd) Run() error {
	logger := setupLogger(c.Debug)

	config, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if !c.Debug {
		parseLevel(logger, config.Server.LogLevel)
	}

	addr := config.ListenAddr()
	if c.Addr != "" {
		addr = c.Addr
	}

	st, err := openStore(config.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	service := server.NewRoundService(st, quartz.NewReal(), logger)
	srv := server.NewServer(addr, service, logger)

	logger.Info("Starting discround server",
		"addr", addr,
		"driver", config.Storage.Driver,
		"path", config.Storage.Path)

	ctx := setupSignalHandler(logger)
	return srv.Start(ctx)
}

func openStore(settings server.StorageSettings) (store.Store, error) {
	switch settings.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return sqlite.Open(settings.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", settings.Driver)
	}
}
