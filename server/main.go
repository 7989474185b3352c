// Package server wires the dirauth daemon together: configuration,
// logging, the directory connection pool, the audit store, and the HTTP
// API, plus signal handling for reload and graceful shutdown.
package server

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dirauth/pkg/api"
	"dirauth/pkg/audit"
	"dirauth/pkg/auth"
	"dirauth/pkg/config"
	"dirauth/pkg/directory"
	"dirauth/pkg/health"
	"dirauth/pkg/logger"
	"dirauth/pkg/pool"
)

const version = "1.0.0"

// Main runs the daemon until SIGINT or SIGTERM.
func Main() {
	configPath := flag.String("config", "", "Config file path (optional)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	// Bootstrap logging before config so load errors are visible
	logger.Init(logger.InfoLevel, "text")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Get().ErrorWithErr("failed to load configuration", err)
		os.Exit(1)
	}

	// Command-line flags win over file and environment
	if *addr != "" {
		cfg.Address = *addr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger.Init(logger.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	log := logger.Get()
	log.InfoWith("dirauth starting", "version", version, "config", cfg.String())

	checkFileDescriptorLimit(cfg.Pool.MaxSize)

	if err := directory.Initialize(cfg.Directory.CAPath); err != nil {
		log.ErrorWithErr("directory library initialization failed", err)
		os.Exit(1)
	}

	monitor := health.NewMonitor()

	store, err := audit.NewStore(cfg.Audit)
	if err != nil {
		// The daemon can authenticate without an audit trail; degrade
		log.ErrorWithErr("audit store unavailable", err)
		monitor.SetComponentStatus("audit", health.StatusDegraded, err.Error())
		store = nil
	} else {
		monitor.SetComponentStatus("audit", health.StatusHealthy, "")
		defer store.Close()
	}

	p := pool.New(pool.Config{
		WarmStart:   cfg.Pool.WarmStart,
		MaxSize:     cfg.Pool.MaxSize,
		Settings:    directory.FromConfig(cfg.Directory),
		RoleMapping: cfg.RoleMapping,
	}, pool.DirectoryFactory)
	defer p.Close()
	p.DebugInfo()
	monitor.SetComponentStatus("pool", health.StatusHealthy, "")

	authenticator := auth.NewAuthenticator(p, cfg.Directory)
	handler := api.NewHandler(authenticator, p, store, monitor)
	router := api.SetupRouter(handler, cfg.AdminToken)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoWith("listening", "addr", cfg.Address, "tls", cfg.TLS.Enabled)
		if cfg.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				log.ErrorWithErr("server error", err)
				os.Exit(1)
			}
			return

		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload(*configPath, p)
				continue
			}

			log.InfoWith("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := srv.Shutdown(ctx); err != nil {
				log.ErrorWithErr("shutdown failed", err)
			}
			cancel()
			return
		}
	}
}

// reload re-reads the config file and applies the pool-facing parts
// online: sizes, backend parameters, and the role mapping. Listener
// settings need a restart.
func reload(configPath string, p *pool.Pool) {
	log := logger.Get()
	if configPath == "" {
		log.WarnWith("reload requested but no config file was given")
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.ErrorWithErr("reload failed, keeping current configuration", err)
		return
	}

	p.Reconfigure(cfg.Pool.WarmStart, cfg.Pool.MaxSize, directory.FromConfig(cfg.Directory))
	p.SetRoleMapping(cfg.RoleMapping)
	log.InfoWith("configuration reloaded", "config", cfg.String())
}
