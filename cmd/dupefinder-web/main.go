package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"dupefinder/internal/config"
	"dupefinder/internal/hashcache"
	"dupefinder/internal/logger"
	"dupefinder/internal/shutdown"
	"dupefinder/internal/web"
)

func main() {
	var (
		addr       string
		configPath string
		envFile    string
		verbose    bool
	)

	flag.StringVar(&addr, "addr", "", "HTTP listen address (default from config, :8080)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.StringVar(&envFile, "env-file", ".env", "Environment overrides file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	// Priority: flags > environment > config file > defaults
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadEnv(&cfg, envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger with file logging
	l := logger.New(cfg.Verbose)
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("dupefinder-web-%d.log", time.Now().Unix()))
		if err := l.SetFileLog(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
		}
	}
	defer l.Close()

	sh := shutdown.New(l)

	var cache *hashcache.Cache
	if cfg.HashCache != "" {
		cache, err = hashcache.Open(cfg.HashCache)
		if err != nil {
			l.Warn("Hash cache unavailable, scans will hash every file: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Create job manager and server
	jobMgr := web.NewJobManager()
	jobMgr.StartCleanup(sh.Context())
	server := web.NewServer(sh.Context(), jobMgr, cfg, cache, l)

	// HTTP server
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sh.AddCleanup(func() {
		l.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			l.Error("Server shutdown error: %v", err)
		}
	})
	sh.Listen()

	l.Info("Starting web server on %s", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("Server error: %v", err)
		os.Exit(1)
	}

	// ListenAndServe returns as soon as Shutdown starts; wait for it to finish
	<-sh.Done()
	l.Info("Server stopped")
}
