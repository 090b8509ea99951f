package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mdcalc-mcp-server/internal/browser"
	"mdcalc-mcp-server/internal/catalog"
	"mdcalc-mcp-server/internal/config"
	"mdcalc-mcp-server/internal/engine"
	mcpserver "mdcalc-mcp-server/internal/mcp"
	"mdcalc-mcp-server/internal/recorder"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the MDCalc MCP config file")
	httpPort := flag.Int("http-port", 0, "Optional HTTP port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}
	if *httpPort != 0 {
		cfg.HTTP.Port = *httpPort
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if cfg.HTTP.Port == 0 && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			// If we can't open log file, disable logging to avoid stderr pollution
			log.SetOutput(io.Discard)
		}
	}

	// The catalog is required; a missing or empty index is fatal at startup.
	cat, err := catalog.Load(cfg.Site.CatalogPath, cfg.Site.BaseURL)
	if err != nil {
		log.Fatalf("failed to load calculator catalog: %v", err)
	}
	log.Printf("loaded %d calculators from %s", cat.Len(), cfg.Site.CatalogPath)

	var trace *recorder.Recorder
	if cfg.Server.TraceDir != "" {
		trace, err = recorder.New(cfg.Server.TraceDir)
		if err != nil {
			log.Printf("operation tracing disabled: %v", err)
		}
	}
	defer trace.Close()

	sessions := browser.NewManager(cfg.Browser)
	defer sessions.Shutdown()

	eng := engine.New(&cfg, sessions, trace)

	server, err := mcpserver.NewServer(&cfg, cat, eng)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	if cfg.HTTP.Port > 0 {
		log.Printf("starting MDCalc MCP HTTP server on port %d", cfg.HTTP.Port)
		startErr = server.StartHTTP(ctx, cfg.HTTP.Port)
	} else {
		log.Printf("starting MDCalc MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}
