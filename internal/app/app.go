// Package app is the composition root: it loads config, wires the client
// stack, and runs either the MCP stdio server or the HTTP API.
package app

import (
	"log"
	"os"

	"tracksync/internal/clickup"
	"tracksync/internal/config"
	"tracksync/internal/httpx"
	"tracksync/internal/jobs"
	"tracksync/internal/mcptools"
	"tracksync/internal/ratelimit"
	"tracksync/internal/report"
	"tracksync/internal/storage/sqlite"
	"tracksync/internal/syncer"
	"tracksync/internal/web"
)

// Version is set at build time via ldflags.
var Version = "dev"

func Main() {
	mode := "mcp"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.Printf("config loaded rpm=%d workers=%d timeout=%s db=%s",
		cfg.RateLimitRPM, cfg.MaxWorkers, cfg.HTTPTimeout(), cfg.DBPath)

	limiter := ratelimit.New(cfg.RateLimitRPM)
	httpClient := httpx.New(cfg.BaseURL, cfg.APIToken, limiter,
		httpx.WithTimeout(cfg.HTTPTimeout()),
		httpx.WithPolicy(retryPolicy(cfg.RetryAttempts)),
	)
	cu := clickup.NewClient(httpClient, cfg.TeamID)
	dispatcher := jobs.NewDispatcher()
	svc := report.NewService(cu, dispatcher, cfg.MaxWorkers)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()
	log.Printf("database initialized at %s", cfg.DBPath)

	sync := syncer.New(cu, db, cfg.MaxWorkers)
	if err := sync.StartScheduler(cfg.SyncSchedule); err != nil {
		log.Fatalf("scheduler error: %v", err)
	}

	switch mode {
	case "mcp":
		log.Println("starting mcp server on stdio")
		if err := mcptools.ServeStdio(mcptools.NewServer(svc, Version)); err != nil {
			log.Fatalf("mcp server error: %v", err)
		}
	case "serve":
		log.Printf("starting http server on %s", cfg.ListenAddr)
		if err := web.NewServer(db, sync).Run(cfg.ListenAddr); err != nil {
			log.Fatalf("http server error: %v", err)
		}
	case "sync":
		result, err := sync.FullSync()
		if err != nil {
			log.Fatalf("sync error: %v", err)
		}
		log.Println(syncer.FormatSummary(result))
	default:
		log.Fatalf("unknown mode %q (want mcp, serve, or sync)", mode)
	}
}

func retryPolicy(attempts int) httpx.RetryPolicy {
	p := httpx.DefaultRetryPolicy()
	if attempts > 0 {
		p.MaxAttempts = attempts
	}
	return p
}
