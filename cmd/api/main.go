package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/config"
	"github.com/wolethescientist/audit-system-sub001/internal/directory"
	"github.com/wolethescientist/audit-system-sub001/internal/evidence"
	"github.com/wolethescientist/audit-system-sub001/internal/httpapi"
	"github.com/wolethescientist/audit-system-sub001/internal/obs"
	"github.com/wolethescientist/audit-system-sub001/internal/store/pg"
	"github.com/wolethescientist/audit-system-sub001/internal/workflow"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("GIT_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTTL(cfg.TokenTTL()),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	// Postgres when a DSN is configured, in-memory stores otherwise.
	var (
		dirStore directory.Store = directory.NewInMemory()
		wfStore  workflow.Store  = workflow.NewInMemory()
		probe    httpapi.ReadyProbe
		pgStore  *pg.Store
	)
	if cfg.DatabaseURL != "" {
		pgStore, err = pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		dirStore = pg.NewDirectory(pgStore)
		wfStore = pg.NewWorkflow(pgStore)
		probe = httpapi.ReadyProbe{Check: pgStore.Ping}
	}

	users, err := directory.NewService(dirStore, directory.WithBcryptCost(cfg.BcryptCost))
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	audits, err := workflow.NewService(wfStore)
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}
	files, err := evidence.NewDisk(cfg.EvidenceDir)
	if err != nil {
		log.Fatalf("evidence: %v", err)
	}

	api := httpapi.New(probe, version, tokens, users, audits, files)
	api.SetRateLimit(cfg.RateLimitBurst, cfg.RateLimitRPS)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting audit-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
