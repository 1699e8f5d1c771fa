package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daywalker90/summars-sub000/internal/archive"
	"github.com/daywalker90/summars-sub000/internal/availability"
	"github.com/daywalker90/summars-sub000/internal/clnrpc"
	"github.com/daywalker90/summars-sub000/internal/config"
	"github.com/daywalker90/summars-sub000/internal/server"
	"github.com/daywalker90/summars-sub000/internal/summary"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		runServe(os.Args[2:])
		return
	}
	runOnce(os.Args[1:])
}

func runOnce(args []string) {
	fs := flag.NewFlagSet("summars", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	rpc := clnrpc.New(cfg.RPCPath, logger)

	store := availability.NewStore(cfg.DataDir, logger)
	store.Load()
	hold := summary.NewHoldTracker(cfg.DataDir, logger)
	engine := summary.NewEngine(rpc, cfg.SummaryOptions(), store.Availability, hold, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := engine.Run(ctx)
	if err != nil {
		logger.Fatalf("summary failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatalf("encode failed: %v", err)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("summars serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if cfg.ListenAddr == "" {
		log.Fatalf("serve requires listen_addr")
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	rpc := clnrpc.New(cfg.RPCPath, logger)

	store := availability.NewStore(cfg.DataDir, logger)
	store.Load()
	hold := summary.NewHoldTracker(cfg.DataDir, logger)
	engine := summary.NewEngine(rpc, cfg.SummaryOptions(), store.Availability, hold, logger)

	var pool *pgxpool.Pool
	if cfg.ArchiveDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pool, err = pgxpool.New(ctx, cfg.ArchiveDSN)
		if err != nil {
			cancel()
			logger.Fatalf("archive pool failed: %v", err)
		}
		if err := archive.EnsureSchema(ctx, pool); err != nil {
			cancel()
			logger.Fatalf("archive schema failed: %v", err)
		}
		cancel()
		defer pool.Close()
	}

	srv := server.New(engine, store, pool, logger)

	estimator := availability.NewEstimator(rpc, store, cfg.AvailabilityInterval(), cfg.AvailabilityWindow(), logger)
	estimator.OnTick = srv.BroadcastTick
	estimator.Start()
	defer estimator.Stop()

	if err := srv.Run(cfg.ListenAddr); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
