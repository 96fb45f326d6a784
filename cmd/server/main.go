package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sensorstats/internal/analysis"
	"sensorstats/internal/api"
	"sensorstats/internal/config"
	"sensorstats/internal/ingest"
	"sensorstats/internal/logging"
	"sensorstats/internal/metrics"
)

var logger = logging.New("server")

func main() {
	cfg := config.Default()
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	lvl, _ := logging.ParseLevel(cfg.LogLevel)
	logging.Configure(lvl, nil)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// 1. The API is live immediately and answers 503 until the first load lands
	h := api.NewHandler(cfg, m)
	e := api.NewServer(cfg, h, reg)

	// 2. Load and analyse in the background, again on POST /api/reload
	load := func(ctx context.Context) {
		logger.Infof("BACKGROUND: loading %s", cfg.Input)
		t0 := time.Now()

		tbl, err := ingest.Load(cfg.Input, cfg.IngestOptions())
		if err == nil {
			err = ingest.ValidateSensorTable(tbl)
		}
		if err != nil {
			m.ObserveLoad(0, time.Since(t0), err)
			h.SetError(cfg.Input, err)
			logger.Errorf("BACKGROUND: load failed: %v", err)
			return
		}
		m.ObserveLoad(tbl.NumRows(), time.Since(t0), nil)

		report, err := analysis.Run(ctx, tbl, cfg, m)
		if err != nil {
			h.SetError(cfg.Input, err)
			logger.Errorf("BACKGROUND: analysis failed: %v", err)
			return
		}
		h.SetData(tbl, report, cfg.Input)
		logger.Infof("BACKGROUND: ready in %v (%d rows)", time.Since(t0), tbl.NumRows())
	}
	h.OnReload(load)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go load(ctx)

	// 3. Serve until interrupted
	go func() {
		logger.Infof("Server ready on %s (data loading in background...)", cfg.Addr)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		logger.Error(err)
	}
}
