package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/signalsfoundry/ecef-velocity/internal/api"
	"github.com/signalsfoundry/ecef-velocity/internal/config"
	"github.com/signalsfoundry/ecef-velocity/internal/journal"
	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/observability"
	"github.com/signalsfoundry/ecef-velocity/internal/web"
	"github.com/signalsfoundry/ecef-velocity/kb"
)

func main() {
	configPath := flag.String("config", "configs/server.yaml", "Path to the YAML server configuration")
	grpcAddr := flag.String("grpc-addr", "", "Override server.grpc_addr")
	httpAddr := flag.String("http-addr", "", "Override server.http_addr")
	journalPath := flag.String("journal", "", "Override journal.path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *journalPath != "" {
		cfg.Journal.Path = *journalPath
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, filepath.Dir(*configPath), log, lis); err != nil {
		log.Error(ctx, "velocity server failed", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight RPCs.
func run(ctx context.Context, cfg config.Config, baseDir string, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, tracingConfig(cfg.Tracing), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store := kb.NewTrackStore()
	unbind := api.BindMetrics(store, collector)
	defer unbind()
	if err := api.LoadTracks(ctx, store, baseDir, cfg.Tracks, log); err != nil {
		return err
	}

	svcOpts := []api.Option{
		api.WithLogger(log),
		api.WithMetrics(collector),
		api.WithDefaultUnits(cfg.Units),
	}
	webOpts := []web.Option{
		web.WithLogger(log),
		web.WithCollector(collector),
		web.WithDefaultUnits(cfg.Units),
	}
	if cfg.Journal.Path != "" {
		j, err := openJournal(cfg.Journal.Path, baseDir)
		if err != nil {
			return err
		}
		defer j.Close()
		svcOpts = append(svcOpts, api.WithRecorder(j))
		webOpts = append(webOpts, web.WithJournal(j))
		log.Info(ctx, "query journal enabled", logging.String("path", cfg.Journal.Path))
	}

	httpSrv := serveHTTP(cfg.Server.HTTPAddr, web.NewServer(store, webOpts...), log)

	server := api.NewServer(log, collector)
	hs := api.Register(server, api.NewVelocityService(store, svcOpts...))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()
	log.Info(ctx, "starting velocity gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.Int("tracks", store.Len()),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("grpc serve: %w", err)
	}

	log.Info(context.Background(), "shutting down velocity server")
	hs.Shutdown()
	server.GracefulStop()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func tracingConfig(tc config.TracingConfig) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     tc.Enabled,
		ServiceName: tc.ServiceName,
		Exporter:    tc.Exporter,
		Endpoint:    tc.Endpoint,
		SampleRatio: tc.SampleRatio,
	}
}

func openJournal(path, baseDir string) (*journal.Journal, error) {
	if !filepath.IsAbs(path) && path != ":memory:" {
		path = filepath.Join(baseDir, path)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return j, nil
}

func serveHTTP(addr string, ws *web.Server, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "http server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving metrics, charts and replay", logging.String("addr", addr))
	return srv
}
