// Command server runs the desktop context perception pipeline: it captures
// the screen and system audio on independent cadences, recognizes and
// classifies each, fuses the result into Context Snapshots, and serves them
// over a WebSocket relay and a gRPC health endpoint.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ctxengine/perception/internal/audioprobe"
	"github.com/ctxengine/perception/internal/broker"
	"github.com/ctxengine/perception/internal/config"
	"github.com/ctxengine/perception/internal/frame"
	"github.com/ctxengine/perception/internal/fusion"
	"github.com/ctxengine/perception/internal/ocr"
	"github.com/ctxengine/perception/internal/resilience"
	"github.com/ctxengine/perception/internal/scheduler"
	"github.com/ctxengine/perception/internal/screen"
	"github.com/ctxengine/perception/internal/trace"
	"github.com/ctxengine/perception/internal/transport/health"
	"github.com/ctxengine/perception/internal/transport/wsrelay"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}

	frameSrc := frame.New(screen.New(), cfg.FrameInterval(), cfg.FrameIntervalMax())
	prober := audioprobe.New(cfg.Audio.ExcludedDevices)

	var engine ocr.Engine
	if cfg.OCR.Endpoint != "" {
		engine = ocr.NewHTTPEngine(cfg.OCR.Endpoint)
	} else {
		slog.Warn("ocr.endpoint not configured, OCR lane will stay disabled")
		engine = ocr.NewHTTPEngine("")
	}
	ocrWrap := ocr.NewWrapper(context.Background(), engine, cfg.OCR.Language, resilience.DefaultConfig())
	if ocrWrap.Disabled() {
		slog.Error("ocr engine failed to initialize, running screen-blind", "error", ocrWrap.InitError())
	}

	fusionEngine := fusion.New(*cfg)
	b := broker.New(cfg.Broker.HistorySize)
	healthReporter := health.NewReporter()

	sched := scheduler.New(*cfg, frameSrc, prober, ocrWrap, fusionEngine)
	sched.SetHealthReporter(healthReporter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.Run(fusionEngine.Emissions())

	relay := wsrelay.New(b)
	go relay.Run()

	if err := sched.Run(ctx, frame.PermissionToken{Granted: true}); err != nil {
		slog.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Transport.WSAddr,
		Handler:      relay.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("wsrelay listening", "addr", cfg.Transport.WSAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("wsrelay server error", "error", err)
		}
	}()

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	healthpb.RegisterHealthServer(grpcServer, healthReporter.Server())
	lis, err := net.Listen("tcp", cfg.Transport.GRPCHealthAddr)
	if err != nil {
		slog.Error("grpc health listen failed", "error", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("grpc health serving", "addr", cfg.Transport.GRPCHealthAddr)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc health server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()
	sched.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("wsrelay shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	counters := sched.Counters()
	slog.Info("shutdown complete",
		"frames_captured", counters.FramesCaptured,
		"ocr_successes", counters.OCRSuccesses,
		"ocr_failures", counters.OCRFailures,
		"audio_polls", counters.AudioPolls,
		"avg_confidence", counters.AverageConfidence(),
		"snapshots_published", b.PublishedCount(),
	)
}
