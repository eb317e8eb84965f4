package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/app/background"
	"github.com/LavaJover/shvark-market-service/internal/app/setup"
	"github.com/LavaJover/shvark-market-service/internal/config"
	"github.com/LavaJover/shvark-market-service/internal/delivery/http/handlers"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML config (defaults to $"+config.ConfigPathEnv+")")
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad(*configPath)
	slogger := logger.New(cfg.LogConfig, os.Stdout)

	deps, err := setup.InitializeDependencies(cfg, slogger)
	if err != nil {
		slogger.Error("failed to init dependencies", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slogger.Error("failed to close dependencies", "error", err)
		}
	}()
	uc := setup.InitializeUseCases(deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Creating gRPC server
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%s", cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		slogger.Error("failed to listen", "error", err)
		os.Exit(1)
	}

	admin := handlers.NewAdminHandler(uc.MarketUsecase, uc.BridgeUsecase, uc.Recorder, deps.Registry, slogger.With("component", "admin"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.AdminHTTP.Host, cfg.AdminHTTP.Port),
		Handler:           admin.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tasks := background.NewBackgroundTasks(
		uc.MarketUsecase,
		uc.DisputeUsecase,
		uc.Revocations,
		background.IntervalsFromConfig(cfg),
		slogger.With("component", "background"),
	)
	tasks.StartAll(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slogger.Info("gRPC server started", "addr", lis.Addr().String())
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		slogger.Info("admin HTTP server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slogger.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		slogger.Error("server stopped with error", "error", err)
	}
	stop()
	tasks.Wait()
	slogger.Info("market service stopped")
}
