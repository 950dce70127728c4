package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/AbelMP17/OnlyNadesV2/config"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/runner"
	"github.com/AbelMP17/OnlyNadesV2/store"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "The gRPC server port (overrides grpc_addr)")
	maxSessions := flag.Int("max-sessions", 0, "Maximum number of sessions to keep in memory")
	dataDir := flag.String("data-dir", "", "Snapshot directory (overrides data_dir)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.GRPCAddr = fmt.Sprintf(":%d", *port)
	}
	if *maxSessions > 0 {
		cfg.MaxSessions = *maxSessions
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	logger, err := config.NewLogger(cfg.LogLevel, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	reg := metrics.NewRegistry()
	st, err := store.New(cfg.DataDir, store.WithFormat(cfg.Format), store.WithLogger(logger), store.WithMetrics(reg))
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	sessions := runner.NewSessionRunner(st, runner.Config{
		MaxSessions:    cfg.MaxSessions,
		SessionTTL:     cfg.SessionTTL,
		SweepInterval:  cfg.SweepInterval,
		BucketSize:     cfg.BucketSize,
		FocusThreshold: cfg.FocusThreshold,
	}, runner.WithLogger(logger), runner.WithMetrics(reg))
	defer sessions.Close()

	s := grpc.NewServer(grpc.UnaryInterceptor(runner.LoggingInterceptor(logger)))
	runner.RegisterService(s, sessions)

	// Enable reflection for debugging
	reflection.Register(s)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down gRPC server")
		s.GracefulStop()
	}()

	logger.Info("starting gRPC server",
		zap.String("addr", cfg.GRPCAddr),
		zap.Int("max_sessions", cfg.MaxSessions),
		zap.String("data_dir", cfg.DataDir))
	if err := s.Serve(lis); err != nil {
		logger.Error("failed to serve", zap.Error(err))
	}
}
