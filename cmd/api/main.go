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

	"github.com/AbelMP17/OnlyNadesV2/api"
	"github.com/AbelMP17/OnlyNadesV2/config"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/runner"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":8000", "HTTP listen address")
	target := flag.String("runner", "localhost:50051", "Session runner gRPC address")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger, err := config.NewLogger("info", *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := runner.Dial(*target)
	if err != nil {
		logger.Fatal("failed to connect to session runner", zap.String("target", *target), zap.Error(err))
	}
	defer client.Close()

	if !*verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.NewRouter(client, metrics.NewRegistry(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting API gateway", zap.String("addr", *addr), zap.String("runner", *target))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down API gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
