package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/AbelMP17/OnlyNadesV2/api"
	"github.com/AbelMP17/OnlyNadesV2/config"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/runner"
	"github.com/AbelMP17/OnlyNadesV2/store"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	dataDir    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nademap",
	Short: "Serve and manage nade lineups anchored to map images",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		logger, err = config.NewLogger(cfg.LogLevel, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC session service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var importCmd = &cobra.Command{
	Use:   "import <map> <records.json>",
	Short: "Save an exported JSON array of lineups as a new snapshot of a map",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <map>",
	Short: "List the saved snapshots of a map, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshots,
}

var configCmd = &cobra.Command{
	Use:   "config <path>",
	Short: "Write the effective configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Save(args[0]); err != nil {
			return err
		}
		logger.Info("wrote config", zap.String("path", args[0]))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "snapshot directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, importCmd, snapshotsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(reg *metrics.Registry) (*store.Store, error) {
	return store.New(cfg.DataDir,
		store.WithFormat(cfg.Format),
		store.WithLogger(logger),
		store.WithMetrics(reg))
}

func runnerConfig(c *config.Config) runner.Config {
	return runner.Config{
		MaxSessions:    c.MaxSessions,
		SessionTTL:     c.SessionTTL,
		SweepInterval:  c.SweepInterval,
		BucketSize:     c.BucketSize,
		FocusThreshold: c.FocusThreshold,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := metrics.NewRegistry()
	st, err := openStore(reg)
	if err != nil {
		return err
	}
	sessions := runner.NewSessionRunner(st, runnerConfig(cfg), runner.WithLogger(logger), runner.WithMetrics(reg))
	defer sessions.Close()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(sessions, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(runner.LoggingInterceptor(logger)))
	runner.RegisterService(grpcSrv, sessions)
	reflection.Register(grpcSrv)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("data_dir", cfg.DataDir))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	slug, path := args[0], args[1]
	st, err := openStore(nil)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	snap, skipped, err := st.ImportFile(slug, f)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Warn("skipped records filed under another map", zap.String("map", slug), zap.Int("skipped", skipped))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s as snapshot %s (%s)\n",
		snap.NumRecords, slug, snap.ID, formatFileSize(snap.FileSize))
	return nil
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	snaps, err := st.List(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRECORDS\tSAVED\tFORMAT\tSIZE")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			s.ID, s.NumRecords, s.Timestamp.Format(time.RFC3339), s.Format, formatFileSize(s.FileSize))
	}
	return w.Flush()
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
