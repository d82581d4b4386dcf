package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/config"
	"github.com/ifuryst/postpone/internal/server"
	"github.com/ifuryst/postpone/internal/service"
	"github.com/ifuryst/postpone/pkg/logger"
)

var (
	configPath string
	envFile    string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "postpone",
	Short: "Postpone - scheduled social media publishing",
	Long: `Postpone reads post requests from the schedules/ directory, schedules them
through the Instagram Graph API and archives every accepted request.`,
	SilenceUsage: true,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process all pending schedule records once",
	RunE:  runProcess,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake server and optional cron trigger",
	RunE:  runServe,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the schedules directories",
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Postpone %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/postpone.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the config")
	rootCmd.AddCommand(processCmd, serveCmd, initCmd, versionCmd)
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	if err := newStore(cfg, nil, appLogger).EnsureDirs(); err != nil {
		return err
	}
	appLogger.Info("Schedule directories ready",
		zap.String("pending", cfg.Store.PendingDir),
		zap.String("processed", cfg.Store.ProcessedDir))
	return nil
}

func runProcess(cmd *cobra.Command, _ []string) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.processor.Run(ctx)
	if err != nil {
		return fmt.Errorf("processing aborted: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Postpone server", zap.String("version", version))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer app.Close()

	deps := server.Dependencies{
		Store:     app.store,
		Publisher: app.publisher,
		Accounts:  cfg.Accounts,
		Runner:    app.processor,
		Scheduler: service.NewScheduler(&cfg.Scheduler, appLogger, app.processor),
		Location:  app.location,
	}
	if app.attempts != nil {
		deps.Attempts = app.attempts
	}
	srv := server.NewServer(cfg, deps, appLogger)

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down server...")
	case <-ctx.Done():
		appLogger.Info("Server context cancelled")
	}

	// Graceful shutdown
	if err := srv.Shutdown(context.Background()); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
