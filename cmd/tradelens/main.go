package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradelens/internal/config"
	cronrunner "tradelens/internal/cron"
	"tradelens/internal/db"
	"tradelens/internal/handler"
	"tradelens/internal/logger"
	"tradelens/internal/repository"
	gormrepository "tradelens/internal/repository/gorm"
	"tradelens/internal/service"
)

const usage = `usage: tradelens [run|serve]

  run    reconcile the configured input files once and write CSV and HTML
  serve  start the HTTP API (and scheduled runs when cron.enabled)`

func main() {
	_ = godotenv.Load()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}
	if cmd != "run" && cmd != "serve" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfgPath := os.Getenv("TL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	repo, closeDB := openArchive(cfg, logger)
	defer closeDB()

	svc := service.NewReconcileService(cfg, repo, logger)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		err = runOnce(ctx, svc, logger)
	case "serve":
		err = serve(ctx, cfg, svc, repo, logger)
	}
	if err != nil {
		logger.Error("tradelens failed", zap.String("command", cmd), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// openArchive returns a nil repository when archiving is disabled or the
// database cannot be opened; reconciliation still runs without it.
func openArchive(cfg config.Config, logger *zap.Logger) (repository.Repository, func()) {
	noop := func() {}
	dbConn, err := db.Open(cfg.DB)
	if errors.Is(err, db.ErrDisabled) {
		logger.Info("run archive disabled")
		return nil, noop
	}
	if err != nil {
		logger.Warn("db open failed, archive disabled", zap.Error(err))
		return nil, noop
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Warn("auto-migrate failed, archive disabled", zap.Error(err))
		_ = db.Close(dbConn)
		return nil, noop
	}
	return gormrepository.New(dbConn.Gorm), func() { _ = db.Close(dbConn) }
}

func runOnce(ctx context.Context, svc *service.ReconcileService, logger *zap.Logger) error {
	res, err := svc.RunFiles(ctx, service.SourceCLI)
	if err != nil {
		return err
	}
	csvPath, reportPath, err := svc.WriteOutputs(res)
	if err != nil {
		return fmt.Errorf("write outputs: %w", err)
	}
	logger.Info("outputs written",
		zap.String("run_id", res.RunID),
		zap.String("csv", csvPath),
		zap.String("report", reportPath),
		zap.Int("signals", res.Counts.Signals),
		zap.Float64("total_pnl", res.Counts.TotalPnL),
	)
	return nil
}

func serve(ctx context.Context, cfg config.Config, svc *service.ReconcileService, repo repository.Repository, logger *zap.Logger) error {
	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Repo: repo}
	healthHandler.Register(engine)
	runHandler := &handler.RunHandler{Service: svc, Logger: logger}
	runHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err := cronRunner.Add("reconcile", cfg.Cron.Reconcile, func(ctx context.Context) {
			res, err := svc.RunFiles(ctx, service.SourceCron)
			if err != nil {
				logger.Warn("cron reconcile failed", zap.Error(err))
				return
			}
			if _, _, err := svc.WriteOutputs(res); err != nil {
				logger.Warn("cron write outputs failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register reconcile failed", zap.Error(err))
		} else {
			cronRunner.Start()
			defer cronRunner.Stop()
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
