package main

import (
    "context"
    "errors"
    "flag"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"
    "go.uber.org/zap"

    "tensicare/internal/api"
    "tensicare/internal/config"
    "tensicare/internal/session"
    "tensicare/internal/store"
    "tensicare/pkg/utils"
)

func main() {
    cfgPath := flag.String("config", os.Getenv("TENSICARE_CONFIG"), "YAML or TOML config file")
    flag.Parse()

    cfg, err := config.Load(*cfgPath)
    if err != nil {
        utils.Logger().Fatal("invalid configuration", zap.Error(err))
    }
    utils.SetLogger(utils.NewLogger(cfg.Log.Level, cfg.Log.File))
    logger := utils.Logger()
    defer logger.Sync()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    models, err := openStore(ctx, cfg.Store, logger)
    if err != nil { logger.Fatal("model store unavailable", zap.String("kind", cfg.Store.Kind), zap.Error(err)) }

    sessions := session.NewStore(logger)
    go sessions.RunSweeper(ctx, cfg.Session.SweepInterval(), cfg.Session.MaxIdle())

    gin.SetMode(cfg.Server.Mode)
    srv := api.New(sessions, models, api.Options{
        APIKey:         cfg.Server.APIKey,
        MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
        Cleaning:       cfg.Cleaning.Options(),
        Training:       cfg.Training,
    }, logger)

    httpSrv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           srv.Router(),
        ReadHeaderTimeout: 10 * time.Second,
    }
    go func() {
        logger.Info("listening", zap.String("addr", httpSrv.Addr), zap.String("store", cfg.Store.Kind), zap.Bool("api_key", cfg.Server.APIKey != ""))
        if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Fatal("server stopped", zap.Error(err))
        }
    }()

    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := httpSrv.Shutdown(shutdownCtx); err != nil { logger.Error("shutdown", zap.Error(err)) }
    logger.Info("bye")
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.ModelStore, error) {
    if cfg.Kind == "minio" { return store.NewMinioStore(ctx, *cfg.Minio, logger) }
    return store.NewFileStore(cfg.Dir)
}
