package api

import (
    "net/http"
    "time"

    "github.com/gin-gonic/gin"
    "go.uber.org/zap"

    "tensicare/internal/preprocess"
    "tensicare/internal/session"
    "tensicare/internal/store"
    "tensicare/internal/training"
)

type Options struct {
    // APIKey guards every route but /healthz when set.
    APIKey         string
    MaxUploadBytes int64
    // Cleaning and Training fill the fields a request leaves out.
    Cleaning preprocess.Options
    Training training.Options
}

type Server struct {
    sessions *session.Store
    models   store.ModelStore
    opts     Options
    log      *zap.Logger
}

func New(sessions *session.Store, models store.ModelStore, opts Options, log *zap.Logger) *Server {
    if opts.MaxUploadBytes <= 0 { opts.MaxUploadBytes = 32 << 20 }
    return &Server{sessions: sessions, models: models, opts: opts, log: log}
}

func (s *Server) Router() *gin.Engine {
    r := gin.New()
    r.Use(gin.Recovery(), requestLogger(s.log))

    r.GET("/healthz", func(c *gin.Context) {
        c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
    })

    api := r.Group("/")
    api.Use(apiKeyMiddleware(s.opts.APIKey))

    api.POST("/sessions", s.createSession)
    sess := api.Group("/sessions/:id")
    {
        sess.GET("", s.getSession)
        sess.DELETE("", s.deleteSession)
        sess.POST("/dataset", s.uploadDataset)
        sess.POST("/clean", s.clean)
        sess.GET("/features", s.getFeatures)
        sess.POST("/features", s.selectFeatures)
        sess.POST("/train", s.train)
        sess.GET("/evaluation", s.getEvaluation)
        sess.GET("/model", s.downloadModel)
        sess.PUT("/model", s.uploadModel)
        sess.POST("/model/save", s.saveModel)
        sess.POST("/model/load", s.loadModel)
        sess.POST("/predict", s.predictOne)
        sess.POST("/predict/batch", s.predictBatch)
        sess.GET("/charts/:kind", s.chart)
    }
    api.GET("/models", s.listModels)
    api.DELETE("/models/:name", s.deleteModel)
    return r
}

func apiKeyMiddleware(key string) gin.HandlerFunc {
    return func(c *gin.Context) {
        if key == "" { c.Next(); return }
        if c.GetHeader("X-API-Key") != key {
            c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
            return
        }
        c.Next()
    }
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        c.Next()
        fields := []zap.Field{
            zap.String("method", c.Request.Method),
            zap.String("path", c.FullPath()),
            zap.Int("status", c.Writer.Status()),
            zap.Duration("latency", time.Since(start)),
        }
        if id := c.Param("id"); id != "" { fields = append(fields, zap.String("session", id)) }
        switch {
        case c.Writer.Status() >= http.StatusInternalServerError:
            log.Error("request", append(fields, zap.String("error", c.Errors.String()))...)
        case c.Writer.Status() >= http.StatusBadRequest:
            log.Warn("request", fields...)
        default:
            log.Info("request", fields...)
        }
    }
}
