package utils

import (
    "os"
    "path/filepath"
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// Logger returns the process logger, configured from LOG_FILE and LOG_LEVEL
// on first use.
func Logger() *zap.Logger {
    if logger != nil { return logger }
    logger = NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
    return logger
}

// SetLogger replaces the process logger, mostly for tests and CLIs that read
// their log settings from a config file.
func SetLogger(l *zap.Logger) { logger = l }

func NewLogger(level, logFile string) *zap.Logger {
    lvl := parseLevel(level)
    encCfg := zap.NewProductionEncoderConfig()
    encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
    enc := zapcore.NewJSONEncoder(encCfg)
    consoleCore := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl)
    if logFile == "" {
        return zap.New(consoleCore, zap.AddCaller())
    }
    _ = os.MkdirAll(filepath.Dir(logFile), 0o755)
    f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        l := zap.New(consoleCore, zap.AddCaller())
        l.Warn("log file unavailable, logging to stdout only", zap.String("path", logFile), zap.Error(err))
        return l
    }
    fileCore := zapcore.NewCore(enc, zapcore.AddSync(f), lvl)
    return zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller())
}

func parseLevel(s string) zapcore.Level {
    var lvl zapcore.Level
    if s == "" { return zapcore.InfoLevel }
    if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil { return zapcore.InfoLevel }
    return lvl
}
