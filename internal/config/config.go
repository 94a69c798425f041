package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/goccy/go-yaml"
    "github.com/pelletier/go-toml/v2"
    "go.uber.org/multierr"

    "tensicare/internal/preprocess"
    "tensicare/internal/store"
    "tensicare/internal/training"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Config struct {
    Server   ServerConfig     `yaml:"server" toml:"server"`
    Log      LogConfig        `yaml:"log" toml:"log"`
    Cleaning CleaningConfig   `yaml:"cleaning" toml:"cleaning"`
    Training training.Options `yaml:"training" toml:"training"`
    Store    StoreConfig      `yaml:"store" toml:"store"`
    Session  SessionConfig    `yaml:"session" toml:"session"`
}

type ServerConfig struct {
    Port        string `yaml:"port" toml:"port" validate:"required,numeric"`
    APIKey      string `yaml:"api_key" toml:"api_key"`
    Mode        string `yaml:"mode" toml:"mode" validate:"oneof=debug release test"`
    MaxUploadMB int    `yaml:"max_upload_mb" toml:"max_upload_mb" validate:"gt=0"`
}

type LogConfig struct {
    Level string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
    File  string `yaml:"file" toml:"file"`
}

// CleaningConfig holds the defaults used when a clean request leaves a field empty.
type CleaningConfig struct {
    Scaling  string `yaml:"scaling" toml:"scaling" validate:"omitempty,oneof=none standardize normalize"`
    Encoding string `yaml:"encoding" toml:"encoding" validate:"omitempty,oneof=first_seen sorted"`
}

type StoreConfig struct {
    Kind  string             `yaml:"kind" toml:"kind" validate:"oneof=fs minio"`
    Dir   string             `yaml:"dir" toml:"dir" validate:"required_if=Kind fs"`
    Minio *store.MinioConfig `yaml:"minio" toml:"minio" validate:"required_if=Kind minio"`
}

type SessionConfig struct {
    MaxIdleMinutes int `yaml:"max_idle_minutes" toml:"max_idle_minutes" validate:"gt=0"`
    SweepSeconds   int `yaml:"sweep_seconds" toml:"sweep_seconds" validate:"gt=0"`
}

func (s SessionConfig) MaxIdle() time.Duration       { return time.Duration(s.MaxIdleMinutes) * time.Minute }
func (s SessionConfig) SweepInterval() time.Duration { return time.Duration(s.SweepSeconds) * time.Second }

func (c CleaningConfig) Options() preprocess.Options {
    return preprocess.Options{Scaling: preprocess.Scaling(c.Scaling), Encoding: preprocess.Encoding(c.Encoding)}
}

func Default() *Config {
    return &Config{
        Server:   ServerConfig{Port: "8080", Mode: "release", MaxUploadMB: 32},
        Log:      LogConfig{Level: "info"},
        Cleaning: CleaningConfig{Encoding: string(preprocess.EncodingFirstSeen)},
        Training: training.DefaultOptions(),
        Store:    StoreConfig{Kind: "fs", Dir: "models"},
        Session:  SessionConfig{MaxIdleMinutes: 60, SweepSeconds: 300},
    }
}

// Load reads the file at path (YAML or TOML by extension) over the defaults,
// applies environment overrides and validates the result. An empty path
// skips the file.
func Load(path string) (*Config, error) {
    cfg := Default()
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil { return nil, fmt.Errorf("read config: %w", err) }
        switch strings.ToLower(filepath.Ext(path)) {
        case ".yaml", ".yml":
            err = yaml.Unmarshal(b, cfg)
        case ".toml":
            err = toml.Unmarshal(b, cfg)
        default:
            return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
        }
        if err != nil { return nil, fmt.Errorf("parse config %s: %w", path, err) }
    }
    if err := cfg.applyEnv(os.LookupEnv); err != nil { return nil, err }
    if err := cfg.Validate(); err != nil { return nil, err }
    return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
    str := func(key string, dst *string) {
        if v, ok := lookup(key); ok && v != "" { *dst = v }
    }
    str("PORT", &c.Server.Port)
    str("API_KEY", &c.Server.APIKey)
    str("GIN_MODE", &c.Server.Mode)
    str("LOG_LEVEL", &c.Log.Level)
    str("LOG_FILE", &c.Log.File)
    str("MODEL_STORE", &c.Store.Kind)
    str("MODEL_DIR", &c.Store.Dir)

    if v, ok := lookup("MINIO_ENDPOINT"); ok && v != "" {
        if c.Store.Minio == nil { c.Store.Minio = &store.MinioConfig{} }
        c.Store.Minio.Endpoint = v
    }
    if c.Store.Minio != nil {
        str("MINIO_ACCESS_KEY_ID", &c.Store.Minio.AccessKeyID)
        str("MINIO_SECRET_ACCESS_KEY", &c.Store.Minio.SecretAccessKey)
        str("MINIO_BUCKET_NAME", &c.Store.Minio.Bucket)
        if v, ok := lookup("MINIO_USE_SSL"); ok && v != "" {
            b, err := strconv.ParseBool(v)
            if err != nil { return fmt.Errorf("MINIO_USE_SSL: %w", err) }
            c.Store.Minio.UseSSL = b
        }
    }
    return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
    err := validate.Struct(c)
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) { return err }
    var out error
    for _, fe := range verrs {
        out = multierr.Append(out, fmt.Errorf("config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
    }
    return out
}
