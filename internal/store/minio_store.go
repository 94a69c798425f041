package store

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "path"
    "sort"
    "strings"

    "github.com/minio/minio-go/v7"
    "github.com/minio/minio-go/v7/pkg/credentials"
    "go.uber.org/zap"
)

type MinioConfig struct {
    Endpoint        string `yaml:"endpoint" toml:"endpoint" validate:"required"`
    AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id" validate:"required"`
    SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key" validate:"required"`
    Bucket          string `yaml:"bucket" toml:"bucket" validate:"required"`
    UseSSL          bool   `yaml:"use_ssl" toml:"use_ssl"`
    Prefix          string `yaml:"prefix" toml:"prefix"`
}

// MinioStore keeps models as objects under Prefix in one bucket.
type MinioStore struct {
    client *minio.Client
    bucket string
    prefix string
    log    *zap.Logger
}

// NewMinioStore connects to the endpoint and creates the bucket when missing.
func NewMinioStore(ctx context.Context, cfg MinioConfig, log *zap.Logger) (*MinioStore, error) {
    client, err := minio.New(cfg.Endpoint, &minio.Options{
        Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
        Secure: cfg.UseSSL,
    })
    if err != nil { return nil, fmt.Errorf("failed to initialize MinIO client: %w", err) }

    exists, err := client.BucketExists(ctx, cfg.Bucket)
    if err != nil { return nil, fmt.Errorf("failed to check if MinIO bucket '%s' exists: %w", cfg.Bucket, err) }
    if !exists {
        if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
            return nil, fmt.Errorf("failed to create MinIO bucket '%s': %w", cfg.Bucket, err)
        }
        log.Info("MinIO bucket created", zap.String("bucket", cfg.Bucket))
    }
    return &MinioStore{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/"), log: log}, nil
}

func (s *MinioStore) object(name string) string { return path.Join(s.prefix, name+ext) }

func (s *MinioStore) Put(ctx context.Context, name string, blob []byte) error {
    if err := ValidateName(name); err != nil { return err }
    info, err := s.client.PutObject(ctx, s.bucket, s.object(name), bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
        ContentType: "application/octet-stream",
    })
    if err != nil { return fmt.Errorf("failed to upload model %q to MinIO bucket '%s': %w", name, s.bucket, err) }
    s.log.Info("model uploaded", zap.String("object", info.Key), zap.Int64("size", info.Size), zap.String("etag", info.ETag))
    return nil
}

func (s *MinioStore) Get(ctx context.Context, name string) ([]byte, error) {
    if err := ValidateName(name); err != nil { return nil, err }
    obj, err := s.client.GetObject(ctx, s.bucket, s.object(name), minio.GetObjectOptions{})
    if err != nil { return nil, s.wrap(name, err) }
    defer obj.Close()
    if _, err := obj.Stat(); err != nil { return nil, s.wrap(name, err) }
    b, err := io.ReadAll(obj)
    if err != nil { return nil, s.wrap(name, err) }
    return b, nil
}

func (s *MinioStore) List(ctx context.Context) ([]ModelInfo, error) {
    prefix := ""
    if s.prefix != "" { prefix = s.prefix + "/" }
    out := []ModelInfo{}
    for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
        if obj.Err != nil { return nil, fmt.Errorf("failed to list MinIO bucket '%s': %w", s.bucket, obj.Err) }
        name, ok := strings.CutSuffix(strings.TrimPrefix(obj.Key, prefix), ext)
        if !ok || ValidateName(name) != nil { continue }
        out = append(out, ModelInfo{Name: name, Size: obj.Size, Modified: obj.LastModified.UTC()})
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out, nil
}

func (s *MinioStore) Delete(ctx context.Context, name string) error {
    if err := ValidateName(name); err != nil { return err }
    if _, err := s.client.StatObject(ctx, s.bucket, s.object(name), minio.StatObjectOptions{}); err != nil {
        return s.wrap(name, err)
    }
    if err := s.client.RemoveObject(ctx, s.bucket, s.object(name), minio.RemoveObjectOptions{}); err != nil {
        return s.wrap(name, err)
    }
    return nil
}

func (s *MinioStore) wrap(name string, err error) error {
    if minio.ToErrorResponse(err).Code == "NoSuchKey" { return fmt.Errorf("%w: %q", ErrNotFound, name) }
    return fmt.Errorf("MinIO object %q in bucket '%s': %w", s.object(name), s.bucket, err)
}
