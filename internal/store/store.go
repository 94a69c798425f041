package store

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store

import (
    "context"
    "errors"
    "fmt"
    "regexp"
    "strings"
    "time"
)

var (
    ErrInvalidName = errors.New("invalid model name")
    ErrNotFound    = errors.New("model not found")
)

// ext is appended to model names to form file and object names.
const ext = ".gob"

// ModelStore keeps serialized models by name.
type ModelStore interface {
    Put(ctx context.Context, name string, blob []byte) error
    Get(ctx context.Context, name string) ([]byte, error)
    List(ctx context.Context) ([]ModelInfo, error)
    Delete(ctx context.Context, name string) error
}

type ModelInfo struct {
    Name     string    `json:"name"`
    Size     int64     `json:"size"`
    Modified time.Time `json:"modified"`
}

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateName rejects names that could escape the store or clash with its layout.
func ValidateName(name string) error {
    if !validName.MatchString(name) || strings.HasPrefix(name, ".") || len(name) > 128 {
        return fmt.Errorf("%w: %q", ErrInvalidName, name)
    }
    return nil
}
