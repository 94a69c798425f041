package store

import (
    "context"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "sort"
    "strings"
)

// FileStore keeps one file per model in a directory.
type FileStore struct {
    Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
    if err := os.MkdirAll(dir, 0o755); err != nil { return nil, fmt.Errorf("model dir: %w", err) }
    return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(name string) string { return filepath.Join(s.Dir, name+ext) }

// Put writes through a temporary file so readers never see half a model.
func (s *FileStore) Put(ctx context.Context, name string, blob []byte) error {
    if err := ValidateName(name); err != nil { return err }
    if err := ctx.Err(); err != nil { return err }
    tmp, err := os.CreateTemp(s.Dir, ".put-*")
    if err != nil { return fmt.Errorf("save model %q: %w", name, err) }
    defer os.Remove(tmp.Name())
    if _, err := tmp.Write(blob); err != nil {
        tmp.Close()
        return fmt.Errorf("save model %q: %w", name, err)
    }
    if err := tmp.Close(); err != nil { return fmt.Errorf("save model %q: %w", name, err) }
    if err := os.Rename(tmp.Name(), s.path(name)); err != nil { return fmt.Errorf("save model %q: %w", name, err) }
    return nil
}

func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
    if err := ValidateName(name); err != nil { return nil, err }
    b, err := os.ReadFile(s.path(name))
    if errors.Is(err, fs.ErrNotExist) { return nil, fmt.Errorf("%w: %q", ErrNotFound, name) }
    if err != nil { return nil, fmt.Errorf("load model %q: %w", name, err) }
    return b, nil
}

func (s *FileStore) List(ctx context.Context) ([]ModelInfo, error) {
    entries, err := os.ReadDir(s.Dir)
    if err != nil { return nil, fmt.Errorf("list models: %w", err) }
    out := []ModelInfo{}
    for _, e := range entries {
        name, ok := strings.CutSuffix(e.Name(), ext)
        if !ok || e.IsDir() || ValidateName(name) != nil { continue }
        info, err := e.Info()
        if err != nil { continue }
        out = append(out, ModelInfo{Name: name, Size: info.Size(), Modified: info.ModTime().UTC()})
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
    if err := ValidateName(name); err != nil { return err }
    err := os.Remove(s.path(name))
    if errors.Is(err, fs.ErrNotExist) { return fmt.Errorf("%w: %q", ErrNotFound, name) }
    return err
}
