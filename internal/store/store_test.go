package store

import (
    "context"
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
    for _, ok := range []string{"rf", "model-2024.03_v1", "A.b"} {
        assert.NoError(t, ValidateName(ok), ok)
    }
    for _, bad := range []string{"", "../etc", "a/b", ".hidden", "sp ace", "é"} {
        assert.ErrorIs(t, ValidateName(bad), ErrInvalidName, bad)
    }
}

func TestFileStoreRoundTrip(t *testing.T) {
    ctx := context.Background()
    dir := filepath.Join(t.TempDir(), "models")
    s, err := NewFileStore(dir)
    require.NoError(t, err)

    require.NoError(t, s.Put(ctx, "b", []byte("second")))
    require.NoError(t, s.Put(ctx, "a", []byte("first")))
    require.NoError(t, s.Put(ctx, "a", []byte("first, again")))
    require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

    got, err := s.Get(ctx, "a")
    require.NoError(t, err)
    assert.Equal(t, "first, again", string(got))

    list, err := s.List(ctx)
    require.NoError(t, err)
    require.Len(t, list, 2)
    assert.Equal(t, "a", list[0].Name)
    assert.Equal(t, int64(len("first, again")), list[0].Size)
    assert.Equal(t, "b", list[1].Name)

    require.NoError(t, s.Delete(ctx, "b"))
    _, err = s.Get(ctx, "b")
    assert.ErrorIs(t, err, ErrNotFound)
    assert.ErrorIs(t, s.Delete(ctx, "b"), ErrNotFound)
    assert.ErrorIs(t, s.Put(ctx, "../x", nil), ErrInvalidName)

    entries, err := os.ReadDir(dir)
    require.NoError(t, err)
    assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestMinioObjectNames(t *testing.T) {
    s := &MinioStore{bucket: "b", prefix: "models"}
    assert.Equal(t, "models/rf.gob", s.object("rf"))
    s.prefix = ""
    assert.Equal(t, "rf.gob", s.object("rf"))
}

var _ ModelStore = (*FileStore)(nil)
var _ ModelStore = (*MinioStore)(nil)
var _ ModelStore = (*MockModelStore)(nil)
