package drivers

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestLocalDriver_HealthCheck tests health check functionality
func TestLocalDriver_HealthCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("HealthyDriver", func(t *testing.T) {
		tmpDir := t.TempDir()
		driver := NewLocalDriver(tmpDir, zap.NewNop())

		err := driver.HealthCheck(ctx)
		assert.NoError(t, err, "Health check should pass for valid path")
	})

	t.Run("UnhealthyDriver", func(t *testing.T) {
		driver := NewLocalDriver("/nonexistent/path/12345", zap.NewNop())

		err := driver.HealthCheck(ctx)
		assert.Error(t, err, "Health check should fail for invalid path")
		assert.Contains(t, err.Error(), "health check failed")
	})
}

func TestLocalDriver_PutGet(t *testing.T) {
	ctx := context.Background()
	driver := NewLocalDriver(t.TempDir(), zap.NewNop())

	require.NoError(t, driver.Put(ctx, "results", "ab/abc-1.json", bytes.NewReader([]byte("payload"))))

	rc, err := driver.Get(ctx, "results", "ab/abc-1.json")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	t.Run("overwrite replaces content", func(t *testing.T) {
		require.NoError(t, driver.Put(ctx, "results", "ab/abc-1.json", bytes.NewReader([]byte("v2"))))
		rc, err := driver.Get(ctx, "results", "ab/abc-1.json")
		require.NoError(t, err)
		defer func() { _ = rc.Close() }()
		data, _ := io.ReadAll(rc)
		assert.Equal(t, "v2", string(data))
	})
}

func TestLocalDriver_NotFound(t *testing.T) {
	ctx := context.Background()
	driver := NewLocalDriver(t.TempDir(), zap.NewNop())

	_, err := driver.Get(ctx, "results", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	err = driver.Delete(ctx, "results", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := driver.Exists(ctx, "results", "missing.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDriver_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	driver := NewLocalDriver(t.TempDir(), zap.NewNop())

	tests := []struct {
		name      string
		container string
		artifact  string
	}{
		{"parent artifact", "results", "../escape.json"},
		{"nested parent", "results", "a/../../escape.json"},
		{"empty artifact", "results", ""},
		{"slash container", "a/b", "x.json"},
		{"dotdot container", "..", "x.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := driver.Put(ctx, tt.container, tt.artifact, bytes.NewReader(nil))
			assert.Error(t, err)
		})
	}
}

func TestLocalDriver_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	driver := NewLocalDriver(base, zap.NewNop())

	for _, key := range []string{"b/two.json", "a/one.json", "a/three.json"} {
		require.NoError(t, driver.Put(ctx, "results", key, bytes.NewReader([]byte(key))))
	}
	// stray temp files from an interrupted Put are hidden
	require.NoError(t, os.WriteFile(filepath.Join(base, "results", "a", ".put-123"), nil, 0600))

	all, err := driver.List(ctx, "results", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one.json", "a/three.json", "b/two.json"}, all)

	onlyA, err := driver.List(ctx, "results", "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one.json", "a/three.json"}, onlyA)

	none, err := driver.List(ctx, "absent", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, driver.Delete(ctx, "results", "a/one.json"))
	ok, err := driver.Exists(ctx, "results", "a/one.json")
	require.NoError(t, err)
	assert.False(t, ok)
}
