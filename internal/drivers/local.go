package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// LocalDriver implements the Driver interface for local filesystem
type LocalDriver struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalDriver creates a new local filesystem driver
func NewLocalDriver(basePath string, logger *zap.Logger) *LocalDriver {
	return &LocalDriver{
		basePath: basePath,
		logger:   logger,
	}
}

// Name returns the driver name
func (d *LocalDriver) Name() string {
	return "local"
}

// Get retrieves an artifact from a container
func (d *LocalDriver) Get(ctx context.Context, container, artifact string) (io.ReadCloser, error) {
	if err := cleanKey(container, artifact); err != nil {
		return nil, err
	}
	fullPath := filepath.Join(d.basePath, container, filepath.FromSlash(artifact))

	d.logger.Debug("LocalDriver.Get",
		zap.String("container", container),
		zap.String("artifact", artifact),
		zap.String("fullPath", fullPath))

	f, err := os.Open(fullPath) // #nosec G304 -- key validated by cleanKey
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", container, artifact, ErrNotFound)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// Put stores an artifact atomically: data is written to a temp file in the
// same directory and renamed into place.
func (d *LocalDriver) Put(ctx context.Context, container, artifact string, data io.Reader) error {
	if err := cleanKey(container, artifact); err != nil {
		return err
	}
	fullPath := filepath.Join(d.basePath, container, filepath.FromSlash(artifact))

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	d.logger.Debug("LocalDriver.Put",
		zap.String("container", container),
		zap.String("artifact", artifact))
	return nil
}

// Delete removes an artifact from a container
func (d *LocalDriver) Delete(ctx context.Context, container, artifact string) error {
	if err := cleanKey(container, artifact); err != nil {
		return err
	}
	fullPath := filepath.Join(d.basePath, container, filepath.FromSlash(artifact))
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", container, artifact, ErrNotFound)
		}
		return err
	}
	return nil
}

// List lists artifacts in a container, sorted, filtered by prefix.
func (d *LocalDriver) List(ctx context.Context, container, prefix string) ([]string, error) {
	containerPath := filepath.Join(d.basePath, container)
	var artifacts []string

	err := filepath.WalkDir(containerPath, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(containerPath, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			artifacts = append(artifacts, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", container, err)
	}

	sort.Strings(artifacts)
	return artifacts, nil
}

// Exists reports whether an artifact is present.
func (d *LocalDriver) Exists(ctx context.Context, container, artifact string) (bool, error) {
	if err := cleanKey(container, artifact); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(d.basePath, container, filepath.FromSlash(artifact)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// HealthCheck verifies the driver is working
func (d *LocalDriver) HealthCheck(ctx context.Context) error {
	st, err := os.Stat(d.basePath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("health check failed: %s is not a directory", d.basePath)
	}
	return nil
}
