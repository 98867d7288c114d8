package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned (wrapped) when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Driver is the common interface all storage drivers must implement
type Driver interface {
	Name() string
	Get(ctx context.Context, container, artifact string) (io.ReadCloser, error)
	Put(ctx context.Context, container, artifact string, data io.Reader) error
	Delete(ctx context.Context, container, artifact string) error
	List(ctx context.Context, container, prefix string) ([]string, error)
	Exists(ctx context.Context, container, artifact string) (bool, error)
	HealthCheck(ctx context.Context) error
}

// cleanKey rejects keys that would escape their container.
func cleanKey(container, artifact string) error {
	if container == "" || strings.ContainsAny(container, `/\`) || container == "." || container == ".." {
		return fmt.Errorf("invalid container %q", container)
	}
	if artifact == "" {
		return fmt.Errorf("artifact name required")
	}
	cleaned := path.Clean("/" + artifact)
	if cleaned != "/"+artifact || strings.Contains(artifact, `\`) {
		return fmt.Errorf("invalid artifact %q", artifact)
	}
	return nil
}
