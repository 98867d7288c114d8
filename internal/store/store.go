// Package store persists analysis results through a storage driver.
package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/FairForge/scoutline/internal/drivers"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("result not found")

const (
	// DefaultContainer is the bucket or directory results are written to.
	DefaultContainer = "scoutline"
	prefix           = "analyses/"
	maxRecordSize    = 16 << 20
)

// ResultStore saves JSON-encodable records keyed by fingerprint.
type ResultStore struct {
	driver    drivers.Driver
	container string
	codec     Codec
	logger    *zap.Logger
}

// New creates a ResultStore. An empty container selects DefaultContainer.
func New(driver drivers.Driver, container string, codec Codec, logger *zap.Logger) (*ResultStore, error) {
	if driver == nil {
		return nil, errors.New("store: driver is required")
	}
	if _, err := codec.id(); err != nil {
		return nil, err
	}
	if container == "" {
		container = DefaultContainer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultStore{driver: driver, container: container, codec: codec, logger: logger}, nil
}

// ArtifactName maps a fingerprint onto a driver-safe key. Fingerprints carry
// user-supplied file names, so the key is a digest of the fingerprint fanned
// out by its first byte.
func ArtifactName(key string) string {
	sum := blake2b.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return prefix + h[:2] + "/" + h + ".rec"
}

// Save encodes v as JSON and writes it under key.
func (s *ResultStore) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data, err := seal(s.codec, raw)
	if err != nil {
		return fmt.Errorf("seal record: %w", err)
	}

	artifact := ArtifactName(key)
	if err := s.driver.Put(ctx, s.container, artifact, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", artifact, err)
	}

	s.logger.Debug("result saved",
		zap.String("key", key),
		zap.String("artifact", artifact),
		zap.String("codec", string(s.codec)),
		zap.Int("raw_bytes", len(raw)),
		zap.Int("stored_bytes", len(data)))
	return nil
}

// Load reads the record stored under key into v.
func (s *ResultStore) Load(ctx context.Context, key string, v any) error {
	artifact := ArtifactName(key)
	rc, err := s.driver.Get(ctx, s.container, artifact)
	if err != nil {
		if errors.Is(err, drivers.ErrNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("read %s: %w", artifact, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxRecordSize+headerSize+1))
	if err != nil {
		return fmt.Errorf("read %s: %w", artifact, err)
	}
	if len(data) > maxRecordSize+headerSize {
		return fmt.Errorf("%s: %w: record too large", artifact, ErrCorrupt)
	}

	raw, _, err := open(data)
	if err != nil {
		return fmt.Errorf("%s: %w", artifact, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Delete removes the record stored under key.
func (s *ResultStore) Delete(ctx context.Context, key string) error {
	if err := s.driver.Delete(ctx, s.container, ArtifactName(key)); err != nil {
		if errors.Is(err, drivers.ErrNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	return nil
}

// Count returns the number of stored records.
func (s *ResultStore) Count(ctx context.Context) (int, error) {
	keys, err := s.driver.List(ctx, s.container, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Healthy reports whether the underlying driver responds.
func (s *ResultStore) Healthy(ctx context.Context) error {
	return s.driver.HealthCheck(ctx)
}
