// internal/sampler/sampler.go
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrInvalidSampleSize is returned when a non-positive byte count is requested.
var ErrInvalidSampleSize = errors.New("sampler: sample size must be positive")

// FileInfo holds the metadata of an uploaded file.
type FileInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MIMEType     string    `json:"mime_type"`
	LastModified time.Time `json:"last_modified"`
}

// LastModifiedMillis returns LastModified in Unix milliseconds, or 0 when unset.
func (fi FileInfo) LastModifiedMillis() int64 {
	if fi.LastModified.IsZero() {
		return 0
	}
	return fi.LastModified.UnixMilli()
}

// RawFile is a read-only file-like blob that can return byte ranges.
type RawFile interface {
	Info() FileInfo
	ReadRange(ctx context.Context, off, n int64) ([]byte, error)
}

// BytePrefix is the leading slice of a RawFile.
type BytePrefix []byte

// ReadError reports that a prefix could not be read. It is recoverable:
// callers are expected to continue with an empty prefix.
type ReadError struct {
	Name  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read prefix of %q: %v", e.Name, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }

// Sampler reads bounded prefixes. Timeout bounds a single read; zero means
// the read is bounded only by the caller's context.
type Sampler struct {
	Timeout time.Duration
}

// New creates a sampler with the given read timeout.
func New(timeout time.Duration) *Sampler {
	return &Sampler{Timeout: timeout}
}

type readResult struct {
	data []byte
	err  error
}

// Sample returns the first min(n, size) bytes of f.
func (s *Sampler) Sample(ctx context.Context, f RawFile, n int64) (BytePrefix, error) {
	if n <= 0 {
		return nil, ErrInvalidSampleSize
	}

	info := f.Info()
	want := min(n, max(info.Size, 0))
	if want == 0 {
		return BytePrefix{}, nil
	}

	if s != nil && s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	// Buffered so a reader that ignores ctx does not leak the goroutine forever.
	done := make(chan readResult, 1)
	go func() {
		data, err := f.ReadRange(ctx, 0, want)
		done <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ReadError{Name: info.Name, Cause: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, &ReadError{Name: info.Name, Cause: res.err}
		}
		if int64(len(res.data)) < want {
			return nil, &ReadError{
				Name:  info.Name,
				Cause: fmt.Errorf("got %d of %d bytes: %w", len(res.data), want, io.ErrUnexpectedEOF),
			}
		}
		return BytePrefix(res.data[:want]), nil
	}
}

// SampleOrEmpty behaves like Sample but substitutes an empty prefix on a
// ReadError. The error is still returned so the caller can report it.
func (s *Sampler) SampleOrEmpty(ctx context.Context, f RawFile, n int64) (BytePrefix, error) {
	prefix, err := s.Sample(ctx, f, n)
	if err == nil {
		return prefix, nil
	}
	var readErr *ReadError
	if errors.As(err, &readErr) {
		return BytePrefix{}, err
	}
	return nil, err
}
