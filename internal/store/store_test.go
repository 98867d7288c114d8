package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/drivers"
)

type record struct {
	Fingerprint string    `json:"fingerprint"`
	Seed        int64     `json:"seed"`
	Values      []float64 `json:"values"`
}

func sampleRecord() record {
	values := make([]float64, 64)
	for i := range values {
		values[i] = float64(i) * 1.5
	}
	return record{Fingerprint: "clip.mp4-2048-video/mp4-1700000000000-3joqo0", Seed: 214465536, Values: values}
}

func newLocalStore(t *testing.T, codec Codec) (*ResultStore, string) {
	t.Helper()
	base := t.TempDir()
	s, err := New(drivers.NewLocalDriver(base, zap.NewNop()), "", codec, zap.NewNop())
	require.NoError(t, err)
	return s, base
}

func TestResultStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, codec := range []Codec{CodecNone, CodecZstd, CodecSnappy} {
		t.Run(string(codec), func(t *testing.T) {
			s, _ := newLocalStore(t, codec)
			in := sampleRecord()

			require.NoError(t, s.Save(ctx, in.Fingerprint, in))

			var out record
			require.NoError(t, s.Load(ctx, in.Fingerprint, &out))
			assert.Equal(t, in, out)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestResultStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocalStore(t, CodecZstd)

	var out record
	err := s.Load(ctx, "nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrNotFound)
}

func TestResultStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newLocalStore(t, CodecSnappy)
	in := sampleRecord()

	require.NoError(t, s.Save(ctx, in.Fingerprint, in))
	require.NoError(t, s.Delete(ctx, in.Fingerprint))

	var out record
	assert.ErrorIs(t, s.Load(ctx, in.Fingerprint, &out), ErrNotFound)
}

func TestResultStore_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	s, base := newLocalStore(t, CodecZstd)
	in := sampleRecord()
	require.NoError(t, s.Save(ctx, in.Fingerprint, in))

	path := filepath.Join(base, DefaultContainer, filepath.FromSlash(ArtifactName(in.Fingerprint)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0600))

	var out record
	assert.ErrorIs(t, s.Load(ctx, in.Fingerprint, &out), ErrChecksumMismatch)
}

func TestResultStore_ReadsOtherCodecs(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	driver := drivers.NewLocalDriver(base, zap.NewNop())

	writer, err := New(driver, "", CodecSnappy, zap.NewNop())
	require.NoError(t, err)
	reader, err := New(driver, "", CodecZstd, zap.NewNop())
	require.NoError(t, err)

	in := sampleRecord()
	require.NoError(t, writer.Save(ctx, in.Fingerprint, in))

	var out record
	require.NoError(t, reader.Load(ctx, in.Fingerprint, &out))
	assert.Equal(t, in, out)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "", CodecZstd, nil)
	assert.Error(t, err)

	_, err = New(drivers.NewLocalDriver(t.TempDir(), zap.NewNop()), "", Codec("lz4"), nil)
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestArtifactName(t *testing.T) {
	a := ArtifactName("../../etc/passwd-1-x-0-abc")
	assert.True(t, strings.HasPrefix(a, "analyses/"))
	assert.True(t, strings.HasSuffix(a, ".rec"))
	assert.NotContains(t, a, "..")
	assert.Equal(t, a, ArtifactName("../../etc/passwd-1-x-0-abc"))
	assert.NotEqual(t, a, ArtifactName("other"))
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"", CodecZstd, false},
		{"zstd", CodecZstd, false},
		{"snappy", CodecSnappy, false},
		{"none", CodecNone, false},
		{"gzip", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCodec(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Corrupt(t *testing.T) {
	_, _, err := open([]byte("short"))
	assert.ErrorIs(t, err, ErrCorrupt)

	sealed, err := seal(CodecNone, []byte(`{"a":1}`))
	require.NoError(t, err)

	truncated := sealed[:len(sealed)-1]
	_, _, err = open(truncated)
	assert.ErrorIs(t, err, ErrCorrupt)

	badCodec := bytes.Clone(sealed)
	badCodec[4] = 9
	_, _, err = open(badCodec)
	assert.ErrorIs(t, err, ErrUnknownCodec)

	raw, codec, err := open(sealed)
	require.NoError(t, err)
	assert.Equal(t, CodecNone, codec)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestZstdShrinksRepetitivePayload(t *testing.T) {
	raw := []byte(strings.Repeat(`{"x":1.2,"y":3.4}`, 200))
	sealed, err := seal(CodecZstd, raw)
	require.NoError(t, err)
	assert.Less(t, len(sealed), len(raw))
}
