package fingerprint

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FairForge/scoutline/internal/sampler"
)

func clipBytes() []byte {
	b := make([]byte, 2048)
	for i := range b {
		b[i] = byte((i + 1) % 256)
	}
	return b
}

func clipInfo() sampler.FileInfo {
	return sampler.FileInfo{
		Name:         "clip.mp4",
		Size:         2048,
		MIMEType:     "video/mp4",
		LastModified: time.UnixMilli(1700000000000),
	}
}

func TestHash_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		hash  int32
		b36   string
	}{
		{"empty", nil, 0, "0"},
		{"abc", []byte("abc"), 96354, "22ci"},
		{"hello", []byte("hello"), 99162322, "1n1e4y"},
		{"wraps negative", []byte{255, 255, 255, 255, 255, 255, 255, 255, 255, 255}, -241701024, "-3zwhpc"},
		{"clip", clipBytes(), 214465536, "3joqo0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hash, Hash(tt.input))
			assert.Equal(t, tt.b36, HashString(tt.input))
		})
	}
}

func TestSeed_NonNegative(t *testing.T) {
	t.Run("negative hash", func(t *testing.T) {
		assert.Equal(t, int64(241701024), Seed([]byte{255, 255, 255, 255, 255, 255, 255, 255, 255, 255}))
	})

	t.Run("empty prefix", func(t *testing.T) {
		assert.Equal(t, int64(0), Seed(nil))
		assert.Equal(t, int64(0), Seed([]byte{}))
	})

	t.Run("most negative 32-bit value", func(t *testing.T) {
		assert.Equal(t, int64(2147483648), abs32(math.MinInt32))
		assert.Equal(t, int64(math.MaxInt32), abs32(math.MaxInt32))
	})

	t.Run("many inputs", func(t *testing.T) {
		buf := make([]byte, 0, 64)
		for i := 0; i < 5000; i++ {
			buf = append(buf[:0], byte(i), byte(i>>3), byte(i*7), byte(i*13))
			for j := 0; j < i%40; j++ {
				buf = append(buf, byte(i+j*31))
			}
			assert.GreaterOrEqual(t, Seed(buf), int64(0))
		}
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("golden clip", func(t *testing.T) {
		fp := Fingerprint(clipInfo(), clipBytes())
		assert.Equal(t, "clip.mp4-2048-video/mp4-1700000000000-3joqo0", fp)
	})

	t.Run("zero byte file", func(t *testing.T) {
		info := sampler.FileInfo{Name: "empty.mp4", Size: 0, MIMEType: "video/mp4"}
		assert.Equal(t, "empty.mp4-0-video/mp4-0-0", Fingerprint(info, nil))
	})

	t.Run("metadata changes the fingerprint", func(t *testing.T) {
		base := Fingerprint(clipInfo(), clipBytes())

		renamed := clipInfo()
		renamed.Name = "other.mp4"
		assert.NotEqual(t, base, Fingerprint(renamed, clipBytes()))

		touched := clipInfo()
		touched.LastModified = touched.LastModified.Add(time.Millisecond)
		assert.NotEqual(t, base, Fingerprint(touched, clipBytes()))
	})

	t.Run("deterministic", func(t *testing.T) {
		a := Derive(clipInfo(), clipBytes(), clipBytes()[:1024])
		b := Derive(clipInfo(), clipBytes(), clipBytes()[:1024])
		assert.Equal(t, a, b)
	})
}

func TestDerive_SeparatePrefixes(t *testing.T) {
	data := clipBytes()
	d := Derive(clipInfo(), data, data[:3])

	assert.Equal(t, "clip.mp4-2048-video/mp4-1700000000000-3joqo0", d.Fingerprint)
	assert.Equal(t, Seed([]byte{1, 2, 3}), d.Seed)
	assert.Equal(t, int64(1026), d.Seed)
}
