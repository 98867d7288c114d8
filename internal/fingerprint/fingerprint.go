// Package fingerprint derives cache keys and generator seeds from a file's
// leading bytes and metadata.
//
// The content hash is the classic h*31+b string hash folded into 32-bit
// signed arithmetic. It is not collision resistant and must not be replaced
// with a stronger hash: every stored fingerprint depends on its exact output.
package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/FairForge/scoutline/internal/sampler"
)

// Default prefix lengths used by Derive callers.
const (
	DefaultHashBytes = 1 << 20
	DefaultSeedBytes = 64 << 10
)

// Hash folds b into a 32-bit signed accumulator: h = (h<<5) - h + b.
// Go's signed arithmetic wraps, which gives the truncation for free.
func Hash(b []byte) int32 {
	var h int32
	for _, c := range b {
		h = (h << 5) - h + int32(c)
	}
	return h
}

// HashString renders Hash(b) in base 36.
func HashString(b []byte) string {
	return strconv.FormatInt(int64(Hash(b)), 36)
}

// Seed returns |Hash(b)|. It is widened to 64 bits so that the absolute
// value of math.MinInt32 is representable.
func Seed(b []byte) int64 {
	return abs32(Hash(b))
}

func abs32(h int32) int64 {
	v := int64(h)
	if v < 0 {
		return -v
	}
	return v
}

// Fingerprint combines the file metadata with the content hash of prefix:
// "{name}-{size}-{mimeType}-{lastModifiedMillis}-{hash}".
func Fingerprint(info sampler.FileInfo, prefix []byte) string {
	return fmt.Sprintf("%s-%d-%s-%d-%s",
		info.Name, info.Size, info.MIMEType, info.LastModifiedMillis(), HashString(prefix))
}

// Derivation is the pair produced for one file.
type Derivation struct {
	Fingerprint string `json:"fingerprint"`
	Seed        int64  `json:"seed"`
}

// Derive computes the fingerprint over hashPrefix and the seed over
// seedPrefix. The two prefixes may have different lengths.
func Derive(info sampler.FileInfo, hashPrefix, seedPrefix []byte) Derivation {
	return Derivation{
		Fingerprint: Fingerprint(info, hashPrefix),
		Seed:        Seed(seedPrefix),
	}
}
