package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Codec identifies the compression applied to a stored payload.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecZstd   Codec = "zstd"
	CodecSnappy Codec = "snappy"
)

var (
	// ErrChecksumMismatch means the stored payload does not match its digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnknownCodec is returned for codec names or ids the store cannot handle.
	ErrUnknownCodec = errors.New("unknown codec")
	// ErrCorrupt means the envelope header is malformed.
	ErrCorrupt = errors.New("corrupt envelope")
)

var envelopeMagic = [4]byte{'S', 'C', 'L', '1'}

const (
	headerSize = 4 + 1 + 4 + blake2b.Size256

	codecIDNone   byte = 0
	codecIDZstd   byte = 1
	codecIDSnappy byte = 2
)

// ParseCodec maps a config string onto a Codec. Empty means zstd.
func ParseCodec(s string) (Codec, error) {
	switch Codec(s) {
	case "":
		return CodecZstd, nil
	case CodecNone, CodecZstd, CodecSnappy:
		return Codec(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

func (c Codec) id() (byte, error) {
	switch c {
	case CodecNone:
		return codecIDNone, nil
	case CodecZstd:
		return codecIDZstd, nil
	case CodecSnappy:
		return codecIDSnappy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, c)
}

func codecFromID(id byte) (Codec, error) {
	switch id {
	case codecIDNone:
		return CodecNone, nil
	case codecIDZstd:
		return CodecZstd, nil
	case codecIDSnappy:
		return CodecSnappy, nil
	}
	return "", fmt.Errorf("%w: id %d", ErrUnknownCodec, id)
}

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func compress(c Codec, data []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	case CodecZstd:
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, c)
}

func decompress(c Codec, data []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("snappy decode: %w", err)
		}
		return out, nil
	case CodecZstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, c)
}

// seal compresses raw and prepends the envelope header:
//
//	magic[4] | codec[1] | length[4, big endian] | blake2b-256(body)[32] | body
//
// The digest covers the compressed body so corruption is caught before
// decompression runs.
func seal(c Codec, raw []byte) ([]byte, error) {
	id, err := c.id()
	if err != nil {
		return nil, err
	}
	body, err := compress(c, raw)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(body)

	var buf bytes.Buffer
	buf.Grow(headerSize + len(body))
	buf.Write(envelopeMagic[:])
	buf.WriteByte(id)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(body)))
	buf.Write(n[:])
	buf.Write(sum[:])
	buf.Write(body)
	return buf.Bytes(), nil
}

// open verifies and unpacks an envelope produced by seal. The codec used is
// read from the header, so payloads written under another configuration
// remain readable.
func open(data []byte) ([]byte, Codec, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], envelopeMagic[:]) {
		return nil, "", ErrCorrupt
	}
	c, err := codecFromID(data[4])
	if err != nil {
		return nil, "", err
	}
	length := binary.BigEndian.Uint32(data[5:9])
	body := data[headerSize:]
	if uint64(len(body)) != uint64(length) {
		return nil, c, fmt.Errorf("%w: length %d, header says %d", ErrCorrupt, len(body), length)
	}

	var want [blake2b.Size256]byte
	copy(want[:], data[9:headerSize])
	if blake2b.Sum256(body) != want {
		return nil, c, ErrChecksumMismatch
	}

	raw, err := decompress(c, body)
	if err != nil {
		return nil, c, err
	}
	return raw, c, nil
}
