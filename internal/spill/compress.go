package spill

import (
	"bytes"
	"io/ioutil"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// A compressor compresses and decompresses one spilled run's payload
type compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

func createCompressor(kind sieve.CompressionKind) (compressor, error) {
	switch kind {
	case sieve.CompressionZstd:
		return newZstdCompressor()
	case sieve.CompressionLZ4:
		return &lz4Compressor{}, nil
	case sieve.CompressionNone:
		return &noneCompressor{}, nil
	}
	return nil, errors.ConfigurationError{Message: "unknown spill compression kind"}
}

// zstdCompressor compresses runs with zstd at its fastest level
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

// Compress compresses a run payload
func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

// Decompress decompresses a run payload
func (c *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, nil)
}

// lz4Compressor compresses runs with the lz4 frame format
type lz4Compressor struct{}

// Compress compresses a run payload
func (c *lz4Compressor) Compress(src []byte) ([]byte, error) {
	var buff bytes.Buffer
	zw := lz4.NewWriter(&buff)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// Decompress decompresses a run payload
func (c *lz4Compressor) Decompress(src []byte) ([]byte, error) {
	return ioutil.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}

// noneCompressor passes run payloads through unchanged
type noneCompressor struct{}

// Compress returns the payload unchanged
func (c *noneCompressor) Compress(src []byte) ([]byte, error) {
	return src, nil
}

// Decompress returns the payload unchanged
func (c *noneCompressor) Decompress(src []byte) ([]byte, error) {
	return src, nil
}
