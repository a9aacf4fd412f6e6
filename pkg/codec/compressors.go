package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/datagrove/arraypack/pkg/core"
)

// None stores chunks verbatim.
type noneCodec struct{}

func (noneCodec) Name() string                        { return MethodNone }
func (noneCodec) Encode(plain []byte) ([]byte, error) { return plain, nil }
func (noneCodec) Decode(stored []byte) ([]byte, error) {
	return stored, nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd(opts Options) (Codec, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level(3))
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string { return MethodZstd }

func (c *zstdCodec) Encode(plain []byte) ([]byte, error) {
	return c.enc.EncodeAll(plain, nil), nil
}

func (c *zstdCodec) Decode(stored []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", core.ErrCorrupt, err)
	}
	return out, nil
}

type gzipCodec struct {
	level int
}

func newGzip(opts Options) (Codec, error) {
	level := opts.Level(gzip.DefaultCompression)
	if level != gzip.DefaultCompression && (level < gzip.HuffmanOnly || level > gzip.BestCompression) {
		return nil, fmt.Errorf("%w: gzip level %d out of range", core.ErrInvalidInput, level)
	}
	return &gzipCodec{level: level}, nil
}

func (c *gzipCodec) Name() string { return MethodGzip }

func (c *gzipCodec) Encode(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) Decode(stored []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", core.ErrCorrupt, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", core.ErrCorrupt, err)
	}
	return out, nil
}

type zlibCodec struct {
	level int
}

func newZlib(opts Options) (Codec, error) {
	level := opts.Level(zlib.DefaultCompression)
	if level != zlib.DefaultCompression && (level < zlib.HuffmanOnly || level > zlib.BestCompression) {
		return nil, fmt.Errorf("%w: zlib level %d out of range", core.ErrInvalidInput, level)
	}
	return &zlibCodec{level: level}, nil
}

func (c *zlibCodec) Name() string { return MethodZlib }

func (c *zlibCodec) Encode(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *zlibCodec) Decode(stored []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib: %v", core.ErrCorrupt, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib: %v", core.ErrCorrupt, err)
	}
	return out, nil
}

// s2 block compression, object family only.
type s2Codec struct{}

func (s2Codec) Name() string { return MethodS2 }

func (s2Codec) Encode(plain []byte) ([]byte, error) {
	return s2.Encode(nil, plain), nil
}

func (s2Codec) Decode(stored []byte) ([]byte, error) {
	out, err := s2.Decode(nil, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %v", core.ErrCorrupt, err)
	}
	return out, nil
}
