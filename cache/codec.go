package cache

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// BrotliCodec compresses entries with Brotli; level maps to Brotli quality.
type BrotliCodec struct{}

// NewBrotliCodec creates a Brotli codec.
func NewBrotliCodec() *BrotliCodec {
	return &BrotliCodec{}
}

// Name returns "brotli".
func (BrotliCodec) Name() string { return "brotli" }

// Encode compresses data at the given quality level.
func (BrotliCodec) Encode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, level)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses Brotli data.
func (BrotliCodec) Decode(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}

// ZstdCodec compresses entries with Zstandard. Encoders are created lazily
// per level and reused.
type ZstdCodec struct {
	mu       sync.Mutex
	encoders map[int]*zstd.Encoder
	decoder  *zstd.Decoder
}

// NewZstdCodec creates a Zstandard codec. Call Close to release it.
func NewZstdCodec() (*ZstdCodec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("cache: zstd decoder: %w", err)
	}
	return &ZstdCodec{
		encoders: make(map[int]*zstd.Encoder),
		decoder:  dec,
	}, nil
}

// Name returns "zstd".
func (z *ZstdCodec) Name() string { return "zstd" }

// Encode compresses data; level is mapped onto the nearest zstd preset.
func (z *ZstdCodec) Encode(data []byte, level int) ([]byte, error) {
	enc, err := z.encoder(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

// Decode decompresses zstd data.
func (z *ZstdCodec) Decode(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

// Close releases encoder and decoder resources.
func (z *ZstdCodec) Close() {
	z.mu.Lock()
	defer z.mu.Unlock()

	for level, enc := range z.encoders {
		_ = enc.Close()
		delete(z.encoders, level)
	}
	z.decoder.Close()
}

func (z *ZstdCodec) encoder(level int) (*zstd.Encoder, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if enc, ok := z.encoders[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("cache: zstd encoder level %d: %w", level, err)
	}
	z.encoders[level] = enc
	return enc, nil
}

var (
	_ Codec = BrotliCodec{}
	_ Codec = (*ZstdCodec)(nil)
)
