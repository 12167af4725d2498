package diag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression of a dump.
type Compression uint8

const (
	// CompressionNone stores the encoded layouts as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio for large page tables).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(math.MaxUint32))
	return dec
}

const (
	blockHeaderSize = 8

	// maxLZ4Ratio is the best ratio LZ4 can reach: a block never decodes to
	// more than this many bytes per input byte.
	maxLZ4Ratio = 255
	// zstdPrealloc caps the up-front output buffer for ZSTD blocks at this
	// multiple of the input. Larger outputs grow as they are decoded.
	zstdPrealloc = 64
)

// compressBlock returns [uncompressed u32][compressed u32][data]. If
// compression does not shrink the data below 90%, the block is stored and
// the compressed size is written as 0.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	if len(data) > int(^uint32(0)) {
		return nil, fmt.Errorf("diag: block of %d bytes too large", len(data))
	}

	var compressed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("diag: unknown %s", c)
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		binary.LittleEndian.PutUint32(out[4:], 0)
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	return append(out, compressed...), nil
}

// decompressBlock reverses compressBlock.
func decompressBlock(data []byte, c Compression) ([]byte, error) {
	if len(data) < blockHeaderSize {
		return nil, errors.New("diag: block too small for header")
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	body := data[blockHeaderSize:]

	if compressedSize == 0 {
		if uint64(len(body)) < uint64(uncompressedSize) {
			return nil, errors.New("diag: block data too small")
		}
		return body[:uncompressedSize], nil
	}
	if uint64(len(body)) < uint64(compressedSize) {
		return nil, errors.New("diag: compressed block data too small")
	}
	body = body[:compressedSize]

	switch c {
	case CompressionLZ4:
		if uint64(uncompressedSize) > uint64(len(body))*maxLZ4Ratio {
			return nil, fmt.Errorf("diag: lz4 block of %d bytes cannot expand to %d", len(body), uncompressedSize)
		}
		result := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("diag: decompressed size mismatch")
		}
		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		prealloc := min(uint64(uncompressedSize), uint64(len(body))*zstdPrealloc)
		decoded, err := dec.DecodeAll(body, make([]byte, 0, prealloc))
		if err != nil {
			return nil, err
		}
		if uint64(len(decoded)) != uint64(uncompressedSize) {
			return nil, errors.New("diag: decompressed size mismatch")
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("diag: compressed block with %s", c)
	}
}
