package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm used for section blocks.
type CompressionType uint8

const (
	// CompressionNone stores blocks verbatim.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for frequent snapshots).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD block compression (better ratio, slower).
	CompressionZSTD CompressionType = 2
)

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	// Level 3 balances compression ratio vs speed
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Every block starts with an 8-byte header:
// [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the payload is stored verbatim, which also
// covers CompressionNone and incompressible data.
const blockHeaderSize = 8

func storedBlock(data []byte) []byte {
	result := make([]byte, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data))) //nolint:gosec
	binary.LittleEndian.PutUint32(result[4:], 0)
	copy(result[blockHeaderSize:], data)
	return result
}

// compressBlock compresses a block using the specified algorithm. The result
// always carries a block header, so readers need no out-of-band framing.
func compressBlock(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == CompressionNone {
		return storedBlock(data), nil
	}

	var compressed []byte
	var err error

	switch compressionType {
	case CompressionLZ4:
		compressed, err = compressBlockLZ4(data)
	case CompressionZSTD:
		compressed, err = compressBlockZSTD(data)
	default:
		return storedBlock(data), nil
	}

	if err != nil {
		return nil, err
	}

	// If compression doesn't help (ratio > 0.9), store verbatim.
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		return storedBlock(data), nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))       //nolint:gosec
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed))) //nolint:gosec
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

// compressBlockLZ4 compresses data using LZ4.
func compressBlockLZ4(data []byte) ([]byte, error) {
	maxCompressedSize := lz4.CompressBlockBound(len(data))
	compressed := make([]byte, maxCompressedSize)

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, nil // Incompressible
	}

	return compressed[:n], nil
}

// compressBlockZSTD compresses data using ZSTD.
func compressBlockZSTD(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil), nil
}

// blockWriter splits a stream into fixed-size blocks and compresses each one.
type blockWriter struct {
	w               io.Writer
	compressionType CompressionType
	blockSize       int
	buffer          *bytes.Buffer
	written         int64
}

// newBlockWriter creates a block-compressing writer. blockSize <= 0 selects
// the 256KB default.
func newBlockWriter(w io.Writer, compressionType CompressionType, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = 256 * 1024
	}
	return &blockWriter{
		w:               w,
		compressionType: compressionType,
		blockSize:       blockSize,
		buffer:          bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

// Write writes data to the buffer, flushing blocks as needed.
func (c *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := c.blockSize - c.buffer.Len()
		if space <= 0 {
			if err := c.flushBlock(); err != nil {
				return total, err
			}
			space = c.blockSize
		}

		toWrite := len(p)
		if toWrite > space {
			toWrite = space
		}

		n, err := c.buffer.Write(p[:toWrite])
		if err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

// flushBlock compresses and writes the current block.
func (c *blockWriter) flushBlock() error {
	if c.buffer.Len() == 0 {
		return nil
	}

	compressed, err := compressBlock(c.buffer.Bytes(), c.compressionType)
	if err != nil {
		return err
	}

	n, err := c.w.Write(compressed)
	if err != nil {
		return err
	}
	c.written += int64(n)
	c.buffer.Reset()
	return nil
}

// Flush writes any remaining buffered data.
func (c *blockWriter) Flush() error {
	return c.flushBlock()
}

// BytesWritten returns the total compressed bytes written.
func (c *blockWriter) BytesWritten() int64 {
	return c.written
}

// blockReader iterates the blocks of a compressed section.
type blockReader struct {
	data            []byte
	offset          int
	compressionType CompressionType
}

func newBlockReader(data []byte, compressionType CompressionType) *blockReader {
	return &blockReader{
		data:            data,
		compressionType: compressionType,
	}
}

// readBlock reads and decompresses the next block.
func (c *blockReader) readBlock() ([]byte, error) {
	if c.offset >= len(c.data) {
		return nil, io.EOF
	}
	if c.offset+blockHeaderSize > len(c.data) {
		return nil, errors.New("block too small for header")
	}

	uncompressedSize := int(binary.LittleEndian.Uint32(c.data[c.offset:]))
	compressedSize := int(binary.LittleEndian.Uint32(c.data[c.offset+4:]))

	if compressedSize == 0 {
		// Stored block
		if c.offset+blockHeaderSize+uncompressedSize > len(c.data) {
			return nil, errors.New("block extends beyond data")
		}
		block := c.data[c.offset+blockHeaderSize : c.offset+blockHeaderSize+uncompressedSize]
		c.offset += blockHeaderSize + uncompressedSize
		return block, nil
	}

	if c.offset+blockHeaderSize+compressedSize > len(c.data) {
		return nil, errors.New("compressed block extends beyond data")
	}

	compressedData := c.data[c.offset+blockHeaderSize : c.offset+blockHeaderSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch c.compressionType {
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressedData, result[:0])
		if err != nil {
			return nil, err
		}
		if len(decoded) != uncompressedSize {
			return nil, errors.New("decompressed size mismatch")
		}
		c.offset += blockHeaderSize + compressedSize
		return decoded, nil

	default: // LZ4
		n, err := lz4.UncompressBlock(compressedData, result)
		if err != nil {
			return nil, err
		}
		if n != uncompressedSize {
			return nil, errors.New("decompressed size mismatch")
		}
		c.offset += blockHeaderSize + compressedSize
		return result, nil
	}
}

// decompressAll reads all blocks of a section and returns the concatenated
// uncompressed data.
func decompressAll(data []byte, compressionType CompressionType) ([]byte, error) {
	reader := newBlockReader(data, compressionType)
	var result []byte

	for {
		block, err := reader.readBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		result = append(result, block...)
	}

	return result, nil
}
