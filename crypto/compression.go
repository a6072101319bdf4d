package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
)

// maxDecompressedSize bounds inflated payloads. Memos are tiny; anything larger is hostile.
const maxDecompressedSize = 1 << 20

var gzipMagic = []byte{0x1f, 0x8b}

// Compress gzips data at maximum compression.
func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("message is required")
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish compression: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates gzip data.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(out) > maxDecompressedSize {
		return nil, errors.New("decompression failed: payload too large")
	}

	return out, nil
}

// IsCompressed reports whether data carries the gzip header.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}

// OpenPayload turns opened box contents into plaintext. Current senders gzip
// before sealing; older ones sealed raw UTF-8.
func OpenPayload(opened []byte) ([]byte, error) {
	if IsCompressed(opened) {
		return Decompress(opened)
	}
	if !utf8.Valid(opened) {
		return nil, errors.New("payload is not valid UTF-8")
	}
	return opened, nil
}
