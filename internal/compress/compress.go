package compress

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// MaxExpansion is the worst-case DEFLATE expansion ratio (~1032:1). A
// payload of n compressed bytes can never legitimately inflate past
// n*MaxExpansion, so callers can derive a decompression bound from the
// compressed sizes they admit.
const MaxExpansion = 1032

// ErrTooLarge indicates decompressed data exceeds the caller's limit.
var ErrTooLarge = errors.New("compress: decompressed data exceeds maximum size")

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress, refusing output larger than maxSize
// bytes. The limit guards against corrupt or hostile input claiming an
// absurd inflated size; it must be sized so every legitimately stored
// payload passes.
func Decompress(data []byte, maxSize int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if int64(len(out)) > maxSize {
		return nil, ErrTooLarge
	}
	return out, nil
}
