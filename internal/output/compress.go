package output

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encodings supported for precompressed siblings, mapped to file suffix.
var Encodings = map[string]string{
	"gzip": ".gz",
	"zstd": ".zst",
}

// Compress encodes content for serving with a static Content-Encoding.
// The output is deterministic for identical input.
func Compress(encoding string, content []byte) ([]byte, error) {
	switch encoding {
	case "gzip":
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("failed to gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
		return buf.Bytes(), nil

	case "zstd":
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(content, make([]byte, 0, len(content))), nil

	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
