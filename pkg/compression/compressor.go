// Package compression wraps report and snapshot streams in a compression
// codec chosen by name or file extension.
//
// # Basic Usage
//
//	f, _ := os.Create("bench.json.zst")
//	w, err := compression.NewWriter(f, compression.ForPath(f.Name()), compression.Default)
//	json.MarshalToWriter(w, result, "  ")
//	w.Close() // flushes the codec, not f
//
// Readers are symmetric:
//
//	r, err := compression.NewReader(f, compression.Zstd)
package compression

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/objpool/pkg/poolerrors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None writes the stream unchanged
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var extensions = map[string]Algorithm{
	".gz":     Gzip,
	".sz":     Snappy,
	".snappy": Snappy,
	".lz4":    LZ4,
	".zst":    Zstd,
	".s2":     S2,
}

// ForPath picks the algorithm from the file extension; unknown extensions
// map to None.
func ForPath(path string) Algorithm {
	if alg, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return alg
	}
	return None
}

// Parse resolves an algorithm name.
func Parse(name string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(name)); alg {
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return alg, nil
	case "":
		return None, nil
	}
	return "", poolerrors.New(poolerrors.ErrorTypeValidation, "unknown compression algorithm").
		WithDetail("algorithm", name)
}

// NewWriter returns a writer compressing into dst. Close flushes the codec
// but leaves dst open.
func NewWriter(dst io.Writer, alg Algorithm, level Level) (io.WriteCloser, error) {
	switch alg {
	case None, "":
		return nopCloser{dst}, nil
	case Gzip:
		return gzip.NewWriterLevel(dst, mapGzipLevel(level))
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to configure lz4")
		}
		return w, nil
	case Zstd:
		w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to create zstd encoder")
		}
		return w, nil
	case S2:
		opts := []s2.WriterOption{}
		if level >= Better {
			opts = append(opts, s2.WriterBetterCompression())
		}
		return s2.NewWriter(dst, opts...), nil
	}
	return nil, poolerrors.New(poolerrors.ErrorTypeValidation, "unknown compression algorithm").
		WithDetail("algorithm", string(alg))
}

// NewReader returns a reader decompressing src.
func NewReader(src io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(src), nil
	case Gzip:
		return gzip.NewReader(src)
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case Zstd:
		d, err := zstd.NewReader(src)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to create zstd decoder")
		}
		return d.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	}
	return nil, poolerrors.New(poolerrors.ErrorTypeValidation, "unknown compression algorithm").
		WithDetail("algorithm", string(alg))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
