package util

import (
	"io"
	"strings"
	"testing"
)

// BenchmarkDrainChunks measures the per-chunk overhead of the drain loop
// that every run-mode session goes through.
func BenchmarkDrainChunks(b *testing.B) {
	chunk := strings.Repeat("X", 503)

	b.SetBytes(int64(len(chunk)) * 64)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		n := 0
		read := func() (string, error) {
			if n == 64 {
				return "", io.EOF
			}
			n++
			return chunk, nil
		}
		DrainChunks(read, io.Discard) //nolint:errcheck
	}
}

// BenchmarkBufPool measures the allocation advantage of sync.Pool
// buffer reuse versus fresh allocation.
func BenchmarkBufPool(b *testing.B) {
	b.Run("pool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := GetBuf(503)
			_ = (*buf)[0]
			PutBuf(buf)
		}
	})
	b.Run("alloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, DefaultBufSize)
			_ = buf[0]
		}
	})
}
