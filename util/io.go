package util

import (
	"errors"
	"io"
	"os"
)

// DefaultBufSize is the size of pooled read buffers (64 KiB).  It is
// also the largest chunk a single session read may request.
const DefaultBufSize = 64 * 1024

// ChunkReader returns one decoded chunk of child output per call.  It
// reports io.EOF (possibly wrapped) once the stream is exhausted.
type ChunkReader func() (string, error)

// DrainChunks calls read until the stream ends, writing every chunk to
// w.  It returns the number of bytes written.  End of stream is not an
// error; any other failure is returned as-is.
func DrainChunks(read ChunkReader, w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := read()
		if err != nil {
			if isHarmless(err) {
				return total, nil
			}
			return total, err
		}
		n, werr := io.WriteString(w, chunk)
		total += int64(n)
		if werr != nil {
			return total, werr
		}
	}
}

// isHarmless returns true for errors that just mean the child is done.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
