package util

import "sync"

// bufPool holds DefaultBufSize read buffers shared by every session.
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf returns a buffer whose length is exactly size.  Sizes up to
// DefaultBufSize come from the shared pool; larger ones are allocated.
// Callers must hand the buffer back with [PutBuf].
func GetBuf(size int) *[]byte {
	if size > DefaultBufSize {
		buf := make([]byte, size)
		return &buf
	}
	buf := bufPool.Get().(*[]byte)
	*buf = (*buf)[:size]
	return buf
}

// PutBuf returns a buffer to the pool.  Oversized buffers and nil are
// dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) != DefaultBufSize {
		return
	}
	*buf = (*buf)[:DefaultBufSize]
	bufPool.Put(buf)
}
