package wal

import "sync"

// bufferPool recycles the scratch buffer Encode builds a frame's body in,
// avoiding an allocation per commit on the hot path.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, 8192)
		return &buf
	},
}

func AcquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func ReleaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
