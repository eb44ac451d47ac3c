// Package buffers provides reusable read buffers for streaming downloads.
package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/dropshare/dropget/internal/constants"
)

// Pool monitoring counters
var (
	readAllocations atomic.Int64 // Buffers created by the pool
	readGets        atomic.Int64 // Total GetReadBuffer calls
)

// readPool provides 64KiB buffers for body reads. Every in-flight fetch
// holds one for the duration of its copy loop.
var readPool = &sync.Pool{
	New: func() interface{} {
		readAllocations.Add(1)
		buf := make([]byte, constants.ReadChunkSize)
		return &buf
	},
}

// GetReadBuffer retrieves a ReadChunkSize buffer from the pool.
// The buffer must be returned with PutReadBuffer when done.
//
// Usage:
//
//	buf := buffers.GetReadBuffer()
//	defer buffers.PutReadBuffer(buf)
//	n, err := body.Read(*buf)
//	// Use (*buf)[:n] for actual data
func GetReadBuffer() *[]byte {
	readGets.Add(1)
	return readPool.Get().(*[]byte)
}

// PutReadBuffer returns a buffer to the pool for reuse.
// Only buffers of the correct size are pooled.
func PutReadBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.ReadChunkSize {
		readPool.Put(buf)
	}
}

// Stats holds buffer pool statistics
type Stats struct {
	ReadBufferSize  int   // Size of read buffers (bytes)
	ReadAllocations int64 // Buffers created
	ReadGets        int64 // Buffers handed out
}

// GetStats returns current buffer pool statistics
func GetStats() Stats {
	return Stats{
		ReadBufferSize:  constants.ReadChunkSize,
		ReadAllocations: readAllocations.Load(),
		ReadGets:        readGets.Load(),
	}
}
