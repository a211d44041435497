package api

import (
	"bytes"
	"encoding/json"
	"sync"
)

// Request bodies carry whole chapters and drafts; pooled buffers keep them off the heap between calls.
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// Buffers that grew past this are left for the GC
const maxPooledBufferSize = 256 * 1024

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxPooledBufferSize {
		bufferPool.Put(buf)
	}
}

// encodeBody JSON-encodes v into a pooled buffer; the caller must putBuffer it
func encodeBody(v any) (*bytes.Buffer, error) {
	buf := getBuffer()
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		putBuffer(buf)
		return nil, err
	}
	return buf, nil
}
