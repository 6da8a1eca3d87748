package iolib

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteFull(t *testing.T) {
	data := []byte("Hello, World!")
	var buf bytes.Buffer

	written, err := WriteFull(&buf, data)
	assert.NoError(t, err)
	assert.Equal(t, uint(len(data)), written)
	assert.Equal(t, data, buf.Bytes())
}

type shortWriter struct {
	buf   bytes.Buffer
	chunk int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.chunk {
		p = p[:w.chunk]
	}
	return w.buf.Write(p)
}

func TestWriteFullShortWrites(t *testing.T) {
	data := []byte("GET / HTTP/1.1\r\n\r\n")
	w := &shortWriter{chunk: 3}

	written, err := WriteFull(w, data)
	assert.NoError(t, err)
	assert.Equal(t, uint(len(data)), written)
	assert.Equal(t, data, w.buf.Bytes())
}

func TestWriteFullZeroWrite(t *testing.T) {
	w := &shortWriter{chunk: 0}

	written, err := WriteFull(w, []byte("x"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Zero(t, written)
}
