package iolib

import (
	"bytes"
	"errors"
	"io"
)

// UntilReader is a reader which can read up to a delimiter.
// Bytes read past the delimiter are kept and served first by later reads.
type UntilReader struct {
	r io.Reader

	buf *bytes.Buffer
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r, buf: bytes.NewBuffer(nil)}
}

func (ur *UntilReader) Read(p []byte) (n int, err error) {
	if ur.buf.Len() > 0 {
		n, err = ur.buf.Read(p)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}

	return ur.r.Read(p)
}

// Buffered returns the number of bytes read past the last delimiter
// which are not consumed yet.
func (ur *UntilReader) Buffered() int { return ur.buf.Len() }

var ErrZeroLenDelim = errors.New("delim has zero length")

// ReadUntil reads until delim is found. The output includes delim.
// Delim may span over several reads of the underlying reader.
func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	// Delim might already be sitting on the buffer.
	if idx := bytes.Index(ur.buf.Bytes(), delim); idx >= 0 {
		return ur.cut(idx + len(delim)), nil
	}

	temp := make([]byte, 1024)
	for {
		// Only the tail which could hold a partial delim needs to be searched again.
		from := max(ur.buf.Len()-len(delim)+1, 0)

		n, err := ur.r.Read(temp)
		ur.buf.Write(temp[:n])

		if n > 0 {
			if idx := bytes.Index(ur.buf.Bytes()[from:], delim); idx >= 0 {
				return ur.cut(from + idx + len(delim)), nil
			}
		}

		if err != nil {
			// Underlying reader returned error before delim.
			b := bytes.Clone(ur.buf.Bytes())
			ur.buf.Reset()
			return b, err
		}
	}
}

// cut takes first n bytes from the buffer, leaving the rest.
func (ur *UntilReader) cut(n int) []byte {
	b := bytes.Clone(ur.buf.Next(n))
	if ur.buf.Len() == 0 {
		ur.buf.Reset()
	}
	return b
}

// ReadUntilLimit is [UntilReader.ReadUntil] but reads at most limit bytes
// from the underlying reader. Zero limit means no limit.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint) ([]byte, error) {
	if limit > 0 {
		r := ur.r
		ur.r = LimitReader(r, limit)
		defer func() { ur.r = r }() // restore underlying reader.
	}

	return ur.ReadUntil(delim)
}
