package iolib

import "io"

// LimitReader returns a reader that reads at most n bytes from r and then reports io.EOF.
func LimitReader(r io.Reader, n uint) io.Reader { return &LimitedReader{R: r, N: n} }

// CapReader returns a reader that reads at most n bytes from r.
// Once n bytes are read, it reports err if r still has data and io.EOF otherwise.
func CapReader(r io.Reader, n uint, err error) io.Reader {
	return &LimitedReader{R: r, N: n, Exceeded: err}
}

// LimitedReader is [io.LimitedReader] with an unsigned limit.
type LimitedReader struct {
	R io.Reader
	N uint // bytes left

	// Exceeded, when set, is returned instead of io.EOF
	// if R has more than N bytes.
	Exceeded error
}

func (l *LimitedReader) Read(p []byte) (n int, err error) {
	if l.N == 0 {
		if l.Exceeded == nil || len(p) == 0 {
			return 0, io.EOF
		}
		return 0, l.probe()
	}
	if uint(len(p)) > l.N {
		p = p[:l.N]
	}
	n, err = l.R.Read(p)
	l.N -= uint(n)
	return
}

// maxEmptyReads bounds reads returning no data and no error.
const maxEmptyReads = 100

// probe reads one byte past the limit. The byte is dropped.
func (l *LimitedReader) probe() error {
	var b [1]byte
	for range maxEmptyReads {
		n, err := l.R.Read(b[:])
		switch {
		case n > 0:
			return l.Exceeded
		case err != nil:
			return err
		}
	}
	return io.ErrNoProgress
}
