package http

import (
	"strconv"

	"github.com/pkg/errors"
)

// Framing tells how the length of a response body is determined.
// It is either [FixedLength] or [Chunked].
type Framing interface {
	framing()
	String() string
}

// FixedLength body is exactly N bytes, as declared by Content-Length.
type FixedLength struct{ N uint }

// Chunked body is delimited by a zero length chunk.
type Chunked struct{}

func (FixedLength) framing() {}
func (Chunked) framing()     {}

func (f FixedLength) String() string { return "fixed-length(" + strconv.FormatUint(uint64(f.N), 10) + ")" }
func (Chunked) String() string       { return "chunked" }

var ErrUnknownBodyLength = errors.New("unknown body length")

// FramingOf picks the framing of a response.
// Content-Length wins; Transfer-Encoding is only looked at when it is absent.
func FramingOf(h ResponseHeader) (Framing, error) {
	n, found, err := h.ContentLength()
	if err != nil {
		return nil, err
	}
	if found {
		return FixedLength{N: n}, nil
	}

	if h.Chunked() {
		return Chunked{}, nil
	}

	return nil, ErrUnknownBodyLength
}
