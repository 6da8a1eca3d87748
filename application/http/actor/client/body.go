package client

import (
	"bytes"
	"io"
	"math"
	"mycurl/application/http"
	"mycurl/application/http/transfer"
	iolib "mycurl/lib/io"

	"github.com/pkg/errors"
)

// BodyReader reads a response body according to its framing.
// It reads until the body is complete instead of doing a single read,
// so bodies arriving in many segments are handled.
type BodyReader struct {
	r       *iolib.UntilReader
	framing http.Framing
	opts    ReceiveOptions

	trailers []http.Field
}

// NewBodyReader creates a reader of the body following a header read from r.
// Bytes r has buffered past the header are part of the body.
func NewBodyReader(r *iolib.UntilReader, framing http.Framing, opts ReceiveOptions) *BodyReader {
	return &BodyReader{r: r, framing: framing, opts: opts}
}

// remaining is how many bytes are left to read from the network
// for a body of n bytes with buffered bytes already at hand.
// It never goes below zero.
func remaining(n uint, buffered int) uint {
	if buffered < 0 || uint(buffered) >= n {
		return 0
	}
	return n - uint(buffered)
}

// Remaining returns bytes still to be read from the network for a fixed length body.
// It is zero for chunked bodies, whose length is not known upfront.
func (br *BodyReader) Remaining() uint {
	fixed, ok := br.framing.(http.FixedLength)
	if !ok {
		return 0
	}
	return remaining(fixed.N, br.r.Buffered())
}

// Trailers returns trailer fields of a chunked body, after [BodyReader.ReadAll].
func (br *BodyReader) Trailers() []http.Field { return br.trailers }

// ReadAll reads the whole body.
func (br *BodyReader) ReadAll() ([]byte, error) {
	switch f := br.framing.(type) {
	case http.FixedLength:
		return br.readFixed(f.N)
	case http.Chunked:
		if br.opts.SingleChunkRead {
			return br.readSingle()
		}
		return br.readChunked()
	}
	return nil, errors.Errorf("unsupported framing %v", br.framing)
}

// maxPrealloc bounds the buffer allocated upfront from a declared length.
const maxPrealloc = 64 << 10

func (br *BodyReader) readFixed(n uint) ([]byte, error) {
	if br.opts.MaxBodyBytes > 0 && n > br.opts.MaxBodyBytes {
		return nil, errors.Wrapf(ErrBodyTooLarge, "declared %d bytes, limit is %d", n, br.opts.MaxBodyBytes)
	}
	if uint64(n) > math.MaxInt64 {
		return nil, errors.Wrapf(ErrBodyTooLarge, "declared %d bytes", n)
	}

	// Buffered bytes are served first, so a body already at hand
	// is delivered without touching the network. Bytes past n are left alone.
	var buf bytes.Buffer
	buf.Grow(int(min(n, maxPrealloc)))
	if _, err := io.CopyN(&buf, br.r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "read %d of %d bytes", buf.Len(), n)
	}

	return buf.Bytes(), nil
}

func (br *BodyReader) readChunked() ([]byte, error) {
	cr := transfer.NewChunkedReader(br.r)
	cr.SetOnTrailerReceived(func(f []http.Field) { br.trailers = f })

	var r io.Reader = cr
	if br.opts.MaxBodyBytes > 0 {
		r = iolib.CapReader(cr, br.opts.MaxBodyBytes, ErrBodyTooLarge)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, errors.Wrapf(err, "limit is %d", br.opts.MaxBodyBytes)
		}
		return nil, errors.Wrap(err, "reading chunked body")
	}

	return body, nil
}

// readSingle reads up to the first CRLF CRLF and returns the raw bytes.
func (br *BodyReader) readSingle() ([]byte, error) {
	body, err := br.r.ReadUntilLimit(http.HeaderDelim, br.opts.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, io.EOF) && br.opts.MaxBodyBytes > 0 && uint(len(body)) >= br.opts.MaxBodyBytes {
			return nil, errors.Wrapf(ErrBodyTooLarge, "limit is %d", br.opts.MaxBodyBytes)
		}
		return nil, errors.Wrap(err, "reading body")
	}
	return body, nil
}
