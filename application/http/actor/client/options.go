package client

import (
	"mycurl/application/http"
	"time"

	"golang.org/x/time/rate"
)

type Options struct {
	Send    SendOptions
	Receive ReceiveOptions
	Timeout TimeoutOptions
	Loop    LoopOptions

	// UserAgent overrides [http.DefaultUserAgent].
	UserAgent string
}

type SendOptions struct {
	Encode http.EncodeOptions
}

type ReceiveOptions struct {
	// MaxHeaderBytes bounds the bytes read while looking for the end of header.
	// Zero means [DefaultMaxHeaderBytes].
	MaxHeaderBytes uint

	// MaxBodyBytes bounds the size of a body. Zero means no limit.
	MaxBodyBytes uint

	// SingleChunkRead reads a chunked body with one read up to CRLF CRLF
	// instead of decoding chunks until the last one.
	// The result is the raw chunked bytes of, usually, the first chunk only.
	SingleChunkRead bool
}

const DefaultMaxHeaderBytes = 64 << 10

func (o ReceiveOptions) maxHeaderBytes() uint {
	if o.MaxHeaderBytes == 0 {
		return DefaultMaxHeaderBytes
	}
	return o.MaxHeaderBytes
}

// TimeoutOptions sets a deadline for each step of an exchange.
// Zero means no deadline.
type TimeoutOptions struct {
	Resolve time.Duration
	Connect time.Duration
	Write   time.Duration
	Read    time.Duration
}

type LoopOptions struct {
	// MaxConcurrent caps the exchanges in flight. Zero means no cap.
	MaxConcurrent int64

	// StartRate limits how many exchanges start per second. Zero means no limit.
	StartRate  rate.Limit
	StartBurst int
}

var DefaultOptions = Options{
	Send: SendOptions{
		Encode: http.DefaultEncodeOptions,
	},
	Receive: ReceiveOptions{
		MaxHeaderBytes: DefaultMaxHeaderBytes,
	},
	Timeout: TimeoutOptions{
		Resolve: 10 * time.Second,
		Connect: 10 * time.Second,
		Write:   30 * time.Second,
		Read:    30 * time.Second,
	},
}
