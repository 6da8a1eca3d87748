package http

import (
	"bytes"
	"mycurl/application/util/rule"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

const DefaultUserAgent = "mycurl/1.0"

const (
	HeaderHost             = "Host"
	HeaderUserAgent        = "User-Agent"
	HeaderContentLength    = "Content-Length"
	HeaderTransferEncoding = "Transfer-Encoding"
)

type Request struct {
	Method  string
	Target  string
	Version Version
	Headers Headers

	Body []byte
}

var (
	ErrInvalidMethod    = errors.New("method is not a valid token")
	ErrBodyNotAllowed   = errors.New("body is only sent with POST")
	ErrInvalidFieldText = errors.New("field contains line break")
)

// NewRequest builds a request for path on host.
// Host and User-Agent are always set. POST also gets Content-Length of body.
// Empty method means GET, empty userAgent means [DefaultUserAgent].
func NewRequest(host, path, method string, body []byte, userAgent string) (Request, error) {
	if method == "" {
		method = MethodGet
	}
	if !rule.IsValidToken(method) {
		return Request{}, errors.Wrapf(ErrInvalidMethod, "method %q", method)
	}
	if method != MethodPost && len(body) > 0 {
		return Request{}, errors.Wrapf(ErrBodyNotAllowed, "method %s", method)
	}

	if path == "" {
		path = "/"
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	req := Request{
		Method:  method,
		Target:  path,
		Version: Version11,
		Body:    body,
	}

	req.Headers.Set(HeaderHost, host)
	req.Headers.Set(HeaderUserAgent, userAgent)
	if method == MethodPost {
		req.Headers.Set(HeaderContentLength, strconv.Itoa(len(body)))
	}

	return req, nil
}

// Trailer is what gets written after a POST body.
type Trailer uint8

const (
	// TrailerLegacy writes CRLF CRLF after the body.
	// It is not part of RFC 9112 but servers have been fed it by this client.
	TrailerLegacy Trailer = iota
	TrailerCRLF
	TrailerNone
)

func ParseTrailer(s string) (Trailer, error) {
	switch strings.ToLower(s) {
	case "", "legacy":
		return TrailerLegacy, nil
	case "crlf":
		return TrailerCRLF, nil
	case "none":
		return TrailerNone, nil
	}
	return 0, errors.Errorf("unknown post trailer %q", s)
}

func (t Trailer) String() string {
	switch t {
	case TrailerLegacy:
		return "legacy"
	case TrailerCRLF:
		return "crlf"
	case TrailerNone:
		return "none"
	}
	return "unknown"
}

func (t Trailer) bytes() []byte {
	switch t {
	case TrailerLegacy:
		return []byte("\r\n\r\n")
	case TrailerCRLF:
		return rule.CRLF
	}
	return nil
}

type EncodeOptions struct {
	PostTrailer Trailer
}

var DefaultEncodeOptions = EncodeOptions{
	PostTrailer: TrailerLegacy,
}

// RequestEncoder serializes a request into a single buffer,
// so that it can be written in one operation.
type RequestEncoder struct {
	buf  *bytes.Buffer
	opts EncodeOptions
}

func NewRequestEncoder(opts EncodeOptions) *RequestEncoder {
	return &RequestEncoder{buf: bytes.NewBuffer(nil), opts: opts}
}

func (re *RequestEncoder) writeLine(line []byte) {
	re.buf.Write(line)
	re.buf.Write(rule.CRLF)
}

func (re *RequestEncoder) Encode(request Request) ([]byte, error) {
	re.buf.Reset()

	if strings.ContainsAny(request.Target, "\r\n ") {
		return nil, errors.Errorf("request target is malformed: %q", request.Target)
	}

	re.encodeRequestLine(request)

	// Header order is not meaningful in HTTP/1.1, sort for a reproducible output.
	for _, field := range request.Headers.Sorted() {
		if strings.ContainsAny(field.Name, "\r\n:") || strings.ContainsAny(field.Value, "\r\n") {
			return nil, errors.Wrapf(ErrInvalidFieldText, "field %q", field.Name)
		}
		re.writeLine(field.Text())
	}

	// Write a empty line as all the headers are written.
	re.writeLine(nil)

	if request.Method == MethodPost {
		re.buf.Write(request.Body)
		re.buf.Write(re.opts.PostTrailer.bytes())
	}

	return bytes.Clone(re.buf.Bytes()), nil
}

func (re *RequestEncoder) encodeRequestLine(request Request) {
	line := make([]byte, 0, len(request.Method)+len(request.Target)+10)
	line = append(line, request.Method...)
	line = append(line, rule.SP)
	line = append(line, request.Target...)
	line = append(line, rule.SP)
	line = append(line, request.Version.Text()...)

	re.writeLine(line)
}
