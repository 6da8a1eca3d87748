package http

import (
	"bytes"
	"mycurl/application/util/rule"
	"strconv"

	"github.com/pkg/errors"
)

// HeaderDelim terminates a response header block.
var HeaderDelim = []byte("\r\n\r\n")

// ResponseHeader is the raw header block of a response,
// including status line and the terminating empty line.
// Fields are looked up lazily from the raw bytes.
type ResponseHeader struct {
	Raw []byte
}

var (
	contentLengthNeedle = []byte(HeaderContentLength + ": ")
	chunkedNeedle       = []byte(HeaderTransferEncoding + ": chunked")
)

var ErrContentLengthOverflow = errors.New("content length overflows")

// ContentLength finds "Content-Length: " and parses the decimal digits right after it.
// Parsing stops at the first non-digit, so a value without digits is read as zero.
func (h ResponseHeader) ContentLength() (n uint, found bool, err error) {
	idx := bytes.Index(h.Raw, contentLengthNeedle)
	if idx < 0 {
		return 0, false, nil
	}

	digits := h.Raw[idx+len(contentLengthNeedle):]
	end := 0
	for end < len(digits) && rule.IsDigit(rune(digits[end])) {
		end++
	}
	if end == 0 {
		return 0, true, nil
	}

	v, err := strconv.ParseUint(string(digits[:end]), 10, strconv.IntSize)
	if err != nil {
		return 0, true, errors.Wrapf(ErrContentLengthOverflow, "%s", digits[:end])
	}

	return uint(v), true, nil
}

// Chunked reports whether "Transfer-Encoding: chunked" is present.
func (h ResponseHeader) Chunked() bool {
	return bytes.Contains(h.Raw, chunkedNeedle)
}

type StatusLine struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string
}

var ErrMalformedStatusLine = errors.New("status line is malformed")

func (h ResponseHeader) StatusLine() (StatusLine, error) {
	line, _, found := bytes.Cut(h.Raw, rule.CRLF)
	if !found {
		return StatusLine{}, ErrMalformedStatusLine
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return StatusLine{}, errors.Wrap(ErrMalformedStatusLine, err.Error())
	}

	return parsed, nil
}

func parseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 2 {
		return StatusLine{}, errors.New("status line is malformed")
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(err, "parsing version")
	}

	statusCodeStr := string(parts[1])
	statusCode, err := strconv.ParseUint(statusCodeStr, 10, 64)
	if err != nil || len(statusCodeStr) != 3 {
		return StatusLine{}, errors.Errorf("status code is malformed: %q", statusCodeStr)
	}

	// reason-phrase is optional.
	reasonPhrase := ""
	if len(parts) == 3 {
		reasonPhrase = string(parts[2])
	}

	return StatusLine{Version: ver, StatusCode: uint(statusCode), ReasonPhrase: reasonPhrase}, nil
}

func (s StatusLine) String() string {
	return s.Version.String() + " " + strconv.FormatUint(uint64(s.StatusCode), 10) + " " + s.ReasonPhrase
}

// Fields parses the field lines following the status line.
func (h ResponseHeader) Fields() ([]Field, error) {
	raw := bytes.TrimSuffix(h.Raw, HeaderDelim)

	lines := bytes.Split(raw, rule.CRLF)
	if len(lines) == 0 {
		return nil, nil
	}

	fields := make([]Field, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}

		field, err := ParseField(line)
		if err != nil {
			return nil, errors.Wrap(err, "parsing field")
		}
		fields = append(fields, field)
	}

	return fields, nil
}

func (h ResponseHeader) String() string { return string(h.Raw) }
