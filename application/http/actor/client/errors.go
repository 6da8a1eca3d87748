package client

import (
	"github.com/pkg/errors"
)

// Kind classifies why an exchange failed.
type Kind uint8

const (
	KindResolution Kind = iota + 1
	KindConnect
	KindSend
	KindRecvHeader
	KindRecvBody
	KindUnknownBodyLength
)

func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution error"
	case KindConnect:
		return "connect error"
	case KindSend:
		return "send error"
	case KindRecvHeader:
		return "receive header error"
	case KindRecvBody:
		return "receive body error"
	case KindUnknownBodyLength:
		return "unknown body length"
	}
	return "unknown error"
}

var (
	ErrNoAddress      = errors.New("no address resolved")
	ErrHeaderTooLarge = errors.New("header exceeds size limit")
	ErrBodyTooLarge   = errors.New("body exceeds size limit")
	ErrAlreadyStarted = errors.New("exchange already started")
)

// Error is the terminal failure of an exchange.
type Error struct {
	Kind Kind
	Host string
	Err  error // diagnostic from the failing collaborator
}

func (e *Error) Error() string {
	if e.Host == "" {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Host + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an exchange failure, or zero if err isn't one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
