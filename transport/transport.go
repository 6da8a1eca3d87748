package transport

type Protocol string

const (
	TCP Protocol = "tcp"
)

type Addr interface {
	Identifier() any // Extra identifier (e.g. port, pipe name)
	String() string
}
