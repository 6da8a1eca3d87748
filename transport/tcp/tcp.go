// Package tcp dials TCP connections through the operating system's sockets
// and exposes them as [transport.Conn].
package tcp

import (
	"context"
	"io"
	"mycurl/transport"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

type Addr struct {
	ip   netip.Addr
	port uint16
}

var _ transport.Addr = Addr{}

func NewAddr(ip netip.Addr, port uint16) Addr {
	return Addr{ip: ip, port: port}
}

func AddrFromNet(addr net.Addr) Addr {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		ap := tcpAddr.AddrPort()
		return Addr{ip: ap.Addr().Unmap(), port: ap.Port()}
	}
	return Addr{}
}

func (a Addr) IP() netip.Addr            { return a.ip }
func (a Addr) Port() uint16              { return a.port }
func (a Addr) Identifier() any           { return a.port }
func (a Addr) String() string            { return a.AddrPort().String() }
func (a Addr) AddrPort() netip.AddrPort { return netip.AddrPortFrom(a.ip, a.port) }

// Dialer opens TCP connections to [Addr]s.
type Dialer struct {
	d net.Dialer
}

var _ transport.ConnDialer = (*Dialer)(nil)

func NewDialer() *Dialer { return &Dialer{} }

func (d *Dialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	tcpAddr, ok := addr.(Addr)
	if !ok {
		return nil, errors.Errorf("not a tcp address: %s", addr)
	}

	c, err := d.d.DialContext(ctx, string(transport.TCP), tcpAddr.String())
	if err != nil {
		return nil, convertErr(err)
	}

	if tc, ok := c.(*net.TCPConn); ok {
		// Request is written in one go, no need to wait for more.
		if err := tc.SetNoDelay(true); err != nil {
			c.Close()
			return nil, errors.Wrap(err, "setting TCP_NODELAY")
		}
	}

	return &conn{c: c}, nil
}

type conn struct {
	c net.Conn
}

var _ transport.Conn = (*conn)(nil)

func (c *conn) Read(p []byte) (n int, err error) {
	n, err = c.c.Read(p)
	return n, convertErr(err)
}

func (c *conn) Write(p []byte) (n int, err error) {
	n, err = c.c.Write(p)
	return n, convertErr(err)
}

func (c *conn) Close() error { return c.c.Close() }

func (c *conn) LocalAddr() transport.Addr  { return AddrFromNet(c.c.LocalAddr()) }
func (c *conn) RemoteAddr() transport.Addr { return AddrFromNet(c.c.RemoteAddr()) }

func (c *conn) SetReadDeadLine(t time.Time)  { _ = c.c.SetReadDeadline(t) }
func (c *conn) SetWriteDeadLine(t time.Time) { _ = c.c.SetWriteDeadline(t) }

// convertErr maps socket errors onto transport errors.
// The socket error is kept as the cause.
func convertErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return &wrapped{sentinel: transport.ErrConnClosed, cause: err}
	case errors.Is(err, os.ErrDeadlineExceeded):
		return &wrapped{sentinel: transport.ErrDeadLineExceeded, cause: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &wrapped{sentinel: transport.ErrConnRefused, cause: err}
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return &wrapped{sentinel: transport.ErrNetUnreachable, cause: err}
	}
	return err
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w *wrapped) Error() string { return w.sentinel.Error() + ": " + w.cause.Error() }

func (w *wrapped) Is(target error) bool { return target == w.sentinel }

func (w *wrapped) Unwrap() error { return w.cause }
