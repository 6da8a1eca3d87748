package client

import (
	"log/slog"
	"mycurl/application/http"
	"mycurl/application/util/domain"
	"mycurl/transport"
	"mycurl/transport/tcp"
	"net"
	"net/netip"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Client holds what exchanges share: collaborators and options.
// It has no mutable state, so it can prepare exchanges concurrently.
type Client struct {
	opts Options

	logger *slog.Logger
	clock  clock.Clock

	lookuper   domain.Lookuper
	connDialer transport.ConnDialer

	combineAddr CombineAddrFunc
}

type CombineAddrFunc func(ip netip.Addr, port uint16) transport.Addr

func New(
	d transport.ConnDialer,
	lookuper domain.Lookuper,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	return &Client{
		connDialer: d,
		lookuper:   lookuper,
		logger:     logger,
		clock:      clock,
		opts:       opts,
		combineAddr: func(ip netip.Addr, port uint16) transport.Addr {
			return tcp.NewAddr(ip, port)
		},
	}
}

const DefaultPort = 80

// Target is where an exchange goes. The scheme is always http.
type Target struct {
	Host string
	Port uint16 // zero means DefaultPort
	Path string
}

func (t Target) port() uint16 {
	if t.Port == 0 {
		return DefaultPort
	}
	return t.Port
}

// Authority is the value of Host header. IPv6 literals are bracketed.
func (t Target) Authority() string {
	if t.port() == DefaultPort {
		if addr, err := netip.ParseAddr(t.Host); err == nil && addr.Is6() {
			return "[" + t.Host + "]"
		}
		return t.Host
	}
	return net.JoinHostPort(t.Host, strconv.FormatUint(uint64(t.port()), 10))
}

func (t Target) String() string { return t.Authority() + t.Path }

// Prepare builds the request and an exchange for it.
// Nothing happens on the network until [Exchange.Run].
func (c *Client) Prepare(target Target, method string, body []byte) (*Exchange, error) {
	if target.Host == "" {
		return nil, errors.New("target host is empty")
	}

	request, err := http.NewRequest(target.Authority(), target.Path, method, body, c.opts.UserAgent)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	id := uuid.New()

	ex := &Exchange{
		id:      id,
		target:  target,
		request: request,
		client:  c,
		encoder: http.NewRequestEncoder(c.opts.Send.Encode),
		logger:  c.logger.With(slog.String("exchange", id.String()), slog.String("host", target.Host)),
	}
	ex.state.Store(uint32(StateResolving))

	return ex, nil
}
