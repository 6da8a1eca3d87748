package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mycurl/application/http"
	"mycurl/application/util/domain"
	"mycurl/transport"
	"mycurl/transport/pipe"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// trackingDialer records how many connections were open at once.
type trackingDialer struct {
	transport.ConnDialer
	open    atomic.Int32
	maxOpen atomic.Int32
}

func (d *trackingDialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	conn, err := d.ConnDialer.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	n := d.open.Add(1)
	for {
		m := d.maxOpen.Load()
		if n <= m || d.maxOpen.CompareAndSwap(m, n) {
			break
		}
	}

	return &trackedConn{Conn: conn, d: d}, nil
}

type trackedConn struct {
	transport.Conn
	d    *trackingDialer
	once sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(func() { c.d.open.Add(-1) })
	return c.Conn.Close()
}

type LoopTestSuite struct {
	suite.Suite

	transport *pipe.PipeTransport
	lookuper  domain.Lookuper
	listeners []transport.ConnListener
	wg        sync.WaitGroup

	dialer *trackingDialer

	client *Client
	logger *slog.Logger
}

func TestLoopTestSuite(t *testing.T) {
	suite.Run(t, new(LoopTestSuite))
}

func (s *LoopTestSuite) SetupTest() {
	clk := clock.NewMock()
	s.transport = pipe.NewPipeTransport(clk)
	s.logger = slog.New(slog.DiscardHandler)
	s.listeners = nil
	s.dialer = &trackingDialer{ConnDialer: s.transport}

	addrs := make(map[string][]netip.Addr)
	for i := range 3 {
		host := fmt.Sprintf("host%d.test", i)
		ip := netip.AddrFrom4([4]byte{10, 0, 0, byte(i + 1)})
		addrs[host] = []netip.Addr{ip}

		lis, err := s.transport.Listen(pipeAddr(ip, DefaultPort))
		s.Require().NoError(err)
		s.listeners = append(s.listeners, lis)
	}
	s.lookuper = domain.NewMapLookuper(addrs)

	s.client = New(s.dialer, s.lookuper, s.logger, clk, DefaultOptions)
	s.client.combineAddr = func(ip netip.Addr, port uint16) transport.Addr {
		return pipeAddr(ip, port)
	}
}

func (s *LoopTestSuite) TearDownTest() {
	for _, lis := range s.listeners {
		s.NoError(lis.Close())
	}
	s.wg.Wait()
	goleak.VerifyNone(s.T())
}

// serve answers one request on each listener with its host name as body.
func (s *LoopTestSuite) serve() {
	for i, lis := range s.listeners {
		body := fmt.Sprintf("host%d.test", i)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			conn, err := lis.Accept(context.Background())
			if err != nil {
				return // closed without being dialed.
			}
			defer conn.Close()

			request := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nUser-Agent: mycurl/1.0\r\n\r\n", body)
			_, err = io.ReadFull(conn, make([]byte, len(request)))
			s.NoError(err)

			response := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
			_, _ = conn.Write([]byte(response))
		}()
	}
}

func (s *LoopTestSuite) prepare(host string) *Exchange {
	ex, err := s.client.Prepare(Target{Host: host}, http.MethodGet, nil)
	s.Require().NoError(err)
	return ex
}

func (s *LoopTestSuite) TestRunsAll() {
	s.serve()

	loop := NewLoop(LoopOptions{}, s.logger)

	var done atomic.Int32
	loop.OnDone(func(ex *Exchange) {
		s.True(ex.State().Terminal())
		done.Add(1)
	})

	var started []*Exchange
	for i := range 3 {
		ex := s.prepare(fmt.Sprintf("host%d.test", i))
		started = append(started, ex)
		loop.Go(context.Background(), ex)
	}

	exchanges := loop.Wait()
	s.Require().Equal(started, exchanges)
	s.Equal(int32(3), done.Load())

	for i, ex := range exchanges {
		s.Require().Equal(StateComplete, ex.State())
		s.Equal(fmt.Sprintf("host%d.test", i), string(ex.Result().Body))
	}
}

func (s *LoopTestSuite) TestFailureIsIsolated() {
	s.serve()

	loop := NewLoop(LoopOptions{}, s.logger)

	unknown := s.prepare("unknown.test")
	loop.Go(context.Background(), unknown)
	for i := range 3 {
		loop.Go(context.Background(), s.prepare(fmt.Sprintf("host%d.test", i)))
	}

	exchanges := loop.Wait()
	s.Require().Len(exchanges, 4)

	s.Equal(StateFailed, unknown.State())
	s.Equal(KindResolution, KindOf(unknown.Err()))
	for _, ex := range exchanges[1:] {
		s.Equal(StateComplete, ex.State())
	}
}

func (s *LoopTestSuite) TestMaxConcurrent() {
	s.serve()

	loop := NewLoop(LoopOptions{MaxConcurrent: 1}, s.logger)
	for i := range 3 {
		loop.Go(context.Background(), s.prepare(fmt.Sprintf("host%d.test", i)))
	}

	for _, ex := range loop.Wait() {
		s.Equal(StateComplete, ex.State())
	}
	s.Equal(int32(1), s.dialer.maxOpen.Load())
}

func (s *LoopTestSuite) TestStartRate() {
	s.serve()

	loop := NewLoop(LoopOptions{StartRate: 1000, StartBurst: 1}, s.logger)
	for i := range 3 {
		loop.Go(context.Background(), s.prepare(fmt.Sprintf("host%d.test", i)))
	}

	for _, ex := range loop.Wait() {
		s.Equal(StateComplete, ex.State())
	}
}

func (s *LoopTestSuite) TestCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(LoopOptions{MaxConcurrent: 1, StartRate: 1}, s.logger)
	for i := range 3 {
		loop.Go(ctx, s.prepare(fmt.Sprintf("host%d.test", i)))
	}

	for _, ex := range loop.Wait() {
		s.Equal(StateFailed, ex.State())
		s.ErrorIs(ex.Err(), context.Canceled)
	}
}

func (s *LoopTestSuite) TestWaitWithoutExchanges() {
	loop := NewLoop(LoopOptions{}, s.logger)
	s.Empty(loop.Wait())
}
