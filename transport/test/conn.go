// Package test holds a conformance suite for [transport.Conn] implementations.
//
// The suite checks what an exchange relies on: bytes arrive in order and whole,
// Close unblocks pending I/O on both ends, and deadlines fail I/O with
// [transport.ErrDeadLineExceeded].
package test

import (
	"bytes"
	"io"
	iolib "mycurl/lib/io"
	"mycurl/transport"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// ConnTestSuite is embedded by suites of concrete conns.
// Their SetupTest must call this one, set NewPair and then C1, C2 from it.
type ConnTestSuite struct {
	suite.Suite
	C1, C2  transport.Conn
	Clock   clock.Clock
	NewPair func() (transport.Conn, transport.Conn)

	watchdog *time.Timer
}

// blockWait bounds how long a blocking call may take before the test fails.
const blockWait = time.Second

func (s *ConnTestSuite) SetupTest() {
	s.Clock = clock.New()
	s.watchdog = time.AfterFunc(5*blockWait, func() { s.Fail("test did not finish in time") })
}

func (s *ConnTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())
	s.watchdog.Stop()
	s.NoError(s.C1.Close())
	s.NoError(s.C2.Close())
}

// within runs f and fails unless it returns in time.
func (s *ConnTestSuite) within(f func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()

	select {
	case <-done:
	case <-time.After(blockWait):
		s.Fail("blocked for too long")
		<-done
	}
}

func (s *ConnTestSuite) TestRequestResponse() {
	request := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	response := [][]byte{
		[]byte("HTTP/1.1 200 OK\r\nCont"),
		[]byte("ent-Length: 3\r\n\r\nab"),
		[]byte("c"),
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()

		got := make([]byte, len(request))
		_, err := io.ReadFull(s.C2, got)
		s.NoError(err)
		s.Equal(request, got)

		for _, segment := range response {
			_, err := iolib.WriteFull(s.C2, segment)
			s.NoError(err)
		}
	}()

	n, err := iolib.WriteFull(s.C1, request)
	s.Require().NoError(err)
	s.Equal(uint(len(request)), n)

	r := iolib.NewUntilReader(s.C1)
	header, err := r.ReadUntil([]byte("\r\n\r\n"))
	s.Require().NoError(err)
	s.Equal("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\n", string(header))

	body := make([]byte, 3)
	_, err = io.ReadFull(r, body)
	s.Require().NoError(err)
	s.Equal("abc", string(body))
}

func (s *ConnTestSuite) TestConcurrentWritesKeepOrder() {
	data := []byte("ABCD")
	n := 10

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()

		var ww sync.WaitGroup
		for range n {
			ww.Add(1)
			go func() {
				defer ww.Done()
				_, err := s.C1.Write(data)
				s.NoError(err)
			}()
		}
		ww.Wait()
		s.NoError(s.C1.Close())
	}()

	var got []byte
	b := make([]byte, 3)
	for {
		m, err := s.C2.Read(b)
		got = append(got, b[:m]...)
		if err != nil {
			s.ErrorIs(err, transport.ErrConnClosed)
			break
		}
	}

	// Writes may be ordered any way, but never interleave.
	s.Equal(bytes.Repeat(data, n), got)
}

func (s *ConnTestSuite) TestCloseUnblocks() {
	testcases := []struct {
		desc  string
		op    func(c1 transport.Conn) error
		close func(c1, c2 transport.Conn) error
	}{
		{
			desc:  "read closed locally",
			op:    func(c1 transport.Conn) error { _, err := c1.Read(make([]byte, 1)); return err },
			close: func(c1, _ transport.Conn) error { return c1.Close() },
		},
		{
			desc:  "read closed by peer",
			op:    func(c1 transport.Conn) error { _, err := c1.Read(make([]byte, 1)); return err },
			close: func(_, c2 transport.Conn) error { return c2.Close() },
		},
		{
			desc:  "write closed locally",
			op:    func(c1 transport.Conn) error { _, err := c1.Write([]byte("hey")); return err },
			close: func(c1, _ transport.Conn) error { return c1.Close() },
		},
		{
			desc:  "write closed by peer",
			op:    func(c1 transport.Conn) error { _, err := c1.Write([]byte("hey")); return err },
			close: func(_, c2 transport.Conn) error { return c2.Close() },
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			c1, c2 := s.NewPair()
			defer func() {
				s.NoError(c1.Close())
				s.NoError(c2.Close())
			}()

			errc := make(chan error, 1)
			go func() { errc <- tc.op(c1) }()

			// Give op time to block.
			time.Sleep(20 * time.Millisecond)
			s.Require().NoError(tc.close(c1, c2))

			s.within(func() { s.ErrorIs(<-errc, transport.ErrConnClosed) })
		})
	}
}

func (s *ConnTestSuite) TestClosedConnFails() {
	s.Require().NoError(s.C1.Close())

	for _, c := range []transport.Conn{s.C1, s.C2} {
		n, err := c.Read(make([]byte, 1))
		s.ErrorIs(err, transport.ErrConnClosed)
		s.Zero(n)

		n, err = c.Write([]byte("x"))
		s.ErrorIs(err, transport.ErrConnClosed)
		s.Zero(n)
	}
}

func (s *ConnTestSuite) TestReadDeadLine() {
	s.C1.SetReadDeadLine(s.Clock.Now().Add(-time.Second))

	n, err := s.C1.Read(make([]byte, 1))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
	s.Zero(n)

	// Zero time lifts the deadline.
	s.C1.SetReadDeadLine(time.Time{})
	go func() { _, _ = s.C2.Write([]byte("x")) }()
	s.within(func() {
		n, err := s.C1.Read(make([]byte, 1))
		s.NoError(err)
		s.Equal(1, n)
	})
}

func (s *ConnTestSuite) TestReadDeadLineFires() {
	s.C1.SetReadDeadLine(s.Clock.Now().Add(30 * time.Millisecond))

	s.within(func() {
		_, err := s.C1.Read(make([]byte, 1))
		s.ErrorIs(err, transport.ErrDeadLineExceeded)
	})
}

func (s *ConnTestSuite) TestWriteDeadLine() {
	s.C1.SetWriteDeadLine(s.Clock.Now().Add(-time.Second))

	n, err := s.C1.Write([]byte("x"))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
	s.Zero(n)
}
