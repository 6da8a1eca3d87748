package client

import (
	"context"
	"io"
	"log/slog"
	"mycurl/application/http"
	iolib "mycurl/lib/io"
	"mycurl/transport"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Exchange is one request and its response over one connection.
// It moves through [State]s strictly forward, driven by [Exchange.Run].
type Exchange struct {
	id      uuid.UUID
	target  Target
	request http.Request

	client  *Client
	encoder *http.RequestEncoder
	logger  *slog.Logger

	started atomic.Bool
	state   atomic.Uint32

	// Below are only touched by the goroutine running the exchange.
	addr    transport.Addr
	conn    transport.Conn
	r       *iolib.UntilReader
	sent    uint
	header  http.ResponseHeader
	framing http.Framing

	stopInterrupt func() bool

	result *Result
	err    *Error
}

// Result of a complete exchange.
type Result struct {
	Addr      transport.Addr
	BytesSent uint

	Header  http.ResponseHeader
	Status  http.StatusLine // zero if the status line could not be parsed
	Framing http.Framing

	Body     []byte
	Trailers []http.Field
}

func (e *Exchange) ID() uuid.UUID         { return e.id }
func (e *Exchange) Target() Target        { return e.target }
func (e *Exchange) Request() http.Request { return e.request }
func (e *Exchange) State() State          { return State(e.state.Load()) }

// Result returns the result after the exchange completed, nil otherwise.
func (e *Exchange) Result() *Result {
	if e.State() != StateComplete {
		return nil
	}
	return e.result
}

// Err returns the failure after the exchange failed, nil otherwise.
func (e *Exchange) Err() error {
	if e.State() != StateFailed {
		return nil
	}
	return e.err
}

// Run drives the exchange until it completes or fails.
// ctx is checked before every step, and its cancellation interrupts pending I/O.
// An exchange runs once; its connection is closed when Run returns.
func (e *Exchange) Run(ctx context.Context) (*Result, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	defer e.closeConn()

	for !e.State().Terminal() {
		if err := ctx.Err(); err != nil {
			e.fail(e.State().failureKind(), err)
			break
		}

		e.step(ctx)
	}

	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *Exchange) step(ctx context.Context) {
	switch e.State() {
	case StateResolving:
		e.resolve(ctx)
	case StateConnecting:
		e.connect(ctx)
	case StateSending:
		e.send(ctx)
	case StateAwaitingHeader:
		e.receiveHeader(ctx)
	case StateAwaitingBody:
		e.receiveBody(ctx)
	}
}

func (e *Exchange) transition(to State) {
	e.logger.Debug("transition", slog.String("from", e.State().String()), slog.String("to", to.String()))
	e.state.Store(uint32(to))
}

func (e *Exchange) fail(kind Kind, err error) {
	e.err = &Error{Kind: kind, Host: e.target.Host, Err: err}
	e.logger.Error("exchange failed",
		slog.String("state", e.State().String()),
		slog.String("kind", kind.String()),
		slog.Any("error", err),
	)
	e.state.Store(uint32(StateFailed))
}

// failIO reports an I/O failure. When ctx was cancelled meanwhile,
// the cancellation is what gets reported as the cause.
func (e *Exchange) failIO(ctx context.Context, kind Kind, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Wrap(ctxErr, err.Error())
	}
	e.fail(kind, err)
}

func (e *Exchange) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return e.client.clock.WithTimeout(ctx, d)
}

func (e *Exchange) deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return e.client.clock.Now().Add(d)
}

func (e *Exchange) resolve(ctx context.Context) {
	ctx, cancel := e.withTimeout(ctx, e.client.opts.Timeout.Resolve)
	defer cancel()

	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(e.target.Host); err == nil {
		addrs = []netip.Addr{addr}
	} else {
		addrs, err = e.client.lookuper.LookupIP(ctx, e.target.Host)
		if err != nil {
			e.failIO(ctx, KindResolution, err)
			return
		}
	}

	if len(addrs) == 0 {
		e.fail(KindResolution, ErrNoAddress)
		return
	}

	// Only the first address is tried.
	e.addr = e.client.combineAddr(addrs[0].Unmap(), e.target.port())

	e.logger.Info("resolved", slog.String("addr", e.addr.String()), slog.Int("candidates", len(addrs)))
	e.transition(StateConnecting)
}

func (e *Exchange) connect(ctx context.Context) {
	dialCtx, cancel := e.withTimeout(ctx, e.client.opts.Timeout.Connect)
	defer cancel()

	conn, err := e.client.connDialer.Dial(dialCtx, e.addr)
	if err != nil {
		e.failIO(dialCtx, KindConnect, err)
		return
	}

	e.conn = conn
	e.r = iolib.NewUntilReader(conn)

	// Closing the conn unblocks whatever read or write is pending.
	e.stopInterrupt = context.AfterFunc(ctx, func() { conn.Close() })

	e.logger.Info("connected", slog.String("peer", conn.RemoteAddr().String()))
	e.transition(StateSending)
}

func (e *Exchange) send(ctx context.Context) {
	b, err := e.encoder.Encode(e.request)
	if err != nil {
		e.fail(KindSend, errors.Wrap(err, "encoding request"))
		return
	}

	e.conn.SetWriteDeadLine(e.deadline(e.client.opts.Timeout.Write))

	n, err := iolib.WriteFull(e.conn, b)
	e.sent = n
	if err != nil {
		e.failIO(ctx, KindSend, errors.Wrap(err, "writing request"))
		return
	}

	e.logger.Info("sent", slog.Uint64("bytes", uint64(n)))
	e.transition(StateAwaitingHeader)
}

func (e *Exchange) receiveHeader(ctx context.Context) {
	e.conn.SetReadDeadLine(e.deadline(e.client.opts.Timeout.Read))

	limit := e.client.opts.Receive.maxHeaderBytes()

	raw, err := e.r.ReadUntilLimit(http.HeaderDelim, limit)
	if err != nil {
		if errors.Is(err, io.EOF) && uint(len(raw)) >= limit {
			err = errors.Wrapf(ErrHeaderTooLarge, "no end of header in %d bytes", len(raw))
		}
		e.failIO(ctx, KindRecvHeader, err)
		return
	}

	e.header = http.ResponseHeader{Raw: raw}
	e.logger.Info("received header", slog.Int("length", len(raw)))
	e.logger.Debug("header", slog.String("text", e.header.String()))

	framing, err := http.FramingOf(e.header)
	if err != nil {
		if errors.Is(err, http.ErrUnknownBodyLength) {
			e.fail(KindUnknownBodyLength, err)
		} else {
			e.fail(KindRecvHeader, err)
		}
		return
	}
	e.framing = framing

	attrs := []any{slog.String("framing", framing.String()), slog.Int("buffered", e.r.Buffered())}
	if fixed, ok := framing.(http.FixedLength); ok {
		attrs = append(attrs, slog.Uint64("remaining", uint64(remaining(fixed.N, e.r.Buffered()))))
	}
	e.logger.Debug("body framing", attrs...)

	e.transition(StateAwaitingBody)
}

func (e *Exchange) receiveBody(ctx context.Context) {
	e.conn.SetReadDeadLine(e.deadline(e.client.opts.Timeout.Read))

	br := NewBodyReader(e.r, e.framing, e.client.opts.Receive)

	body, err := br.ReadAll()
	if err != nil {
		e.failIO(ctx, KindRecvBody, err)
		return
	}

	result := &Result{
		Addr:      e.addr,
		BytesSent: e.sent,
		Header:    e.header,
		Framing:   e.framing,
		Body:      body,
		Trailers:  br.Trailers(),
	}
	if status, err := e.header.StatusLine(); err == nil {
		result.Status = status
	} else {
		e.logger.Warn("unparsable status line", slog.Any("error", err))
	}
	e.result = result

	e.logger.Info("received body", slog.Int("length", len(body)))
	e.transition(StateComplete)
}

func (e *Exchange) closeConn() {
	if e.stopInterrupt != nil {
		e.stopInterrupt()
	}
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			e.logger.Debug("closing connection", slog.Any("error", err))
		}
	}
}
