// Package assoc runs one DICOM association over a stream connection: the
// A-ASSOCIATE handshake, the P-DATA exchange and release or abort.
package assoc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

var (
	// ErrClosed is returned when sending on a closed association.
	ErrClosed = errors.New("assoc: association closed")
	// ErrNoContext means no presentation context can carry a message.
	ErrNoContext = errors.New("assoc: no presentation context")
	// ErrAborted is recorded when this side aborts.
	ErrAborted = errors.New("assoc: aborted locally")
	// ErrPeerClosed is recorded when the peer drops the connection without
	// releasing.
	ErrPeerClosed = errors.New("assoc: connection closed by peer")
)

const abortWriteTimeout = 2 * time.Second

// Tracer sees every PDU, header included, in wire order.
type Tracer interface {
	Trace(outbound bool, raw []byte)
}

// Association is one side of a DICOM association. Messages queued with Send
// before the association is established are written in order once it is.
type Association struct {
	role       Role
	conn       net.Conn
	logger     *slog.Logger
	tracer     Tracer
	negotiator Negotiator
	handler    dimse.Handler
	local      pdu.UserInfo
	proposed   []pdu.PresentationContext
	hooks      hooks
	assembler  *dimse.Assembler

	stateMu sync.Mutex
	state   State

	ctxMu     sync.RWMutex
	contexts  map[byte]pdu.PresentationContext
	peer      pdu.UserInfo
	callingAE string
	calledAE  string

	queueMu  sync.Mutex
	queue    []*dimse.Message
	draining atomic.Bool
	// stopping is set by Abort and RequestRelease before they wait for the
	// write lock.
	stopping atomic.Bool

	writeMu    sync.Mutex
	lastActive atomic.Int64
	nextID     atomic.Uint32

	established chan struct{}
	estOnce     sync.Once
	done        chan struct{}
	closeOnce   sync.Once
	errMu       sync.Mutex
	err         error
}

// Option configures an Association.
type Option func(*Association)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Association) { a.logger = logger }
}

func WithTracer(t Tracer) Option {
	return func(a *Association) { a.tracer = t }
}

// WithNegotiator replaces DefaultPolicy on the acceptor side.
func WithNegotiator(n Negotiator) Option {
	return func(a *Association) { a.negotiator = n }
}

// WithHandler receives every reassembled message.
func WithHandler(h dimse.Handler) Option {
	return func(a *Association) { a.handler = h }
}

// WithUserInfo sets the user information this side advertises.
func WithUserInfo(ui pdu.UserInfo) Option {
	return func(a *Association) { a.local = ui }
}

// WithAETitles sets the titles a requester sends.
func WithAETitles(calling, called string) Option {
	return func(a *Association) { a.callingAE, a.calledAE = calling, called }
}

// WithContexts sets the presentation contexts a requester proposes.
func WithContexts(pcs ...pdu.PresentationContext) Option {
	return func(a *Association) { a.proposed = pcs }
}

func newAssociation(role Role, conn net.Conn, opts ...Option) *Association {
	a := &Association{
		role:       role,
		conn:       conn,
		logger:     slog.Default(),
		negotiator: DefaultPolicy(),
		local: pdu.UserInfo{
			MaxPDULength:              pdu.DefaultMaxPDULength,
			ImplementationClassUID:    dicom.ImplementationClassUID,
			ImplementationVersionName: dicom.ImplementationVersionName,
		},
		hooks:       newHooks(),
		assembler:   dimse.NewAssembler(),
		contexts:    map[byte]pdu.PresentationContext{},
		established: make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.handler == nil {
		a.handler = dimse.NewMux(a.logger)
	}
	a.logger = a.logger.With("role", role.String())
	a.touch()
	return a
}

// NewRequester wraps a connected transport for the requesting side.
func NewRequester(conn net.Conn, opts ...Option) *Association {
	a := newAssociation(Requester, conn, opts...)
	a.state = TransportConnecting
	return a
}

// NewAcceptor wraps an accepted transport for the accepting side.
func NewAcceptor(conn net.Conn, opts ...Option) *Association {
	a := newAssociation(Acceptor, conn, opts...)
	a.state = TransportConnecting
	return a
}

// Dial connects to addr and returns a requester ready to Run.
func Dial(ctx context.Context, addr string, opts ...Option) (*Association, error) {
	a := newAssociation(Requester, nil, opts...)
	a.setState(TransportConnecting)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		a.teardown(err)
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	a.conn = conn
	return a, nil
}

// Run drives the association until it closes. It returns nil after an
// orderly release and the cause otherwise. Cancelling ctx aborts.
func (a *Association) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, a.Abort)
	defer stop()

	if a.role == Requester {
		if err := a.request(); err != nil {
			a.teardown(err)
			return err
		}
	} else {
		a.setState(AwaitingAssociationRequest)
	}

	for {
		t, body, err := pdu.ReadRaw(a.conn, a.readLimit())
		if err != nil {
			return a.readFailed(ctx, err)
		}
		a.touch()
		a.trace(false, t, body)

		p, err := pdu.Decode(t, body)
		if err != nil {
			a.logger.Warn("malformed PDU", "pdu", t, "error", err)
			a.abort(pdu.AbortServiceProvider, pdu.AbortInvalidParameter, err)
			return err
		}
		if err := a.dispatch(p); err != nil {
			a.logger.Warn("PDU handling failed", "pdu", t, "error", err)
			a.teardown(err)
		}
		if a.State() == Closed {
			return a.Err()
		}
	}
}

func (a *Association) readFailed(ctx context.Context, err error) error {
	switch {
	case a.State() == Closed:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return a.Err()
	case errors.Is(err, pdu.ErrMalformed):
		a.logger.Warn("malformed PDU", "error", err)
		a.abort(pdu.AbortServiceProvider, pdu.AbortInvalidParameter, err)
		return err
	case errors.Is(err, io.EOF) && a.State() == Closing:
		a.teardown(nil)
		return nil
	case errors.Is(err, io.EOF):
		a.teardown(ErrPeerClosed)
		return ErrPeerClosed
	}
	a.teardown(err)
	return err
}

func (a *Association) request() error {
	if len(a.proposed) == 0 {
		return fmt.Errorf("%w: nothing proposed", ErrNoContext)
	}
	rq := &pdu.AssociateRQ{Associate: pdu.Associate{
		CallingAE:            a.callingAE,
		CalledAE:             a.calledAE,
		PresentationContexts: a.proposed,
		UserInfo:             a.local,
	}}
	a.setState(AwaitingAssociationResponse)
	return a.write(rq)
}

func (a *Association) readLimit() uint32 {
	if a.local.MaxPDULength == 0 {
		return 0
	}
	return max(a.local.MaxPDULength, 1<<16)
}

// Send queues m and writes everything queued if the association is open.
func (a *Association) Send(m *dimse.Message) error {
	if a.State() == Closed {
		return ErrClosed
	}
	a.queueMu.Lock()
	a.queue = append(a.queue, m)
	a.queueMu.Unlock()
	a.drain()
	return nil
}

func (a *Association) queued() int {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	return len(a.queue)
}

func (a *Association) dequeue() (*dimse.Message, bool) {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	if len(a.queue) == 0 {
		return nil, false
	}
	m := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return m, true
}

func (a *Association) sending() bool {
	return a.State() == Open && !a.stopping.Load()
}

// drain writes queued messages while the association is open. Only one
// goroutine drains at a time; a message queued while the guard is held is
// picked up by the re-check after release. A transport failure aborts.
func (a *Association) drain() {
	for {
		if !a.draining.CompareAndSwap(false, true) {
			return
		}
		for a.sending() {
			m, ok := a.dequeue()
			if !ok {
				break
			}
			broken, err := a.transmit(m)
			if err == nil {
				continue
			}
			a.logger.Error("sending message", "message", m, "error", err)
			if broken {
				a.draining.Store(false)
				a.abort(pdu.AbortServiceProvider, pdu.AbortNotSpecified, err)
				return
			}
		}
		a.draining.Store(false)
		if !a.sending() || a.queued() == 0 {
			return
		}
	}
}

// transmit writes every PDV of m under one hold of the write lock, so no other
// PDU lands between its fragments. broken reports a transport failure.
func (a *Association) transmit(m *dimse.Message) (broken bool, err error) {
	pc, ok := a.Context(m.ContextID)
	if !ok {
		return false, fmt.Errorf("%w: id %d", ErrNoContext, m.ContextID)
	}
	a.ctxMu.RLock()
	maxPDU := a.peer.MaxPDULength
	a.ctxMu.RUnlock()

	pdvs, err := m.Encode(transfer.Syntax(pc.TransferSyntax()), maxPDU)
	if err != nil {
		return false, err
	}
	raws := make([][]byte, 0, len(pdvs))
	for _, v := range pdvs {
		raw, err := pdu.Encode(&pdu.PDataTF{Items: []pdu.PDV{v}})
		if err != nil {
			return false, err
		}
		raws = append(raws, raw)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if !a.sending() {
		a.logger.Debug("dropping message after stop", "message", m)
		return false, nil
	}
	a.logger.Debug("sending", "message", m, "pdvs", len(pdvs))
	for _, raw := range raws {
		if err := a.writeRaw(pdu.TypePDataTF, raw); err != nil {
			return true, err
		}
	}
	return false, nil
}

func (a *Association) write(p pdu.PDU) error {
	raw, err := pdu.Encode(p)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.writeRaw(p.Type(), raw)
}

// writeRaw requires writeMu.
func (a *Association) writeRaw(t pdu.Type, raw []byte) error {
	if a.conn == nil {
		return ErrClosed
	}
	if _, err := a.conn.Write(raw); err != nil {
		return fmt.Errorf("writing %v: %w", t, err)
	}
	a.touch()
	if a.tracer != nil {
		a.tracer.Trace(true, raw)
	}
	return nil
}

func (a *Association) trace(outbound bool, t pdu.Type, body []byte) {
	if a.tracer == nil {
		return
	}
	raw := make([]byte, 6, 6+len(body))
	raw[0] = byte(t)
	binary.BigEndian.PutUint32(raw[2:], uint32(len(body)))
	a.tracer.Trace(outbound, append(raw, body...))
}

// RequestRelease starts an orderly release. Run returns once the peer
// answers.
func (a *Association) RequestRelease() error {
	if !a.State().Established() {
		return fmt.Errorf("%w: release in state %s", ErrClosed, a.State())
	}
	a.stopping.Store(true)
	a.setState(Closing)
	return a.write(&pdu.ReleaseRQ{})
}

// Abort sends A-ABORT and closes the connection.
func (a *Association) Abort() {
	a.abort(pdu.AbortServiceUser, pdu.AbortNotSpecified, ErrAborted)
}

func (a *Association) abort(source pdu.AbortSource, reason pdu.AbortReason, cause error) {
	if a.State() == Closed {
		return
	}
	a.stopping.Store(true)
	if a.conn != nil {
		_ = a.conn.SetWriteDeadline(time.Now().Add(abortWriteTimeout))
	}
	if err := a.write(&pdu.Abort{Source: source, Reason: reason}); err != nil {
		a.logger.Debug("sending abort", "error", err)
	}
	a.teardown(cause)
}

// teardown closes the transport and moves to Closed. Only the first cause
// is kept.
func (a *Association) teardown(cause error) {
	a.closeOnce.Do(func() {
		if cause != nil {
			a.errMu.Lock()
			a.err = cause
			a.errMu.Unlock()
		}
		a.setState(Closed)
		if a.conn != nil {
			_ = a.conn.Close()
		}
		a.queueMu.Lock()
		if n := len(a.queue); n > 0 {
			a.logger.Warn("discarding queued messages", "count", n)
		}
		a.queue = nil
		a.queueMu.Unlock()
		close(a.done)
	})
}

func (a *Association) setState(s State) {
	a.stateMu.Lock()
	old := a.state
	if old == s || old == Closed {
		a.stateMu.Unlock()
		return
	}
	a.state = s
	a.stateMu.Unlock()

	a.logger.Debug("State transition", "old", old, "new", s)
	if s.Established() {
		a.estOnce.Do(func() { close(a.established) })
	}
	a.hooks.state.fire(a, Transition{From: old, To: s})
}

// State returns the current state.
func (a *Association) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

// Role reports which side this is.
func (a *Association) Role() Role { return a.role }

// Established is closed once messages may flow.
func (a *Association) Established() <-chan struct{} { return a.established }

// Done is closed when the association reaches Closed.
func (a *Association) Done() <-chan struct{} { return a.done }

// Err returns why the association closed, nil after an orderly release.
func (a *Association) Err() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.err
}

func (a *Association) touch() {
	a.lastActive.Store(time.Now().UnixNano())
}

// LastActive is the time of the last PDU read or written.
func (a *Association) LastActive() time.Time {
	return time.Unix(0, a.lastActive.Load())
}

// NextMessageID hands out message IDs starting at 1.
func (a *Association) NextMessageID() uint16 {
	for {
		if id := uint16(a.nextID.Add(1)); id != 0 {
			return id
		}
	}
}

func (a *Association) setContexts(pcs []pdu.PresentationContext, peer pdu.UserInfo) {
	a.ctxMu.Lock()
	defer a.ctxMu.Unlock()
	for _, pc := range pcs {
		a.contexts[pc.ID] = pc
	}
	a.peer = peer
}

func (a *Association) setTitles(calling, called string) {
	a.ctxMu.Lock()
	defer a.ctxMu.Unlock()
	a.callingAE, a.calledAE = calling, called
}

// Titles returns the calling and called AE titles.
func (a *Association) Titles() (calling, called string) {
	a.ctxMu.RLock()
	defer a.ctxMu.RUnlock()
	return a.callingAE, a.calledAE
}

// Context looks up an accepted presentation context by ID.
func (a *Association) Context(id byte) (pdu.PresentationContext, bool) {
	a.ctxMu.RLock()
	defer a.ctxMu.RUnlock()
	pc, ok := a.contexts[id]
	return pc, ok
}

// ContextFor finds an accepted context for the abstract syntax, preferring
// the lowest ID.
func (a *Association) ContextFor(abstract string) (pdu.PresentationContext, bool) {
	a.ctxMu.RLock()
	defer a.ctxMu.RUnlock()
	var found pdu.PresentationContext
	ok := false
	for id, pc := range a.contexts {
		if pc.AbstractSyntax == abstract && (!ok || id < found.ID) {
			found, ok = pc, true
		}
	}
	return found, ok
}

// Contexts returns the accepted presentation contexts.
func (a *Association) Contexts() []pdu.PresentationContext {
	a.ctxMu.RLock()
	defer a.ctxMu.RUnlock()
	out := make([]pdu.PresentationContext, 0, len(a.contexts))
	for _, pc := range a.contexts {
		out = append(out, pc)
	}
	return out
}

// Peer returns the user information the peer advertised.
func (a *Association) Peer() pdu.UserInfo {
	a.ctxMu.RLock()
	defer a.ctxMu.RUnlock()
	return a.peer
}

// RemoteAddr of the transport.
func (a *Association) RemoteAddr() net.Addr {
	if a.conn == nil {
		return nil
	}
	return a.conn.RemoteAddr()
}
