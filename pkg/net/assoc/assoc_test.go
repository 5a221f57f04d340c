package assoc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func run(ctx context.Context, a *Association) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- a.Run(ctx) }()
	return ch
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("association did not finish")
		return nil
	}
}

type stateLog struct {
	mu   sync.Mutex
	seen []State
}

func (r *stateLog) record(_ *Association, tr Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, tr.To)
}

func (r *stateLog) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.seen...)
}

func request(abstract ...string) *pdu.AssociateRQ {
	return &pdu.AssociateRQ{Associate: pdu.Associate{
		CallingAE:            "SCU",
		CalledAE:             "SCP",
		PresentationContexts: Propose(abstract, transfer.ImplicitVRLittleEndian),
		UserInfo:             pdu.UserInfo{MaxPDULength: pdu.DefaultMaxPDULength, ImplementationClassUID: "1.2.3"},
	}}
}

func echoMux() *dimse.Mux {
	mux := dimse.NewMux(quiet)
	mux.HandleFunc(dimse.CEchoRQ, func(s dimse.Sender, m *dimse.Message) error {
		return s.Send(dimse.NewResponse(m, dimse.StatusSuccess, nil))
	})
	return mux
}

func writeMessage(t *testing.T, conn net.Conn, m *dimse.Message, syntax transfer.Syntax) {
	t.Helper()
	pdvs, err := m.Encode(syntax, 0)
	require.NoError(t, err)
	for _, v := range pdvs {
		require.NoError(t, pdu.Write(conn, &pdu.PDataTF{Items: []pdu.PDV{v}}))
	}
}

func readMessages(t *testing.T, conn net.Conn, n int, syntax transfer.Syntax) []*dimse.Message {
	t.Helper()
	asm := dimse.NewAssembler()
	var out []*dimse.Message
	for len(out) < n {
		p, err := pdu.Read(conn, 0)
		require.NoError(t, err)
		pd, ok := p.(*pdu.PDataTF)
		require.True(t, ok, "got %v", p.Type())
		for _, v := range pd.Items {
			done, err := asm.Add(v)
			require.NoError(t, err)
			if done == nil {
				continue
			}
			m, err := done.Decode(syntax)
			require.NoError(t, err)
			out = append(out, m)
		}
	}
	return out
}

func TestAcceptorRejectsWithoutSupportedContext(t *testing.T) {
	peer, conn := pipe(t)
	rec := &stateLog{}
	acc := NewAcceptor(conn, WithLogger(quiet))
	acc.OnStateChange(rec.record)
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request("1.2.3.4.5")))
	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	rj, ok := p.(*pdu.AssociateRJ)
	require.True(t, ok)
	assert.Equal(t, pdu.RejectedPermanent, rj.Result)
	assert.Equal(t, Closing, acc.State())

	require.NoError(t, peer.Close())
	assert.NoError(t, wait(t, done))
	assert.Equal(t, []State{AwaitingAssociationRequest, Closing, Closed}, rec.states())
}

func TestAcceptorRejectsForeignApplicationContext(t *testing.T) {
	peer, conn := pipe(t)
	acc := NewAcceptor(conn, WithLogger(quiet))
	done := run(context.Background(), acc)

	rq := request(dicom.VerificationSOPClassUID)
	rq.ApplicationContext = "1.2.3"
	require.NoError(t, pdu.Write(peer, rq))
	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	rj, ok := p.(*pdu.AssociateRJ)
	require.True(t, ok)
	assert.Equal(t, pdu.ReasonApplicationContextNotSupported, rj.Reason)
	_ = peer.Close()
	wait(t, done)
}

func TestAcceptorServesUntilRelease(t *testing.T) {
	peer, conn := pipe(t)
	acc := NewAcceptor(conn, WithLogger(quiet), WithHandler(echoMux()))
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request(dicom.VerificationSOPClassUID, "1.2.3.4.5")))
	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	ac, ok := p.(*pdu.AssociateAC)
	require.True(t, ok)
	require.Len(t, ac.PresentationContexts, 2)
	assert.Equal(t, pdu.Acceptance, ac.PresentationContexts[0].Result)
	assert.Equal(t, string(transfer.ImplicitVRLittleEndian), ac.PresentationContexts[0].TransferSyntax())
	assert.Equal(t, pdu.AbstractSyntaxNotSupported, ac.PresentationContexts[1].Result)
	assert.Equal(t, WaitingOnData, acc.State())
	calling, called := acc.Titles()
	assert.Equal(t, "SCU", calling)
	assert.Equal(t, "SCP", called)

	rq := dimse.NewEcho(7)
	rq.ContextID = 1
	writeMessage(t, peer, rq, transfer.ImplicitVRLittleEndian)
	rsp := readMessages(t, peer, 1, transfer.ImplicitVRLittleEndian)[0]
	assert.Equal(t, dimse.CEchoRSP, rsp.Field())
	assert.Equal(t, uint16(7), rsp.RespondingTo())
	assert.Equal(t, dimse.StatusSuccess, rsp.Status())
	assert.Equal(t, Open, acc.State())

	require.NoError(t, pdu.Write(peer, &pdu.ReleaseRQ{}))
	p, err = pdu.Read(peer, 0)
	require.NoError(t, err)
	assert.Equal(t, pdu.TypeReleaseRP, p.Type())
	assert.NoError(t, wait(t, done))
	assert.Equal(t, Closed, acc.State())
}

func TestUnsupportedCommandGetsFailure(t *testing.T) {
	peer, conn := pipe(t)
	acc := NewAcceptor(conn, WithLogger(quiet))
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request(dicom.VerificationSOPClassUID)))
	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)

	rq := dimse.NewEcho(1)
	rq.ContextID = 1
	writeMessage(t, peer, rq, transfer.ImplicitVRLittleEndian)
	rsp := readMessages(t, peer, 1, transfer.ImplicitVRLittleEndian)[0]
	assert.Equal(t, dimse.StatusUnrecognizedOperation, rsp.Status())

	_ = peer.Close()
	assert.ErrorIs(t, wait(t, done), ErrPeerClosed)
}

func TestQueuedMessagesFlowInOrder(t *testing.T) {
	peer, conn := pipe(t)
	req := NewRequester(conn,
		WithLogger(quiet),
		WithAETitles("SCU", "SCP"),
		WithContexts(Propose([]string{dicom.VerificationSOPClassUID}, transfer.ImplicitVRLittleEndian)...),
	)
	for id := uint16(1); id <= 3; id++ {
		m := dimse.NewEcho(id)
		m.ContextID = 1
		require.NoError(t, req.Send(m))
	}
	done := run(context.Background(), req)

	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	rq, ok := p.(*pdu.AssociateRQ)
	require.True(t, ok)
	assert.Equal(t, "SCU", rq.CallingAE)
	assert.Equal(t, AwaitingAssociationResponse, req.State())

	// a small peer limit forces every command across several PDUs
	require.NoError(t, pdu.Write(peer, &pdu.AssociateAC{Associate: pdu.Associate{
		CallingAE: "SCU",
		CalledAE:  "SCP",
		PresentationContexts: []pdu.PresentationContext{
			{ID: 1, Result: pdu.Acceptance, TransferSyntaxes: []string{string(transfer.ImplicitVRLittleEndian)}},
		},
		UserInfo: pdu.UserInfo{MaxPDULength: 32, ImplementationClassUID: "1.2.3"},
	}}))

	got := readMessages(t, peer, 3, transfer.ImplicitVRLittleEndian)
	for i, m := range got {
		assert.Equal(t, dimse.CEchoRQ, m.Field())
		assert.Equal(t, uint16(i+1), m.MessageID())
	}
	select {
	case <-req.Established():
	default:
		t.Fatal("not established")
	}
	pc, ok := req.ContextFor(dicom.VerificationSOPClassUID)
	require.True(t, ok)
	assert.Equal(t, byte(1), pc.ID)

	released := make(chan error, 1)
	go func() { released <- req.RequestRelease() }()
	p, err = pdu.Read(peer, 0)
	require.NoError(t, err)
	assert.Equal(t, pdu.TypeReleaseRQ, p.Type())
	require.NoError(t, <-released)
	require.NoError(t, pdu.Write(peer, &pdu.ReleaseRP{}))
	assert.NoError(t, wait(t, done))
}

func acceptVerification(t *testing.T, peer net.Conn) {
	t.Helper()
	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	require.NoError(t, pdu.Write(peer, &pdu.AssociateAC{Associate: pdu.Associate{
		CallingAE: "SCU",
		CalledAE:  "SCP",
		PresentationContexts: []pdu.PresentationContext{
			{ID: 1, Result: pdu.Acceptance, TransferSyntaxes: []string{string(transfer.ImplicitVRLittleEndian)}},
		},
	}}))
}

func queuedRequester(t *testing.T, conn net.Conn, n int, opts ...Option) *Association {
	t.Helper()
	opts = append([]Option{
		WithLogger(quiet),
		WithAETitles("SCU", "SCP"),
		WithContexts(Propose([]string{dicom.VerificationSOPClassUID}, transfer.ImplicitVRLittleEndian)...),
	}, opts...)
	req := NewRequester(conn, opts...)
	for id := uint16(1); id <= uint16(n); id++ {
		m := dimse.NewEcho(id)
		m.ContextID = 1
		require.NoError(t, req.Send(m))
	}
	return req
}

// stopAfterFirst stops the association once the first P-DATA-TF is on the
// wire, while the drain still holds the rest of the queue.
type stopAfterFirst struct {
	t    *testing.T
	req  *Association
	stop func(*Association)
	once sync.Once
}

func (s *stopAfterFirst) Trace(outbound bool, raw []byte) {
	if !outbound || pdu.Type(raw[0]) != pdu.TypePDataTF {
		return
	}
	s.once.Do(func() {
		go s.stop(s.req)
		assert.Eventually(s.t, s.req.stopping.Load, time.Second, time.Millisecond)
	})
}

func TestStopEndsDrain(t *testing.T) {
	tests := []struct {
		name string
		stop func(*Association)
		next pdu.Type
	}{
		{"abort", (*Association).Abort, pdu.TypeAbort},
		{"release", func(a *Association) { _ = a.RequestRelease() }, pdu.TypeReleaseRQ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, conn := pipe(t)
			tracer := &stopAfterFirst{t: t, stop: tt.stop}
			req := queuedRequester(t, conn, 3, WithTracer(tracer))
			tracer.req = req
			done := run(context.Background(), req)

			acceptVerification(t, peer)
			first := readMessages(t, peer, 1, transfer.ImplicitVRLittleEndian)[0]
			assert.Equal(t, uint16(1), first.MessageID())

			p, err := pdu.Read(peer, 0)
			require.NoError(t, err)
			require.Equal(t, tt.next, p.Type())
			if tt.next == pdu.TypeReleaseRQ {
				require.NoError(t, pdu.Write(peer, &pdu.ReleaseRP{}))
				assert.NoError(t, wait(t, done))
			} else {
				assert.ErrorIs(t, wait(t, done), ErrAborted)
			}
			assert.Equal(t, Closed, req.State())

			// nothing follows the stop
			_, err = pdu.Read(peer, 0)
			assert.Error(t, err)
		})
	}
}

func TestWriteFailureAborts(t *testing.T) {
	peer, conn := pipe(t)
	req := queuedRequester(t, conn, 2)
	done := run(context.Background(), req)

	acceptVerification(t, peer)
	require.NoError(t, peer.Close())

	err := wait(t, done)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, Closed, req.State())
	assert.ErrorIs(t, req.Send(dimse.NewEcho(3)), ErrClosed)
}

func TestRequesterRejected(t *testing.T) {
	peer, conn := pipe(t)
	req := NewRequester(conn, WithLogger(quiet),
		WithContexts(Propose([]string{dicom.VerificationSOPClassUID}, transfer.ImplicitVRLittleEndian)...))
	var seen *pdu.AssociateRJ
	req.OnAssociateRJ(func(_ *Association, rj *pdu.AssociateRJ) { seen = rj })
	done := run(context.Background(), req)

	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	require.NoError(t, pdu.Write(peer, &pdu.AssociateRJ{Result: pdu.RejectedTransient, Source: pdu.SourceServiceUser, Reason: pdu.ReasonCalledAENotRecognized}))

	err = wait(t, done)
	var rjErr *pdu.RejectError
	require.ErrorAs(t, err, &rjErr)
	require.NotNil(t, seen)
	assert.Equal(t, pdu.ReasonCalledAENotRecognized, seen.Reason)
	assert.ErrorIs(t, req.Send(dimse.NewEcho(1)), ErrClosed)
}

func TestRequesterWithoutUsableContextCloses(t *testing.T) {
	peer, conn := pipe(t)
	req := NewRequester(conn, WithLogger(quiet),
		WithContexts(Propose([]string{dicom.VerificationSOPClassUID}, transfer.ImplicitVRLittleEndian)...))
	done := run(context.Background(), req)

	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	// accepted with a syntax that was never proposed
	require.NoError(t, pdu.Write(peer, &pdu.AssociateAC{Associate: pdu.Associate{
		PresentationContexts: []pdu.PresentationContext{
			{ID: 1, Result: pdu.Acceptance, TransferSyntaxes: []string{string(transfer.ExplicitVRBigEndian)}},
		},
	}}))
	assert.ErrorIs(t, wait(t, done), ErrNoContext)
}

func TestPeerAbort(t *testing.T) {
	peer, conn := pipe(t)
	acc := NewAcceptor(conn, WithLogger(quiet))
	aborted := false
	acc.OnAbort(func(*Association, *pdu.Abort) { aborted = true })
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request(dicom.VerificationSOPClassUID)))
	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	require.NoError(t, pdu.Write(peer, &pdu.Abort{Source: pdu.AbortServiceUser}))

	err = wait(t, done)
	var abortErr *pdu.AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.True(t, aborted)
	assert.Equal(t, Closed, acc.State())
	<-acc.Done()
}

func TestObserverPanicIsContained(t *testing.T) {
	peer, conn := pipe(t)
	acc := NewAcceptor(conn, WithLogger(quiet))
	later := false
	acc.OnAssociateRQ(func(*Association, *pdu.AssociateRQ) { panic("boom") })
	acc.OnAssociateRQ(func(*Association, *pdu.AssociateRQ) { later = true })
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request(dicom.VerificationSOPClassUID)))
	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	assert.Equal(t, pdu.TypeAssociateAC, p.Type())
	assert.True(t, later)

	_ = peer.Close()
	wait(t, done)
}

func TestHandlerPanicKeepsAssociation(t *testing.T) {
	peer, conn := pipe(t)
	calls := 0
	acc := NewAcceptor(conn, WithLogger(quiet), WithHandler(dimse.HandlerFunc(func(s dimse.Sender, m *dimse.Message) error {
		calls++
		if calls == 1 {
			panic("first call")
		}
		return s.Send(dimse.NewResponse(m, dimse.StatusSuccess, nil))
	})))
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request(dicom.VerificationSOPClassUID)))
	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	for id := uint16(1); id <= 2; id++ {
		rq := dimse.NewEcho(id)
		rq.ContextID = 1
		writeMessage(t, peer, rq, transfer.ImplicitVRLittleEndian)
	}
	rsp := readMessages(t, peer, 1, transfer.ImplicitVRLittleEndian)[0]
	assert.Equal(t, uint16(2), rsp.RespondingTo())

	_ = peer.Close()
	wait(t, done)
}

func TestMalformedPDUAborts(t *testing.T) {
	peer, conn := pipe(t)
	acc := NewAcceptor(conn, WithLogger(quiet))
	done := run(context.Background(), acc)

	_, err := peer.Write([]byte{0x09, 0, 0, 0, 0, 4, 0, 0, 0, 0})
	require.NoError(t, err)
	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	ab, ok := p.(*pdu.Abort)
	require.True(t, ok)
	assert.Equal(t, pdu.AbortServiceProvider, ab.Source)
	assert.ErrorIs(t, wait(t, done), pdu.ErrMalformed)
	assert.ErrorIs(t, acc.Err(), pdu.ErrMalformed)
}

func TestCancelAborts(t *testing.T) {
	peer, conn := pipe(t)
	ctx, cancel := context.WithCancel(context.Background())
	acc := NewAcceptor(conn, WithLogger(quiet))
	done := run(ctx, acc)

	cancel()
	p, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	assert.Equal(t, pdu.TypeAbort, p.Type())
	err = wait(t, done)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.ErrorIs(t, acc.Err(), ErrAborted)
}

type recorder struct {
	mu  sync.Mutex
	out []bool
}

func (r *recorder) Trace(outbound bool, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, outbound)
}

func TestTracerSeesBothDirections(t *testing.T) {
	peer, conn := pipe(t)
	rec := &recorder{}
	acc := NewAcceptor(conn, WithLogger(quiet), WithTracer(rec))
	done := run(context.Background(), acc)

	require.NoError(t, pdu.Write(peer, request(dicom.VerificationSOPClassUID)))
	_, err := pdu.Read(peer, 0)
	require.NoError(t, err)
	require.NoError(t, pdu.Write(peer, &pdu.ReleaseRQ{}))
	_, err = pdu.Read(peer, 0)
	require.NoError(t, err)
	require.NoError(t, wait(t, done))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []bool{false, true, false, true}, rec.out)
}

func TestPolicyNegotiate(t *testing.T) {
	rq := &pdu.AssociateRQ{Associate: pdu.Associate{PresentationContexts: []pdu.PresentationContext{
		{ID: 1, AbstractSyntax: dicom.VerificationSOPClassUID, TransferSyntaxes: []string{string(transfer.ImplicitVRLittleEndian), string(transfer.ExplicitVRLittleEndian)}},
		{ID: 3, AbstractSyntax: dicom.CTImageStorageUID, TransferSyntaxes: []string{"1.2.840.10008.1.2.4.50"}},
		{ID: 5, AbstractSyntax: "1.2.3.4"},
		{ID: 7, AbstractSyntax: dicom.MRImageStorageUID, TransferSyntaxes: []string{string(transfer.ExplicitVRBigEndian)}},
	}}}
	got := DefaultPolicy().Negotiate(rq)
	require.Len(t, got, 4)
	assert.Equal(t, pdu.Acceptance, got[0].Result)
	// policy order wins over proposal order
	assert.Equal(t, string(transfer.ExplicitVRLittleEndian), got[0].TransferSyntax())
	assert.Equal(t, pdu.TransferSyntaxesNotSupported, got[1].Result)
	assert.Equal(t, pdu.AbstractSyntaxNotSupported, got[2].Result)
	assert.Equal(t, pdu.Acceptance, got[3].Result)
}

func TestPropose(t *testing.T) {
	pcs := Propose([]string{"1.1", "1.2"}, transfer.ImplicitVRLittleEndian, transfer.ExplicitVRLittleEndian)
	require.Len(t, pcs, 2)
	assert.Equal(t, byte(1), pcs[0].ID)
	assert.Equal(t, byte(3), pcs[1].ID)
	assert.Len(t, pcs[1].TransferSyntaxes, 2)
}

func TestNextMessageID(t *testing.T) {
	a := newAssociation(Requester, nil, WithLogger(quiet))
	a.nextID.Store(0xFFFF)
	assert.Equal(t, uint16(1), a.NextMessageID())
	assert.Equal(t, uint16(2), a.NextMessageID())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "ASSOCIATION_ESTABLISHED_WAITING_ON_DATA", WaitingOnData.String())
	assert.Equal(t, "CLOSING_ASSOCIATION", Closing.String())
	assert.True(t, Open.Established())
	assert.False(t, Closing.Established())
}
