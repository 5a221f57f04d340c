// Package server is a DICOM service class provider answering C-ECHO, C-STORE
// into a directory and series level C-FIND over the stored instances.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/net/assoc"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
	"github.com/jpfielding/dicom.go/pkg/net/trace"
)

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStoreDir enables C-STORE and C-FIND backed by dir.
func WithStoreDir(dir string) Option {
	return func(s *Server) { s.storeDir = dir }
}

// WithIdleTimeout aborts associations without traffic for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithMaxConnections bounds concurrent associations; excess connections wait
// in the accept queue.
func WithMaxConnections(n int) Option {
	return func(s *Server) { s.maxConns = n }
}

// WithMaxPDULength sets the receive limit advertised to peers.
func WithMaxPDULength(n uint32) Option {
	return func(s *Server) { s.maxPDU = n }
}

// WithRecorder captures every association to a pcap recorder.
func WithRecorder(r *trace.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// Server exposes a reusable DICOM listener.
type Server struct {
	AETitle string

	logger      *slog.Logger
	storeDir    string
	idleTimeout time.Duration
	maxConns    int
	maxPDU      uint32
	recorder    *trace.Recorder

	policy assoc.Policy
	mux    *dimse.Mux
	store  *Store
	active atomic.Int32
}

// New builds a Server answering as aeTitle.
func New(aeTitle string, opts ...Option) (*Server, error) {
	s := &Server{AETitle: aeTitle, logger: slog.Default(), maxPDU: pdu.DefaultMaxPDULength}
	for _, opt := range opts {
		opt(s)
	}
	if len(aeTitle) > 16 {
		return nil, pdu.ErrAETitle
	}
	s.mux = dimse.NewMux(s.logger)
	s.mux.HandleFunc(dimse.CEchoRQ, s.handleEcho)
	s.policy = assoc.DefaultPolicy()
	s.policy.AcceptStorage = false
	s.policy.AbstractSyntaxes = []string{dicom.VerificationSOPClassUID}

	if s.storeDir != "" {
		store, err := NewStore(s.storeDir, s.logger)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.mux.HandleFunc(dimse.CStoreRQ, s.handleStore)
		s.mux.HandleFunc(dimse.CFindRQ, s.handleFind)
		s.policy = assoc.DefaultPolicy()
	}
	return s, nil
}

// Mux allows more handlers to be registered before serving.
func (s *Server) Mux() *dimse.Mux { return s.mux }

// Store is nil unless a store directory was configured.
func (s *Server) Store() *Store { return s.store }

// Active counts running associations.
func (s *Server) Active() int { return int(s.active.Load()) }

// ListenAndServe listens on the given address and serves until the context is done or an error occurs.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an
// unrecoverable error occurs. Running associations are aborted on
// cancellation and waited for.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("server: listener is required")
	}
	if s.AETitle == "" {
		return errors.New("server: AE title is required")
	}
	if s.maxConns > 0 {
		listener = netutil.LimitListener(listener, s.maxConns)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	s.logger.Info("DICOM server listening", "address", listener.Addr().String(), "ae_title", s.AETitle)

	var (
		wg       sync.WaitGroup
		serveErr error
	)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("Accept timeout", "error", err)
				continue
			}
			serveErr = err
			break
		}
		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			s.ServeConn(ctx, c)
		}(conn)
	}
	wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

// ServeConn runs one acceptor association on conn until it closes.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.active.Add(1)
	defer s.active.Add(-1)

	logger := s.logger.With("remote_addr", conn.RemoteAddr().String())
	logger.Info("Accepted DICOM connection")

	opts := []assoc.Option{
		assoc.WithLogger(logger),
		assoc.WithHandler(s.mux),
		assoc.WithNegotiator(s.policy),
		assoc.WithUserInfo(pdu.UserInfo{
			MaxPDULength:              s.maxPDU,
			ImplementationClassUID:    dicom.ImplementationClassUID,
			ImplementationVersionName: dicom.ImplementationVersionName,
		}),
	}
	if s.recorder != nil {
		opts = append(opts, assoc.WithTracer(s.recorder.Flow(conn.RemoteAddr(), conn.LocalAddr(), false)))
	}
	a := assoc.NewAcceptor(conn, opts...)
	a.OnAssociateRQ(func(_ *assoc.Association, rq *pdu.AssociateRQ) {
		if rq.CalledAE != s.AETitle {
			logger.Warn("called AE title differs", "called_ae", rq.CalledAE, "ae_title", s.AETitle)
		}
	})
	go s.watchIdle(a, logger)

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("DIMSE connection ended", "error", err)
		return
	}
	logger.Info("DIMSE connection closed")
}

// watchIdle aborts a once it has been quiet for the idle timeout.
func (s *Server) watchIdle(a *assoc.Association, logger *slog.Logger) {
	if s.idleTimeout <= 0 {
		return
	}
	tick := max(s.idleTimeout/4, 10*time.Millisecond)
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-a.Done():
			return
		case <-t.C:
			if idle := time.Since(a.LastActive()); idle >= s.idleTimeout {
				logger.Info("aborting idle association", "idle", idle.String(), "state", a.State().String())
				a.Abort()
				return
			}
		}
	}
}
