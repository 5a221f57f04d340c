// Package client is a DICOM service class user: it opens one association
// and issues C-ECHO, C-FIND and C-STORE requests over it.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/assoc"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

// Config holds client configuration
type Config struct {
	CallingAE        string
	CalledAE         string
	MaxPDULength     uint32
	ConnectTimeout   time.Duration // default: 30s
	AbstractSyntaxes []string      // default: verification, find and common storage classes
	TransferSyntaxes []transfer.Syntax
	Logger           *slog.Logger
	Tracer           assoc.Tracer
}

// DefaultAbstractSyntaxes are proposed when Config names none.
var DefaultAbstractSyntaxes = []string{
	dicom.VerificationSOPClassUID,
	dicom.StudyRootQueryRetrieveFindUID,
	dicom.PatientRootQueryRetrieveFindUID,
	dicom.CTImageStorageUID,
	dicom.MRImageStorageUID,
	dicom.SecondaryCaptureImageStorageUID,
}

func (c *Config) defaults() {
	if c.CallingAE == "" {
		c.CallingAE = "GO_DICOM_SCU"
	}
	if c.CalledAE == "" {
		c.CalledAE = "ANY-SCP"
	}
	if c.MaxPDULength == 0 {
		c.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if len(c.AbstractSyntaxes) == 0 {
		c.AbstractSyntaxes = DefaultAbstractSyntaxes
	}
	if len(c.TransferSyntaxes) == 0 {
		c.TransferSyntaxes = []transfer.Syntax{transfer.ExplicitVRLittleEndian, transfer.ImplicitVRLittleEndian}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ErrClosed is returned by requests after the association ended.
var ErrClosed = errors.New("client: association closed")

type request struct {
	ch   chan *dimse.Message
	gone chan struct{}
}

// Client is an established association with a service class provider.
type Client struct {
	a      *assoc.Association
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uint16]*request

	done   chan struct{}
	runErr error
}

// Connect dials addr and negotiates an association. ctx bounds the dial and
// the handshake only.
func Connect(ctx context.Context, addr string, cfg Config) (*Client, error) {
	cfg.defaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c, err := New(ctx, conn, cfg)
	if err != nil {
		return nil, err
	}
	c.logger.Info("DICOM association established", "remote_addr", addr, "calling_ae", cfg.CallingAE, "called_ae", cfg.CalledAE)
	return c, nil
}

// New negotiates an association over an open connection.
func New(ctx context.Context, conn net.Conn, cfg Config) (*Client, error) {
	cfg.defaults()
	c := &Client{
		logger:  cfg.Logger,
		pending: map[uint16]*request{},
		done:    make(chan struct{}),
	}
	mux := dimse.NewMux(cfg.Logger)
	for _, f := range []dimse.CommandField{dimse.CEchoRSP, dimse.CFindRSP, dimse.CStoreRSP, dimse.CMoveRSP, dimse.CGetRSP} {
		mux.Handle(f, dimse.HandlerFunc(c.deliver))
	}
	opts := []assoc.Option{
		assoc.WithLogger(cfg.Logger),
		assoc.WithHandler(mux),
		assoc.WithAETitles(cfg.CallingAE, cfg.CalledAE),
		assoc.WithContexts(assoc.Propose(cfg.AbstractSyntaxes, cfg.TransferSyntaxes...)...),
		assoc.WithUserInfo(pdu.UserInfo{
			MaxPDULength:              cfg.MaxPDULength,
			ImplementationClassUID:    dicom.ImplementationClassUID,
			ImplementationVersionName: dicom.ImplementationVersionName,
		}),
	}
	if cfg.Tracer != nil {
		opts = append(opts, assoc.WithTracer(cfg.Tracer))
	}
	c.a = assoc.NewRequester(conn, opts...)

	go func() {
		c.runErr = c.a.Run(context.Background())
		close(c.done)
	}()

	select {
	case <-c.a.Established():
		return c, nil
	case <-c.done:
		if c.runErr == nil {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("association failed: %w", c.runErr)
	case <-ctx.Done():
		c.a.Abort()
		<-c.done
		return nil, ctx.Err()
	}
}

// Association exposes the underlying association.
func (c *Client) Association() *assoc.Association { return c.a }

// deliver routes a response to the request waiting on it.
func (c *Client) deliver(_ dimse.Sender, m *dimse.Message) error {
	c.mu.Lock()
	req, ok := c.pending[m.RespondingTo()]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("response for unknown request", "message", m)
		return nil
	}
	select {
	case req.ch <- m:
	case <-req.gone:
	}
	return nil
}

func (c *Client) register(id uint16) *request {
	req := &request{ch: make(chan *dimse.Message, 1), gone: make(chan struct{})}
	c.mu.Lock()
	c.pending[id] = req
	c.mu.Unlock()
	return req
}

func (c *Client) unregister(id uint16) {
	c.mu.Lock()
	req, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		close(req.gone)
	}
}

// roundTrip sends m on a context for abstract and waits for the final
// response. Pending responses go to each; an error from each or a done ctx
// cancels the request.
func (c *Client) roundTrip(ctx context.Context, m *dimse.Message, abstract string, each func(*dimse.Message) error) (*dimse.Message, error) {
	pc, ok := c.a.ContextFor(abstract)
	if !ok {
		return nil, fmt.Errorf("%w for %s", assoc.ErrNoContext, abstract)
	}
	m.ContextID = pc.ID
	id := m.MessageID()
	req := c.register(id)
	defer c.unregister(id)

	if err := c.a.Send(m); err != nil {
		return nil, err
	}
	for {
		select {
		case rsp := <-req.ch:
			if rsp.Status().IsPending() {
				if each == nil {
					continue
				}
				if err := each(rsp); err != nil {
					c.cancel(pc.ID, id)
					return nil, err
				}
				continue
			}
			return rsp, rsp.Err()
		case <-c.done:
			return nil, fmt.Errorf("%w: %v", ErrClosed, c.runErr)
		case <-ctx.Done():
			c.cancel(pc.ID, id)
			return nil, ctx.Err()
		}
	}
}

func (c *Client) cancel(contextID byte, id uint16) {
	if err := c.a.Send(dimse.NewCancel(contextID, id)); err != nil {
		c.logger.Debug("sending cancel", "error", err)
	}
}

// Echo verifies the peer with C-ECHO.
func (c *Client) Echo(ctx context.Context) error {
	_, err := c.roundTrip(ctx, dimse.NewEcho(c.a.NextMessageID()), dicom.VerificationSOPClassUID, nil)
	return err
}

// Find runs a C-FIND and calls fn with each matching identifier.
func (c *Client) Find(ctx context.Context, sopClass string, identifier *dicom.Dataset, fn func(*dicom.Dataset) error) error {
	if identifier == nil {
		return fmt.Errorf("c-find request requires a dataset")
	}
	m := dimse.NewFind(c.a.NextMessageID(), sopClass, dimse.PriorityMedium, identifier)
	_, err := c.roundTrip(ctx, m, sopClass, func(rsp *dimse.Message) error {
		if rsp.Data == nil {
			return nil
		}
		return fn(rsp.Data)
	})
	return err
}

// FindAll collects every C-FIND match.
func (c *Client) FindAll(ctx context.Context, sopClass string, identifier *dicom.Dataset) ([]*dicom.Dataset, error) {
	var out []*dicom.Dataset
	err := c.Find(ctx, sopClass, identifier, func(ds *dicom.Dataset) error {
		out = append(out, ds)
		return nil
	})
	return out, err
}

// FindSeries runs a study root series level query.
func (c *Client) FindSeries(ctx context.Context, q *dimse.SeriesQuery) ([]*dimse.SeriesQuery, error) {
	found, err := c.FindAll(ctx, dicom.StudyRootQueryRetrieveFindUID, q.Dataset)
	out := make([]*dimse.SeriesQuery, len(found))
	for i, ds := range found {
		out[i] = dimse.AsSeriesQuery(ds)
	}
	return out, err
}

// Store sends ds with C-STORE. Its SOP class must have been proposed.
func (c *Client) Store(ctx context.Context, ds *dicom.Dataset) error {
	sopClass, _ := ds.GetString(tag.SOPClassUID)
	sopInstance, _ := ds.GetString(tag.SOPInstanceUID)
	if sopClass == "" || sopInstance == "" {
		return fmt.Errorf("c-store requires %v and %v", tag.SOPClassUID, tag.SOPInstanceUID)
	}
	m := dimse.NewStore(c.a.NextMessageID(), sopClass, sopInstance, dimse.PriorityMedium, ds)
	rsp, err := c.roundTrip(ctx, m, sopClass, nil)
	if err == nil && rsp.Status().IsWarning() {
		c.logger.Warn("store completed with warning", "sop_instance", sopInstance, "status", rsp.Status())
	}
	return err
}

// Release ends the association in order, aborting if ctx ends first.
func (c *Client) Release(ctx context.Context) error {
	if err := c.a.RequestRelease(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.runErr
	case <-ctx.Done():
		c.a.Abort()
		<-c.done
		return ctx.Err()
	}
}

// Close aborts the association.
func (c *Client) Close() error {
	c.a.Abort()
	<-c.done
	return nil
}
