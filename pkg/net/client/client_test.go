package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
	"github.com/jpfielding/dicom.go/pkg/net/assoc"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// peer accepts one association on loopback and serves it with mux.
func peer(t *testing.T, mux *dimse.Mux, opts ...assoc.Option) (string, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		opts = append([]assoc.Option{assoc.WithLogger(quiet), assoc.WithHandler(mux)}, opts...)
		done <- assoc.NewAcceptor(conn, opts...).Run(context.Background())
	}()
	return ln.Addr().String(), done
}

func connect(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Connect(ctx, addr, Config{Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func respond(status dimse.Status) dimse.HandlerFunc {
	return func(s dimse.Sender, m *dimse.Message) error {
		return s.Send(dimse.NewResponse(m, status, nil))
	}
}

func identifier(t *testing.T, modality string) *dicom.Dataset {
	t.Helper()
	ds, err := dicom.NewDataset(
		dicom.WithElement(tag.QueryRetrieveLevel, "SERIES"),
		dicom.WithElement(tag.Modality, modality),
	)
	require.NoError(t, err)
	return ds
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	assert.Equal(t, "GO_DICOM_SCU", cfg.CallingAE)
	assert.Equal(t, "ANY-SCP", cfg.CalledAE)
	assert.Equal(t, pdu.DefaultMaxPDULength, cfg.MaxPDULength)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, DefaultAbstractSyntaxes, cfg.AbstractSyntaxes)
	assert.Len(t, cfg.TransferSyntaxes, 2)
}

func TestEchoAndRelease(t *testing.T) {
	mux := dimse.NewMux(quiet)
	mux.Handle(dimse.CEchoRQ, respond(dimse.StatusSuccess))
	addr, done := peer(t, mux)

	c := connect(t, addr)
	require.NoError(t, c.Echo(context.Background()))
	require.NoError(t, c.Release(context.Background()))
	require.NoError(t, <-done)
}

func TestEchoFailureStatus(t *testing.T) {
	mux := dimse.NewMux(quiet)
	mux.Handle(dimse.CEchoRQ, respond(dimse.StatusProcessingFailure))
	addr, _ := peer(t, mux)

	c := connect(t, addr)
	var se *dimse.StatusError
	require.ErrorAs(t, c.Echo(context.Background()), &se)
	assert.Equal(t, dimse.CEchoRSP, se.Field)
	assert.Equal(t, dimse.StatusProcessingFailure, se.Status)
}

func TestFindStreamsMatches(t *testing.T) {
	mux := dimse.NewMux(quiet)
	mux.HandleFunc(dimse.CFindRQ, func(s dimse.Sender, m *dimse.Message) error {
		for _, mod := range []string{"CT", "MR"} {
			ds := m.Data.Clone()
			e, err := dicom.NewElement(tag.Modality, vr.CS, mod)
			if err != nil {
				return err
			}
			ds.Set(e)
			if err := s.Send(dimse.NewResponse(m, dimse.StatusPending, ds)); err != nil {
				return err
			}
		}
		return s.Send(dimse.NewResponse(m, dimse.StatusSuccess, nil))
	})
	addr, _ := peer(t, mux)

	c := connect(t, addr)
	found, err := c.FindAll(context.Background(), dicom.StudyRootQueryRetrieveFindUID, identifier(t, ""))
	require.NoError(t, err)
	require.Len(t, found, 2)
	mod, _ := found[1].GetString(tag.Modality)
	assert.Equal(t, "MR", mod)

	q := dimse.NewSeriesQuery()
	series, err := c.FindSeries(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, "CT", series[0].Modality())

	assert.Error(t, c.Find(context.Background(), dicom.StudyRootQueryRetrieveFindUID, nil, nil))
}

func TestFindCallbackErrorCancels(t *testing.T) {
	cancelled := make(chan uint16, 1)
	mux := dimse.NewMux(quiet)
	mux.HandleFunc(dimse.CFindRQ, func(s dimse.Sender, m *dimse.Message) error {
		return s.Send(dimse.NewResponse(m, dimse.StatusPending, m.Data))
	})
	mux.HandleFunc(dimse.CCancelRQ, func(s dimse.Sender, m *dimse.Message) error {
		cancelled <- m.RespondingTo()
		return nil
	})
	addr, _ := peer(t, mux)

	c := connect(t, addr)
	stop := errors.New("enough")
	err := c.Find(context.Background(), dicom.StudyRootQueryRetrieveFindUID, identifier(t, "CT"), func(*dicom.Dataset) error {
		return stop
	})
	require.ErrorIs(t, err, stop)
	select {
	case id := <-cancelled:
		assert.Equal(t, uint16(1), id)
	case <-time.After(5 * time.Second):
		t.Fatal("no C-CANCEL received")
	}
}

func TestRequestContextDone(t *testing.T) {
	mux := dimse.NewMux(quiet)
	// never answers
	mux.HandleFunc(dimse.CEchoRQ, func(dimse.Sender, *dimse.Message) error { return nil })
	addr, _ := peer(t, mux)

	c := connect(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Echo(ctx), context.DeadlineExceeded)
	// the association survives a request timeout
	assert.True(t, c.Association().State().Established())
}

func TestStoreRequiresUIDs(t *testing.T) {
	mux := dimse.NewMux(quiet)
	mux.Handle(dimse.CStoreRQ, respond(dimse.StatusWarning))
	addr, _ := peer(t, mux)

	c := connect(t, addr)
	empty, err := dicom.NewDataset()
	require.NoError(t, err)
	assert.Error(t, c.Store(context.Background(), empty))

	ds, err := dicom.NewDataset(
		dicom.WithElement(tag.SOPClassUID, dicom.CTImageStorageUID),
		dicom.WithElement(tag.SOPInstanceUID, "1.2.3.4"),
	)
	require.NoError(t, err)
	// warnings are not failures
	assert.NoError(t, c.Store(context.Background(), ds))
}

func TestConnectRejected(t *testing.T) {
	none := assoc.Policy{TransferSyntaxes: assoc.DefaultPolicy().TransferSyntaxes}
	addr, _ := peer(t, dimse.NewMux(quiet), assoc.WithNegotiator(none))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Connect(ctx, addr, Config{Logger: quiet})
	var rj *pdu.RejectError
	assert.ErrorAs(t, err, &rj)
}

func TestClosedClient(t *testing.T) {
	mux := dimse.NewMux(quiet)
	addr, _ := peer(t, mux)

	c := connect(t, addr)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Echo(context.Background()), assoc.ErrClosed)
	assert.Error(t, c.Release(context.Background()))
}
