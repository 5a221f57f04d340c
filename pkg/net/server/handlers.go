package server

import (
	"context"
	"errors"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
)

func (s *Server) handleEcho(snd dimse.Sender, m *dimse.Message) error {
	return snd.Send(dimse.NewResponse(m, dimse.StatusSuccess, nil))
}

func (s *Server) handleStore(snd dimse.Sender, m *dimse.Message) error {
	if m.Data == nil {
		return snd.Send(dimse.NewResponse(m, dimse.StatusDataSetMismatch, nil).WithComment("missing data set"))
	}
	if uid, _ := m.Data.GetString(tag.SOPInstanceUID); uid != m.SOPInstanceUID() {
		return snd.Send(dimse.NewResponse(m, dimse.StatusDataSetMismatch, nil).WithComment("SOP instance UID differs from command"))
	}
	path, err := s.store.Put(m.Data)
	if errors.Is(err, ErrInstanceUID) {
		return snd.Send(dimse.NewResponse(m, dimse.StatusDataSetMismatch, nil).WithComment(err.Error()))
	}
	if err != nil {
		s.logger.Error("storing instance", "sop_instance", m.SOPInstanceUID(), "error", err)
		return snd.Send(dimse.NewResponse(m, dimse.StatusOutOfResources, nil).WithComment(err.Error()))
	}
	s.logger.Info("stored instance", "sop_instance", m.SOPInstanceUID(), "path", path)
	return snd.Send(dimse.NewResponse(m, dimse.StatusSuccess, nil))
}

// handleFind runs on the receive loop, so every match is queued before a
// C-CANCEL for the request can be read.
func (s *Server) handleFind(snd dimse.Sender, m *dimse.Message) error {
	if m.Data == nil {
		return snd.Send(dimse.NewResponse(m, dimse.StatusDataSetMismatch, nil).WithComment("missing identifier"))
	}
	q := dimse.AsSeriesQuery(m.Data)
	if q.Level() != dimse.LevelSeries {
		return snd.Send(dimse.NewResponse(m, dimse.StatusUnableToProcess, nil).WithComment("only SERIES level queries are supported"))
	}
	results, err := s.store.Series(context.Background(), q)
	if err != nil {
		s.logger.Error("querying store", "error", err)
		return snd.Send(dimse.NewResponse(m, dimse.StatusUnableToProcess, nil).WithComment(err.Error()))
	}
	for _, ds := range results {
		if err := snd.Send(dimse.NewResponse(m, dimse.StatusPending, ds)); err != nil {
			return err
		}
	}
	s.logger.Info("find answered", "matches", len(results))
	return snd.Send(dimse.NewResponse(m, dimse.StatusSuccess, nil))
}
