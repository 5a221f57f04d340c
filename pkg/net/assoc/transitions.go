package assoc

import (
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

type action func(a *Association, p pdu.PDU) error

type key struct {
	state State
	typ   pdu.Type
}

// transitions lists the PDUs each state acts on. Anything else is logged and
// ignored.
var transitions = map[key]action{
	{AwaitingAssociationRequest, pdu.TypeAssociateRQ}:  (*Association).onAssociateRQ,
	{AwaitingAssociationResponse, pdu.TypeAssociateAC}: (*Association).onAssociateAC,
	{AwaitingAssociationResponse, pdu.TypeAssociateRJ}: (*Association).onAssociateRJ,
	{WaitingOnData, pdu.TypePDataTF}:                   (*Association).onPData,
	{Open, pdu.TypePDataTF}:                            (*Association).onPData,
	{Closing, pdu.TypePDataTF}:                         (*Association).onPData,
	{WaitingOnData, pdu.TypeReleaseRQ}:                 (*Association).onReleaseRQ,
	{Open, pdu.TypeReleaseRQ}:                          (*Association).onReleaseRQ,
	{Closing, pdu.TypeReleaseRQ}:                       (*Association).onReleaseRQ,
	{Closing, pdu.TypeReleaseRP}:                       (*Association).onReleaseRP,
}

func init() {
	for s := Idle; s < Closed; s++ {
		transitions[key{s, pdu.TypeAbort}] = (*Association).onAbort
	}
}

func (a *Association) dispatch(p pdu.PDU) error {
	s := a.State()
	act, ok := transitions[key{s, p.Type()}]
	if !ok {
		a.logger.Warn("ignoring unexpected PDU", "state", s, "pdu", p.Type())
		return nil
	}
	return act(a, p)
}

func (a *Association) onAssociateRQ(p pdu.PDU) error {
	rq := p.(*pdu.AssociateRQ)
	a.hooks.associateRQ.fire(a, rq)
	a.setTitles(rq.CallingAE, rq.CalledAE)

	if rq.ApplicationContext != pdu.ApplicationContextName {
		return a.reject(pdu.ReasonApplicationContextNotSupported)
	}
	ctxs := a.negotiator.Negotiate(rq)
	var accepted []pdu.PresentationContext
	for _, pc := range ctxs {
		if pc.Accepted() {
			accepted = append(accepted, pc)
		}
	}
	if len(accepted) == 0 {
		a.logger.Info("no acceptable presentation context", "calling", rq.CallingAE, "proposed", len(rq.PresentationContexts))
		return a.reject(pdu.ReasonNoReasonGiven)
	}
	a.setContexts(accepted, rq.UserInfo)
	a.setState(WaitingOnData)
	return a.write(&pdu.AssociateAC{Associate: pdu.Associate{
		CalledAE:             rq.CalledAE,
		CallingAE:            rq.CallingAE,
		ApplicationContext:   rq.ApplicationContext,
		PresentationContexts: ctxs,
		UserInfo:             a.local,
	}})
}

func (a *Association) reject(reason pdu.RejectReason) error {
	a.setState(Closing)
	return a.write(&pdu.AssociateRJ{Result: pdu.RejectedPermanent, Source: pdu.SourceServiceUser, Reason: reason})
}

func (a *Association) onAssociateAC(p pdu.PDU) error {
	ac := p.(*pdu.AssociateAC)
	a.hooks.associateAC.fire(a, ac)
	final := intersect(a.proposed, ac.PresentationContexts)
	if len(final) == 0 {
		a.logger.Warn("peer accepted no usable presentation context")
		a.teardown(ErrNoContext)
		return nil
	}
	a.setContexts(final, ac.UserInfo)
	a.setState(Open)
	a.drain()
	return nil
}

func (a *Association) onAssociateRJ(p pdu.PDU) error {
	rj := p.(*pdu.AssociateRJ)
	a.hooks.associateRJ.fire(a, rj)
	a.teardown(rj.Err())
	return nil
}

func (a *Association) onPData(p pdu.PDU) error {
	pd := p.(*pdu.PDataTF)
	a.hooks.pdata.fire(a, pd)
	if a.State() == WaitingOnData {
		a.setState(Open)
	}
	for _, v := range pd.Items {
		pc, ok := a.Context(v.ContextID)
		if !ok {
			a.logger.Warn("dropping PDV for unknown presentation context", "context", v.ContextID)
			continue
		}
		done, err := a.assembler.Add(v)
		if err != nil {
			a.logger.Warn("dropping fragment", "context", v.ContextID, "error", err)
			continue
		}
		if done == nil {
			continue
		}
		m, err := done.Decode(transfer.Syntax(pc.TransferSyntax()))
		if err != nil {
			a.logger.Warn("dropping undecodable message", "context", v.ContextID, "error", err)
			continue
		}
		a.deliver(m)
	}
	a.drain()
	return nil
}

func (a *Association) deliver(m *dimse.Message) {
	a.logger.Debug("received", "message", m)
	if a.handler == nil {
		return
	}
	a.safely(m.Field().String(), func() {
		if err := a.handler.ServeDIMSE(a, m); err != nil {
			a.logger.Warn("handler failed", "message", m, "error", err)
		}
	})
}

func (a *Association) onReleaseRQ(p pdu.PDU) error {
	a.hooks.releaseRQ.fire(a, p.(*pdu.ReleaseRQ))
	err := a.write(&pdu.ReleaseRP{})
	a.teardown(nil)
	return err
}

func (a *Association) onReleaseRP(p pdu.PDU) error {
	a.hooks.releaseRP.fire(a, p.(*pdu.ReleaseRP))
	a.teardown(nil)
	return nil
}

func (a *Association) onAbort(p pdu.PDU) error {
	ab := p.(*pdu.Abort)
	a.hooks.abort.fire(a, ab)
	a.teardown(ab.Err())
	return nil
}
