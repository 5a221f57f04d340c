package assoc

import (
	"slices"
	"strings"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

// Negotiator decides the response contexts for an association request. Every
// proposed context is returned with its result; accepted ones carry exactly
// one transfer syntax taken from the proposal.
type Negotiator interface {
	Negotiate(rq *pdu.AssociateRQ) []pdu.PresentationContext
}

// NegotiatorFunc adapts a function to Negotiator.
type NegotiatorFunc func(rq *pdu.AssociateRQ) []pdu.PresentationContext

func (f NegotiatorFunc) Negotiate(rq *pdu.AssociateRQ) []pdu.PresentationContext {
	return f(rq)
}

const storagePrefix = "1.2.840.10008.5.1.4.1.1."

// IsStorage reports whether uid is a storage SOP class.
func IsStorage(uid string) bool {
	return strings.HasPrefix(uid, storagePrefix)
}

// Policy accepts a fixed set of abstract syntaxes, optionally every storage
// SOP class, with the first transfer syntax in TransferSyntaxes that the
// requester also proposed.
type Policy struct {
	AbstractSyntaxes []string
	AcceptStorage    bool
	TransferSyntaxes []transfer.Syntax
}

// DefaultPolicy serves verification, study and patient root find, and storage.
func DefaultPolicy() Policy {
	return Policy{
		AbstractSyntaxes: []string{
			dicom.VerificationSOPClassUID,
			dicom.StudyRootQueryRetrieveFindUID,
			dicom.PatientRootQueryRetrieveFindUID,
		},
		AcceptStorage: true,
		TransferSyntaxes: []transfer.Syntax{
			transfer.ExplicitVRLittleEndian,
			transfer.ImplicitVRLittleEndian,
			transfer.ExplicitVRBigEndian,
			transfer.DeflatedExplicitVR,
		},
	}
}

func (p Policy) supports(abstract string) bool {
	return slices.Contains(p.AbstractSyntaxes, abstract) || (p.AcceptStorage && IsStorage(abstract))
}

func (p Policy) Negotiate(rq *pdu.AssociateRQ) []pdu.PresentationContext {
	out := make([]pdu.PresentationContext, 0, len(rq.PresentationContexts))
	for _, pc := range rq.PresentationContexts {
		res := pdu.PresentationContext{ID: pc.ID, AbstractSyntax: pc.AbstractSyntax, Result: pdu.AbstractSyntaxNotSupported}
		if p.supports(pc.AbstractSyntax) {
			res.Result = pdu.TransferSyntaxesNotSupported
			for _, ts := range p.TransferSyntaxes {
				if slices.Contains(pc.TransferSyntaxes, string(ts)) {
					res.Result = pdu.Acceptance
					res.TransferSyntaxes = []string{string(ts)}
					break
				}
			}
		}
		out = append(out, res)
	}
	return out
}

// Propose numbers contexts 1, 3, 5... offering every syntax for each
// abstract syntax.
func Propose(abstract []string, syntaxes ...transfer.Syntax) []pdu.PresentationContext {
	ts := make([]string, len(syntaxes))
	for i, s := range syntaxes {
		ts[i] = string(s)
	}
	out := make([]pdu.PresentationContext, len(abstract))
	for i, as := range abstract {
		out[i] = pdu.PresentationContext{ID: byte(2*i + 1), AbstractSyntax: as, TransferSyntaxes: slices.Clone(ts)}
	}
	return out
}

// intersect keeps the accepted contexts whose ID was proposed and whose
// transfer syntax is among the proposals.
func intersect(proposed, accepted []pdu.PresentationContext) []pdu.PresentationContext {
	var out []pdu.PresentationContext
	for _, ac := range accepted {
		if !ac.Accepted() {
			continue
		}
		i := slices.IndexFunc(proposed, func(pc pdu.PresentationContext) bool { return pc.ID == ac.ID })
		if i < 0 {
			continue
		}
		ts := ac.TransferSyntax()
		if !slices.Contains(proposed[i].TransferSyntaxes, ts) {
			continue
		}
		out = append(out, pdu.PresentationContext{
			ID:               ac.ID,
			AbstractSyntax:   proposed[i].AbstractSyntax,
			TransferSyntaxes: []string{ts},
			Result:           pdu.Acceptance,
		})
	}
	return out
}
