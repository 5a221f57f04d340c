package pdu

import (
	"bytes"
	"fmt"
)

// RejectResult is the result field of A-ASSOCIATE-RJ.
type RejectResult byte

const (
	RejectedPermanent RejectResult = 0x01
	RejectedTransient RejectResult = 0x02
)

// RejectSource identifies who rejected an association.
type RejectSource byte

const (
	SourceServiceUser                 RejectSource = 0x01
	SourceServiceProviderACSE         RejectSource = 0x02
	SourceServiceProviderPresentation RejectSource = 0x03
)

func (s RejectSource) String() string {
	switch s {
	case SourceServiceUser:
		return "service-user"
	case SourceServiceProviderACSE:
		return "service-provider-acse"
	case SourceServiceProviderPresentation:
		return "service-provider-presentation"
	}
	return "unknown"
}

// RejectReason is the diagnostic of A-ASSOCIATE-RJ. Its meaning depends on
// the source.
type RejectReason byte

const (
	ReasonNoReasonGiven                  RejectReason = 0x01
	ReasonApplicationContextNotSupported RejectReason = 0x02
	ReasonCallingAENotRecognized         RejectReason = 0x03
	ReasonCalledAENotRecognized          RejectReason = 0x07
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNoReasonGiven:
		return "no-reason-given"
	case ReasonApplicationContextNotSupported:
		return "application-context-not-supported"
	case ReasonCallingAENotRecognized:
		return "calling-ae-title-not-recognized"
	case ReasonCalledAENotRecognized:
		return "called-ae-title-not-recognized"
	}
	return fmt.Sprintf("reason(%d)", byte(r))
}

// AssociateRJ rejects an association.
type AssociateRJ struct {
	Result RejectResult
	Source RejectSource
	Reason RejectReason
}

func (*AssociateRJ) Type() Type { return TypeAssociateRJ }

func (rj *AssociateRJ) encode(b *bytes.Buffer) error {
	b.Write([]byte{0, byte(rj.Result), byte(rj.Source), byte(rj.Reason)})
	return nil
}

func (rj *AssociateRJ) String() string {
	return fmt.Sprintf("A-ASSOCIATE-RJ result=%d source=%s reason=%s", rj.Result, rj.Source, rj.Reason)
}

// RejectError reports a rejected association request.
type RejectError struct {
	Result RejectResult
	Source RejectSource
	Reason RejectReason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("association rejected (source: %s, reason: %s)", e.Source, e.Reason)
}

// Err converts the PDU to an error.
func (rj *AssociateRJ) Err() error {
	return &RejectError{Result: rj.Result, Source: rj.Source, Reason: rj.Reason}
}

// AbortSource identifies who aborted an association.
type AbortSource byte

const (
	AbortServiceUser     AbortSource = 0x00
	AbortServiceProvider AbortSource = 0x02
)

func (s AbortSource) String() string {
	switch s {
	case AbortServiceUser:
		return "service-user"
	case AbortServiceProvider:
		return "service-provider"
	}
	return "unknown"
}

// AbortReason is only meaningful when the provider aborts.
type AbortReason byte

const (
	AbortNotSpecified          AbortReason = 0x00
	AbortUnrecognizedPDU       AbortReason = 0x01
	AbortUnexpectedPDU         AbortReason = 0x02
	AbortUnrecognizedParameter AbortReason = 0x04
	AbortUnexpectedParameter   AbortReason = 0x05
	AbortInvalidParameter      AbortReason = 0x06
)

// Abort tears down an association without a handshake.
type Abort struct {
	Source AbortSource
	Reason AbortReason
}

func (*Abort) Type() Type { return TypeAbort }

func (a *Abort) encode(b *bytes.Buffer) error {
	b.Write([]byte{0, 0, byte(a.Source), byte(a.Reason)})
	return nil
}

func (a *Abort) String() string {
	return fmt.Sprintf("A-ABORT source=%s reason=0x%02x", a.Source, byte(a.Reason))
}

// AbortError reports an association aborted by the peer.
type AbortError struct {
	Source AbortSource
	Reason AbortReason
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("association aborted by %s (reason: 0x%02X)", e.Source, byte(e.Reason))
}

// Err converts the PDU to an error.
func (a *Abort) Err() error {
	return &AbortError{Source: a.Source, Reason: a.Reason}
}
