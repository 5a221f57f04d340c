package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// variable item types
const (
	itemApplicationContext    byte = 0x10
	itemPresentationContextRQ byte = 0x20
	itemPresentationContextAC byte = 0x21
	itemAbstractSyntax        byte = 0x30
	itemTransferSyntax        byte = 0x40
	itemUserInformation       byte = 0x50
	itemMaxLength             byte = 0x51
	itemImplementationClass   byte = 0x52
	itemAsyncOperations       byte = 0x53
	itemImplementationVersion byte = 0x55
)

// fixed part of A-ASSOCIATE-RQ/AC: version, reserved, called, calling, reserved
const associateFixedLen = 68

// Result is the outcome of negotiating one presentation context.
type Result byte

const (
	Acceptance                   Result = 0x00
	UserRejection                Result = 0x01
	NoReason                     Result = 0x02
	AbstractSyntaxNotSupported   Result = 0x03
	TransferSyntaxesNotSupported Result = 0x04
)

func (r Result) String() string {
	switch r {
	case Acceptance:
		return "acceptance"
	case UserRejection:
		return "user-rejection"
	case NoReason:
		return "no-reason"
	case AbstractSyntaxNotSupported:
		return "abstract-syntax-not-supported"
	case TransferSyntaxesNotSupported:
		return "transfer-syntaxes-not-supported"
	}
	return fmt.Sprintf("result(%d)", byte(r))
}

// PresentationContext pairs an abstract syntax with transfer syntaxes. In a
// request TransferSyntaxes lists the proposals; in an accept it holds the
// single negotiated syntax and AbstractSyntax is empty on the wire.
type PresentationContext struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
	Result           Result
}

// TransferSyntax returns the first transfer syntax, the negotiated one for
// accepted contexts.
func (pc PresentationContext) TransferSyntax() string {
	if len(pc.TransferSyntaxes) == 0 {
		return ""
	}
	return pc.TransferSyntaxes[0]
}

// Accepted reports whether the context was accepted.
func (pc PresentationContext) Accepted() bool {
	return pc.Result == Acceptance
}

// AsyncOperations is the asynchronous operations window sub-item.
type AsyncOperations struct {
	MaxInvoked   uint16
	MaxPerformed uint16
}

// UserInfo carries the user information sub-items.
type UserInfo struct {
	MaxPDULength              uint32
	ImplementationClassUID    string
	ImplementationVersionName string
	AsyncOperations           *AsyncOperations
}

// Associate holds the fields shared by A-ASSOCIATE-RQ and A-ASSOCIATE-AC.
type Associate struct {
	ProtocolVersion      uint16
	CalledAE             string
	CallingAE            string
	ApplicationContext   string
	PresentationContexts []PresentationContext
	UserInfo             UserInfo
}

// AssociateRQ proposes an association.
type AssociateRQ struct {
	Associate
}

func (*AssociateRQ) Type() Type { return TypeAssociateRQ }

func (rq *AssociateRQ) encode(b *bytes.Buffer) error {
	return rq.Associate.encode(b, itemPresentationContextRQ)
}

func (rq *AssociateRQ) decode(body []byte) error {
	return rq.Associate.decode(body, itemPresentationContextRQ)
}

func (rq *AssociateRQ) String() string {
	return fmt.Sprintf("A-ASSOCIATE-RQ %s -> %s contexts=%d", rq.CallingAE, rq.CalledAE, len(rq.PresentationContexts))
}

// AssociateAC accepts an association.
type AssociateAC struct {
	Associate
}

func (*AssociateAC) Type() Type { return TypeAssociateAC }

func (ac *AssociateAC) encode(b *bytes.Buffer) error {
	return ac.Associate.encode(b, itemPresentationContextAC)
}

func (ac *AssociateAC) decode(body []byte) error {
	return ac.Associate.decode(body, itemPresentationContextAC)
}

// Accepted returns the accepted presentation contexts.
func (ac *AssociateAC) Accepted() []PresentationContext {
	var out []PresentationContext
	for _, pc := range ac.PresentationContexts {
		if pc.Accepted() {
			out = append(out, pc)
		}
	}
	return out
}

func (ac *AssociateAC) String() string {
	return fmt.Sprintf("A-ASSOCIATE-AC %s -> %s accepted=%d/%d", ac.CallingAE, ac.CalledAE, len(ac.Accepted()), len(ac.PresentationContexts))
}

func appendItem(b *bytes.Buffer, typ byte, value []byte) error {
	if len(value) > 0xFFFF {
		return fmt.Errorf("item 0x%02x length %d exceeds 65535", typ, len(value))
	}
	b.WriteByte(typ)
	b.WriteByte(0)
	b.Write(binary.BigEndian.AppendUint16(nil, uint16(len(value))))
	b.Write(value)
	return nil
}

func (a *Associate) encode(b *bytes.Buffer, pcType byte) error {
	called, err := PadAE(a.CalledAE)
	if err != nil {
		return err
	}
	calling, err := PadAE(a.CallingAE)
	if err != nil {
		return err
	}
	version := a.ProtocolVersion
	if version == 0 {
		version = ProtocolVersion
	}
	appCtx := a.ApplicationContext
	if appCtx == "" {
		appCtx = ApplicationContextName
	}

	b.Write(binary.BigEndian.AppendUint16(nil, version))
	b.Write([]byte{0, 0})
	b.Write(called[:])
	b.Write(calling[:])
	b.Write(make([]byte, 32))

	if err := appendItem(b, itemApplicationContext, []byte(appCtx)); err != nil {
		return err
	}
	for _, pc := range a.PresentationContexts {
		var sub bytes.Buffer
		result := byte(pc.Result)
		if pcType == itemPresentationContextRQ {
			result = 0
		}
		sub.Write([]byte{pc.ID, 0, result, 0})
		if pcType == itemPresentationContextRQ {
			if err := appendItem(&sub, itemAbstractSyntax, []byte(pc.AbstractSyntax)); err != nil {
				return err
			}
			for _, ts := range pc.TransferSyntaxes {
				if err := appendItem(&sub, itemTransferSyntax, []byte(ts)); err != nil {
					return err
				}
			}
		} else if ts := pc.TransferSyntax(); ts != "" {
			if err := appendItem(&sub, itemTransferSyntax, []byte(ts)); err != nil {
				return err
			}
		}
		if err := appendItem(b, pcType, sub.Bytes()); err != nil {
			return err
		}
	}
	return appendItem(b, itemUserInformation, a.UserInfo.encode())
}

func (ui UserInfo) encode() []byte {
	var b bytes.Buffer
	_ = appendItem(&b, itemMaxLength, binary.BigEndian.AppendUint32(nil, ui.MaxPDULength))
	if ui.ImplementationClassUID != "" {
		_ = appendItem(&b, itemImplementationClass, []byte(ui.ImplementationClassUID))
	}
	if ui.AsyncOperations != nil {
		v := binary.BigEndian.AppendUint16(nil, ui.AsyncOperations.MaxInvoked)
		v = binary.BigEndian.AppendUint16(v, ui.AsyncOperations.MaxPerformed)
		_ = appendItem(&b, itemAsyncOperations, v)
	}
	if ui.ImplementationVersionName != "" {
		_ = appendItem(&b, itemImplementationVersion, []byte(ui.ImplementationVersionName))
	}
	return b.Bytes()
}

type item struct {
	typ   byte
	value []byte
}

// items splits a run of type(1) reserved(1) length(2) items.
func items(data []byte) ([]item, error) {
	var out []item
	for off := 0; off < len(data); {
		if off+4 > len(data) {
			return nil, malformed("truncated item header at %d", off)
		}
		n := int(binary.BigEndian.Uint16(data[off+2:]))
		end := off + 4 + n
		if end > len(data) {
			return nil, malformed("item 0x%02x length %d exceeds remaining %d", data[off], n, len(data)-off-4)
		}
		out = append(out, item{typ: data[off], value: data[off+4 : end]})
		off = end
	}
	return out, nil
}

func (a *Associate) decode(body []byte, pcType byte) error {
	if len(body) < associateFixedLen {
		return malformed("associate body length %d", len(body))
	}
	a.ProtocolVersion = binary.BigEndian.Uint16(body)
	a.CalledAE = TrimAE(body[4:20])
	a.CallingAE = TrimAE(body[20:36])

	list, err := items(body[associateFixedLen:])
	if err != nil {
		return err
	}
	for _, it := range list {
		switch it.typ {
		case itemApplicationContext:
			a.ApplicationContext = trimUID(it.value)
		case pcType:
			pc, err := decodeContext(it.value)
			if err != nil {
				return err
			}
			a.PresentationContexts = append(a.PresentationContexts, pc)
		case itemUserInformation:
			if err := a.UserInfo.decode(it.value); err != nil {
				return err
			}
		}
	}
	if a.ApplicationContext == "" {
		return malformed("missing application context")
	}
	return nil
}

func decodeContext(data []byte) (PresentationContext, error) {
	if len(data) < 4 {
		return PresentationContext{}, malformed("presentation context length %d", len(data))
	}
	pc := PresentationContext{ID: data[0], Result: Result(data[2])}
	list, err := items(data[4:])
	if err != nil {
		return pc, err
	}
	for _, it := range list {
		switch it.typ {
		case itemAbstractSyntax:
			pc.AbstractSyntax = trimUID(it.value)
		case itemTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, trimUID(it.value))
		}
	}
	return pc, nil
}

func (ui *UserInfo) decode(data []byte) error {
	list, err := items(data)
	if err != nil {
		return err
	}
	for _, it := range list {
		switch it.typ {
		case itemMaxLength:
			if len(it.value) != 4 {
				return malformed("max length sub-item length %d", len(it.value))
			}
			ui.MaxPDULength = binary.BigEndian.Uint32(it.value)
		case itemImplementationClass:
			ui.ImplementationClassUID = trimUID(it.value)
		case itemImplementationVersion:
			ui.ImplementationVersionName = strings.TrimSpace(string(it.value))
		case itemAsyncOperations:
			if len(it.value) != 4 {
				return malformed("async operations sub-item length %d", len(it.value))
			}
			ui.AsyncOperations = &AsyncOperations{
				MaxInvoked:   binary.BigEndian.Uint16(it.value),
				MaxPerformed: binary.BigEndian.Uint16(it.value[2:]),
			}
		}
	}
	return nil
}
