// Package pdu encodes and decodes the upper layer protocol data units
// exchanged over a DICOM association.
package pdu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Type is the first byte of a PDU.
type Type byte

const (
	TypeAssociateRQ Type = 0x01
	TypeAssociateAC Type = 0x02
	TypeAssociateRJ Type = 0x03
	TypePDataTF     Type = 0x04
	TypeReleaseRQ   Type = 0x05
	TypeReleaseRP   Type = 0x06
	TypeAbort       Type = 0x07
)

func (t Type) String() string {
	switch t {
	case TypeAssociateRQ:
		return "A-ASSOCIATE-RQ"
	case TypeAssociateAC:
		return "A-ASSOCIATE-AC"
	case TypeAssociateRJ:
		return "A-ASSOCIATE-RJ"
	case TypePDataTF:
		return "P-DATA-TF"
	case TypeReleaseRQ:
		return "A-RELEASE-RQ"
	case TypeReleaseRP:
		return "A-RELEASE-RP"
	case TypeAbort:
		return "A-ABORT"
	}
	return fmt.Sprintf("PDU(0x%02x)", byte(t))
}

const (
	headerLen = 6

	// ProtocolVersion is the only upper layer version defined.
	ProtocolVersion uint16 = 0x0001

	// ApplicationContextName is the DICOM application context.
	ApplicationContextName = "1.2.840.10008.3.1.1.1"

	// DefaultMaxPDULength is proposed when no other limit is configured.
	DefaultMaxPDULength uint32 = 16384

	// MaxReadLength bounds the body of any PDU accepted by Read.
	MaxReadLength uint32 = 64 << 20
)

var (
	// ErrMalformed marks structurally invalid PDUs. Associations abort on it.
	ErrMalformed = errors.New("pdu: malformed")
	// ErrAETitle is returned for application entity titles longer than 16 characters.
	ErrAETitle = errors.New("pdu: AE title longer than 16 characters")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// PDU is implemented by every decoded protocol data unit.
type PDU interface {
	Type() Type
	encode(b *bytes.Buffer) error
}

// Encode renders p with its 6 byte header.
func Encode(p PDU) ([]byte, error) {
	var body bytes.Buffer
	if err := p.encode(&body); err != nil {
		return nil, fmt.Errorf("encoding %v: %w", p.Type(), err)
	}
	out := make([]byte, headerLen, headerLen+body.Len())
	out[0] = byte(p.Type())
	binary.BigEndian.PutUint32(out[2:], uint32(body.Len()))
	return append(out, body.Bytes()...), nil
}

// Write encodes p and writes it in a single call.
func Write(w io.Writer, p PDU) error {
	raw, err := Encode(p)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// ReadRaw reads one framed PDU and returns its type and body. Bodies longer
// than limit are malformed; a zero limit means MaxReadLength. io.EOF is only
// returned when the stream ends before the first header byte.
func ReadRaw(r io.Reader, limit uint32) (Type, []byte, error) {
	if limit == 0 {
		limit = MaxReadLength
	}
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	t := Type(hdr[0])
	n := binary.BigEndian.Uint32(hdr[2:])
	if n > limit {
		return t, nil, malformed("%v length %d exceeds %d", t, n, limit)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return t, nil, fmt.Errorf("reading %v body: %w", t, err)
	}
	return t, body, nil
}

// Read reads and decodes one PDU.
func Read(r io.Reader, limit uint32) (PDU, error) {
	t, body, err := ReadRaw(r, limit)
	if err != nil {
		return nil, err
	}
	return Decode(t, body)
}

// Decode parses the body of a PDU of type t.
func Decode(t Type, body []byte) (PDU, error) {
	switch t {
	case TypeAssociateRQ:
		rq := &AssociateRQ{}
		return rq, rq.decode(body)
	case TypeAssociateAC:
		ac := &AssociateAC{}
		return ac, ac.decode(body)
	case TypeAssociateRJ:
		if len(body) != 4 {
			return nil, malformed("A-ASSOCIATE-RJ length %d", len(body))
		}
		return &AssociateRJ{Result: RejectResult(body[1]), Source: RejectSource(body[2]), Reason: RejectReason(body[3])}, nil
	case TypePDataTF:
		p := &PDataTF{}
		return p, p.decode(body)
	case TypeReleaseRQ, TypeReleaseRP:
		if len(body) != 4 {
			return nil, malformed("%v length %d", t, len(body))
		}
		if t == TypeReleaseRQ {
			return &ReleaseRQ{}, nil
		}
		return &ReleaseRP{}, nil
	case TypeAbort:
		if len(body) != 4 {
			return nil, malformed("A-ABORT length %d", len(body))
		}
		return &Abort{Source: AbortSource(body[2]), Reason: AbortReason(body[3])}, nil
	}
	return nil, malformed("unknown PDU type 0x%02x", byte(t))
}

// PadAE returns the 16 byte space padded form of an AE title.
func PadAE(ae string) ([16]byte, error) {
	var out [16]byte
	ae = strings.TrimSpace(ae)
	if len(ae) > 16 {
		return out, fmt.Errorf("%w: %q", ErrAETitle, ae)
	}
	copy(out[:], ae)
	for i := len(ae); i < 16; i++ {
		out[i] = ' '
	}
	return out, nil
}

// TrimAE strips padding from a received AE title.
func TrimAE(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(string(raw))
}

func trimUID(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00 ")
}

// ReleaseRQ asks the peer to release the association.
type ReleaseRQ struct{}

func (*ReleaseRQ) Type() Type { return TypeReleaseRQ }

func (*ReleaseRQ) encode(b *bytes.Buffer) error {
	b.Write(make([]byte, 4))
	return nil
}

func (*ReleaseRQ) String() string { return "A-RELEASE-RQ" }

// ReleaseRP confirms a release.
type ReleaseRP struct{}

func (*ReleaseRP) Type() Type { return TypeReleaseRP }

func (*ReleaseRP) encode(b *bytes.Buffer) error {
	b.Write(make([]byte, 4))
	return nil
}

func (*ReleaseRP) String() string { return "A-RELEASE-RP" }
