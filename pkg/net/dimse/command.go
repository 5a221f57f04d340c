// Package dimse builds, fragments and reassembles DIMSE messages: a command
// set in Implicit VR Little Endian plus an optional data set in the
// negotiated transfer syntax of its presentation context.
package dimse

import (
	"errors"
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// CommandField identifies a DIMSE operation.
type CommandField uint16

const (
	CStoreRQ  CommandField = 0x0001
	CStoreRSP CommandField = 0x8001
	CGetRQ    CommandField = 0x0010
	CGetRSP   CommandField = 0x8010
	CFindRQ   CommandField = 0x0020
	CFindRSP  CommandField = 0x8020
	CMoveRQ   CommandField = 0x0021
	CMoveRSP  CommandField = 0x8021
	CEchoRQ   CommandField = 0x0030
	CEchoRSP  CommandField = 0x8030
	CCancelRQ CommandField = 0x0FFF
)

// IsResponse reports whether the field is a response.
func (f CommandField) IsResponse() bool {
	return f&0x8000 != 0
}

// Response returns the response field for a request.
func (f CommandField) Response() CommandField {
	return f | 0x8000
}

func (f CommandField) String() string {
	switch f {
	case CStoreRQ:
		return "C-STORE-RQ"
	case CStoreRSP:
		return "C-STORE-RSP"
	case CGetRQ:
		return "C-GET-RQ"
	case CGetRSP:
		return "C-GET-RSP"
	case CFindRQ:
		return "C-FIND-RQ"
	case CFindRSP:
		return "C-FIND-RSP"
	case CMoveRQ:
		return "C-MOVE-RQ"
	case CMoveRSP:
		return "C-MOVE-RSP"
	case CEchoRQ:
		return "C-ECHO-RQ"
	case CEchoRSP:
		return "C-ECHO-RSP"
	case CCancelRQ:
		return "C-CANCEL-RQ"
	}
	return fmt.Sprintf("command(0x%04x)", uint16(f))
}

// CommandDataSetType values
const (
	NoDataSet      uint16 = 0x0101
	DataSetPresent uint16 = 0x0000
)

// Priority of a request.
type Priority uint16

const (
	PriorityMedium Priority = 0x0000
	PriorityHigh   Priority = 0x0001
	PriorityLow    Priority = 0x0002
)

// ErrCommand is returned for command sets missing required fields.
var ErrCommand = errors.New("dimse: invalid command set")

// EncodeCommand renders a command set in Implicit VR Little Endian with a
// freshly computed (0000,0000) group length. Elements outside group 0000 are
// dropped.
func EncodeCommand(cmd *dicom.Dataset) ([]byte, error) {
	body := &dicom.Dataset{}
	for _, e := range cmd.Elements {
		if e.Tag.IsCommand() && e.Tag != tag.CommandGroupLength {
			body.Add(e)
		}
	}
	b, err := dicom.EncodeDataset(body, transfer.ImplicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	gl, err := dicom.NewElement(tag.CommandGroupLength, vr.UL, uint32(len(b)))
	if err != nil {
		return nil, err
	}
	head, err := dicom.EncodeDataset(&dicom.Dataset{Elements: []*dicom.Element{gl}}, transfer.ImplicitVRLittleEndian)
	if err != nil {
		return nil, err
	}
	return append(head, b...), nil
}

// DecodeCommand parses a command set and checks for a command field.
func DecodeCommand(b []byte) (*dicom.Dataset, error) {
	cmd, err := dicom.DecodeDataset(b, transfer.ImplicitVRLittleEndian, dicom.WithMaxCorrections(1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommand, err)
	}
	if _, ok := uint16Of(cmd, tag.CommandField); !ok {
		return nil, fmt.Errorf("%w: missing command field", ErrCommand)
	}
	return cmd, nil
}

func uint16Of(ds *dicom.Dataset, t dicom.Tag) (uint16, bool) {
	e, ok := ds.Find(t)
	if !ok {
		return 0, false
	}
	return e.GetUint16()
}

// element builds command elements whose values are known to encode.
func element(t dicom.Tag, value any) *dicom.Element {
	v, _ := tag.LookupVR(t)
	e, err := dicom.NewElement(t, v, value)
	if err != nil {
		panic(fmt.Sprintf("dimse: encoding %v: %v", t, err))
	}
	return e
}

func commandSet(field CommandField, elems ...*dicom.Element) *dicom.Dataset {
	ds := &dicom.Dataset{}
	ds.Set(element(tag.CommandField, uint16(field)))
	ds.Set(element(tag.CommandDataSetType, NoDataSet))
	for _, e := range elems {
		ds.Set(e)
	}
	return ds
}
