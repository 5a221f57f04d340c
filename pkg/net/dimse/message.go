package dimse

import (
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

// Message is a command set with an optional data set, bound to the
// presentation context it travels on.
type Message struct {
	ContextID byte
	Command   *dicom.Dataset
	Data      *dicom.Dataset
}

// Field returns the command field.
func (m *Message) Field() CommandField {
	v, _ := uint16Of(m.Command, tag.CommandField)
	return CommandField(v)
}

// MessageID returns (0000,0110).
func (m *Message) MessageID() uint16 {
	v, _ := uint16Of(m.Command, tag.MessageID)
	return v
}

// RespondingTo returns (0000,0120).
func (m *Message) RespondingTo() uint16 {
	v, _ := uint16Of(m.Command, tag.MessageIDBeingRespondedTo)
	return v
}

// Status returns (0000,0900); requests report success.
func (m *Message) Status() Status {
	v, _ := uint16Of(m.Command, tag.Status)
	return Status(v)
}

// SOPClassUID returns the affected SOP class, or the requested one.
func (m *Message) SOPClassUID() string {
	if s, ok := m.Command.GetString(tag.AffectedSOPClassUID); ok {
		return s
	}
	s, _ := m.Command.GetString(tag.RequestedSOPClassUID)
	return s
}

// SOPInstanceUID returns the affected SOP instance.
func (m *Message) SOPInstanceUID() string {
	s, _ := m.Command.GetString(tag.AffectedSOPInstanceUID)
	return s
}

// HasDataSet reports whether the command announces a data set.
func (m *Message) HasDataSet() bool {
	v, ok := uint16Of(m.Command, tag.CommandDataSetType)
	return ok && v != NoDataSet
}

// Err returns a *StatusError for failed or cancelled responses.
func (m *Message) Err() error {
	s := m.Status()
	if !s.IsFailure() && !s.IsCancel() {
		return nil
	}
	comment, _ := m.Command.GetString(tag.ErrorComment)
	return &StatusError{Field: m.Field(), Status: s, Comment: comment}
}

func (m *Message) String() string {
	if m.Field().IsResponse() {
		return fmt.Sprintf("%s ctx=%d responding=%d status=0x%04X data=%t", m.Field(), m.ContextID, m.RespondingTo(), uint16(m.Status()), m.Data != nil)
	}
	return fmt.Sprintf("%s ctx=%d id=%d data=%t", m.Field(), m.ContextID, m.MessageID(), m.Data != nil)
}

// Encode sets (0000,0800) from the presence of Data, encodes the data set in
// the syntax and fragments both streams for maxPDU.
func (m *Message) Encode(syntax transfer.Syntax, maxPDU uint32) ([]pdu.PDV, error) {
	dst := DataSetPresent
	if m.Data == nil {
		dst = NoDataSet
	}
	m.Command.Set(element(tag.CommandDataSetType, dst))
	cmd, err := EncodeCommand(m.Command)
	if err != nil {
		return nil, err
	}
	var data []byte
	if m.Data != nil {
		if data, err = dicom.EncodeDataset(m.Data, syntax); err != nil {
			return nil, fmt.Errorf("encoding %s data set: %w", m.Field(), err)
		}
		if data == nil {
			data = []byte{}
		}
	}
	return Fragment(m.ContextID, cmd, data, maxPDU), nil
}

// Fragment splits the command and data streams into PDVs whose items fit a
// P-DATA-TF of maxPDU bytes. A zero maxPDU sends each stream whole. The last
// PDV of each stream carries the last fragment bit.
func Fragment(contextID byte, command, data []byte, maxPDU uint32) []pdu.PDV {
	chunk := len(command) + len(data)
	if maxPDU > pdu.PDVOverhead {
		chunk = int(maxPDU) - pdu.PDVOverhead
	}
	if chunk <= 0 {
		chunk = 1
	}
	out := split(nil, contextID, true, command, chunk)
	if data != nil {
		out = split(out, contextID, false, data, chunk)
	}
	return out
}

func split(out []pdu.PDV, contextID byte, command bool, b []byte, chunk int) []pdu.PDV {
	for {
		n := min(len(b), chunk)
		out = append(out, pdu.PDV{ContextID: contextID, Command: command, Last: n == len(b), Data: b[:n]})
		b = b[n:]
		if len(b) == 0 {
			return out
		}
	}
}

// NewEcho builds a C-ECHO-RQ.
func NewEcho(id uint16) *Message {
	return &Message{Command: commandSet(CEchoRQ,
		element(tag.AffectedSOPClassUID, dicom.VerificationSOPClassUID),
		element(tag.MessageID, id),
	)}
}

// NewFind builds a C-FIND-RQ with its identifier.
func NewFind(id uint16, sopClass string, priority Priority, identifier *dicom.Dataset) *Message {
	return &Message{Command: commandSet(CFindRQ,
		element(tag.AffectedSOPClassUID, sopClass),
		element(tag.MessageID, id),
		element(tag.Priority, uint16(priority)),
	), Data: identifier}
}

// NewStore builds a C-STORE-RQ for the instance in data.
func NewStore(id uint16, sopClass, sopInstance string, priority Priority, data *dicom.Dataset) *Message {
	return &Message{Command: commandSet(CStoreRQ,
		element(tag.AffectedSOPClassUID, sopClass),
		element(tag.AffectedSOPInstanceUID, sopInstance),
		element(tag.MessageID, id),
		element(tag.Priority, uint16(priority)),
	), Data: data}
}

// NewMove builds a C-MOVE-RQ sending matches to destination.
func NewMove(id uint16, sopClass, destination string, priority Priority, identifier *dicom.Dataset) *Message {
	return &Message{Command: commandSet(CMoveRQ,
		element(tag.AffectedSOPClassUID, sopClass),
		element(tag.MessageID, id),
		element(tag.MoveDestination, destination),
		element(tag.Priority, uint16(priority)),
	), Data: identifier}
}

// NewGet builds a C-GET-RQ.
func NewGet(id uint16, sopClass string, priority Priority, identifier *dicom.Dataset) *Message {
	return &Message{Command: commandSet(CGetRQ,
		element(tag.AffectedSOPClassUID, sopClass),
		element(tag.MessageID, id),
		element(tag.Priority, uint16(priority)),
	), Data: identifier}
}

// NewCancel builds a C-CANCEL-RQ for an outstanding request.
func NewCancel(contextID byte, respondingTo uint16) *Message {
	return &Message{ContextID: contextID, Command: commandSet(CCancelRQ,
		element(tag.MessageIDBeingRespondedTo, respondingTo),
	)}
}

// NewResponse answers rq on the same presentation context.
func NewResponse(rq *Message, status Status, data *dicom.Dataset) *Message {
	elems := []*dicom.Element{
		element(tag.MessageIDBeingRespondedTo, rq.MessageID()),
		element(tag.Status, uint16(status)),
	}
	if uid := rq.SOPClassUID(); uid != "" {
		elems = append(elems, element(tag.AffectedSOPClassUID, uid))
	}
	if uid := rq.SOPInstanceUID(); uid != "" {
		elems = append(elems, element(tag.AffectedSOPInstanceUID, uid))
	}
	return &Message{
		ContextID: rq.ContextID,
		Command:   commandSet(rq.Field().Response(), elems...),
		Data:      data,
	}
}

// WithComment adds an error comment to a response.
func (m *Message) WithComment(comment string) *Message {
	m.Command.Set(element(tag.ErrorComment, comment))
	return m
}
