package dimse

import (
	"errors"
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

// ErrUnexpectedFragment is returned for fragments of a stream that is
// already complete.
var ErrUnexpectedFragment = errors.New("dimse: unexpected fragment")

type stream struct {
	command     []byte
	data        []byte
	cmd         *dicom.Dataset
	commandDone bool
	dataDone    bool
}

// Assembled is a complete message whose data set is still encoded.
type Assembled struct {
	ContextID byte
	Command   *dicom.Dataset
	Data      []byte
}

// Decode parses the data set with the context's transfer syntax.
func (a *Assembled) Decode(syntax transfer.Syntax) (*Message, error) {
	m := &Message{ContextID: a.ContextID, Command: a.Command}
	if a.Data == nil {
		return m, nil
	}
	ds, err := dicom.DecodeDataset(a.Data, syntax)
	if err != nil {
		return nil, fmt.Errorf("decoding %s data set: %w", m.Field(), err)
	}
	m.Data = ds
	return m, nil
}

// Assembler reassembles PDVs into messages. Each presentation context is an
// independent stream, so fragments of different contexts may interleave.
// An Assembler belongs to one receive loop and is not safe for concurrent use.
type Assembler struct {
	streams map[byte]*stream
}

func NewAssembler() *Assembler {
	return &Assembler{streams: map[byte]*stream{}}
}

// Pending returns the number of contexts with a partial message.
func (a *Assembler) Pending() int {
	return len(a.streams)
}

// Add consumes one PDV and returns the message it completes, if any.
func (a *Assembler) Add(v pdu.PDV) (*Assembled, error) {
	s, ok := a.streams[v.ContextID]
	if !ok {
		s = &stream{}
		a.streams[v.ContextID] = s
	}
	if v.Command {
		if s.commandDone {
			delete(a.streams, v.ContextID)
			return nil, fmt.Errorf("%w: command fragment on context %d after a complete command", ErrUnexpectedFragment, v.ContextID)
		}
		s.command = append(s.command, v.Data...)
		if v.Last {
			cmd, err := DecodeCommand(s.command)
			if err != nil {
				delete(a.streams, v.ContextID)
				return nil, err
			}
			s.cmd, s.commandDone = cmd, true
		}
	} else {
		if s.dataDone {
			delete(a.streams, v.ContextID)
			return nil, fmt.Errorf("%w: data fragment on context %d after a complete data set", ErrUnexpectedFragment, v.ContextID)
		}
		s.data = append(s.data, v.Data...)
		s.dataDone = v.Last
	}

	if !s.commandDone {
		return nil, nil
	}
	hasData := (&Message{Command: s.cmd}).HasDataSet()
	if hasData && !s.dataDone {
		return nil, nil
	}
	delete(a.streams, v.ContextID)
	out := &Assembled{ContextID: v.ContextID, Command: s.cmd}
	if hasData {
		out.Data = s.data
		if out.Data == nil {
			out.Data = []byte{}
		}
	}
	return out, nil
}
