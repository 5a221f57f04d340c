package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// message control header bits
const (
	controlCommand byte = 0x01
	controlLast    byte = 0x02
)

// PDVOverhead is the size of the PDV item length, context ID and control
// header preceding each fragment.
const PDVOverhead = 6

// PDV is one presentation data value: a fragment of a command or data set.
type PDV struct {
	ContextID byte
	Command   bool
	Last      bool
	Data      []byte
}

func (v PDV) control() byte {
	var c byte
	if v.Command {
		c |= controlCommand
	}
	if v.Last {
		c |= controlLast
	}
	return c
}

func (v PDV) String() string {
	kind := "data"
	if v.Command {
		kind = "command"
	}
	return fmt.Sprintf("PDV ctx=%d %s last=%t len=%d", v.ContextID, kind, v.Last, len(v.Data))
}

// PDataTF carries one or more PDVs.
type PDataTF struct {
	Items []PDV
}

func (*PDataTF) Type() Type { return TypePDataTF }

func (p *PDataTF) encode(b *bytes.Buffer) error {
	for _, v := range p.Items {
		b.Write(binary.BigEndian.AppendUint32(nil, uint32(len(v.Data)+2)))
		b.WriteByte(v.ContextID)
		b.WriteByte(v.control())
		b.Write(v.Data)
	}
	return nil
}

func (p *PDataTF) decode(body []byte) error {
	for off := 0; off < len(body); {
		if off+4 > len(body) {
			return malformed("truncated PDV length at %d", off)
		}
		n := int(binary.BigEndian.Uint32(body[off:]))
		if n < 2 || off+4+n > len(body) {
			return malformed("PDV length %d at %d", n, off)
		}
		item := body[off+4 : off+4+n]
		if item[1]&^(controlCommand|controlLast) != 0 {
			return malformed("PDV control header 0x%02x", item[1])
		}
		p.Items = append(p.Items, PDV{
			ContextID: item[0],
			Command:   item[1]&controlCommand != 0,
			Last:      item[1]&controlLast != 0,
			Data:      item[2:],
		})
		off += 4 + n
	}
	if len(p.Items) == 0 {
		return malformed("P-DATA-TF without PDVs")
	}
	return nil
}

func (p *PDataTF) String() string {
	return fmt.Sprintf("P-DATA-TF pdvs=%d", len(p.Items))
}
