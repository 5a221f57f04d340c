package dicom

import (
	"bytes"
	"log/slog"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// TryReadAs re-interprets the raw bytes of an element as another VR. Values
// of UN elements holding sequences are Implicit VR Little Endian. ok is false
// when the bytes cannot be decoded as v.
func (e *Element) TryReadAs(v vr.VR) (*Element, bool) {
	out := &Element{Tag: e.Tag, VR: v, Order: e.Order, UndefinedLength: e.UndefinedLength}
	switch {
	case v.IsSequence():
		rd := NewReader(bytes.NewReader(e.Data), transfer.ImplicitVRLittleEndian,
			WithMaxCorrections(1), WithLogger(slog.New(slog.DiscardHandler)))
		items, err := rd.readItems()
		if err != nil {
			slog.Debug("unknown element is not a sequence", "tag", e.Tag.String(), "err", err)
			return nil, false
		}
		out.Items = items
		return out, true
	case v.IsDate():
		out.Data = bytes.Clone(e.Data)
		if _, err := out.Times(); err != nil {
			slog.Debug("unknown element is not a date", "tag", e.Tag.String(), "vr", string(v), "err", err)
			return nil, false
		}
	case v == vr.DS || v == vr.IS:
		out.Data = bytes.Clone(e.Data)
		if _, ok := out.GetFloats(); !ok {
			return nil, false
		}
	case v == vr.AS:
		if _, err := ParseAge(string(e.Data)); err != nil {
			return nil, false
		}
		out.Data = bytes.Clone(e.Data)
	case v.ValueSize() > 0:
		if len(e.Data)%v.ValueSize() != 0 {
			return nil, false
		}
		out.Data = bytes.Clone(e.Data)
	default:
		out.Data = bytes.Clone(e.Data)
	}
	return out, true
}

// Resolve replaces UN elements whose tag has a dictionary VR with a typed
// reading of the same bytes. Elements that fail to convert are kept as UN.
func (ds *Dataset) Resolve() int {
	n := 0
	ds.Walk(func(e *Element) bool {
		if e.VR != vr.UN {
			return true
		}
		known, ok := tag.LookupVR(e.Tag)
		if !ok || known == vr.UN {
			return true
		}
		if typed, ok := e.TryReadAs(known); ok {
			*e = *typed
			n++
		}
		return true
	})
	return n
}
