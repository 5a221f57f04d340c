package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// Tag alias to avoid duplication
type Tag = tag.Tag

// Kind is the value category an element's VR decodes into.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindNumeric
	KindDate
	KindSequence
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumeric:
		return "numeric"
	case KindDate:
		return "date"
	case KindSequence:
		return "sequence"
	case KindBinary:
		return "binary"
	}
	return "unknown"
}

// Element represents a single DICOM element. Data holds the value bytes
// exactly as read or encoded; typed views are decoded from it on demand.
type Element struct {
	Tag   Tag
	VR    vr.VR
	Data  []byte
	Items []*Dataset // SQ only

	// UndefinedLength records that the value was (or will be) written with
	// the 0xFFFFFFFF length and a trailing sequence delimiter.
	UndefinedLength bool

	// Order is the byte order of binary values in Data. nil means little endian.
	Order binary.ByteOrder
}

// NewElement builds an element from a Go value using the given VR. The value
// is encoded little endian; see encodeValue for the accepted types.
func NewElement(t Tag, v vr.VR, value any) (*Element, error) {
	e := &Element{Tag: t, VR: v}
	if err := e.SetValue(value); err != nil {
		return nil, fmt.Errorf("element %v: %w", t, err)
	}
	return e, nil
}

// Kind returns the value category for the element's VR.
func (e *Element) Kind() Kind {
	switch {
	case e.VR.IsSequence():
		return KindSequence
	case e.VR.IsDate():
		return KindDate
	case e.VR.IsString():
		return KindString
	case e.VR.IsNumeric():
		return KindNumeric
	case e.VR == vr.UN || e.VR == vr.Null:
		return KindUnknown
	}
	return KindBinary
}

func (e *Element) order() binary.ByteOrder {
	if e.Order == nil {
		return binary.LittleEndian
	}
	return e.Order
}

// Len is the number of value bytes, excluding any sequence items.
func (e *Element) Len() int {
	return len(e.Data)
}

// IsEmpty returns true when the element carries no value bytes and no items.
func (e *Element) IsEmpty() bool {
	return len(e.Data) == 0 && len(e.Items) == 0
}

// Value returns the typed view of the element: []string for strings,
// []time.Time for parsable dates, a numeric slice for binary numbers,
// []*Dataset for sequences and []byte otherwise.
func (e *Element) Value() any {
	switch e.Kind() {
	case KindSequence:
		return e.Items
	case KindString:
		return e.Strings()
	case KindDate:
		if ts, err := e.Times(); err == nil {
			return ts
		}
		return e.Strings()
	case KindNumeric:
		if v, ok := e.numbers(); ok {
			return v
		}
	}
	return e.Data
}

// String value accessors

// Strings splits a string value on backslash and trims padding from each
// component. Text VRs (LT, ST, UT, UR) are never split.
func (e *Element) Strings() []string {
	if len(e.Data) == 0 {
		return nil
	}
	s := trimPadding(string(e.Data))
	if e.VR.IsText() {
		return []string{s}
	}
	parts := strings.Split(s, `\`)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// GetString returns the first string value of the element.
func (e *Element) GetString() (string, bool) {
	if !e.VR.IsString() && e.VR != vr.UN {
		return "", false
	}
	vals := e.Strings()
	if len(vals) == 0 {
		return "", true
	}
	return vals[0], true
}

// ValueString renders the value for display and matching: strings joined
// with backslash, numbers in decimal, binary as a length summary.
func (e *Element) ValueString() string {
	switch e.Kind() {
	case KindString, KindDate:
		return strings.Join(e.Strings(), `\`)
	case KindSequence:
		return fmt.Sprintf("Sequence (%d items)", len(e.Items))
	case KindNumeric:
		v, ok := e.numbers()
		if !ok {
			break
		}
		return joinNumbers(v)
	}
	if len(e.Data) > 20 {
		return fmt.Sprintf("Binary Data (%d bytes)", len(e.Data))
	}
	return fmt.Sprintf("%v", e.Data)
}

func trimPadding(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

// Numeric accessors

// GetUint16 returns the first US value.
func (e *Element) GetUint16() (uint16, bool) {
	vals, ok := e.Uint16s()
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// Uint16s decodes US, SS or OW data as unsigned 16-bit values.
func (e *Element) Uint16s() ([]uint16, bool) {
	if (e.VR != vr.US && e.VR != vr.SS && e.VR != vr.OW) || len(e.Data)%2 != 0 {
		return nil, false
	}
	o := e.order()
	out := make([]uint16, len(e.Data)/2)
	for i := range out {
		out[i] = o.Uint16(e.Data[i*2:])
	}
	return out, true
}

// GetUint32 returns the first UL value.
func (e *Element) GetUint32() (uint32, bool) {
	vals, ok := e.Uint32s()
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// Uint32s decodes UL, SL or OL data as unsigned 32-bit values.
func (e *Element) Uint32s() ([]uint32, bool) {
	if (e.VR != vr.UL && e.VR != vr.SL && e.VR != vr.OL) || len(e.Data)%4 != 0 {
		return nil, false
	}
	o := e.order()
	out := make([]uint32, len(e.Data)/4)
	for i := range out {
		out[i] = o.Uint32(e.Data[i*4:])
	}
	return out, true
}

// GetInt returns the first value as an int, parsing IS/DS strings and
// widening binary integers.
func (e *Element) GetInt() (int, bool) {
	vals, ok := e.GetInts()
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// GetInts returns all values as ints.
func (e *Element) GetInts() ([]int, bool) {
	switch e.VR {
	case vr.IS:
		v, err := ParseIntegers(string(e.Data))
		return v, err == nil
	case vr.DS:
		f, err := ParseDecimals(string(e.Data))
		if err != nil {
			return nil, false
		}
		out := make([]int, len(f))
		for i, x := range f {
			out[i] = int(x)
		}
		return out, true
	case vr.US, vr.OW:
		u, ok := e.Uint16s()
		return widen(u, func(x uint16) int { return int(x) }), ok
	case vr.SS:
		u, ok := e.Uint16s()
		return widen(u, func(x uint16) int { return int(int16(x)) }), ok
	case vr.UL, vr.OL:
		u, ok := e.Uint32s()
		return widen(u, func(x uint32) int { return int(x) }), ok
	case vr.SL:
		u, ok := e.Uint32s()
		return widen(u, func(x uint32) int { return int(int32(x)) }), ok
	}
	return nil, false
}

// GetFloats returns all values as float64, parsing DS/IS strings.
func (e *Element) GetFloats() ([]float64, bool) {
	o := e.order()
	switch e.VR {
	case vr.DS, vr.IS:
		v, err := ParseDecimals(string(e.Data))
		return v, err == nil
	case vr.FL, vr.OF:
		if len(e.Data)%4 != 0 {
			return nil, false
		}
		out := make([]float64, len(e.Data)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(o.Uint32(e.Data[i*4:])))
		}
		return out, true
	case vr.FD, vr.OD:
		if len(e.Data)%8 != 0 {
			return nil, false
		}
		out := make([]float64, len(e.Data)/8)
		for i := range out {
			out[i] = math.Float64frombits(o.Uint64(e.Data[i*8:]))
		}
		return out, true
	}
	if ints, ok := e.GetInts(); ok {
		return widen(ints, func(x int) float64 { return float64(x) }), true
	}
	return nil, false
}

// Tags decodes an AT value.
func (e *Element) Tags() ([]Tag, bool) {
	if e.VR != vr.AT || len(e.Data)%4 != 0 {
		return nil, false
	}
	o := e.order()
	out := make([]Tag, len(e.Data)/4)
	for i := range out {
		out[i] = tag.New(o.Uint16(e.Data[i*4:]), o.Uint16(e.Data[i*4+2:]))
	}
	return out, true
}

func (e *Element) numbers() (any, bool) {
	switch e.VR {
	case vr.US:
		return e.Uint16s()
	case vr.SS:
		u, ok := e.Uint16s()
		return widen(u, func(x uint16) int16 { return int16(x) }), ok
	case vr.UL:
		return e.Uint32s()
	case vr.SL:
		u, ok := e.Uint32s()
		return widen(u, func(x uint32) int32 { return int32(x) }), ok
	case vr.FL, vr.FD:
		return e.GetFloats()
	case vr.AT:
		return e.Tags()
	}
	return nil, false
}

func widen[T, U any](in []T, f func(T) U) []U {
	if in == nil {
		return nil
	}
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func joinNumbers(v any) string {
	var parts []string
	switch vals := v.(type) {
	case []uint16:
		for _, x := range vals {
			parts = append(parts, strconv.FormatUint(uint64(x), 10))
		}
	case []int16:
		for _, x := range vals {
			parts = append(parts, strconv.FormatInt(int64(x), 10))
		}
	case []uint32:
		for _, x := range vals {
			parts = append(parts, strconv.FormatUint(uint64(x), 10))
		}
	case []int32:
		for _, x := range vals {
			parts = append(parts, strconv.FormatInt(int64(x), 10))
		}
	case []float64:
		for _, x := range vals {
			parts = append(parts, strconv.FormatFloat(x, 'g', -1, 64))
		}
	case []Tag:
		for _, x := range vals {
			parts = append(parts, x.String())
		}
	}
	return strings.Join(parts, `\`)
}

// Date accessors

// Times parses every value of a DA, TM or DT element.
func (e *Element) Times() ([]time.Time, error) {
	var parse func(string) (time.Time, error)
	switch e.VR {
	case vr.DA:
		parse = ParseDate
	case vr.TM:
		parse = ParseTime
	case vr.DT:
		parse = ParseDateTime
	default:
		return nil, fmt.Errorf("%s is not a date VR", e.VR)
	}
	var out []time.Time
	for _, s := range e.Strings() {
		if s == "" {
			continue
		}
		t, err := parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTime returns the first parsed DA/TM/DT value.
func (e *Element) GetTime() (time.Time, bool) {
	ts, err := e.Times()
	if err != nil || len(ts) == 0 {
		return time.Time{}, false
	}
	return ts[0], true
}

// In-place rewrites

// SetString replaces the value with a single string, padded to even length.
func (e *Element) SetString(s string) {
	e.SetStrings(s)
}

// SetStrings replaces the value with backslash separated strings.
func (e *Element) SetStrings(vals ...string) {
	e.Data = padEven([]byte(strings.Join(vals, `\`)), e.VR.PadByte())
	e.Items = nil
	e.UndefinedLength = false
	e.Order = nil
}

// SetBytes replaces the raw value bytes.
func (e *Element) SetBytes(b []byte) {
	e.Data = b
	e.Items = nil
	e.UndefinedLength = false
}

// Clear empties the value while keeping the element in place.
func (e *Element) Clear() {
	e.Data = nil
	e.Items = nil
	e.UndefinedLength = false
}

// SetValue encodes a Go value into the element according to its VR.
func (e *Element) SetValue(value any) error {
	if items, ok := value.([]*Dataset); ok {
		if !e.VR.IsSequence() {
			return fmt.Errorf("sequence items for VR %s", e.VR)
		}
		e.Data = nil
		e.Items = items
		e.UndefinedLength = true
		return nil
	}
	b, err := encodeValue(value, e.VR)
	if err != nil {
		return err
	}
	e.Data = b
	e.Items = nil
	e.UndefinedLength = false
	e.Order = nil
	return nil
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	c := *e
	c.Data = bytes.Clone(e.Data)
	if e.Items != nil {
		c.Items = make([]*Dataset, len(e.Items))
		for i, item := range e.Items {
			c.Items[i] = item.Clone()
		}
	}
	return &c
}

// Equal compares tag, VR and value bytes. Binary values held in different
// byte orders are compared after normalizing to e's order.
func (e *Element) Equal(o *Element) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Tag != o.Tag || e.VR != o.VR || len(e.Items) != len(o.Items) {
		return false
	}
	other := o.Data
	if e.order() != o.order() {
		other = swapOrder(o.Data, e.VR)
	}
	if !bytes.Equal(e.Data, other) {
		return false
	}
	for i := range e.Items {
		if !e.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

func padEven(b []byte, pad byte) []byte {
	if len(b)%2 != 0 {
		b = append(b, pad)
	}
	return b
}

// swapUnit is the width of the binary words that byte order applies to.
func swapUnit(v vr.VR) int {
	switch v {
	case vr.US, vr.SS, vr.OW, vr.AT:
		return 2
	case vr.UL, vr.SL, vr.FL, vr.OF, vr.OL:
		return 4
	case vr.FD, vr.OD:
		return 8
	}
	return 0
}

// swapOrder returns a copy of data with every word of the VR reversed.
func swapOrder(data []byte, v vr.VR) []byte {
	n := swapUnit(v)
	if n == 0 || len(data)%n != 0 {
		return data
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += n {
		for j := 0; j < n; j++ {
			out[i+j] = data[i+n-1-j]
		}
	}
	return out
}

// syntaxOrder returns nil for little endian so elements compare equal to
// programmatically built ones.
func syntaxOrder(s transfer.Syntax) binary.ByteOrder {
	if s.IsLittleEndian() {
		return nil
	}
	return binary.BigEndian
}
