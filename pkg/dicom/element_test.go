package dicom

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementKinds(t *testing.T) {
	tests := []struct {
		vr   vr.VR
		kind Kind
	}{
		{vr.PN, KindString},
		{vr.DA, KindDate},
		{vr.US, KindNumeric},
		{vr.SQ, KindSequence},
		{vr.OB, KindBinary},
		{vr.UN, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.vr), func(t *testing.T) {
			e := &Element{VR: tt.vr}
			assert.Equal(t, tt.kind, e.Kind())
		})
	}
}

func TestStringValues(t *testing.T) {
	e, err := NewElement(tag.ImageType, vr.CS, []string{"ORIGINAL", "PRIMARY", "AXIAL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORIGINAL", "PRIMARY", "AXIAL"}, e.Strings())
	assert.Equal(t, `ORIGINAL\PRIMARY\AXIAL`, e.ValueString())
	assert.Equal(t, 0, e.Len()%2)

	// text VRs are never split
	txt, err := NewElement(tag.ImageComments, vr.LT, `a\b`)
	require.NoError(t, err)
	assert.Equal(t, []string{`a\b`}, txt.Strings())

	uid, err := NewElement(tag.SOPInstanceUID, vr.UI, "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, []byte("1.2.3\x00"), uid.Data)
	s, ok := uid.GetString()
	assert.True(t, ok)
	assert.Equal(t, "1.2.3", s)

	_, ok = (&Element{VR: vr.US}).GetString()
	assert.False(t, ok)
}

func TestNumericValues(t *testing.T) {
	us, err := NewElement(tag.Rows, vr.US, []uint16{1, 512})
	require.NoError(t, err)
	v, ok := us.Uint16s()
	require.True(t, ok)
	assert.Equal(t, []uint16{1, 512}, v)
	assert.Equal(t, `1\512`, us.ValueString())

	ss := &Element{Tag: tag.New(0x0028, 0x0106), VR: vr.SS, Data: []byte{0xFF, 0xFF}}
	ints, ok := ss.GetInts()
	require.True(t, ok)
	assert.Equal(t, []int{-1}, ints)

	ds, err := NewElement(tag.PixelSpacing, vr.DS, []float64{0.5, 0.25})
	require.NoError(t, err)
	f, ok := ds.GetFloats()
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.25}, f)

	is, err := NewElement(tag.InstanceNumber, vr.IS, 42)
	require.NoError(t, err)
	n, ok := is.GetInt()
	require.True(t, ok)
	assert.Equal(t, 42, n)

	fd, err := NewElement(tag.New(0x0018, 0x9306), vr.FD, 0.625)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.625}, fd.Value())

	at, err := NewElement(tag.New(0x0020, 0x5000), vr.AT, tag.PatientName)
	require.NoError(t, err)
	tags, ok := at.Tags()
	require.True(t, ok)
	assert.Equal(t, []Tag{tag.PatientName}, tags)
}

func TestDateValues(t *testing.T) {
	d, err := NewElement(tag.StudyDate, vr.DA, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "20240102", string(d.Data))
	got, ok := d.GetTime()
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())

	bad := &Element{VR: vr.DA, Data: []byte("2024XX02")}
	_, ok = bad.GetTime()
	assert.False(t, ok)
	// unparsable dates fall back to their strings
	assert.Equal(t, []string{"2024XX02"}, bad.Value())
}

func TestEqualAcrossByteOrder(t *testing.T) {
	le := &Element{Tag: tag.Rows, VR: vr.US, Data: []byte{0x02, 0x01}}
	be := &Element{Tag: tag.Rows, VR: vr.US, Data: []byte{0x01, 0x02}, Order: binary.BigEndian}
	assert.True(t, le.Equal(be))
	assert.True(t, be.Equal(le))

	other := &Element{Tag: tag.Rows, VR: vr.US, Data: []byte{0x02, 0x01}, Order: binary.BigEndian}
	assert.False(t, le.Equal(other))
}

func TestSetValueAndClone(t *testing.T) {
	e, err := NewElement(tag.PatientName, vr.PN, "Doe^John")
	require.NoError(t, err)

	c := e.Clone()
	c.SetString("Anon")
	assert.Equal(t, "Doe^John", e.ValueString())
	assert.Equal(t, "Anon", c.ValueString())

	c.SetStrings("A", "B")
	assert.Equal(t, []string{"A", "B"}, c.Strings())

	c.Clear()
	assert.True(t, c.IsEmpty())

	seq := &Element{Tag: tag.ReferencedImageSequence, VR: vr.SQ}
	require.NoError(t, seq.SetValue([]*Dataset{{}}))
	assert.True(t, seq.UndefinedLength)
	assert.Error(t, e.SetValue([]*Dataset{{}}))
	assert.Error(t, e.SetValue(struct{}{}))
}

func TestElementString(t *testing.T) {
	e, err := NewElement(tag.PatientName, vr.PN, "Doe^John")
	require.NoError(t, err)
	assert.Equal(t, "[(0010,0010)] PN PatientName: Doe^John", e.String())

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"(0010,0010)","name":"PatientName","vr":"PN","value":["Doe^John"]}`, string(raw))
}
