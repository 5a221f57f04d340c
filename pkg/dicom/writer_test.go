package dicom

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLength(t *testing.T) {
	tests := []struct {
		name    string
		enc     vr.Encoding
		order   binary.ByteOrder
		length  uint32
		want    []byte
		wantErr error
	}{
		{"short max", vr.ExplicitShort, binary.LittleEndian, 65535, []byte{0xFF, 0xFF}, nil},
		{"short overflow", vr.ExplicitShort, binary.LittleEndian, 70000, nil, ErrLengthOverflow},
		{"short big endian", vr.ExplicitShort, binary.BigEndian, 0x0102, []byte{0x01, 0x02}, nil},
		{"long reserved", vr.ExplicitLong, binary.LittleEndian, 70000, []byte{0, 0, 0x70, 0x11, 0x01, 0x00}, nil},
		{"implicit", vr.Implicit, binary.LittleEndian, 70000, []byte{0x70, 0x11, 0x01, 0x00}, nil},
		{"undefined", vr.ExplicitLong, binary.BigEndian, undefinedLength, []byte{0, 0, 0xFF, 0xFF, 0xFF, 0xFF}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppendLength(nil, tt.enc, tt.order, tt.length)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteElementLengthOverflow(t *testing.T) {
	long := &Element{Tag: tag.PatientComments, VR: vr.LO, Data: bytes.Repeat([]byte{'a'}, 70000)}

	var buf bytes.Buffer
	err := NewWriter(&buf, transfer.ExplicitVRLittleEndian).WriteElement(long)
	assert.ErrorIs(t, err, ErrLengthOverflow)

	// implicit lengths are four bytes wide
	buf.Reset()
	require.NoError(t, NewWriter(&buf, transfer.ImplicitVRLittleEndian).WriteElement(long))
	assert.Equal(t, 8+70000, buf.Len())

	fits := &Element{Tag: tag.PatientComments, VR: vr.LO, Data: bytes.Repeat([]byte{'a'}, 65535)}
	buf.Reset()
	require.NoError(t, NewWriter(&buf, transfer.ExplicitVRLittleEndian).WriteElement(fits))
	assert.Equal(t, []byte{0xFF, 0xFF}, buf.Bytes()[6:8])
}

func TestWriteConvertsByteOrder(t *testing.T) {
	// values read from a big endian stream are converted for little endian output
	e := &Element{Tag: tag.Rows, VR: vr.US, Data: []byte{0x01, 0x02}, Order: binary.BigEndian}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, transfer.ExplicitVRLittleEndian).WriteElement(e))
	assert.Equal(t, []byte{0x28, 0x00, 0x10, 0x00, 'U', 'S', 0x02, 0x00, 0x02, 0x01}, buf.Bytes())
	// source element is untouched
	assert.Equal(t, []byte{0x01, 0x02}, e.Data)
}

func TestWriteUnknownVRInExplicit(t *testing.T) {
	e := &Element{Tag: tag.New(0x0011, 0x1010), VR: vr.Null, Data: []byte("ab")}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, transfer.ExplicitVRLittleEndian).WriteElement(e))
	assert.Equal(t, "UN", string(buf.Bytes()[4:6]))
	assert.Equal(t, 12+2, buf.Len())
}

func TestFileRoundTrip(t *testing.T) {
	syntaxes := append([]transfer.Syntax{transfer.DeflatedExplicitVR}, transfer.Native...)
	for _, syntax := range syntaxes {
		t.Run(syntax.Name(), func(t *testing.T) {
			ds := sampleDataset(t)
			f, err := NewFile(ds, syntax)
			require.NoError(t, err)

			var buf bytes.Buffer
			n, err := Write(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			read, err := ReadBuffer(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, PreambleOk, read.Status)
			assert.Equal(t, syntax, read.Syntax())
			assert.True(t, ds.Equal(read.Dataset))

			gl, ok := read.Meta.Find(tag.FileMetaInformationGroupLength)
			require.True(t, ok)
			length, _ := gl.GetUint32()
			body, err := EncodeDataset(&Dataset{Elements: read.Meta.Elements[1:]}, transfer.ExplicitVRLittleEndian)
			require.NoError(t, err)
			assert.Equal(t, uint32(len(body)), length)
		})
	}
}

func TestWriteFile(t *testing.T) {
	f, err := NewFile(sampleDataset(t), transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)

	path := t.TempDir() + "/out.dcm"
	_, err = WriteFile(path, f)
	require.NoError(t, err)

	read, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CT", GetModality(read.Dataset))
	assert.Empty(t, QuickValidate(read))
}
