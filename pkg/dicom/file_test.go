package dicom

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPreamble(t *testing.T) {
	zeros := make([]byte, 128)
	marked := bytes.Repeat([]byte{0x01}, 128)
	tail := []byte{0x02, 0x00, 0x00, 0x00}

	tests := []struct {
		name     string
		input    []byte
		want     PreambleStatus
		consumed bool
	}{
		{"ok", concat(zeros, []byte("DICM"), tail), PreambleOk, true},
		{"mismatch", concat(marked, []byte("DICM"), tail), MismatchPreamble, true},
		{"wrong magic", concat(zeros, []byte("DICX"), tail), WrongMagic, false},
		{"exactly 132 bytes", concat(zeros, []byte("DICM")), NoPreamble, false},
		{"short", make([]byte, 100), NoPreamble, false},
		{"empty", nil, NoPreamble, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReader(bytes.NewReader(tt.input))
			status, _, err := ReadPreamble(br)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)

			rest := br.Buffered()
			if tt.consumed {
				assert.Equal(t, len(tt.input)-132, rest)
			} else {
				assert.Equal(t, len(tt.input), rest)
			}
		})
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestParseStatuses(t *testing.T) {
	f, err := NewFile(sampleDataset(t), transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = Write(&buf, f)
	require.NoError(t, err)
	good := buf.Bytes()

	t.Run("wrong magic is fatal", func(t *testing.T) {
		bad := bytes.Clone(good)
		copy(bad[128:], "NOPE")
		_, err := ReadBuffer(bad)
		assert.ErrorIs(t, err, ErrWrongMagic)
	})

	t.Run("no preamble is fatal", func(t *testing.T) {
		_, err := ReadBuffer(good[:132])
		assert.ErrorIs(t, err, ErrNoPreamble)
	})

	t.Run("mismatch preamble still parses", func(t *testing.T) {
		odd := bytes.Clone(good)
		odd[0] = 'X'
		read, err := ReadBuffer(odd)
		require.NoError(t, err)
		assert.Equal(t, MismatchPreamble, read.Status)
		assert.Equal(t, byte('X'), read.Preamble[0])
		assert.Equal(t, "CT", GetModality(read.Dataset))
	})
}

func TestMissingMetaDefaultsToImplicit(t *testing.T) {
	body, err := EncodeDataset(sampleDataset(t), transfer.ImplicitVRLittleEndian)
	require.NoError(t, err)
	data := concat(make([]byte, 128), []byte("DICM"), body)

	read, err := ReadBuffer(data)
	require.NoError(t, err)
	assert.Equal(t, 0, read.Meta.Len())
	assert.Equal(t, transfer.ImplicitVRLittleEndian, read.Syntax())
	assert.Equal(t, "PAT-001", mustString(t, read.Dataset, tag.PatientID))
}

func mustString(t *testing.T, ds *Dataset, tg Tag) string {
	t.Helper()
	s, ok := ds.GetString(tg)
	require.True(t, ok, "missing %v", tg)
	return s
}

func writeSample(t *testing.T, dir, name string, opts ...Option) string {
	t.Helper()
	ds := sampleDataset(t)
	for _, opt := range opts {
		require.NoError(t, opt(ds))
	}
	f, err := NewFile(ds, transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	_, err = WriteFile(path, f)
	require.NoError(t, err)
	return path
}

func dictVR(t Tag) vr.VR {
	v, _ := tag.LookupVR(t)
	return v
}

func TestReadTag(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir, "a.dcm", WithElement(tag.SpecificCharacterSet, "ISO_IR 100"))

	t.Run("found", func(t *testing.T) {
		v, err := ReadTag(path, tag.PatientID)
		require.NoError(t, err)
		assert.Equal(t, PreambleOk, v.Status)
		s, _ := v.Element.GetString()
		assert.Equal(t, "PAT-001", s)
		assert.Equal(t, "ISO_IR 100", v.CharacterSet)
	})

	t.Run("after a sequence", func(t *testing.T) {
		v, err := ReadTag(path, tag.PixelData)
		require.NoError(t, err)
		assert.Equal(t, 8, v.Element.Len())
	})

	t.Run("meta tag", func(t *testing.T) {
		v, err := ReadTag(path, tag.TransferSyntaxUID)
		require.NoError(t, err)
		s, _ := v.Element.GetString()
		assert.Equal(t, string(transfer.ExplicitVRLittleEndian), s)
	})

	t.Run("out of order", func(t *testing.T) {
		ds := &Dataset{}
		for _, kv := range []struct {
			t Tag
			v string
		}{
			{tag.SOPClassUID, CTImageStorageUID},
			{tag.SOPInstanceUID, "1.2.3.4"},
			{tag.PatientName, "Doe^Jane"},
			{tag.Modality, "MR"},
		} {
			e, err := NewElement(kv.t, dictVR(kv.t), kv.v)
			require.NoError(t, err)
			ds.Add(e)
		}
		f, err := NewFile(ds, transfer.ExplicitVRLittleEndian)
		require.NoError(t, err)
		unordered := filepath.Join(dir, "unordered.dcm")
		_, err = WriteFile(unordered, f)
		require.NoError(t, err)

		v, err := ReadTag(unordered, tag.Modality)
		require.NoError(t, err)
		s, _ := v.Element.GetString()
		assert.Equal(t, "MR", s)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadTag(path, tag.New(0x0008, 0x0061))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not dicom", func(t *testing.T) {
		junk := filepath.Join(dir, "junk.txt")
		require.NoError(t, os.WriteFile(junk, bytes.Repeat([]byte("x"), 300), 0o644))
		v, err := ReadTag(junk, tag.Modality)
		assert.ErrorIs(t, err, ErrWrongMagic)
		assert.Equal(t, WrongMagic, v.Status)
	})
}

func TestQuickValidate(t *testing.T) {
	ds, err := NewDataset(WithElement(tag.PixelData, []uint16{1, 2}))
	require.NoError(t, err)
	errs := QuickValidate(&File{Meta: &Dataset{}, Dataset: ds})
	assert.Len(t, errs, 5)

	res := ValidateStorage(sampleDataset(t))
	assert.True(t, res.IsValid())
	assert.True(t, res.HasWarnings())

	res = ValidateStorage(ds)
	assert.False(t, res.IsValid())
}
