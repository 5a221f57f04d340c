// Package dicom provides a native Go implementation for reading and writing
// DICOM files and datasets.
//
// The package covers:
//   - Element level decoding and encoding across the native transfer syntaxes
//   - Undefined length sequences and encapsulated pixel data kept byte exact
//   - File preamble classification and the group 0002 file meta
//   - Dataset builders for constructing new instances
//
// Basic usage:
//
//	// Read a DICOM file
//	f, err := dicom.ReadFile("/path/to/file.dcm")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Access an attribute
//	modality := dicom.GetModality(f.Dataset)
package dicom

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
)

// File is a parsed DICOM part 10 file
type File struct {
	Preamble [preambleLen]byte
	Status   PreambleStatus
	Meta     *Dataset
	Dataset  *Dataset
}

// Syntax returns the transfer syntax named by the file meta, defaulting to
// Implicit VR Little Endian.
func (f *File) Syntax() transfer.Syntax {
	if s, ok := f.Meta.GetString(tag.TransferSyntaxUID); ok && s != "" {
		return transfer.FromUID(s)
	}
	return transfer.ImplicitVRLittleEndian
}

// Parse reads preamble, file meta and dataset. WrongMagic and NoPreamble are
// fatal; MismatchPreamble is reported in Status.
func Parse(r io.Reader, opts ...ReaderOption) (*File, error) {
	br := bufio.NewReader(r)
	status, preamble, err := ReadPreamble(br)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return &File{Status: status, Preamble: preamble}, err
	}

	rd := NewReader(br, transfer.ExplicitVRLittleEndian, opts...)
	if status == MismatchPreamble {
		rd.logger.Warn("preamble is not zeroed", "status", status.String())
	}
	meta, err := rd.readMeta()
	if err != nil {
		return nil, err
	}
	ds, err := rd.ReadDataset()
	if err != nil {
		return nil, fmt.Errorf("reading dataset (%s): %w", rd.Syntax().Name(), err)
	}
	return &File{Preamble: preamble, Status: status, Meta: meta, Dataset: ds}, nil
}

// ReadFile reads a DICOM file from disk
func ReadFile(path string, opts ...ReaderOption) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Parse(f, opts...)
}

// ReadBuffer reads a DICOM file from a byte slice
func ReadBuffer(data []byte, opts ...ReaderOption) (*File, error) {
	return Parse(bytes.NewReader(data), opts...)
}

// TagValue is the outcome of reading a single tag from a file.
type TagValue struct {
	Status  PreambleStatus
	Element *Element
	// CharacterSet is (0008,0005) when it precedes the tag.
	CharacterSet string
}

// ReadTag reads one top level tag from a file, skipping every other value.
// Every top level element is visited, so tags written out of order are still
// found. A missing tag returns ErrNotFound with the preamble status still set.
func ReadTag(path string, t Tag, opts ...ReaderOption) (*TagValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return ScanTag(f, t, opts...)
}

// ScanTag is ReadTag over a stream.
func ScanTag(r io.Reader, t Tag, opts ...ReaderOption) (*TagValue, error) {
	br := bufio.NewReader(r)
	status, _, err := ReadPreamble(br)
	if err != nil {
		return nil, err
	}
	out := &TagValue{Status: status}
	if !status.Readable() {
		return out, status.Err()
	}

	rd := NewReader(br, transfer.ExplicitVRLittleEndian, opts...)
	meta, err := rd.readMeta()
	if err != nil {
		return out, err
	}
	if t.IsGroup0002() {
		if e, ok := meta.Find(t); ok {
			out.Element = e
			return out, nil
		}
		return out, ErrNotFound
	}

	for {
		h, err := rd.readHeader()
		if errors.Is(err, io.EOF) {
			return out, ErrNotFound
		}
		if err != nil {
			return out, err
		}
		switch {
		case h.tag == t:
			e, err := rd.readBody(h)
			if err != nil {
				return out, err
			}
			out.Element = e
			return out, nil
		case h.tag == tag.SpecificCharacterSet:
			e, err := rd.readBody(h)
			if err != nil {
				return out, err
			}
			out.CharacterSet = strings.Join(e.Strings(), `\`)
		default:
			if err := rd.skipBody(h); err != nil {
				return out, err
			}
		}
	}
}

// Common SOP Class UIDs
const (
	VerificationSOPClassUID         = "1.2.840.10008.1.1"
	CTImageStorageUID               = "1.2.840.10008.5.1.4.1.1.2"
	MRImageStorageUID               = "1.2.840.10008.5.1.4.1.1.4"
	SecondaryCaptureImageStorageUID = "1.2.840.10008.5.1.4.1.1.7"
	StudyRootQueryRetrieveFindUID   = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveMoveUID   = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQueryRetrieveGetUID    = "1.2.840.10008.5.1.4.1.2.2.3"
	PatientRootQueryRetrieveFindUID = "1.2.840.10008.5.1.4.1.2.1.1"
)

// IsCT returns true if the dataset is a CT image
func IsCT(ds *Dataset) bool {
	return checkSOPClass(ds, CTImageStorageUID)
}

// IsMR returns true if the dataset is an MR image
func IsMR(ds *Dataset) bool {
	return checkSOPClass(ds, MRImageStorageUID)
}

// GetModality returns the modality string from the dataset
func GetModality(ds *Dataset) string {
	s, _ := ds.GetString(tag.Modality)
	return s
}

// GetRows returns the number of rows in the image
func GetRows(ds *Dataset) int {
	return getInt(ds, tag.Rows, 0)
}

// GetColumns returns the number of columns in the image
func GetColumns(ds *Dataset) int {
	return getInt(ds, tag.Columns, 0)
}

// GetNumberOfFrames returns the number of frames in the image
func GetNumberOfFrames(ds *Dataset) int {
	return getInt(ds, tag.NumberOfFrames, 1)
}

// GetInstanceNumber returns the instance number (0020,0013)
func GetInstanceNumber(ds *Dataset) int {
	return getInt(ds, tag.InstanceNumber, 0)
}

// GetRescale returns the rescale intercept and slope, defaulting to 0 and 1.
func GetRescale(ds *Dataset) (intercept, slope float64) {
	intercept, slope = 0, 1
	if e, ok := ds.Find(tag.RescaleIntercept); ok {
		if v, ok := e.GetFloats(); ok && len(v) > 0 {
			intercept = v[0]
		}
	}
	if e, ok := ds.Find(tag.RescaleSlope); ok {
		if v, ok := e.GetFloats(); ok && len(v) > 0 {
			slope = v[0]
		}
	}
	return
}

func getInt(ds *Dataset, t Tag, def int) int {
	if e, ok := ds.Find(t); ok {
		if v, ok := e.GetInt(); ok {
			return v
		}
	}
	return def
}

// Helper function to check SOP Class UID
func checkSOPClass(ds *Dataset, uids ...string) bool {
	s, ok := ds.GetString(tag.SOPClassUID)
	if !ok {
		return false
	}
	for _, uid := range uids {
		if s == uid {
			return true
		}
	}
	return false
}
