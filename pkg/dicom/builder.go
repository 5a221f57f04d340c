package dicom

import (
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// Implementation identity written into file meta and association user info.
const (
	ImplementationClassUID    = "1.2.826.0.1.3680043.8.498.1"
	ImplementationVersionName = "GO_DICOM"
)

// Option configures a Dataset during construction
type Option func(*Dataset) error

// NewDataset creates a Dataset with the given options
func NewDataset(opts ...Option) (*Dataset, error) {
	ds := &Dataset{}
	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// WithElement sets an element using the dictionary VR for the tag
func WithElement(t tag.Tag, value any) Option {
	return func(ds *Dataset) error {
		v, _ := tag.LookupVR(t)
		return WithTypedElement(t, v, value)(ds)
	}
}

// WithTypedElement sets an element with an explicit VR
func WithTypedElement(t tag.Tag, v vr.VR, value any) Option {
	return func(ds *Dataset) error {
		e, err := NewElement(t, v, value)
		if err != nil {
			return err
		}
		ds.Set(e)
		return nil
	}
}

// WithSequence sets a sequence element. Items are written with undefined
// lengths.
func WithSequence(t tag.Tag, items ...*Dataset) Option {
	return func(ds *Dataset) error {
		for _, item := range items {
			item.UndefinedLength = true
		}
		ds.Set(&Element{Tag: t, VR: vr.SQ, Items: items, UndefinedLength: true})
		return nil
	}
}

// WithDataset copies every element of src into the dataset
func WithDataset(src *Dataset) Option {
	return func(ds *Dataset) error {
		if src == nil {
			return nil
		}
		for _, e := range src.Elements {
			ds.Set(e.Clone())
		}
		return nil
	}
}

// NewFileMeta builds the group 0002 elements for an instance.
func NewFileMeta(sopClassUID, sopInstanceUID string, syntax transfer.Syntax) (*Dataset, error) {
	return NewDataset(
		WithTypedElement(tag.FileMetaInformationVersion, vr.OB, []byte{0x00, 0x01}),
		WithElement(tag.MediaStorageSOPClassUID, sopClassUID),
		WithElement(tag.MediaStorageSOPInstanceUID, sopInstanceUID),
		WithElement(tag.TransferSyntaxUID, string(syntax)),
		WithElement(tag.ImplementationClassUID, ImplementationClassUID),
		WithElement(tag.ImplementationVersionName, ImplementationVersionName),
	)
}

// NewFile wraps a dataset in a file with meta derived from its SOP class and
// instance UIDs.
func NewFile(ds *Dataset, syntax transfer.Syntax) (*File, error) {
	sopClass, _ := ds.GetString(tag.SOPClassUID)
	sopInstance, _ := ds.GetString(tag.SOPInstanceUID)
	if sopClass == "" || sopInstance == "" {
		return nil, fmt.Errorf("dataset needs %v and %v to build file meta", tag.SOPClassUID, tag.SOPInstanceUID)
	}
	meta, err := NewFileMeta(sopClass, sopInstance, syntax)
	if err != nil {
		return nil, err
	}
	return &File{Meta: meta, Dataset: ds}, nil
}
