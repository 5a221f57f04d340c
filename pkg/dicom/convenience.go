package dicom

import (
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// QuickValidate performs basic structural validation of a file.
//
// This is a lightweight check for common issues, not a full compliance
// check. For module level checks use ValidateDataset.
//
// Checks:
//   - SOP Class UID and SOP Instance UID present
//   - Transfer Syntax UID present in the file meta
//   - If pixel data exists, Rows and Columns are specified
//
// Example:
//
//	f, _ := dicom.ReadFile("scan.dcm")
//	if errs := dicom.QuickValidate(f); len(errs) > 0 {
//		for _, err := range errs {
//			log.Printf("Validation error: %v", err)
//		}
//	}
func QuickValidate(f *File) []error {
	var errs []error
	ds := f.Dataset

	if !ds.Contains(tag.SOPClassUID) {
		errs = append(errs, fmt.Errorf("missing required element: SOP Class UID (0008,0016)"))
	}
	if !ds.Contains(tag.SOPInstanceUID) {
		errs = append(errs, fmt.Errorf("missing required element: SOP Instance UID (0008,0018)"))
	}
	if !f.Meta.Contains(tag.TransferSyntaxUID) {
		errs = append(errs, fmt.Errorf("missing required element: Transfer Syntax UID (0002,0010)"))
	}

	if pixels, ok := ds.Find(tag.PixelData); ok && !pixels.IsEmpty() {
		if GetRows(ds) == 0 {
			errs = append(errs, fmt.Errorf("pixel data present but Rows (0028,0010) is missing or zero"))
		}
		if GetColumns(ds) == 0 {
			errs = append(errs, fmt.Errorf("pixel data present but Columns (0028,0011) is missing or zero"))
		}
	}
	return errs
}

// AddSequenceItem appends a dataset item to an existing sequence element,
// creating the sequence if it doesn't exist.
//
// Example:
//
//	ref, _ := dicom.NewDataset(
//		dicom.WithElement(tag.ReferencedSOPClassUID, sopClass),
//		dicom.WithElement(tag.ReferencedSOPInstanceUID, instance1),
//	)
//	dicom.AddSequenceItem(ds, tag.ReferencedImageSequence, ref)
func AddSequenceItem(ds *Dataset, t Tag, item *Dataset) error {
	if item == nil {
		return fmt.Errorf("cannot add nil dataset to sequence")
	}

	e, ok := ds.Find(t)
	if !ok {
		return WithSequence(t, item)(ds)
	}
	if !e.VR.IsSequence() {
		return fmt.Errorf("element %v exists but is not a sequence (VR=%s)", t, e.VR)
	}
	item.UndefinedLength = e.UndefinedLength
	e.Items = append(e.Items, item)
	return nil
}

// GetSequenceItems returns all items from a sequence element.
//
// Returns nil if the element doesn't exist or isn't a sequence.
func GetSequenceItems(ds *Dataset, t Tag) []*Dataset {
	e, ok := ds.Find(t)
	if !ok || e.VR != vr.SQ {
		return nil
	}
	return e.Items
}

// HasElement returns true if the dataset contains the specified element.
func HasElement(ds *Dataset, t Tag) bool {
	return ds.Contains(t)
}

// DeleteElement removes an element from the dataset.
func DeleteElement(ds *Dataset, t Tag) {
	ds.Remove(t)
}

// CloneDataset creates a deep copy of a dataset.
func CloneDataset(ds *Dataset) *Dataset {
	return ds.Clone()
}
