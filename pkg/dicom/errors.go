package dicom

import "errors"

var (
	// ErrWrongMagic is returned when the four bytes after the preamble are not "DICM".
	ErrWrongMagic = errors.New("dicom: missing DICM magic")
	// ErrNoPreamble is returned when the stream is too short to hold a preamble and magic.
	ErrNoPreamble = errors.New("dicom: stream too short for preamble")
	// ErrLengthOverflow is returned when a value does not fit its length field.
	ErrLengthOverflow = errors.New("dicom: value length exceeds length field capacity")
	// ErrTooManyCorrections is returned when an implicit stream keeps switching to explicit encoding.
	ErrTooManyCorrections = errors.New("dicom: too many consecutive implicit/explicit corrections")
	// ErrUnexpectedDelimiter is returned when a delimiter appears outside a sequence.
	ErrUnexpectedDelimiter = errors.New("dicom: unexpected delimiter")
	// ErrNotFound is returned by lookups that find no element.
	ErrNotFound = errors.New("dicom: element not found")
)
