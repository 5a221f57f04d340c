package dicom

import (
	"encoding/binary"
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// AppendLength appends the length field for the encoding. Lengths that do not
// fit the field fail with ErrLengthOverflow; the undefined length marker is
// only valid for 4-byte fields.
func AppendLength(dst []byte, enc vr.Encoding, order binary.ByteOrder, length uint32) ([]byte, error) {
	switch enc {
	case vr.ExplicitShort:
		if length > enc.MaxLength() {
			return dst, fmt.Errorf("%w: %d exceeds %d", ErrLengthOverflow, length, enc.MaxLength())
		}
		return appendUint16(dst, order, uint16(length)), nil
	case vr.ExplicitLong:
		dst = append(dst, 0, 0)
	}
	return appendUint32(dst, order, length), nil
}

// appendUint16 and appendUint32 work with any binary.ByteOrder.
func appendUint16(dst []byte, order binary.ByteOrder, v uint16) []byte {
	var b [2]byte
	order.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendUint32(dst []byte, order binary.ByteOrder, v uint32) []byte {
	var b [4]byte
	order.PutUint32(b[:], v)
	return append(dst, b[:]...)
}
