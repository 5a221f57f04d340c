package dicom

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// encodeValue converts a Go value into little endian value bytes for the VR,
// padded to an even length.
func encodeValue(v any, r vr.VR) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	le := binary.LittleEndian

	switch val := v.(type) {
	case string:
		return padEven([]byte(val), r.PadByte()), nil
	case []string:
		return padEven([]byte(strings.Join(val, `\`)), r.PadByte()), nil
	case []byte:
		return padEven(append([]byte(nil), val...), r.PadByte()), nil
	case time.Time:
		return padEven([]byte(formatTime(val, r)), ' '), nil
	case Age:
		return []byte(val.String()), nil
	case Tag:
		b := make([]byte, 4)
		le.PutUint16(b, val.Group)
		le.PutUint16(b[2:], val.Element)
		return b, nil
	case uint16:
		return encodeInts(r, []int64{int64(val)})
	case []uint16:
		return encodeInts(r, widen(val, func(x uint16) int64 { return int64(x) }))
	case int16:
		return encodeInts(r, []int64{int64(val)})
	case uint32:
		return encodeInts(r, []int64{int64(val)})
	case []uint32:
		return encodeInts(r, widen(val, func(x uint32) int64 { return int64(x) }))
	case int32:
		return encodeInts(r, []int64{int64(val)})
	case int:
		return encodeInts(r, []int64{int64(val)})
	case []int:
		return encodeInts(r, widen(val, func(x int) int64 { return int64(x) }))
	case float32:
		return encodeFloats(r, []float64{float64(val)})
	case float64:
		return encodeFloats(r, []float64{val})
	case []float32:
		return encodeFloats(r, widen(val, func(x float32) float64 { return float64(x) }))
	case []float64:
		return encodeFloats(r, val)
	}

	return nil, fmt.Errorf("unsupported value type %T for VR %s", v, r)
}

func encodeInts(r vr.VR, vals []int64) ([]byte, error) {
	le := binary.LittleEndian
	switch r {
	case vr.US, vr.SS, vr.OW:
		b := make([]byte, len(vals)*2)
		for i, x := range vals {
			le.PutUint16(b[i*2:], uint16(x))
		}
		return b, nil
	case vr.UL, vr.SL, vr.OL:
		b := make([]byte, len(vals)*4)
		for i, x := range vals {
			le.PutUint32(b[i*4:], uint32(x))
		}
		return b, nil
	case vr.IS, vr.DS:
		parts := make([]string, len(vals))
		for i, x := range vals {
			parts[i] = strconv.FormatInt(x, 10)
		}
		return padEven([]byte(strings.Join(parts, `\`)), ' '), nil
	case vr.FL, vr.FD, vr.OF, vr.OD:
		return encodeFloats(r, widen(vals, func(x int64) float64 { return float64(x) }))
	}
	return nil, fmt.Errorf("integer for VR %s not implemented", r)
}

func encodeFloats(r vr.VR, vals []float64) ([]byte, error) {
	le := binary.LittleEndian
	switch r {
	case vr.FL, vr.OF:
		b := make([]byte, len(vals)*4)
		for i, f := range vals {
			le.PutUint32(b[i*4:], math.Float32bits(float32(f)))
		}
		return b, nil
	case vr.FD, vr.OD:
		b := make([]byte, len(vals)*8)
		for i, f := range vals {
			le.PutUint64(b[i*8:], math.Float64bits(f))
		}
		return b, nil
	case vr.DS:
		parts := make([]string, len(vals))
		for i, f := range vals {
			parts[i] = strconv.FormatFloat(f, 'g', 10, 64)
		}
		return padEven([]byte(strings.Join(parts, `\`)), ' '), nil
	}
	return nil, fmt.Errorf("float for VR %s not implemented", r)
}

func formatTime(t time.Time, r vr.VR) string {
	switch r {
	case vr.TM:
		return FormatTime(t)
	case vr.DT:
		return FormatDateTime(t)
	}
	return FormatDate(t)
}
