package dicom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// DefaultRepertoire decodes text when (0008,0005) is absent.
var DefaultRepertoire encoding.Encoding = charmap.Windows1252

// labels maps SpecificCharacterSet defined terms to charset labels.
var labels = map[string]string{
	"ISO_IR 6":        "us-ascii",
	"ISO_IR 100":      "iso-ir-100",
	"ISO_IR 101":      "iso-ir-101",
	"ISO_IR 109":      "iso-ir-109",
	"ISO_IR 110":      "iso-ir-110",
	"ISO_IR 144":      "iso-ir-144",
	"ISO_IR 127":      "iso-ir-127",
	"ISO_IR 126":      "iso-ir-126",
	"ISO_IR 138":      "iso-ir-138",
	"ISO_IR 148":      "iso-ir-148",
	"ISO_IR 13":       "shift-jis",
	"ISO_IR 166":      "tis-620",
	"ISO_IR 192":      "utf-8",
	"GB18030":         "gb18030",
	"GBK":             "gbk",
	"ISO 2022 IR 6":   "us-ascii",
	"ISO 2022 IR 100": "iso-ir-100",
	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 13":  "shift-jis",
	"ISO 2022 IR 166": "tis-620",
	// code extensions are decoded with the first repertoire only
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "iso-ir-149",
}

// LookupCharset resolves a SpecificCharacterSet value. Multi-valued terms use
// the first non-empty component; an empty term is the default repertoire.
func LookupCharset(term string) (encoding.Encoding, error) {
	for _, t := range strings.Split(term, `\`) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		label, ok := labels[t]
		if !ok {
			return nil, fmt.Errorf("specific character set defined term not found: %v", t)
		}
		enc, _ := charset.Lookup(label)
		if enc == nil {
			return nil, fmt.Errorf("missing encoding for label %q", label)
		}
		return enc, nil
	}
	return DefaultRepertoire, nil
}

// Charset returns the text encoding declared by the dataset.
func (ds *Dataset) Charset() (encoding.Encoding, error) {
	e, ok := ds.Find(tag.SpecificCharacterSet)
	if !ok {
		return DefaultRepertoire, nil
	}
	return LookupCharset(strings.Join(e.Strings(), `\`))
}

// DecodeText converts a string value to UTF-8 with the encoding. Values of
// VRs restricted to the default repertoire are returned unchanged.
func (e *Element) DecodeText(enc encoding.Encoding) (string, error) {
	s := e.ValueString()
	switch e.VR {
	case vr.PN, vr.LO, vr.SH, vr.ST, vr.LT, vr.UT, vr.UC:
	default:
		return s, nil
	}
	if enc == nil {
		enc = DefaultRepertoire
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return s, fmt.Errorf("decoding %v: %w", e.Tag, err)
	}
	return out, nil
}
