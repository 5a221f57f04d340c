package dicom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// String returns a string representation of the Element
func (e *Element) String() string {
	// Format: [Tag] VR Name: Value
	tagName := e.Tag.LookupName()
	if tagName != "" {
		tagName = " " + tagName
	}
	return fmt.Sprintf("[%s] %s%s: %s", e.Tag, e.VR, tagName, e.ValueString())
}

// MarshalJSON returns a JSON representation of the Element
func (e *Element) MarshalJSON() ([]byte, error) {
	var value any
	switch e.Kind() {
	case KindSequence:
		value = e.Items
	case KindString, KindDate:
		value = e.Strings()
	case KindNumeric:
		value = e.ValueString()
	default:
		value = e.Data
	}
	return json.Marshal(&struct {
		Tag   string `json:"tag"`
		Name  string `json:"name,omitempty"`
		VR    string `json:"vr"`
		Value any    `json:"value"`
	}{
		Tag:   e.Tag.String(),
		Name:  e.Tag.LookupName(),
		VR:    string(e.VR),
		Value: value,
	})
}

// String returns a string representation of the Dataset in stream order.
// Sequence items are indented under their parent.
func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	ds.format(&b, "")
	return b.String()
}

func (ds *Dataset) format(b *strings.Builder, indent string) {
	for _, e := range ds.Elements {
		b.WriteString(indent)
		b.WriteString(e.String())
		b.WriteString("\n")
		for i, item := range e.Items {
			fmt.Fprintf(b, "%s  > Item %d\n", indent, i+1)
			item.format(b, indent+"    ")
		}
	}
}

// MarshalJSON returns the elements as a JSON array in stream order
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	if ds == nil || ds.Elements == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(ds.Elements)
}
