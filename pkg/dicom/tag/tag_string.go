package tag

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// String returns a string representation of the Tag (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// MarshalJSON returns a JSON representation of the Tag
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Parse accepts "(GGGG,EEEE)", "GGGG,EEEE", "GGGGEEEE" or a dictionary keyword.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if t, ok := ByName(s); ok {
		return t, nil
	}
	hex := strings.NewReplacer("(", "", ")", "", ",", "", " ", "").Replace(s)
	if len(hex) != 8 {
		return Tag{}, fmt.Errorf("invalid tag %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid tag %q: %w", s, err)
	}
	return FromUint32(uint32(v)), nil
}

// ParseParts builds a Tag from separate hex group and element strings.
func ParseParts(group, element string) (Tag, error) {
	g, err := strconv.ParseUint(strings.TrimSpace(group), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid group %q: %w", group, err)
	}
	e, err := strconv.ParseUint(strings.TrimSpace(element), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid element %q: %w", element, err)
	}
	return New(uint16(g), uint16(e)), nil
}
