package dicom

import (
	"slices"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
)

// Dataset is an ordered collection of elements. Elements keep stream order;
// duplicates are tolerated and lookups return the first match.
type Dataset struct {
	Elements []*Element

	// UndefinedLength is set on sequence items that were (or will be)
	// written with an item delimiter.
	UndefinedLength bool
}

// Len returns the number of top level elements
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.Elements)
}

// Find returns the first element with the tag.
func (ds *Dataset) Find(t Tag) (*Element, bool) {
	if ds == nil {
		return nil, false
	}
	for _, e := range ds.Elements {
		if e.Tag == t {
			return e, true
		}
	}
	return nil, false
}

// FindElement returns an element by group and element number
func (ds *Dataset) FindElement(group, element uint16) (*Element, bool) {
	return ds.Find(tag.New(group, element))
}

// Contains reports whether any element has the tag
func (ds *Dataset) Contains(t Tag) bool {
	_, ok := ds.Find(t)
	return ok
}

// Add appends an element without checking for duplicates.
func (ds *Dataset) Add(e *Element) {
	ds.Elements = append(ds.Elements, e)
}

// Set replaces the first element with the same tag, or inserts e in tag
// order when there is none.
func (ds *Dataset) Set(e *Element) {
	for i, cur := range ds.Elements {
		if cur.Tag == e.Tag {
			ds.Elements[i] = e
			return
		}
	}
	i := slices.IndexFunc(ds.Elements, func(cur *Element) bool {
		return e.Tag.Less(cur.Tag)
	})
	if i < 0 {
		ds.Elements = append(ds.Elements, e)
		return
	}
	ds.Elements = slices.Insert(ds.Elements, i, e)
}

// Remove deletes every element with the tag and returns how many were removed.
func (ds *Dataset) Remove(t Tag) int {
	return ds.RemoveIf(func(e *Element) bool { return e.Tag == t })
}

// RemoveIf deletes the top level elements matching fn.
func (ds *Dataset) RemoveIf(fn func(*Element) bool) int {
	if ds == nil {
		return 0
	}
	before := len(ds.Elements)
	ds.Elements = slices.DeleteFunc(ds.Elements, fn)
	return before - len(ds.Elements)
}

// Walk visits every element depth first, descending into sequence items
// after their parent. Returning false from fn stops the walk.
func (ds *Dataset) Walk(fn func(e *Element) bool) bool {
	if ds == nil {
		return true
	}
	for _, e := range ds.Elements {
		if !fn(e) {
			return false
		}
		for _, item := range e.Items {
			if !item.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// GetString returns the first string value of the tag.
func (ds *Dataset) GetString(t Tag) (string, bool) {
	e, ok := ds.Find(t)
	if !ok {
		return "", false
	}
	return e.GetString()
}

// Clone returns a deep copy of the dataset.
func (ds *Dataset) Clone() *Dataset {
	if ds == nil {
		return nil
	}
	c := &Dataset{UndefinedLength: ds.UndefinedLength, Elements: make([]*Element, len(ds.Elements))}
	for i, e := range ds.Elements {
		c.Elements[i] = e.Clone()
	}
	return c
}

// Equal compares datasets element by element in order.
func (ds *Dataset) Equal(o *Dataset) bool {
	if ds.Len() != o.Len() {
		return false
	}
	for i := 0; i < ds.Len(); i++ {
		if !ds.Elements[i].Equal(o.Elements[i]) {
			return false
		}
	}
	return true
}
