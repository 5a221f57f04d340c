package dicom

import "fmt"

// SequenceBuilder provides a fluent API for constructing DICOM sequences.
//
// The builder accumulates errors from AddItem() calls. These errors are
// returned when you call Build() or BuildDataset(), which keeps chaining
// fluent while error handling stays explicit.
//
// Example - Building a Referenced Image Sequence:
//
//	builder := dicom.NewSequenceBuilder(tag.ReferencedImageSequence)
//	for _, instance := range imageInstances {
//		builder.AddItem(
//			dicom.WithElement(tag.ReferencedSOPClassUID, sopClass),
//			dicom.WithElement(tag.ReferencedSOPInstanceUID, instance),
//		)
//	}
//
//	opt, err := builder.Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	ds, err := dicom.NewDataset(opt)
type SequenceBuilder struct {
	tag   Tag
	items []*Dataset
	errs  []error
}

// NewSequenceBuilder creates a new sequence builder for the specified tag.
func NewSequenceBuilder(t Tag) *SequenceBuilder {
	return &SequenceBuilder{
		tag:   t,
		items: make([]*Dataset, 0),
		errs:  make([]error, 0),
	}
}

// AddItem adds a sequence item constructed from the given options.
func (sb *SequenceBuilder) AddItem(opts ...Option) *SequenceBuilder {
	item, err := NewDataset(opts...)
	if err != nil {
		sb.errs = append(sb.errs, fmt.Errorf("item %d: %w", len(sb.items), err))
		return sb
	}
	sb.items = append(sb.items, item)
	return sb
}

// AddDataset adds an already-constructed dataset as a sequence item.
func (sb *SequenceBuilder) AddDataset(ds *Dataset) *SequenceBuilder {
	if ds != nil {
		sb.items = append(sb.items, ds)
	}
	return sb
}

// Count returns the number of items currently in the sequence.
func (sb *SequenceBuilder) Count() int {
	return len(sb.items)
}

// Clear removes all items and errors from the sequence.
func (sb *SequenceBuilder) Clear() *SequenceBuilder {
	sb.items = sb.items[:0]
	sb.errs = sb.errs[:0]
	return sb
}

// HasErrors returns true if any errors were accumulated during building.
func (sb *SequenceBuilder) HasErrors() bool {
	return len(sb.errs) > 0
}

// Errors returns all accumulated errors.
func (sb *SequenceBuilder) Errors() []error {
	return sb.errs
}

// Build returns an Option that adds the sequence to a dataset.
func (sb *SequenceBuilder) Build() (Option, error) {
	if len(sb.errs) > 0 {
		return nil, fmt.Errorf("sequence builder has %d error(s): %v", len(sb.errs), sb.errs)
	}
	return WithSequence(sb.tag, sb.items...), nil
}

// BuildDataset creates a standalone dataset containing only this sequence.
func (sb *SequenceBuilder) BuildDataset() (*Dataset, error) {
	opt, err := sb.Build()
	if err != nil {
		return nil, err
	}
	return NewDataset(opt)
}

// GetItems returns a copy of the current sequence items.
func (sb *SequenceBuilder) GetItems() []*Dataset {
	items := make([]*Dataset, len(sb.items))
	copy(items, sb.items)
	return items
}

// RemoveItem removes the item at the specified index. Out of range indexes
// are ignored.
func (sb *SequenceBuilder) RemoveItem(index int) *SequenceBuilder {
	if index >= 0 && index < len(sb.items) {
		sb.items = append(sb.items[:index], sb.items[index+1:]...)
	}
	return sb
}

// GetItem returns the item at the specified index, or nil if out of bounds.
func (sb *SequenceBuilder) GetItem(index int) *Dataset {
	if index >= 0 && index < len(sb.items) {
		return sb.items[index]
	}
	return nil
}

// ReplaceItem replaces the item at the specified index with a new item.
func (sb *SequenceBuilder) ReplaceItem(index int, ds *Dataset) *SequenceBuilder {
	if ds != nil && index >= 0 && index < len(sb.items) {
		sb.items[index] = ds
	}
	return sb
}
