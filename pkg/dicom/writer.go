package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// Writer encodes elements in one transfer syntax
type Writer struct {
	cw       *CountingWriter
	syntax   transfer.Syntax
	order    binary.ByteOrder
	explicit bool
}

// NewWriter creates a writer for the syntax
func NewWriter(w io.Writer, syntax transfer.Syntax) *Writer {
	cw, ok := w.(*CountingWriter)
	if !ok {
		cw = &CountingWriter{Writer: w}
	}
	return &Writer{
		cw:       cw,
		syntax:   syntax,
		order:    syntax.ByteOrder(),
		explicit: syntax.IsExplicitVR(),
	}
}

// Written returns the number of bytes written so far
func (w *Writer) Written() int64 {
	return w.cw.Count.Load()
}

func (w *Writer) appendTag(dst []byte, t Tag) []byte {
	dst = appendUint16(dst, w.order, t.Group)
	return appendUint16(dst, w.order, t.Element)
}

// header encodes tag, VR and length for an element.
func (w *Writer) header(t Tag, v vr.VR, length uint32) ([]byte, error) {
	b := w.appendTag(make([]byte, 0, 12), t)
	if t.IsDelimiter() {
		return appendUint32(b, w.order, length), nil
	}
	enc := v.Encoding(w.explicit)
	if w.explicit {
		if len(v) != 2 {
			v = vr.UN
			enc = vr.ExplicitLong
		}
		b = append(b, v...)
	}
	if length == undefinedLength && enc == vr.ExplicitShort {
		return nil, fmt.Errorf("undefined length not supported for short VR %s", v)
	}
	return AppendLength(b, enc, w.order, length)
}

// WriteElement encodes one element including any sequence items.
func (w *Writer) WriteElement(e *Element) error {
	if e.VR.IsSequence() {
		return w.writeSequence(e)
	}
	data := e.Data
	if swapUnit(e.VR) > 0 && e.order() != w.order {
		data = swapOrder(data, e.VR)
	}
	length := uint32(len(data))
	if e.UndefinedLength {
		// opaque content already carries its items; the delimiter closes it
		length = undefinedLength
	}
	h, err := w.header(e.Tag, e.VR, length)
	if err != nil {
		return fmt.Errorf("element %v: %w", e.Tag, err)
	}
	if _, err := w.cw.Write(h); err != nil {
		return err
	}
	if _, err := w.cw.Write(data); err != nil {
		return err
	}
	if e.UndefinedLength {
		return w.writeDelimiter(tag.SequenceDelimitationItem)
	}
	return nil
}

func (w *Writer) writeDelimiter(t Tag) error {
	h, _ := w.header(t, vr.Null, 0)
	_, err := w.cw.Write(h)
	return err
}

func (w *Writer) writeSequence(e *Element) error {
	if e.UndefinedLength {
		h, err := w.header(e.Tag, e.VR, undefinedLength)
		if err != nil {
			return fmt.Errorf("element %v: %w", e.Tag, err)
		}
		if _, err := w.cw.Write(h); err != nil {
			return err
		}
		if err := w.writeItems(w, e.Items); err != nil {
			return fmt.Errorf("sequence %v: %w", e.Tag, err)
		}
		return w.writeDelimiter(tag.SequenceDelimitationItem)
	}

	var buf bytes.Buffer
	if err := w.writeItems(w.to(&buf), e.Items); err != nil {
		return fmt.Errorf("sequence %v: %w", e.Tag, err)
	}
	h, err := w.header(e.Tag, e.VR, uint32(buf.Len()))
	if err != nil {
		return fmt.Errorf("element %v: %w", e.Tag, err)
	}
	if _, err := w.cw.Write(h); err != nil {
		return err
	}
	_, err = w.cw.Write(buf.Bytes())
	return err
}

// to returns a writer with the same settings targeting dst.
func (w *Writer) to(dst io.Writer) *Writer {
	c := *w
	c.cw = &CountingWriter{Writer: dst}
	return &c
}

func (w *Writer) writeItems(out *Writer, items []*Dataset) error {
	for _, item := range items {
		if item.UndefinedLength {
			h, _ := out.header(tag.Item, vr.Null, undefinedLength)
			if _, err := out.cw.Write(h); err != nil {
				return err
			}
			if err := out.WriteDataset(item); err != nil {
				return err
			}
			if err := out.writeDelimiter(tag.ItemDelimitationItem); err != nil {
				return err
			}
			continue
		}
		var buf bytes.Buffer
		if err := w.to(&buf).WriteDataset(item); err != nil {
			return err
		}
		h, _ := out.header(tag.Item, vr.Null, uint32(buf.Len()))
		if _, err := out.cw.Write(h); err != nil {
			return err
		}
		if _, err := out.cw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// WriteDataset encodes the elements in their stored order.
func (w *Writer) WriteDataset(ds *Dataset) error {
	if ds == nil {
		return nil
	}
	for _, e := range ds.Elements {
		if err := w.WriteElement(e); err != nil {
			return fmt.Errorf("failed to write element %v: %w", e.Tag, err)
		}
	}
	return nil
}

// EncodeDataset returns the encoded bytes of a dataset without a preamble
// or file meta.
func EncodeDataset(ds *Dataset, syntax transfer.Syntax) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, syntax).WriteDataset(ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDataset parses a complete dataset encoded in the syntax.
func DecodeDataset(data []byte, syntax transfer.Syntax, opts ...ReaderOption) (*Dataset, error) {
	return NewReader(bytes.NewReader(data), syntax, opts...).ReadDataset()
}

// WriteFile writes a file to disk
func WriteFile(path string, f *File) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return Write(out, f)
}

// Write writes the preamble, the file meta group in Explicit VR Little
// Endian and the dataset in the syntax named by the meta.
func Write(w io.Writer, f *File) (int64, error) {
	cw := &CountingWriter{Writer: w}

	if _, err := cw.Write(f.Preamble[:]); err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write([]byte(magic)); err != nil {
		return cw.Count.Load(), err
	}

	meta, err := metaWithGroupLength(f.Meta)
	if err != nil {
		return cw.Count.Load(), err
	}
	if err := NewWriter(cw, transfer.ExplicitVRLittleEndian).WriteDataset(meta); err != nil {
		return cw.Count.Load(), fmt.Errorf("writing file meta: %w", err)
	}

	syntax := f.Syntax()
	var body io.Writer = cw
	var zw *flate.Writer
	if syntax.IsDeflated() {
		zw, err = flate.NewWriter(cw, flate.DefaultCompression)
		if err != nil {
			return cw.Count.Load(), err
		}
		body = zw
	}
	if err := NewWriter(body, syntax).WriteDataset(f.Dataset); err != nil {
		return cw.Count.Load(), err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return cw.Count.Load(), err
		}
	}
	return cw.Count.Load(), nil
}

// metaWithGroupLength returns a copy of the meta group with (0002,0000)
// recomputed and placed first.
func metaWithGroupLength(meta *Dataset) (*Dataset, error) {
	out := &Dataset{}
	if meta == nil {
		meta = &Dataset{}
	}
	body := &Dataset{}
	for _, e := range meta.Elements {
		if e.Tag != tag.FileMetaInformationGroupLength {
			body.Add(e)
		}
	}
	b, err := EncodeDataset(body, transfer.ExplicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encoding file meta: %w", err)
	}
	gl, err := NewElement(tag.FileMetaInformationGroupLength, vr.UL, uint32(len(b)))
	if err != nil {
		return nil, err
	}
	out.Add(gl)
	out.Elements = append(out.Elements, body.Elements...)
	return out, nil
}

// CountingWriter counts the bytes written through it
type CountingWriter struct {
	Count  atomic.Int64
	Writer io.Writer
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	if err == nil {
		c.Count.Add(int64(n))
	}
	return n, err
}
