package dicom

import (
	"bufio"
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

const undefinedLength = 0xFFFFFFFF

// DefaultMaxCorrections bounds consecutive implicit elements that turn out
// to be explicitly encoded.
const DefaultMaxCorrections = 64

// errItemEnd signals an item delimiter while reading the elements of an
// undefined length item.
var errItemEnd = errors.New("item delimitation")

// Reader reads DICOM elements from a stream in one transfer syntax
type Reader struct {
	r        *bufio.Reader
	syntax   transfer.Syntax
	order    binary.ByteOrder
	explicit bool
	logger   *slog.Logger

	maxCorrections int
	corrections    *int
	consumed       int64
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithLogger sets the logger used for tolerated non-compliance warnings.
func WithLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMaxCorrections bounds consecutive implicit-to-explicit corrections; 0
// disables the bound.
func WithMaxCorrections(n int) ReaderOption {
	return func(r *Reader) {
		r.maxCorrections = n
	}
}

// NewReader creates a reader positioned at an element boundary.
func NewReader(r io.Reader, syntax transfer.Syntax, opts ...ReaderOption) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	rd := &Reader{
		r:              br,
		logger:         slog.Default(),
		maxCorrections: DefaultMaxCorrections,
		corrections:    new(int),
	}
	rd.SetSyntax(syntax)
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// SetSyntax switches the transfer syntax for subsequent elements.
func (r *Reader) SetSyntax(s transfer.Syntax) {
	r.syntax = s
	r.explicit = s.IsExplicitVR()
	r.order = s.ByteOrder()
}

// Syntax returns the current transfer syntax
func (r *Reader) Syntax() transfer.Syntax {
	return r.syntax
}

// Consumed returns the number of bytes consumed from the stream so far.
func (r *Reader) Consumed() int64 {
	return r.consumed
}

// sub returns a reader over an already buffered value sharing this reader's
// settings and correction counter.
func (r *Reader) sub(data []byte) *Reader {
	return &Reader{
		r:              bufio.NewReader(bytes.NewReader(data)),
		syntax:         r.syntax,
		order:          r.order,
		explicit:       r.explicit,
		logger:         r.logger,
		maxCorrections: r.maxCorrections,
		corrections:    r.corrections,
	}
}

// header is everything in front of an element value.
type header struct {
	tag    Tag
	vr     vr.VR
	length uint32
	raw    []byte
}

func (h header) undefined() bool {
	return h.length == undefinedLength
}

func (r *Reader) readFull(n int) ([]byte, error) {
	b := make([]byte, n)
	m, err := io.ReadFull(r.r, b)
	r.consumed += int64(m)
	return b, err
}

func (r *Reader) discard(n int64) error {
	for n > 0 {
		chunk := n
		if chunk > 1<<30 {
			chunk = 1 << 30
		}
		m, err := r.r.Discard(int(chunk))
		r.consumed += int64(m)
		if err != nil {
			return unexpected(err)
		}
		n -= chunk
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// readHeader reads tag, VR and length. io.EOF is only returned when the
// stream ends cleanly on an element boundary.
func (r *Reader) readHeader() (header, error) {
	var h header
	raw, err := r.readFull(4)
	if err != nil {
		if err == io.EOF {
			return h, io.EOF
		}
		return h, fmt.Errorf("reading tag: %w", unexpected(err))
	}
	h.raw = raw
	h.tag = tag.New(r.order.Uint16(raw), r.order.Uint16(raw[2:]))

	if h.tag.IsDelimiter() {
		return r.readLength(h, vr.Implicit)
	}

	explicit := r.explicit
	if explicit {
		code, err := r.readFull(2)
		if err != nil {
			return h, fmt.Errorf("reading VR for %v: %w", h.tag, unexpected(err))
		}
		h.raw = append(h.raw, code...)
		h.vr = vr.VR(code)
	} else if peeked, ok := r.peekVR(); ok {
		if err := r.correct(h.tag, peeked); err != nil {
			return h, err
		}
		code, _ := r.readFull(2)
		h.raw = append(h.raw, code...)
		h.vr = peeked
		explicit = true
	} else {
		*r.corrections = 0
		h.vr, _ = tag.LookupVR(h.tag)
	}
	return r.readLength(h, h.vr.Encoding(explicit))
}

// peekVR looks at the two bytes after an implicit tag for a VR code written
// by producers that mix encodings.
func (r *Reader) peekVR() (vr.VR, bool) {
	b, err := r.r.Peek(2)
	if err != nil {
		return vr.Null, false
	}
	return vr.Parse(b)
}

func (r *Reader) correct(t Tag, v vr.VR) error {
	*r.corrections++
	r.logger.Warn("element expected implicit but is explicit, reading as explicit",
		"tag", t.String(), "vr", string(v), "syntax", string(r.syntax))
	if r.maxCorrections > 0 && *r.corrections > r.maxCorrections {
		return fmt.Errorf("%w: %d at %v", ErrTooManyCorrections, *r.corrections, t)
	}
	return nil
}

func (r *Reader) readLength(h header, enc vr.Encoding) (header, error) {
	switch enc {
	case vr.ExplicitShort:
		b, err := r.readFull(2)
		if err != nil {
			return h, fmt.Errorf("reading length for %v: %w", h.tag, unexpected(err))
		}
		h.raw = append(h.raw, b...)
		h.length = uint32(r.order.Uint16(b))
	case vr.ExplicitLong:
		b, err := r.readFull(6)
		if err != nil {
			return h, fmt.Errorf("reading length for %v: %w", h.tag, unexpected(err))
		}
		h.raw = append(h.raw, b...)
		h.length = r.order.Uint32(b[2:])
	default:
		b, err := r.readFull(4)
		if err != nil {
			return h, fmt.Errorf("reading length for %v: %w", h.tag, unexpected(err))
		}
		h.raw = append(h.raw, b...)
		h.length = r.order.Uint32(b)
	}
	return h, nil
}

// ReadElement reads exactly one element, including any nested sequence
// items. It returns io.EOF at a clean end of stream.
func (r *Reader) ReadElement() (*Element, error) {
	h, err := r.readHeader()
	if err != nil {
		return nil, err
	}
	if h.tag.IsDelimiter() {
		if h.tag == tag.ItemDelimitationItem {
			return nil, errItemEnd
		}
		return nil, fmt.Errorf("%w %v", ErrUnexpectedDelimiter, h.tag)
	}
	return r.readBody(h)
}

func (r *Reader) readBody(h header) (*Element, error) {
	e := &Element{Tag: h.tag, VR: h.vr, Order: syntaxOrder(r.syntax)}

	var data []byte
	if h.undefined() {
		var buf bytes.Buffer
		scan := r.scanUndefined
		if e.VR.IsSequence() {
			scan = r.scanQuiet
		}
		if _, err := scan(&buf); err != nil {
			return nil, fmt.Errorf("scanning %v: %w", h.tag, err)
		}
		data = buf.Bytes()
		e.UndefinedLength = true
	} else {
		b, err := r.readFull(int(h.length))
		if err != nil {
			return nil, fmt.Errorf("reading value of %v (%d bytes): %w", h.tag, h.length, unexpected(err))
		}
		data = b
	}

	if e.VR.IsSequence() {
		items, err := r.sub(data).readItems()
		if err != nil {
			return nil, fmt.Errorf("reading items of %v: %w", h.tag, err)
		}
		e.Items = items
		return e, nil
	}
	e.Data = data
	return e, nil
}

// readItems parses the content of a sequence value into datasets.
func (r *Reader) readItems() ([]*Dataset, error) {
	items := []*Dataset{}
	for {
		h, err := r.readHeader()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		if h.tag != tag.Item {
			return nil, fmt.Errorf("expected item tag, got %v", h.tag)
		}
		var item *Dataset
		if h.undefined() {
			item, err = r.readUntilItemEnd()
		} else {
			var b []byte
			b, err = r.readFull(int(h.length))
			if err != nil {
				return nil, unexpected(err)
			}
			item, err = r.sub(b).ReadDataset()
		}
		if err != nil {
			return nil, err
		}
		item.UndefinedLength = h.undefined()
		items = append(items, item)
	}
}

func (r *Reader) readUntilItemEnd() (*Dataset, error) {
	ds := &Dataset{}
	for {
		e, err := r.ReadElement()
		if err == errItemEnd {
			return ds, nil
		}
		if err != nil {
			return nil, unexpected(err)
		}
		ds.Elements = append(ds.Elements, e)
	}
}

// scanUndefined copies the content of an undefined length value to dst,
// following items and nested undefined lengths down to the matching
// sequence delimiter. The delimiter itself is consumed but not copied. The
// returned count includes the delimiter.
func (r *Reader) scanUndefined(dst io.Writer) (int64, error) {
	start := r.consumed
	for {
		h, err := r.readHeader()
		if err != nil {
			return r.consumed - start, unexpected(err)
		}
		if h.tag == tag.SequenceDelimitationItem {
			return r.consumed - start, nil
		}
		if _, err := dst.Write(h.raw); err != nil {
			return r.consumed - start, err
		}
		switch {
		case h.tag == tag.ItemDelimitationItem:
			continue
		case h.tag == tag.Item && h.undefined():
			// item elements follow until the item delimiter
			continue
		case h.undefined():
			if _, err := r.scanUndefined(dst); err != nil {
				return r.consumed - start, err
			}
			if _, err := dst.Write(r.delimiter(tag.SequenceDelimitationItem)); err != nil {
				return r.consumed - start, err
			}
		default:
			n, err := io.CopyN(dst, r.r, int64(h.length))
			r.consumed += n
			if err != nil {
				return r.consumed - start, unexpected(err)
			}
		}
	}
}

// scanQuiet scans a sequence that readItems parses again afterwards. The
// second pass does the correction counting and warning.
func (r *Reader) scanQuiet(dst io.Writer) (int64, error) {
	saved, logger := *r.corrections, r.logger
	r.logger = slog.New(slog.DiscardHandler)
	defer func() {
		*r.corrections, r.logger = saved, logger
	}()
	return r.scanUndefined(dst)
}

func (r *Reader) delimiter(t Tag) []byte {
	b := make([]byte, 8)
	r.order.PutUint16(b, t.Group)
	r.order.PutUint16(b[2:], t.Element)
	return b
}

// SkipElement reads an element header and discards its value without
// allocating it. It returns the tag and the total bytes skipped.
func (r *Reader) SkipElement() (Tag, int64, error) {
	start := r.consumed
	h, err := r.readHeader()
	if err != nil {
		return Tag{}, r.consumed - start, err
	}
	if err := r.skipBody(h); err != nil {
		return h.tag, r.consumed - start, err
	}
	return h.tag, r.consumed - start, nil
}

func (r *Reader) skipBody(h header) error {
	if h.tag.IsDelimiter() {
		return nil
	}
	if h.undefined() {
		_, err := r.scanUndefined(io.Discard)
		return err
	}
	return r.discard(int64(h.length))
}

// ReadDataset reads elements until the end of the stream.
func (r *Reader) ReadDataset() (*Dataset, error) {
	ds := &Dataset{}
	for {
		e, err := r.ReadElement()
		if err == io.EOF {
			return ds, nil
		}
		if err != nil {
			return nil, err
		}
		ds.Elements = append(ds.Elements, e)
	}
}

// readMeta reads the group 0002 elements, which are always Explicit VR
// Little Endian, and leaves the reader in the syntax they declare.
func (r *Reader) readMeta() (*Dataset, error) {
	r.SetSyntax(transfer.ExplicitVRLittleEndian)
	meta := &Dataset{}
	for {
		b, err := r.r.Peek(2)
		if err != nil || binary.LittleEndian.Uint16(b) != 0x0002 {
			break
		}
		e, err := r.ReadElement()
		if err != nil {
			return nil, fmt.Errorf("reading file meta: %w", err)
		}
		meta.Elements = append(meta.Elements, e)
	}
	syntax := transfer.ImplicitVRLittleEndian
	if s, ok := meta.GetString(tag.TransferSyntaxUID); ok && s != "" {
		syntax = transfer.FromUID(s)
	}
	r.SetSyntax(syntax)
	if syntax.IsDeflated() {
		r.r = bufio.NewReader(flate.NewReader(r.r))
	}
	return meta, nil
}
