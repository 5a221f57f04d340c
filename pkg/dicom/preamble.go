package dicom

import (
	"bufio"
	"fmt"
	"io"
)

const (
	preambleLen = 128
	magic       = "DICM"
)

// PreambleStatus classifies the 132 byte file header.
type PreambleStatus int

const (
	// PreambleOk is an all-zero preamble followed by "DICM".
	PreambleOk PreambleStatus = iota
	// NoPreamble means the stream is too short to hold preamble and magic.
	NoPreamble
	// WrongMagic means the magic is not "DICM"; the stream is not DICOM.
	WrongMagic
	// MismatchPreamble is a valid magic after non-zero preamble bytes.
	MismatchPreamble
)

func (s PreambleStatus) String() string {
	switch s {
	case PreambleOk:
		return "Ok"
	case NoPreamble:
		return "NoPreamble"
	case WrongMagic:
		return "WrongMagic"
	case MismatchPreamble:
		return "MismatchPreamble"
	}
	return fmt.Sprintf("PreambleStatus(%d)", int(s))
}

// Readable returns true when the dataset after the header can be parsed.
func (s PreambleStatus) Readable() bool {
	return s == PreambleOk || s == MismatchPreamble
}

// Err maps fatal statuses to their sentinel errors.
func (s PreambleStatus) Err() error {
	switch s {
	case NoPreamble:
		return ErrNoPreamble
	case WrongMagic:
		return ErrWrongMagic
	}
	return nil
}

func (s PreambleStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ReadPreamble classifies and consumes the preamble and magic. A stream of
// 132 bytes or fewer is NoPreamble and nothing is consumed.
func ReadPreamble(r *bufio.Reader) (PreambleStatus, [preambleLen]byte, error) {
	var preamble [preambleLen]byte
	head, err := r.Peek(preambleLen + len(magic) + 1)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return NoPreamble, preamble, fmt.Errorf("reading preamble: %w", err)
	}
	if len(head) <= preambleLen+len(magic) {
		return NoPreamble, preamble, nil
	}
	copy(preamble[:], head)
	if string(head[preambleLen:preambleLen+len(magic)]) != magic {
		return WrongMagic, preamble, nil
	}
	if _, err := r.Discard(preambleLen + len(magic)); err != nil {
		return NoPreamble, preamble, fmt.Errorf("reading preamble: %w", err)
	}
	for _, b := range preamble {
		if b != 0 {
			return MismatchPreamble, preamble, nil
		}
	}
	return PreambleOk, preamble, nil
}
