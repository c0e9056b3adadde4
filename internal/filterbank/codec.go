package filterbank

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxStringLength bounds every length prefix accepted by the decoder.
const MaxStringLength = 4096

var (
	// ErrMissingStart is returned when a stream does not open with HEADER_START.
	ErrMissingStart = errors.New("filterbank: missing HEADER_START")

	// ErrUnknownField is returned for an item name absent from the field table.
	ErrUnknownField = errors.New("filterbank: unknown field")

	// ErrKindMismatch is returned when an item value disagrees with the field table.
	ErrKindMismatch = errors.New("filterbank: value kind mismatch")

	// ErrStringTooLong is returned for a length prefix above MaxStringLength.
	ErrStringTooLong = errors.New("filterbank: string too long")
)

var order = binary.LittleEndian

// MarshalBinary encodes the header including both sentinels.
func (h *Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo encodes the header to w. Nothing is written if any item fails
// validation.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}

	p := appendString(nil, StartSentinel)
	for _, item := range h.Items {
		p = appendString(p, item.Name)
		switch v := item.Value.(type) {
		case Uint32:
			p = order.AppendUint32(p, uint32(v))
		case Float64:
			p = order.AppendUint64(p, math.Float64bits(float64(v)))
		case String:
			p = appendString(p, string(v))
		}
	}
	p = appendString(p, EndSentinel)

	n, err := w.Write(p)
	if err != nil {
		return int64(n), fmt.Errorf("filterbank: writing header: %w", err)
	}
	return int64(n), nil
}

// UnmarshalBinary decodes a header from p. Trailing bytes after
// HEADER_END are ignored.
func (h *Header) UnmarshalBinary(p []byte) error {
	decoded, err := ReadHeader(bytes.NewReader(p))
	if err != nil {
		return err
	}
	*h = *decoded
	return nil
}

// ReadHeader decodes a header from r and leaves r positioned on the first
// payload byte. r is read unbuffered; wrap it with bufio when reading from a
// file.
func ReadHeader(r io.Reader) (*Header, error) {
	d := decoder{r: r}

	name, err := d.readString()
	if err != nil {
		return nil, fmt.Errorf("reading start sentinel: %w", err)
	}
	if name != StartSentinel {
		return nil, ErrMissingStart
	}

	h := &Header{}
	for {
		if name, err = d.readString(); err != nil {
			return nil, fmt.Errorf("reading item name: %w", err)
		}
		if name == EndSentinel {
			return h, nil
		}

		kind, ok := fieldKinds[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}

		var v Value
		switch kind {
		case KindUint32:
			var u uint32
			if u, err = d.readUint32(); err == nil {
				v = Uint32(u)
			}
		case KindFloat64:
			var f uint64
			if f, err = d.readUint64(); err == nil {
				v = Float64(math.Float64frombits(f))
			}
		case KindString:
			var s string
			if s, err = d.readString(); err == nil {
				v = String(s)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("reading value of %q: %w", name, err)
		}

		h.Push(name, v)
	}
}

// ReadFile reads a header from the head of a buffered reader, returning the
// reader so callers can continue with the payload.
func ReadFile(r io.Reader) (*Header, *bufio.Reader, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, nil, err
	}
	return h, br, nil
}

func appendString(p []byte, s string) []byte {
	p = order.AppendUint32(p, uint32(len(s)))
	return append(p, s...)
}

type decoder struct {
	r   io.Reader
	buf [8]byte
}

func (d *decoder) readFull(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (d *decoder) readUint32() (uint32, error) {
	if err := d.readFull(d.buf[:4]); err != nil {
		return 0, err
	}
	return order.Uint32(d.buf[:4]), nil
}

func (d *decoder) readUint64() (uint64, error) {
	if err := d.readFull(d.buf[:8]); err != nil {
		return 0, err
	}
	return order.Uint64(d.buf[:8]), nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint32()
	if err != nil {
		return "", err
	}
	if n > MaxStringLength {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	p := make([]byte, n)
	if err = d.readFull(p); err != nil {
		return "", err
	}
	return string(p), nil
}
