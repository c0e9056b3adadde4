// Package rawio reads and writes flat buffers of fixed-width numbers.
//
// Every routine encodes little-endian explicitly; nothing relies on the
// in-memory layout of the host. Files and datagrams produced here carry no
// framing, the reader has to know the element type and count out-of-band.
package rawio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Number is the set of element types the codec understands.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// ByteOrder is the byte order of every value written by this package.
var ByteOrder = binary.LittleEndian

// Size returns the encoded width of a single T in bytes.
func Size[T Number]() int {
	var v T
	return binary.Size(v)
}

// Append appends the encoding of src to dst and returns the extended buffer.
func Append[T Number](dst []byte, src []T) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}
	out, err := binary.Append(dst, ByteOrder, src)
	if err != nil {
		return dst, fmt.Errorf("rawio: encoding %d elements: %w", len(src), err)
	}
	return out, nil
}

// Write encodes buf and writes it to w in a single call.
func Write[T Number](w io.Writer, buf []T) error {
	p, err := Append(make([]byte, 0, len(buf)*Size[T]()), buf)
	if err != nil {
		return err
	}
	if _, err = w.Write(p); err != nil {
		return fmt.Errorf("rawio: writing %d bytes: %w", len(p), err)
	}
	return nil
}

// Read fills buf from r. It returns io.EOF only when r is exhausted on an
// element boundary before any byte was read; a partial buffer yields
// io.ErrUnexpectedEOF.
func Read[T Number](r io.Reader, buf []T) error {
	if len(buf) == 0 {
		return nil
	}
	return binary.Read(r, ByteOrder, buf)
}

// Decode fills buf from the head of p and returns the number of bytes consumed.
func Decode[T Number](p []byte, buf []T) (int, error) {
	n, err := binary.Decode(p, ByteOrder, buf)
	if err != nil {
		return 0, fmt.Errorf("rawio: decoding %d elements: %w", len(buf), err)
	}
	return n, nil
}

// AppendFloat32 is the hot-path variant of Append for spectra.
func AppendFloat32(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = ByteOrder.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// WriteFloat32 writes src as consecutive little-endian IEEE-754 singles.
func WriteFloat32(w io.Writer, src []float32) error {
	p := AppendFloat32(make([]byte, 0, len(src)*4), src)
	if _, err := w.Write(p); err != nil {
		return fmt.Errorf("rawio: writing %d floats: %w", len(src), err)
	}
	return nil
}

// DecodeFloat32 decodes len(dst) singles from p. p must hold at least 4*len(dst) bytes.
func DecodeFloat32(p []byte, dst []float32) error {
	if len(p) < len(dst)*4 {
		return fmt.Errorf("rawio: short buffer: need %d bytes, have %d", len(dst)*4, len(p))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(ByteOrder.Uint32(p[i*4:]))
	}
	return nil
}

// WriteComplex64 writes src as interleaved real/imaginary singles.
func WriteComplex64(w io.Writer, src []complex64) error {
	p := make([]byte, 0, len(src)*8)
	for _, v := range src {
		p = ByteOrder.AppendUint32(p, math.Float32bits(real(v)))
		p = ByteOrder.AppendUint32(p, math.Float32bits(imag(v)))
	}
	if _, err := w.Write(p); err != nil {
		return fmt.Errorf("rawio: writing %d complex samples: %w", len(src), err)
	}
	return nil
}

// ReadComplex64 fills dst with interleaved real/imaginary singles read from r.
func ReadComplex64(r io.Reader, dst []complex64) error {
	if len(dst) == 0 {
		return nil
	}
	p := make([]byte, len(dst)*8)
	if _, err := io.ReadFull(r, p); err != nil {
		return err
	}
	return DecodeComplex64(p, dst)
}

// DecodeComplex64 decodes len(dst) interleaved real/imaginary pairs from p.
// p must hold at least 8*len(dst) bytes.
func DecodeComplex64(p []byte, dst []complex64) error {
	if len(p) < len(dst)*8 {
		return fmt.Errorf("rawio: short buffer: need %d bytes, have %d", len(dst)*8, len(p))
	}
	for i := range dst {
		re := math.Float32frombits(ByteOrder.Uint32(p[i*8:]))
		im := math.Float32frombits(ByteOrder.Uint32(p[i*8+4:]))
		dst[i] = complex(re, im)
	}
	return nil
}
