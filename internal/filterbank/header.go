// Package filterbank implements the self-describing binary header used by
// sigproc-style filterbank files.
//
// A header is the byte sequence
//
//	HEADER_START, item*, HEADER_END
//
// where every name is a 32-bit little-endian length followed by that many
// bytes, and every item value is typed by its name: a uint32, a float64 or
// another length-prefixed string. Spectra follow the header as raw
// little-endian float32, nchans values per time step.
package filterbank

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSourceName is written by NewHeader.
	DefaultSourceName = "fake"

	// mjdUnixEpoch is the Modified Julian Date of 1970-01-01T00:00:00Z.
	mjdUnixEpoch = 40587.0
)

// Header is an ordered list of items. The start and end sentinels are
// implicit and never stored in Items.
type Header struct {
	Items []Item
}

// NewHeader builds the canonical header for a spectrometer output of nch
// channels. fch1 is the centre frequency of the first channel and foff the
// channel spacing, both in MHz; tstart is an MJD and tsamp the interval
// between spectra in seconds.
func NewHeader(fch1 float64, nch int, foff float64, tstart, tsamp float64) *Header {
	h := &Header{}
	h.Push(FieldSourceName, String(DefaultSourceName))
	h.Push(FieldMachineID, Uint32(0))
	h.Push(FieldTelescopeID, Uint32(0))
	h.Push(FieldDataType, Uint32(1))
	h.Push(FieldFch1, Float64(fch1))
	h.Push(FieldFoff, Float64(foff))
	h.Push(FieldNChans, Uint32(nch))
	h.Push(FieldBarycentric, Uint32(1))
	h.Push(FieldNBits, Uint32(32))
	h.Push(FieldTStart, Float64(tstart))
	h.Push(FieldTSamp, Float64(tsamp))
	h.Push(FieldSrcRaj, Float64(0))
	h.Push(FieldSrcDej, Float64(900000))
	h.Push(FieldNIFs, Uint32(1))
	return h
}

// MJD converts t to a Modified Julian Date.
func MJD(t time.Time) float64 {
	return mjdUnixEpoch + float64(t.UnixNano())/float64(24*time.Hour)
}

// Push appends an item without checking it; Validate or the encoder will.
func (h *Header) Push(name string, v Value) {
	h.Items = append(h.Items, Item{Name: name, Value: v})
}

// Set replaces the first item called name, or appends one.
func (h *Header) Set(name string, v Value) {
	for i := range h.Items {
		if h.Items[i].Name == name {
			h.Items[i].Value = v
			return
		}
	}
	h.Push(name, v)
}

// Lookup returns the value of the first item called name.
func (h *Header) Lookup(name string) (Value, bool) {
	for _, item := range h.Items {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}

// Uint32 returns the named unsigned value.
func (h *Header) Uint32(name string) (uint32, bool) {
	v, ok := h.Lookup(name)
	if !ok {
		return 0, false
	}
	u, ok := v.(Uint32)
	return uint32(u), ok
}

// Float64 returns the named floating point value.
func (h *Header) Float64(name string) (float64, bool) {
	v, ok := h.Lookup(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(Float64)
	return float64(f), ok
}

// Text returns the named string value.
func (h *Header) Text(name string) (string, bool) {
	v, ok := h.Lookup(name)
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	return string(s), ok
}

// NChans returns the channel count, zero when absent.
func (h *Header) NChans() int {
	n, _ := h.Uint32(FieldNChans)
	return int(n)
}

// NBits returns the sample width in bits, zero when absent.
func (h *Header) NBits() int {
	n, _ := h.Uint32(FieldNBits)
	return int(n)
}

// NIFs returns the number of IF streams; a header without nifs has one.
func (h *Header) NIFs() int {
	if n, ok := h.Uint32(FieldNIFs); ok {
		return int(n)
	}
	return 1
}

// TSamp returns the sampling interval in seconds.
func (h *Header) TSamp() (float64, bool) {
	return h.Float64(FieldTSamp)
}

// SetTSamp replaces the sampling interval.
func (h *Header) SetTSamp(tsamp float64) {
	h.Set(FieldTSamp, Float64(tsamp))
}

// Validate checks every item against the field table.
func (h *Header) Validate() error {
	for _, item := range h.Items {
		if err := checkItem(item); err != nil {
			return err
		}
	}
	return nil
}

// Dump renders the header one item per line.
func (h *Header) Dump() string {
	var sb strings.Builder
	sb.WriteString(StartSentinel)
	sb.WriteByte('\n')
	for _, item := range h.Items {
		sb.WriteString(item.String())
		sb.WriteByte('\n')
	}
	sb.WriteString(EndSentinel)
	return sb.String()
}

func checkItem(item Item) error {
	kind, ok := fieldKinds[item.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, item.Name)
	}
	if item.Value == nil {
		return fmt.Errorf("%w: %q has no value", ErrKindMismatch, item.Name)
	}
	if item.Value.Kind() != kind {
		return fmt.Errorf("%w: %q is %s, got %s", ErrKindMismatch, item.Name, kind, item.Value.Kind())
	}
	if v, ok := item.Value.(String); ok && len(v) > MaxStringLength {
		return fmt.Errorf("%w: %q is %d bytes", ErrStringTooLong, item.Name, len(v))
	}
	return nil
}
