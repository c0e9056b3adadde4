package filterbank

import (
	"fmt"
	"strconv"
)

const (
	KindUint32 Kind = iota + 1
	KindFloat64
	KindString
)

// Kind is the wire type of a header value.
type Kind uint8

func (k Kind) String() string {
	switch k {
	case KindUint32:
		return "uint32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a typed header value. The set of implementations is closed:
// Uint32, Float64 and String.
type Value interface {
	Kind() Kind
	fmt.Stringer

	isValue()
}

// Uint32 is an unsigned 32-bit header value.
type Uint32 uint32

func (Uint32) Kind() Kind       { return KindUint32 }
func (v Uint32) String() string { return strconv.FormatUint(uint64(v), 10) }
func (Uint32) isValue()         {}

// Float64 is a double precision header value.
type Float64 float64

func (Float64) Kind() Kind       { return KindFloat64 }
func (v Float64) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (Float64) isValue()         {}

// String is a length-prefixed byte string header value.
type String string

func (String) Kind() Kind       { return KindString }
func (v String) String() string { return strconv.Quote(string(v)) }
func (String) isValue()         {}

// Item is a single named header entry.
type Item struct {
	Name  string
	Value Value
}

func (i Item) String() string {
	return fmt.Sprintf("%s : %s", i.Name, i.Value)
}
