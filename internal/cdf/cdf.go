// Package cdf reads and writes netCDF classic files (CDF-1 and the
// 64-bit-offset CDF-2 variant). It covers the subset of the classic format
// used by harmonisation datasets: fixed-size dimensions, global and
// per-variable attributes, and variables of the six classic data types.
// Record dimensions (UNLIMITED) are not supported.
//
// The codec is faithful: writing a File and reading it back reproduces
// dimension sizes, variable values bit-for-bit and attribute text
// byte-for-byte.
package cdf

import "fmt"

// Type is a netCDF classic external data type.
type Type int32

const (
	Byte   Type = 1 // NC_BYTE, signed 8-bit
	Char   Type = 2 // NC_CHAR, text
	Short  Type = 3 // NC_SHORT, signed 16-bit
	Int    Type = 4 // NC_INT, signed 32-bit
	Float  Type = 5 // NC_FLOAT, IEEE 754 32-bit
	Double Type = 6 // NC_DOUBLE, IEEE 754 64-bit
)

// Size returns the external size of one value of the type in bytes.
func (t Type) Size() int {
	switch t {
	case Byte, Char:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Double:
		return 8
	}
	return 0
}

func (t Type) valid() bool { return t >= Byte && t <= Double }

func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// Version selects the on-disk header variant.
type Version byte

const (
	V1 Version = 1 // CDF-1, 32-bit offsets (files < 2 GiB)
	V2 Version = 2 // CDF-2, 64-bit offsets
)

// Dim is a named, fixed-size dimension.
type Dim struct {
	Name string
	Len  int
}

// Attr is a global or per-variable attribute. Value holds a string for Char
// attributes and one of []int8, []int16, []int32, []float32 or []float64 for
// the numeric types.
type Attr struct {
	Name  string
	Type  Type
	Value any
}

// Text returns a text attribute value, or "" for numeric attributes.
func (a Attr) Text() string {
	s, _ := a.Value.(string)
	return s
}

// Len returns the number of values held by the attribute (byte count for
// text attributes).
func (a Attr) Len() int {
	switch v := a.Value.(type) {
	case string:
		return len(v)
	case []int8:
		return len(v)
	case []int16:
		return len(v)
	case []int32:
		return len(v)
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	}
	return 0
}

// TextAttr builds a Char attribute.
func TextAttr(name, value string) Attr {
	return Attr{Name: name, Type: Char, Value: value}
}

// DoubleAttr builds a Double attribute.
func DoubleAttr(name string, values ...float64) Attr {
	return Attr{Name: name, Type: Double, Value: values}
}

// IntAttr builds an Int attribute.
func IntAttr(name string, values ...int32) Attr {
	return Attr{Name: name, Type: Int, Value: values}
}

// Var is a variable: a typed array spanning zero or more dimensions.
// Dims holds dimension names which must resolve against File.Dims.
// Data holds []byte for Char variables and one of []int8, []int16, []int32,
// []float32 or []float64 for the numeric types, in row-major order.
type Var struct {
	Name  string
	Type  Type
	Dims  []string
	Attrs []Attr
	Data  any
}

// Attr returns the named attribute of the variable, or nil.
func (v *Var) Attr(name string) *Attr {
	for i := range v.Attrs {
		if v.Attrs[i].Name == name {
			return &v.Attrs[i]
		}
	}
	return nil
}

// DataLen returns the number of values held in Data (byte count for Char).
func (v *Var) DataLen() int {
	switch d := v.Data.(type) {
	case []byte:
		return len(d)
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	}
	return 0
}

// File is an in-memory netCDF classic dataset.
type File struct {
	Version Version
	Dims    []Dim
	Attrs   []Attr
	Vars    []Var
}

// Dim returns the named dimension and whether it exists.
func (f *File) Dim(name string) (Dim, bool) {
	for _, d := range f.Dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dim{}, false
}

// DimLen returns the length of the named dimension, or -1 if absent.
func (f *File) DimLen(name string) int {
	if d, ok := f.Dim(name); ok {
		return d.Len
	}
	return -1
}

// Var returns the named variable, or nil.
func (f *File) Var(name string) *Var {
	for i := range f.Vars {
		if f.Vars[i].Name == name {
			return &f.Vars[i]
		}
	}
	return nil
}

// Attr returns the named global attribute, or nil.
func (f *File) Attr(name string) *Attr {
	for i := range f.Attrs {
		if f.Attrs[i].Name == name {
			return &f.Attrs[i]
		}
	}
	return nil
}

// AttrText returns the named global text attribute, or "".
func (f *File) AttrText(name string) string {
	if a := f.Attr(name); a != nil {
		return a.Text()
	}
	return ""
}

// shape returns the total number of values the variable's dimensions imply.
func (f *File) shape(v *Var) (int, error) {
	n := 1
	for _, name := range v.Dims {
		d, ok := f.Dim(name)
		if !ok {
			return 0, fmt.Errorf("variable %q references unknown dimension %q", v.Name, name)
		}
		n *= d.Len
	}
	return n, nil
}

// pad4 rounds n up to the next multiple of four, the alignment unit of the
// classic format.
func pad4(n int) int { return (n + 3) &^ 3 }
