package cdf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WriteFile encodes f to path, replacing any existing file.
func WriteFile(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cdf: create %s: %w", path, err)
	}
	if err := Encode(fh, f); err != nil {
		fh.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("cdf: close %s: %w", path, err)
	}
	return nil
}

// Encode writes f to w in the classic format selected by f.Version
// (V2 when unset).
func Encode(w io.Writer, f *File) error {
	version := f.Version
	if version == 0 {
		version = V2
	}
	if version != V1 && version != V2 {
		return fmt.Errorf("cdf: invalid version %d", version)
	}
	if err := validate(f); err != nil {
		return err
	}

	begins, err := layout(f, version)
	if err != nil {
		return err
	}

	e := &encoder{w: bufio.NewWriterSize(w, 1<<16)}
	e.bytes([]byte{'C', 'D', 'F', byte(version)})
	e.i32(0) // numrecs: no record variables

	// Dimension list.
	e.list(tagDimension, len(f.Dims))
	for _, d := range f.Dims {
		e.name(d.Name)
		e.i32(int32(d.Len))
	}

	// Global attributes.
	e.attrList(f.Attrs)

	// Variable metadata.
	e.list(tagVariable, len(f.Vars))
	for i := range f.Vars {
		v := &f.Vars[i]
		e.name(v.Name)
		e.i32(int32(len(v.Dims)))
		for _, dn := range v.Dims {
			e.i32(dimID(f, dn))
		}
		e.attrList(v.Attrs)
		e.i32(int32(v.Type))
		count, _ := f.shape(v)
		e.i32(vsizeWord(pad4(count * v.Type.Size())))
		if version == V2 {
			e.i64(begins[i])
		} else {
			e.i32(int32(begins[i]))
		}
	}

	// Variable data, in declaration order.
	for i := range f.Vars {
		v := &f.Vars[i]
		count, _ := f.shape(v)
		raw := encodeValues(v.Type, v.Data)
		e.bytes(raw)
		e.pad(pad4(count*v.Type.Size()) - len(raw))
	}

	if e.err != nil {
		return fmt.Errorf("cdf: write: %w", e.err)
	}
	return e.w.Flush()
}

// validate checks the in-memory dataset for the structural invariants the
// format cannot express once encoded.
func validate(f *File) error {
	seen := make(map[string]bool, len(f.Dims))
	for _, d := range f.Dims {
		if d.Name == "" {
			return fmt.Errorf("cdf: dimension with empty name")
		}
		if d.Len <= 0 {
			return fmt.Errorf("cdf: dimension %q has non-positive length %d", d.Name, d.Len)
		}
		if seen[d.Name] {
			return fmt.Errorf("cdf: duplicate dimension %q", d.Name)
		}
		seen[d.Name] = true
	}
	if err := validateAttrs("global", f.Attrs); err != nil {
		return err
	}
	names := make(map[string]bool, len(f.Vars))
	for i := range f.Vars {
		v := &f.Vars[i]
		if v.Name == "" {
			return fmt.Errorf("cdf: variable with empty name")
		}
		if names[v.Name] {
			return fmt.Errorf("cdf: duplicate variable %q", v.Name)
		}
		names[v.Name] = true
		if !v.Type.valid() {
			return fmt.Errorf("cdf: variable %q has invalid type %d", v.Name, v.Type)
		}
		count, err := f.shape(v)
		if err != nil {
			return fmt.Errorf("cdf: %v", err)
		}
		if got := v.DataLen(); got != count {
			return fmt.Errorf("cdf: variable %q has %d values, dimensions imply %d", v.Name, got, count)
		}
		if !typeMatches(v.Type, v.Data) {
			return fmt.Errorf("cdf: variable %q: data does not match declared type %s", v.Name, v.Type)
		}
		if err := validateAttrs(v.Name, v.Attrs); err != nil {
			return err
		}
	}
	return nil
}

func validateAttrs(owner string, attrs []Attr) error {
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a.Name == "" {
			return fmt.Errorf("cdf: %s attribute with empty name", owner)
		}
		if seen[a.Name] {
			return fmt.Errorf("cdf: %s: duplicate attribute %q", owner, a.Name)
		}
		seen[a.Name] = true
		if !a.Type.valid() {
			return fmt.Errorf("cdf: %s attribute %q has invalid type %d", owner, a.Name, a.Type)
		}
		ok := false
		switch a.Value.(type) {
		case string:
			ok = a.Type == Char
		default:
			ok = a.Type != Char && typeMatches(a.Type, a.Value)
		}
		if !ok {
			return fmt.Errorf("cdf: %s attribute %q: value does not match declared type %s", owner, a.Name, a.Type)
		}
	}
	return nil
}

func typeMatches(t Type, data any) bool {
	switch data.(type) {
	case []byte:
		return t == Char
	case []int8:
		return t == Byte
	case []int16:
		return t == Short
	case []int32:
		return t == Int
	case []float32:
		return t == Float
	case []float64:
		return t == Double
	}
	return false
}

// layout computes the header size and per-variable data offsets.
func layout(f *File, version Version) ([]int64, error) {
	offSize := 8
	if version == V1 {
		offSize = 4
	}

	header := 4 + 4 // magic + numrecs
	header += 8     // dim list prefix
	for _, d := range f.Dims {
		header += nameSize(d.Name) + 4
	}
	header += attrListSize(f.Attrs)
	header += 8 // var list prefix
	for i := range f.Vars {
		v := &f.Vars[i]
		header += nameSize(v.Name) + 4 + 4*len(v.Dims) + attrListSize(v.Attrs) + 4 + 4 + offSize
	}

	begins := make([]int64, len(f.Vars))
	off := int64(header)
	for i := range f.Vars {
		v := &f.Vars[i]
		count, err := f.shape(v)
		if err != nil {
			return nil, fmt.Errorf("cdf: %v", err)
		}
		begins[i] = off
		off += int64(pad4(count * v.Type.Size()))
	}
	if version == V1 && off > math.MaxInt32 {
		return nil, fmt.Errorf("cdf: dataset exceeds the 2 GiB CDF-1 offset limit; use CDF-2")
	}
	return begins, nil
}

// vsizeWord renders a padded data size for the 32-bit vsize header word.
// Sizes that overflow the word are stored as the all-ones marker 2^32-1;
// readers recompute the true size from the shape.
func vsizeWord(n int) int32 {
	if n > math.MaxInt32 {
		return -1
	}
	return int32(n)
}

func nameSize(s string) int { return 4 + pad4(len(s)) }

func attrListSize(attrs []Attr) int {
	n := 8
	for _, a := range attrs {
		n += nameSize(a.Name) + 8 + pad4(a.Len()*a.Type.Size())
	}
	return n
}

func dimID(f *File, name string) int32 {
	for i, d := range f.Dims {
		if d.Name == name {
			return int32(i)
		}
	}
	return -1 // unreachable after validate
}

// encodeValues renders a typed Go slice as big-endian external values.
func encodeValues(t Type, data any) []byte {
	switch v := data.(type) {
	case []byte:
		return v
	case []int8:
		out := make([]byte, len(v))
		for i, x := range v {
			out[i] = byte(x)
		}
		return out
	case []int16:
		out := make([]byte, 2*len(v))
		for i, x := range v {
			binary.BigEndian.PutUint16(out[2*i:], uint16(x))
		}
		return out
	case []int32:
		out := make([]byte, 4*len(v))
		for i, x := range v {
			binary.BigEndian.PutUint32(out[4*i:], uint32(x))
		}
		return out
	case []float32:
		out := make([]byte, 4*len(v))
		for i, x := range v {
			binary.BigEndian.PutUint32(out[4*i:], math.Float32bits(x))
		}
		return out
	case []float64:
		out := make([]byte, 8*len(v))
		for i, x := range v {
			binary.BigEndian.PutUint64(out[8*i:], math.Float64bits(x))
		}
		return out
	}
	return nil
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) bytes(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) pad(n int) {
	for i := 0; i < n && e.err == nil; i++ {
		e.err = e.w.WriteByte(0)
	}
}

func (e *encoder) i32(v int32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	e.bytes(buf[:])
}

func (e *encoder) i64(v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	e.bytes(buf[:])
}

func (e *encoder) name(s string) {
	e.i32(int32(len(s)))
	e.bytes([]byte(s))
	e.pad(pad4(len(s)) - len(s))
}

func (e *encoder) list(tag int32, n int) {
	if n == 0 {
		e.i32(tagAbsent)
		e.i32(0)
		return
	}
	e.i32(tag)
	e.i32(int32(n))
}

func (e *encoder) attrList(attrs []Attr) {
	e.list(tagAttribute, len(attrs))
	for _, a := range attrs {
		e.name(a.Name)
		e.i32(int32(a.Type))
		e.i32(int32(a.Len()))
		var raw []byte
		if s, ok := a.Value.(string); ok {
			raw = []byte(s)
		} else {
			raw = encodeValues(a.Type, a.Value)
		}
		e.bytes(raw)
		e.pad(pad4(len(raw)) - len(raw))
	}
}
