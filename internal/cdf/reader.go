package cdf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	tagAbsent    int32 = 0x00
	tagDimension int32 = 0x0A
	tagVariable  int32 = 0x0B
	tagAttribute int32 = 0x0C

	// maxListElems caps header list lengths so a corrupt count cannot make
	// the reader attempt a multi-gigabyte allocation.
	maxListElems = 1 << 20

	// maxNameLen caps dimension/variable/attribute name lengths.
	maxNameLen = 1 << 16
)

// ReadFile opens and decodes a netCDF classic file.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cdf: open %s: %w", path, err)
	}
	defer fh.Close()
	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode reads a complete netCDF classic dataset, header and data, from r.
func Decode(r io.ReadSeeker) (*File, error) {
	d := &decoder{r: r}
	return d.decode()
}

type decoder struct {
	r   io.ReadSeeker
	off int64
}

func (d *decoder) decode() (*File, error) {
	var magic [4]byte
	if err := d.readFull(magic[:]); err != nil {
		return nil, ErrNotNetCDF
	}
	if magic[0] != 'C' || magic[1] != 'D' || magic[2] != 'F' {
		return nil, ErrNotNetCDF
	}
	f := &File{}
	switch magic[3] {
	case 1:
		f.Version = V1
	case 2:
		f.Version = V2
	case 5:
		return nil, fmt.Errorf("%w: CDF-5", ErrUnsupported)
	default:
		return nil, ErrNotNetCDF
	}

	numrecs, err := d.i32()
	if err != nil {
		return nil, err
	}
	if numrecs != 0 {
		return nil, fmt.Errorf("%w: record variables (numrecs=%d)", ErrUnsupported, numrecs)
	}

	if f.Dims, err = d.dimList(); err != nil {
		return nil, err
	}
	if f.Attrs, err = d.attrList(); err != nil {
		return nil, err
	}
	begins, err := d.varList(f)
	if err != nil {
		return nil, err
	}

	// The header has been read; anything a variable claims to hold must fit
	// in the bytes that remain. Checking against the stream size keeps a
	// corrupt shape from forcing a huge allocation.
	size, err := d.r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, formatErr(d.off, "seek: %v", err)
	}
	for i := range f.Vars {
		if err := d.varData(f, &f.Vars[i], begins[i], size); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (d *decoder) dimList() ([]Dim, error) {
	n, err := d.listHeader(tagDimension)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	dims := make([]Dim, 0, n)
	for i := 0; i < n; i++ {
		name, err := d.name()
		if err != nil {
			return nil, err
		}
		length, err := d.i32()
		if err != nil {
			return nil, err
		}
		if length == 0 {
			return nil, fmt.Errorf("%w: record dimension %q", ErrUnsupported, name)
		}
		if length < 0 {
			return nil, formatErr(d.off, "dimension %q has negative length %d", name, length)
		}
		dims = append(dims, Dim{Name: name, Len: int(length)})
	}
	return dims, nil
}

func (d *decoder) attrList() ([]Attr, error) {
	n, err := d.listHeader(tagAttribute)
	if err != nil {
		return nil, err
	}
	// Empty lists decode as nil so decoded files compare canonically.
	if n == 0 {
		return nil, nil
	}
	attrs := make([]Attr, 0, n)
	for i := 0; i < n; i++ {
		a, err := d.attr()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func (d *decoder) attr() (Attr, error) {
	name, err := d.name()
	if err != nil {
		return Attr{}, err
	}
	tv, err := d.i32()
	if err != nil {
		return Attr{}, err
	}
	t := Type(tv)
	if !t.valid() {
		return Attr{}, formatErr(d.off, "attribute %q has invalid type %d", name, tv)
	}
	count, err := d.i32()
	if err != nil {
		return Attr{}, err
	}
	if count < 0 || count > maxListElems {
		return Attr{}, formatErr(d.off, "attribute %q has implausible value count %d", name, count)
	}
	raw := make([]byte, pad4(int(count)*t.Size()))
	if err := d.readFull(raw); err != nil {
		return Attr{}, formatErr(d.off, "attribute %q values truncated", name)
	}
	value, err := decodeValues(t, int(count), raw)
	if err != nil {
		return Attr{}, formatErr(d.off, "attribute %q: %v", name, err)
	}
	if t == Char {
		return Attr{Name: name, Type: t, Value: string(value.([]byte))}, nil
	}
	return Attr{Name: name, Type: t, Value: value}, nil
}

// varList decodes the variable metadata and returns each variable's data
// offset in file order.
func (d *decoder) varList(f *File) ([]int64, error) {
	n, err := d.listHeader(tagVariable)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	begins := make([]int64, 0, n)
	f.Vars = make([]Var, 0, n)
	for i := 0; i < n; i++ {
		name, err := d.name()
		if err != nil {
			return nil, err
		}
		ndims, err := d.i32()
		if err != nil {
			return nil, err
		}
		if ndims < 0 || ndims > 32 {
			return nil, formatErr(d.off, "variable %q has implausible rank %d", name, ndims)
		}
		var dims []string
		if ndims > 0 {
			dims = make([]string, ndims)
		}
		for j := range dims {
			id, err := d.i32()
			if err != nil {
				return nil, err
			}
			if id < 0 || int(id) >= len(f.Dims) {
				return nil, formatErr(d.off, "variable %q references dimension id %d of %d", name, id, len(f.Dims))
			}
			dims[j] = f.Dims[id].Name
		}
		attrs, err := d.attrList()
		if err != nil {
			return nil, err
		}
		tv, err := d.i32()
		if err != nil {
			return nil, err
		}
		t := Type(tv)
		if !t.valid() {
			return nil, formatErr(d.off, "variable %q has invalid type %d", name, tv)
		}
		// vsize is redundant (recomputed from shape); read and discard.
		if _, err := d.i32(); err != nil {
			return nil, err
		}
		var begin int64
		if f.Version == V2 {
			begin, err = d.i64()
		} else {
			var b32 int32
			b32, err = d.i32()
			begin = int64(b32)
		}
		if err != nil {
			return nil, err
		}
		if begin < 0 {
			return nil, formatErr(d.off, "variable %q has negative data offset", name)
		}
		f.Vars = append(f.Vars, Var{Name: name, Type: t, Dims: dims, Attrs: attrs})
		begins = append(begins, begin)
	}
	return begins, nil
}

func (d *decoder) varData(f *File, v *Var, begin, size int64) error {
	count, err := f.shape(v)
	if err != nil {
		return formatErr(begin, "%v", err)
	}
	// Division form avoids overflow on hostile dimension products.
	if avail := size - begin; count < 0 || int64(count) > avail/int64(v.Type.Size()) {
		return formatErr(begin, "variable %q data truncated (want %d values)", v.Name, count)
	}
	if _, err := d.r.Seek(begin, io.SeekStart); err != nil {
		return formatErr(begin, "variable %q: seek: %v", v.Name, err)
	}
	d.off = begin
	raw := make([]byte, count*v.Type.Size())
	if err := d.readFull(raw); err != nil {
		return formatErr(begin, "variable %q data truncated (want %d bytes)", v.Name, len(raw))
	}
	value, err := decodeValues(v.Type, count, raw)
	if err != nil {
		return formatErr(begin, "variable %q: %v", v.Name, err)
	}
	v.Data = value
	return nil
}

// decodeValues converts count big-endian external values of type t held in
// raw into the matching Go slice. Char values stay as []byte.
func decodeValues(t Type, count int, raw []byte) (any, error) {
	if len(raw) < count*t.Size() {
		return nil, fmt.Errorf("short value block: %d bytes for %d %s values", len(raw), count, t)
	}
	switch t {
	case Char:
		out := make([]byte, count)
		copy(out, raw[:count])
		return out, nil
	case Byte:
		out := make([]int8, count)
		for i := range out {
			out[i] = int8(raw[i])
		}
		return out, nil
	case Short:
		out := make([]int16, count)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(raw[2*i:]))
		}
		return out, nil
	case Int:
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(raw[4*i:]))
		}
		return out, nil
	case Float:
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:]))
		}
		return out, nil
	case Double:
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[8*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid type %d", t)
}

// listHeader reads a (tag, nelems) list prefix. An absent list is encoded as
// two zero words; some writers emit the tag with a zero count, which is
// accepted too.
func (d *decoder) listHeader(want int32) (int, error) {
	tag, err := d.i32()
	if err != nil {
		return 0, err
	}
	n, err := d.i32()
	if err != nil {
		return 0, err
	}
	if tag == tagAbsent && n == 0 {
		return 0, nil
	}
	if tag != want {
		return 0, formatErr(d.off, "list tag 0x%02X, want 0x%02X", tag, want)
	}
	if n < 0 || n > maxListElems {
		return 0, formatErr(d.off, "implausible list length %d", n)
	}
	return int(n), nil
}

// name reads a length-prefixed, 4-byte-aligned name string.
func (d *decoder) name() (string, error) {
	n, err := d.i32()
	if err != nil {
		return "", err
	}
	if n < 0 || n > maxNameLen {
		return "", formatErr(d.off, "implausible name length %d", n)
	}
	raw := make([]byte, pad4(int(n)))
	if err := d.readFull(raw); err != nil {
		return "", formatErr(d.off, "name truncated")
	}
	return string(raw[:n]), nil
}

func (d *decoder) i32() (int32, error) {
	var buf [4]byte
	if err := d.readFull(buf[:]); err != nil {
		return 0, formatErr(d.off, "truncated header")
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func (d *decoder) i64() (int64, error) {
	var buf [8]byte
	if err := d.readFull(buf[:]); err != nil {
		return 0, formatErr(d.off, "truncated header")
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func (d *decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.off += int64(n)
	return err
}
