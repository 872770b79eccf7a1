package cdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleFile(version Version) *File {
	return &File{
		Version: version,
		Dims: []Dim{
			{Name: "m", Len: 4},
			{Name: "n", Len: 2},
			{Name: "l_name", Len: 8},
		},
		Attrs: []Attr{
			TextAttr("matchup_dataset", "AVHRR_SIM_3"),
			TextAttr("software_version", "v2.2"),
			DoubleAttr("cost", 1.0000000001234, math.Pi),
			IntAttr("job_number", 42),
		},
		Vars: []Var{
			{
				Name: "k_res",
				Type: Double,
				Dims: []string{"m"},
				Attrs: []Attr{
					TextAttr("description", "harmonisation residual"),
				},
				Data: []float64{0.25, -1.5, math.SmallestNonzeroFloat64, 3.75},
			},
			{
				Name: "k_res_uncertainty_l",
				Type: Float,
				Dims: []string{"m"},
				Data: []float32{0.1, 0.2, 0.3, 0.4},
			},
			{
				Name: "parameter_covariance_matrix",
				Type: Double,
				Dims: []string{"n", "n"},
				Data: []float64{1, 0.5, 0.5, 2},
			},
			{
				Name: "parameter_sensors",
				Type: Char,
				Dims: []string{"n", "l_name"},
				Data: []byte("n15\x00\x00\x00\x00\x00n16\x00\x00\x00\x00\x00"),
			},
			{
				Name: "counts",
				Type: Int,
				Dims: []string{"n"},
				Data: []int32{7, -9},
			},
			{
				Name: "flags",
				Type: Short,
				Dims: []string{"m"}, // 8 bytes, exercises exact alignment
				Data: []int16{1, 0, -2, 3},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, version := range []Version{V1, V2} {
		want := sampleFile(version)
		var buf bytes.Buffer
		if err := Encode(&buf, want); err != nil {
			t.Fatalf("Encode(V%d) failed: %v", version, err)
		}

		got, err := Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("Decode(V%d) failed: %v", version, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("V%d round trip mismatch (-want +got):\n%s", version, diff)
		}
	}
}

func TestRoundTripBitExact(t *testing.T) {
	// Decoding and re-encoding must reproduce the byte stream exactly.
	var first bytes.Buffer
	if err := Encode(&first, sampleFile(V2)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	f, err := Decode(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var second bytes.Buffer
	if err := Encode(&second, f); err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Errorf("re-encoded stream differs: %d vs %d bytes", first.Len(), second.Len())
	}
}

func TestEncodeDefaultsToV2(t *testing.T) {
	f := sampleFile(0)
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Bytes()[3] != 2 {
		t.Errorf("magic version byte = %d, want 2", buf.Bytes()[3])
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("HDF\x01xxxxxxxx")))
	if !errors.Is(err, ErrNotNetCDF) {
		t.Errorf("err = %v, want ErrNotNetCDF", err)
	}
}

func TestDecodeRejectsRecordDimension(t *testing.T) {
	// Hand-built header: magic, numrecs=1.
	raw := []byte{'C', 'D', 'F', 1, 0, 0, 0, 1}
	_, err := Decode(bytes.NewReader(raw))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleFile(V1)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for _, cut := range []int{6, 20, buf.Len() - 3} {
		_, err := Decode(bytes.NewReader(buf.Bytes()[:cut]))
		if err == nil {
			t.Errorf("Decode of %d-byte prefix succeeded, want error", cut)
			continue
		}
		var fe *FormatError
		if !errors.Is(err, ErrNotNetCDF) && !errors.As(err, &fe) {
			t.Errorf("Decode of %d-byte prefix: err = %v, want FormatError", cut, err)
		}
	}
}

func TestDecodeEmptyListsAreNil(t *testing.T) {
	f := &File{
		Dims: []Dim{{Name: "m", Len: 2}},
		Vars: []Var{{Name: "t", Type: Double, Dims: []string{"m"}, Data: []float64{1, 2}}},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Attrs != nil {
		t.Errorf("empty global attribute list decoded as %#v, want nil", got.Attrs)
	}
	if got.Vars[0].Attrs != nil {
		t.Errorf("empty variable attribute list decoded as %#v, want nil", got.Vars[0].Attrs)
	}
}

func TestDecodeRejectsOversizedShape(t *testing.T) {
	f := &File{
		Dims: []Dim{{Name: "m", Len: 4}},
		Vars: []Var{{Name: "t", Type: Double, Dims: []string{"m"}, Data: []float64{1, 2, 3, 4}}},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Patch the length word of dimension "m" (magic 4 + numrecs 4 + dim list
	// prefix 8 + name 8 = offset 24) so the variable claims 2^30 doubles the
	// stream does not hold.
	raw := buf.Bytes()
	binary.BigEndian.PutUint32(raw[24:], 1<<30)
	_, err := Decode(bytes.NewReader(raw))
	if err == nil {
		t.Fatal("Decode accepted a variable larger than the file")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Errorf("err = %v, want FormatError", err)
	}
}

func TestVsizeWord(t *testing.T) {
	if got := vsizeWord(32); got != 32 {
		t.Errorf("vsizeWord(32) = %d, want 32", got)
	}
	if got := vsizeWord(math.MaxInt32); got != math.MaxInt32 {
		t.Errorf("vsizeWord(MaxInt32) = %d", got)
	}
	// Oversized variables store the all-ones marker 2^32-1.
	if got := vsizeWord(int(math.MaxInt32) + 4); got != -1 {
		t.Errorf("vsizeWord(overflow) = %d, want -1 (all ones)", got)
	}
}

func TestEncodeRejectsShapeMismatch(t *testing.T) {
	f := &File{
		Dims: []Dim{{Name: "m", Len: 3}},
		Vars: []Var{{Name: "t", Type: Double, Dims: []string{"m"}, Data: []float64{1, 2}}},
	}
	if err := Encode(&bytes.Buffer{}, f); err == nil {
		t.Error("Encode succeeded with 2 values for a length-3 dimension")
	}
}

func TestEncodeRejectsTypeMismatch(t *testing.T) {
	f := &File{
		Dims: []Dim{{Name: "m", Len: 2}},
		Vars: []Var{{Name: "t", Type: Double, Dims: []string{"m"}, Data: []float32{1, 2}}},
	}
	if err := Encode(&bytes.Buffer{}, f); err == nil {
		t.Error("Encode succeeded with float32 data declared as double")
	}
}

func TestEncodeRejectsUnknownDimension(t *testing.T) {
	f := &File{
		Vars: []Var{{Name: "t", Type: Double, Dims: []string{"missing"}, Data: []float64{}}},
	}
	if err := Encode(&bytes.Buffer{}, f); err == nil {
		t.Error("Encode succeeded with unresolved dimension reference")
	}
}

func TestAttributePrecision(t *testing.T) {
	// Provenance values must survive at full float64 precision.
	values := []float64{1.0 / 3.0, 6.02214076e23, -math.MaxFloat64, math.Inf(1)}
	f := &File{
		Attrs: []Attr{DoubleAttr("matchup_dataset_cost", values...)},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	a := got.Attr("matchup_dataset_cost")
	if a == nil {
		t.Fatal("attribute missing after round trip")
	}
	gotVals := a.Value.([]float64)
	for i, want := range values {
		if math.Float64bits(gotVals[i]) != math.Float64bits(want) {
			t.Errorf("value %d = %x, want %x", i, gotVals[i], want)
		}
	}
}

func TestLookupHelpers(t *testing.T) {
	f := sampleFile(V2)
	if f.DimLen("m") != 4 {
		t.Errorf("DimLen(m) = %d, want 4", f.DimLen("m"))
	}
	if f.DimLen("absent") != -1 {
		t.Errorf("DimLen(absent) = %d, want -1", f.DimLen("absent"))
	}
	if f.Var("k_res") == nil {
		t.Error("Var(k_res) = nil")
	}
	if f.Var("nope") != nil {
		t.Error("Var(nope) != nil")
	}
	if got := f.AttrText("software_version"); got != "v2.2" {
		t.Errorf("AttrText(software_version) = %q", got)
	}
	v := f.Var("k_res")
	if v.Attr("description") == nil {
		t.Error("variable attribute lookup failed")
	}
}
