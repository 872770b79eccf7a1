package matchup

import (
	"fmt"

	"harmtool/internal/cdf"
)

// Updated input specification names.
const (
	DimM  = "M"  // matchup count
	DimM1 = "m1" // sensor 1 data columns
	DimM2 = "m2" // sensor 2 data columns

	DimWCount  = "w_matrix_count"
	DimWRow    = "w_matrix_row_count"
	DimWNnzSum = "w_matrix_nnz_sum"
	DimUCount  = "u_matrix_count"
	DimURowSum = "u_matrix_row_count_sum"

	AttrSensor1 = "sensor_1_name"
	AttrSensor2 = "sensor_2_name"
)

const uncertaintyTypeDescription = "Uncertainty correlation type per column, labelled as, " +
	"(1) Independent Error Correlation, " +
	"(2) Independent + Systematic Error Correlation, or " +
	"(3) Structured Error Correlation"

// File renders the input dataset as a netCDF classic file in the updated
// specification.
func (in *Input) File(version cdf.Version) (*cdf.File, error) {
	m := in.Matchups()
	if in.X1.Rows != m || in.X2.Rows != m || len(in.Time1) != m || len(in.Time2) != m {
		return nil, fmt.Errorf("matchup: misaligned input blocks (%d matchups, X1 %d, X2 %d)",
			m, in.X1.Rows, in.X2.Rows)
	}
	if len(in.UncertaintyType1) != in.X1.Cols || len(in.UncertaintyType2) != in.X2.Cols {
		return nil, fmt.Errorf("matchup: uncertainty types span %d/%d columns, data has %d/%d",
			len(in.UncertaintyType1), len(in.UncertaintyType2), in.X1.Cols, in.X2.Cols)
	}

	f := &cdf.File{
		Version: version,
		Dims: []cdf.Dim{
			{Name: DimM, Len: m},
			{Name: DimM1, Len: in.X1.Cols},
			{Name: DimM2, Len: in.X2.Cols},
		},
		Attrs: []cdf.Attr{
			cdf.IntAttr(AttrSensor1, in.Sensor1),
			cdf.IntAttr(AttrSensor2, in.Sensor2),
		},
	}

	addTable := func(name, description, dim string, t *Table) {
		f.Vars = append(f.Vars, cdf.Var{
			Name:  name,
			Type:  cdf.Float,
			Dims:  []string{DimM, dim},
			Attrs: []cdf.Attr{cdf.TextAttr("description", description)},
			Data:  narrow(t.V),
		})
	}
	addVec := func(name, description string, typ cdf.Type, dims []string, data any) {
		f.Vars = append(f.Vars, cdf.Var{
			Name:  name,
			Type:  typ,
			Dims:  dims,
			Attrs: []cdf.Attr{cdf.TextAttr("description", description)},
			Data:  data,
		})
	}

	addTable("X1", "Radiances and counts per matchup for sensor 1", DimM1, in.X1)
	addTable("X2", "Radiances and counts per matchup for sensor 2", DimM2, in.X2)
	addTable("Ur1", "Random uncertainties for X1 array", DimM1, in.Ur1)
	addTable("Ur2", "Random uncertainties for X2 array", DimM2, in.Ur2)
	addTable("Us1", "Systematic uncertainties for X1 array", DimM1, in.Us1)
	addTable("Us2", "Systematic uncertainties for X2 array", DimM2, in.Us2)
	addVec("uncertainty_type1", uncertaintyTypeDescription, cdf.Int, []string{DimM1}, append([]int32(nil), in.UncertaintyType1...))
	addVec("uncertainty_type2", uncertaintyTypeDescription, cdf.Int, []string{DimM2}, append([]int32(nil), in.UncertaintyType2...))
	addVec("K", "K (sensor-to-sensor differences) for zero shift case", cdf.Float, []string{DimM}, narrow(in.K))
	addVec("Kr", "K (sensor-to-sensor differences) random uncertainties (matchup uncertainty)", cdf.Float, []string{DimM}, narrow(in.Kr))
	addVec("Ks", "K (sensor-to-sensor differences) systematic uncertainties for zero shift case", cdf.Float, []string{DimM}, narrow(in.Ks))
	addVec("time1", "Match-up time sensor 1, seconds since 1970-01-01", cdf.Double, []string{DimM}, append([]float64(nil), in.Time1...))
	addVec("time2", "Match-up time sensor 2, seconds since 1970-01-01", cdf.Double, []string{DimM}, append([]float64(nil), in.Time2...))

	if in.W != nil {
		if err := appendWBlock(f, in.W, m); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// appendWBlock adds the CSR W/u matrix variables to the file.
func appendWBlock(f *cdf.File, b *WBlock, m int) error {
	nnz := make([]int32, len(b.W))
	var cols []int32
	var vals []float32
	rows := make([]int32, 0, len(b.W)*(m+1))
	for i, w := range b.W {
		if w.Rows != m {
			return fmt.Errorf("matchup: W matrix %d has %d rows, want %d", i, w.Rows, m)
		}
		nnz[i] = int32(w.NNZ())
		rows = append(rows, w.RowPtr...)
		cols = append(cols, w.Col...)
		vals = append(vals, narrow(w.Val)...)
	}
	uRowCount := make([]int32, len(b.U))
	var uVals []float32
	for i, u := range b.U {
		uRowCount[i] = int32(len(u))
		uVals = append(uVals, narrow(u)...)
	}

	f.Dims = append(f.Dims,
		cdf.Dim{Name: DimWCount, Len: len(b.W)},
		cdf.Dim{Name: DimWRow, Len: m + 1},
		cdf.Dim{Name: DimWNnzSum, Len: len(cols)},
		cdf.Dim{Name: DimUCount, Len: len(b.U)},
		cdf.Dim{Name: DimURowSum, Len: len(uVals)},
	)

	add := func(name, description string, typ cdf.Type, dims []string, data any) {
		f.Vars = append(f.Vars, cdf.Var{
			Name:  name,
			Type:  typ,
			Dims:  dims,
			Attrs: []cdf.Attr{cdf.TextAttr("description", description)},
			Data:  data,
		})
	}
	add("w_matrix_nnz", "number of non-zero elements for each W matrix", cdf.Int, []string{DimWCount}, nnz)
	add("w_matrix_row", "CSR row pointers for each W matrix", cdf.Int, []string{DimWCount, DimWRow}, rows)
	add("w_matrix_col", "CSR column numbers for all W matrices", cdf.Int, []string{DimWNnzSum}, cols)
	add("w_matrix_val", "CSR values for all W matrices", cdf.Float, []string{DimWNnzSum}, vals)
	add("w_matrix_use1", "mapping from X1 array column index to W", cdf.Int, []string{DimM1}, append([]int32(nil), b.WUse1...))
	add("w_matrix_use2", "mapping from X2 array column index to W", cdf.Int, []string{DimM2}, append([]int32(nil), b.WUse2...))
	add("u_matrix_row_count", "number of rows of each u matrix", cdf.Int, []string{DimUCount}, uRowCount)
	add("u_matrix_val", "u matrix non-zero diagonal elements", cdf.Float, []string{DimURowSum}, uVals)
	add("u_matrix_use1", "mapping from X1 array column index to U", cdf.Int, []string{DimM1}, append([]int32(nil), b.UUse1...))
	add("u_matrix_use2", "mapping from X2 array column index to U", cdf.Int, []string{DimM2}, append([]int32(nil), b.UUse2...))
	return nil
}

// InputFromFile decodes an updated-spec input file.
func InputFromFile(f *cdf.File) (*Input, error) {
	in := &Input{}
	if a := f.Attr(AttrSensor1); a != nil {
		if ids, ok := a.Value.([]int32); ok && len(ids) > 0 {
			in.Sensor1 = ids[0]
		}
	}
	if a := f.Attr(AttrSensor2); a != nil {
		if ids, ok := a.Value.([]int32); ok && len(ids) > 0 {
			in.Sensor2 = ids[0]
		}
	}

	var err error
	if in.X1, err = table(f, "X1"); err != nil {
		return nil, err
	}
	if in.X2, err = table(f, "X2"); err != nil {
		return nil, err
	}
	if in.Ur1, err = table(f, "Ur1"); err != nil {
		return nil, err
	}
	if in.Ur2, err = table(f, "Ur2"); err != nil {
		return nil, err
	}
	if in.Us1, err = table(f, "Us1"); err != nil {
		return nil, err
	}
	if in.Us2, err = table(f, "Us2"); err != nil {
		return nil, err
	}
	if in.UncertaintyType1, err = ints(f, "uncertainty_type1"); err != nil {
		return nil, err
	}
	if in.UncertaintyType2, err = ints(f, "uncertainty_type2"); err != nil {
		return nil, err
	}
	if in.K, err = numeric(f, "K"); err != nil {
		return nil, err
	}
	if in.Kr, err = numeric(f, "Kr"); err != nil {
		return nil, err
	}
	if in.Ks, err = numeric(f, "Ks"); err != nil {
		return nil, err
	}
	if in.Time1, err = numeric(f, "time1"); err != nil {
		return nil, err
	}
	if in.Time2, err = numeric(f, "time2"); err != nil {
		return nil, err
	}

	if f.Var("w_matrix_nnz") != nil {
		if in.W, err = wBlockFromFile(f, in.Matchups()); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func wBlockFromFile(f *cdf.File, m int) (*WBlock, error) {
	nnz, err := ints(f, "w_matrix_nnz")
	if err != nil {
		return nil, err
	}
	rows, err := ints(f, "w_matrix_row")
	if err != nil {
		return nil, err
	}
	cols, err := ints(f, "w_matrix_col")
	if err != nil {
		return nil, err
	}
	vals, err := numeric(f, "w_matrix_val")
	if err != nil {
		return nil, err
	}

	b := &WBlock{}
	// Row pointer arrays are stacked per matrix; a single-matrix file may
	// carry them as a flat vector.
	if len(rows) != len(nnz)*(m+1) {
		return nil, fmt.Errorf("matchup: w_matrix_row holds %d values, want %d", len(rows), len(nnz)*(m+1))
	}
	total := 0
	for i, count := range nnz {
		if count < 0 {
			return nil, fmt.Errorf("matchup: w_matrix_nnz[%d] is negative (%d)", i, count)
		}
		total += int(count)
	}
	if total != len(cols) || total != len(vals) {
		return nil, fmt.Errorf("matchup: w_matrix_nnz sums to %d, file carries %d columns and %d values",
			total, len(cols), len(vals))
	}
	var colOff, valOff int
	for i, count := range nnz {
		w := &CSR{
			Rows:   m,
			RowPtr: append([]int32(nil), rows[i*(m+1):(i+1)*(m+1)]...),
			Col:    append([]int32(nil), cols[colOff:colOff+int(count)]...),
			Val:    append([]float64(nil), vals[valOff:valOff+int(count)]...),
		}
		maxCol := int32(-1)
		for _, c := range w.Col {
			if c > maxCol {
				maxCol = c
			}
		}
		w.Cols = int(maxCol) + 1
		b.W = append(b.W, w)
		colOff += int(count)
		valOff += int(count)
	}

	uRowCount, err := ints(f, "u_matrix_row_count")
	if err != nil {
		return nil, err
	}
	uVals, err := numeric(f, "u_matrix_val")
	if err != nil {
		return nil, err
	}
	off := 0
	for i, count := range uRowCount {
		if count < 0 {
			return nil, fmt.Errorf("matchup: u_matrix_row_count[%d] is negative (%d)", i, count)
		}
		if off+int(count) > len(uVals) {
			return nil, fmt.Errorf("matchup: u_matrix_val holds %d values, row counts imply more", len(uVals))
		}
		b.U = append(b.U, append([]float64(nil), uVals[off:off+int(count)]...))
		off += int(count)
	}

	if b.WUse1, err = ints(f, "w_matrix_use1"); err != nil {
		return nil, err
	}
	if b.WUse2, err = ints(f, "w_matrix_use2"); err != nil {
		return nil, err
	}
	if b.UUse1, err = ints(f, "u_matrix_use1"); err != nil {
		return nil, err
	}
	if b.UUse2, err = ints(f, "u_matrix_use2"); err != nil {
		return nil, err
	}
	return b, nil
}

func ints(f *cdf.File, name string) ([]int32, error) {
	v := f.Var(name)
	if v == nil {
		return nil, fmt.Errorf("matchup: missing variable %q", name)
	}
	switch d := v.Data.(type) {
	case []int32:
		return append([]int32(nil), d...), nil
	case []int16:
		out := make([]int32, len(d))
		for i, x := range d {
			out[i] = int32(x)
		}
		return out, nil
	case []int8:
		out := make([]int32, len(d))
		for i, x := range d {
			out[i] = int32(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("matchup: variable %q is not integral", name)
}

func narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
