package report

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

// CorrelationColumns are the variables of the correlation matrix, in order.
var CorrelationColumns = []string{
	domain.ColTemperature,
	domain.ColHumidity,
	domain.ColPrecipitation,
	domain.ColWindSpeed,
	domain.ColCropYieldNumeric,
}

// Correlation is a symmetric Pearson correlation matrix. Entries that are
// undefined (a constant column, or fewer than two complete rows) are NaN.
type Correlation struct {
	Columns []string
	Matrix  [][]float64
	Rows    int // complete rows the matrix was computed from
	Dropped int // rows excluded for a missing value
}

// At returns the coefficient between columns i and j.
func (c Correlation) At(i, j int) float64 {
	return c.Matrix[i][j]
}

// Against returns each column's coefficient with target, excluding target
// itself. Unknown targets yield nil.
func (c Correlation) Against(target string) map[string]float64 {
	t := -1
	for i, col := range c.Columns {
		if col == target {
			t = i
		}
	}
	if t < 0 {
		return nil
	}
	out := make(map[string]float64, len(c.Columns)-1)
	for i, col := range c.Columns {
		if i != t {
			out[col] = c.Matrix[i][t]
		}
	}
	return out
}

// MarshalJSON writes NaN coefficients as null.
func (c Correlation) MarshalJSON() ([]byte, error) {
	matrix := make([][]*float64, len(c.Matrix))
	for i, row := range c.Matrix {
		matrix[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				matrix[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Matrix  [][]*float64 `json:"matrix"`
		Rows    int          `json:"rows"`
		Dropped int          `json:"dropped"`
	}{c.Columns, matrix, c.Rows, c.Dropped})
}

// Correlate computes the Pearson matrix over CorrelationColumns, using only
// records where all five values are present.
func Correlate(ds *domain.Dataset) Correlation {
	n := len(CorrelationColumns)
	data := make([]float64, 0, ds.Len()*n)
	var rows int

	for i := range ds.Records {
		vals, ok := correlationRow(&ds.Records[i])
		if !ok {
			continue
		}
		data = append(data, vals...)
		rows++
	}

	corr := Correlation{
		Columns: CorrelationColumns,
		Matrix:  nanMatrix(n),
		Rows:    rows,
		Dropped: ds.Len() - rows,
	}
	if rows < 2 {
		return corr
	}

	x := mat.NewDense(rows, n, data)
	sym := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(sym, x, nil)

	constant := make([]bool, n)
	for j := 0; j < n; j++ {
		constant[j] = isConstant(mat.Col(nil, j, x))
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if constant[i] || constant[j] {
				continue
			}
			corr.Matrix[i][j] = clamp(sym.At(i, j))
		}
	}
	return corr
}

func correlationRow(r *domain.Record) ([]float64, bool) {
	if r.CropYieldNumeric == nil {
		return nil, false
	}
	vals := make([]float64, 0, len(CorrelationColumns))
	for _, col := range CorrelationColumns[:4] {
		v := r.Value(col)
		if v == nil || math.IsNaN(*v) {
			return nil, false
		}
		vals = append(vals, *v)
	}
	return append(vals, float64(*r.CropYieldNumeric)), true
}

func isConstant(col []float64) bool {
	for _, v := range col[1:] {
		if v != col[0] {
			return false
		}
	}
	return true
}

func nanMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = math.NaN()
		}
	}
	return m
}

// clamp removes floating point overshoot outside [-1, 1].
func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
