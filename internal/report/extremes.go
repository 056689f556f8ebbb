package report

import "github.com/couchcryptid/crop-yield-dashboard/internal/domain"

// Extreme is the observed range of one weather attribute.
type Extreme struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Valid  bool    `json:"valid"` // false when the column has no values
}

// ColumnExtremes computes per-attribute min and max over every record,
// ignoring missing values. Results follow domain.WeatherColumns order.
func ColumnExtremes(ds *domain.Dataset) []Extreme {
	out := make([]Extreme, len(domain.WeatherColumns))
	for i, col := range domain.WeatherColumns {
		ext := Extreme{Column: col}
		for j := range ds.Records {
			v := ds.Records[j].Value(col)
			if v == nil {
				continue
			}
			if !ext.Valid {
				ext.Min, ext.Max, ext.Valid = *v, *v, true
				continue
			}
			ext.Min = min(ext.Min, *v)
			ext.Max = max(ext.Max, *v)
		}
		out[i] = ext
	}
	return out
}
