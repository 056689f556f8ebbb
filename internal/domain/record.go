package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column names of the upload schema and of the derived columns.
const (
	ColLocation         = "Location"
	ColDateTime         = "Date_Time"
	ColTemperature      = "Temperature_C"
	ColHumidity         = "Humidity_pct"
	ColPrecipitation    = "Precipitation_mm"
	ColWindSpeed        = "Wind_Speed_kmh"
	ColCropYield        = "Crop_Yield"
	ColCropYieldNumeric = "Crop_Yield_Numeric"
	ColYearMonth        = "YearMonth"
)

// RequiredColumns lists the columns every upload must carry, in schema order.
var RequiredColumns = []string{
	ColLocation,
	ColDateTime,
	ColTemperature,
	ColHumidity,
	ColPrecipitation,
	ColWindSpeed,
}

// WeatherColumns lists the four scored attributes in the order the
// min/max tables present them.
var WeatherColumns = []string{
	ColHumidity,
	ColTemperature,
	ColPrecipitation,
	ColWindSpeed,
}

// DateLayout is the month/day/year layout of Date_Time. Single-digit months
// and days are accepted.
const DateLayout = "1/2/2006"

// YearMonth is a calendar month used as a grouping key.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// YearMonthOf truncates t to its calendar month.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Before reports whether ym is an earlier month than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// MarshalText renders the month as "2006-01".
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// Record is one observation row plus the columns derived from it.
type Record struct {
	Row      int               `json:"row"` // 1-based data row, header excluded
	Location string            `json:"location"`
	DateTime string            `json:"date_time"`
	Date     *time.Time        `json:"-"`
	Month    *YearMonth        `json:"year_month,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`

	Temperature   *float64 `json:"temperature_c"`
	Humidity      *float64 `json:"humidity_pct"`
	Precipitation *float64 `json:"precipitation_mm"`
	WindSpeed     *float64 `json:"wind_speed_kmh"`

	// Raw text of weather cells that failed numeric parsing, keyed by column.
	Invalid map[string]string `json:"-"`

	CropYield        Category `json:"crop_yield,omitempty"`
	CropYieldNumeric *int     `json:"crop_yield_numeric"`
}

// Value returns the numeric field backing one of the four weather columns.
func (r *Record) Value(column string) *float64 {
	switch column {
	case ColTemperature:
		return r.Temperature
	case ColHumidity:
		return r.Humidity
	case ColPrecipitation:
		return r.Precipitation
	case ColWindSpeed:
		return r.WindSpeed
	default:
		return nil
	}
}

// Conditions extracts the scoring inputs. It fails with *InvalidInputError
// on the first weather column that is missing or was not numeric.
func (r *Record) Conditions() (Conditions, error) {
	for _, col := range []string{ColTemperature, ColHumidity, ColPrecipitation, ColWindSpeed} {
		if r.Value(col) == nil {
			return Conditions{}, &InvalidInputError{Row: r.Row, Column: col, Value: r.Invalid[col]}
		}
	}
	return Conditions{
		TemperatureC:    *r.Temperature,
		HumidityPct:     *r.Humidity,
		PrecipitationMM: *r.Precipitation,
		WindSpeedKMH:    *r.WindSpeed,
	}, nil
}

// Cell renders a column of the record the way previews show it.
func (r *Record) Cell(column string) string {
	switch column {
	case ColLocation:
		return r.Location
	case ColDateTime:
		return r.DateTime
	case ColTemperature, ColHumidity, ColPrecipitation, ColWindSpeed:
		if v := r.Value(column); v != nil {
			return strconv.FormatFloat(*v, 'f', -1, 64)
		}
		return r.Invalid[column]
	case ColCropYield:
		return string(r.CropYield)
	case ColCropYieldNumeric:
		if r.CropYieldNumeric == nil {
			return ""
		}
		return strconv.Itoa(*r.CropYieldNumeric)
	case ColYearMonth:
		if r.Month == nil {
			return ""
		}
		return r.Month.String()
	default:
		return r.Extra[column]
	}
}

// Dataset is the ordered set of records loaded from one upload.
type Dataset struct {
	Columns []string `json:"columns"` // header order of the source file
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Head returns up to n leading records.
func (d *Dataset) Head(n int) []Record {
	if n < 0 || n > len(d.Records) {
		n = len(d.Records)
	}
	return d.Records[:n]
}

// ParseDate parses a Date_Time cell. An empty or missing-token cell yields
// (nil, nil).
func ParseDate(row int, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if IsMissing(value) {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, &DateParseError{Row: row, Value: value, Err: err}
	}
	return &t, nil
}

// missingTokens are the cell spellings read as "no value", matching the
// usual spreadsheet and dataframe exports.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a cell holds one of the missing-value tokens.
func IsMissing(value string) bool {
	_, ok := missingTokens[strings.TrimSpace(value)]
	return ok
}

// ParseMeasurement parses a weather cell. Missing tokens (see IsMissing)
// return ok=true with a nil value; text that is not a number returns ok=false.
func ParseMeasurement(value string) (v *float64, ok bool) {
	value = strings.TrimSpace(value)
	if IsMissing(value) {
		return nil, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}
