// Package tabular turns an uploaded CSV file into a domain.Dataset. Parsing
// goes through a gota dataframe with type detection disabled, so every cell
// reaches the domain layer as raw text and numeric conversion stays in one
// place.
package tabular

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

// gzipMagic is the two-byte header of a gzip member.
var gzipMagic = []byte{0x1f, 0x8b}

// Loader parses uploads. The zero value is not usable; use NewLoader.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader that logs decoding details at debug level.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads a plain or gzip-compressed CSV from r. Errors are
// *domain.MissingColumnError, *domain.DateParseError, domain.ErrEmptyDataset
// or wrap domain.ErrMalformedCSV.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*domain.Dataset, error) {
	src, closeFn, err := decompress(r)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	df := dataframe.ReadCSV(stripBOM(src),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, classifyReadError(df.Err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := fromDataFrame(df)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("upload parsed", "rows", ds.Len(), "columns", len(ds.Columns))
	return ds, nil
}

// decompress sniffs the gzip magic bytes and wraps r in a gzip reader when
// they are present.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) < len(gzipMagic) || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return br, func() {}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: gzip header: %v", domain.ErrMalformedCSV, err)
	}
	return zr, func() { _ = zr.Close() }, nil
}

// stripBOM drops a leading byte-order mark, as written by spreadsheet
// "CSV UTF-8" exports. A UTF-16 BOM switches decoding to UTF-16; text without
// a BOM passes through unchanged.
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}

// classifyReadError maps gota load failures onto the domain taxonomy. gota
// reports both an empty input and a header-only input as an empty DataFrame.
func classifyReadError(err error) error {
	if strings.Contains(err.Error(), "empty DataFrame") {
		return domain.ErrEmptyDataset
	}
	return fmt.Errorf("%w: %v", domain.ErrMalformedCSV, err)
}

func fromDataFrame(df dataframe.DataFrame) (*domain.Dataset, error) {
	names := df.Names()
	if missing := missingColumns(names); len(missing) > 0 {
		return nil, &domain.MissingColumnError{Columns: missing}
	}

	nrow := df.Nrow()
	if nrow == 0 {
		return nil, domain.ErrEmptyDataset
	}

	cols := make(map[string][]string, len(names))
	for _, name := range names {
		cols[name] = df.Col(name).Records()
	}

	ds := &domain.Dataset{
		Columns: names,
		Records: make([]domain.Record, nrow),
	}
	for i := 0; i < nrow; i++ {
		rec, err := buildRecord(i+1, names, cols, i)
		if err != nil {
			return nil, err
		}
		ds.Records[i] = rec
	}
	return ds, nil
}

func buildRecord(row int, names []string, cols map[string][]string, i int) (domain.Record, error) {
	rec := domain.Record{
		Row:      row,
		Location: cols[domain.ColLocation][i],
		DateTime: cols[domain.ColDateTime][i],
	}

	date, err := domain.ParseDate(row, rec.DateTime)
	if err != nil {
		return rec, err
	}
	if date != nil {
		rec.Date = date
		ym := domain.YearMonthOf(*date)
		rec.Month = &ym
	}

	for _, col := range domain.WeatherColumns {
		raw := cols[col][i]
		v, ok := domain.ParseMeasurement(raw)
		if !ok {
			if rec.Invalid == nil {
				rec.Invalid = make(map[string]string)
			}
			rec.Invalid[col] = raw
		}
		setMeasurement(&rec, col, v)
	}

	for _, name := range names {
		if isSchemaColumn(name) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[name] = cols[name][i]
	}
	return rec, nil
}

func setMeasurement(rec *domain.Record, column string, v *float64) {
	switch column {
	case domain.ColTemperature:
		rec.Temperature = v
	case domain.ColHumidity:
		rec.Humidity = v
	case domain.ColPrecipitation:
		rec.Precipitation = v
	case domain.ColWindSpeed:
		rec.WindSpeed = v
	}
}

// missingColumns returns the required columns absent from names, in schema order.
func missingColumns(names []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	var missing []string
	for _, req := range domain.RequiredColumns {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

func isSchemaColumn(name string) bool {
	for _, c := range domain.RequiredColumns {
		if c == name {
			return true
		}
	}
	return false
}
