package render

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

func f(v float64) *float64 { return &v }

func sampleReport(t *testing.T) *report.Report {
	t.Helper()
	recs := []domain.Record{
		{Row: 1, Location: "Austin", DateTime: "1/3/2024", Temperature: f(20), Humidity: f(70), Precipitation: f(11), WindSpeed: f(5)},
		{Row: 2, Location: "Austin", DateTime: "1/9/2024", Temperature: f(20), Humidity: f(70), Precipitation: f(8), WindSpeed: f(15)},
		{Row: 3, Location: "Boise", DateTime: "2/1/2024", Temperature: f(35), Humidity: f(20), Precipitation: f(0), WindSpeed: f(30)},
		{Row: 4, Location: "Boise", DateTime: "2/14/2024", Temperature: f(18), Humidity: f(65), Precipitation: f(10), WindSpeed: f(8)},
	}
	for i := range recs {
		d, err := domain.ParseDate(recs[i].Row, recs[i].DateTime)
		require.NoError(t, err)
		ym := domain.YearMonthOf(*d)
		recs[i].Date, recs[i].Month = d, &ym
	}
	ds := &domain.Dataset{Columns: domain.RequiredColumns, Records: recs}

	rep, err := report.Build(ds, "r1", report.Options{})
	require.NoError(t, err)
	return rep
}

func TestHTML_RendersReport(t *testing.T) {
	h, err := NewHTML()
	require.NoError(t, err)

	rep := sampleReport(t)
	var buf bytes.Buffer
	err = h.Render(&buf, NewPage(domain.PolicyAbort).WithReport(rep, []byte{0x89, 'P', 'N', 'G'}))
	require.NoError(t, err)

	out := buf.String()
	for _, heading := range []string{
		PageTitle,
		"Dataset Preview:",
		"Maximum Values:",
		"Minimum Values:",
		"Updated Dataset with Crop Yield:",
		"Count of Crop Yield Categories:",
		"Count of Crop Yield Categories by Location:",
		"Count of Crop Yield Categories by Location and Month:",
		"Correlation Matrix:",
	} {
		assert.Contains(t, out, heading)
	}

	assert.Less(t, strings.Index(out, "Dataset Preview:"), strings.Index(out, "Maximum Values:"))
	assert.Less(t, strings.Index(out, "by Location and Month:"), strings.Index(out, "Correlation Matrix:"))
	assert.Contains(t, out, "data:image/png;base64,")
	assert.Contains(t, out, "/reports/r1/workbook.xlsx")
	assert.Contains(t, out, "<td>35.00</td>", "maximum temperature")
	assert.Contains(t, out, "<td>1.00</td>", "correlation diagonal")
	assert.Contains(t, out, "2024-01")
	assert.NotContains(t, out, `role="alert"`)
}

func TestHTML_RendersError(t *testing.T) {
	h, err := NewHTML()
	require.NoError(t, err)

	var buf bytes.Buffer
	missing := &domain.MissingColumnError{Columns: []string{domain.ColHumidity}}
	page := NewPage(domain.PolicySkip).WithError(domain.ErrorKind(missing), missing.Error())
	require.NoError(t, h.Render(&buf, page))

	out := buf.String()
	assert.Contains(t, out, `role="alert"`)
	assert.Contains(t, out, domain.KindMissingColumn)
	assert.Contains(t, out, "Humidity_pct")
	assert.Contains(t, out, `<option value="skip" selected>`)
	assert.NotContains(t, out, "Dataset Preview:")
}

func TestHTML_EscapesUserContent(t *testing.T) {
	h, err := NewHTML()
	require.NoError(t, err)

	var buf bytes.Buffer
	page := NewPage(domain.PolicyAbort).WithError("<b>kind</b>", "<script>alert(1)</script>")
	require.NoError(t, h.Render(&buf, page))
	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
	assert.NotContains(t, buf.String(), "<b>kind</b>")
}

func TestHeatmap_PNG(t *testing.T) {
	rep := sampleReport(t)

	out, err := NewHeatmap().Heatmap(rep.Correlation)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Greater(t, b.Dx(), b.Dy(), "8x5 landscape")
}

func TestHeatmap_AllUndefined(t *testing.T) {
	corr := report.Correlation{
		Columns: report.CorrelationColumns,
		Matrix:  make([][]float64, len(report.CorrelationColumns)),
	}
	for i := range corr.Matrix {
		corr.Matrix[i] = make([]float64, len(corr.Columns))
		for j := range corr.Matrix[i] {
			corr.Matrix[i][j] = math.NaN()
		}
	}

	out, err := NewHeatmap().Heatmap(corr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("\x89PNG")))
}

func TestHeatmap_Empty(t *testing.T) {
	_, err := NewHeatmap().Heatmap(report.Correlation{})
	assert.Error(t, err)
}

func TestCorrGrid_TopRowFirst(t *testing.T) {
	g := corrGrid{corr: report.Correlation{
		Columns: []string{"a", "b"},
		Matrix:  [][]float64{{1, 0.5}, {0.5, 1}},
	}}
	g.corr.Matrix[0][1], g.corr.Matrix[1][0] = 0.25, 0.75

	c, r := g.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 0.25, g.Z(1, 1), "matrix row 0 drawn at the top grid row")
	assert.Equal(t, 0.75, g.Z(0, 0))
}

func TestWorkbook(t *testing.T) {
	rep := sampleReport(t)
	heat, err := NewHeatmap().Heatmap(rep.Correlation)
	require.NoError(t, err)

	out, err := Workbook(rep, heat)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, WorkbookSheets, f.GetSheetList())

	rows, err := f.GetRows(SheetExtremes)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Attribute", "Maximum", "Minimum"}, rows[0])
	assert.Equal(t, []string{domain.ColTemperature, "35", "18"}, rows[2])

	rows, err = f.GetRows(SheetCounts)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ColCropYield, "count"}, rows[0])
	assert.Len(t, rows, 1+len(rep.Categories))

	rows, err = f.GetRows(SheetClassified)
	require.NoError(t, err)
	assert.Equal(t, domain.ColCropYield, rows[0][len(rows[0])-1])
	assert.Equal(t, "Good", rows[1][len(rows[1])-1])

	rows, err = f.GetRows(SheetByLocationMonth)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ColLocation, domain.ColYearMonth}, rows[0][:2])
	assert.Equal(t, "2024-01", rows[1][1])

	rows, err = f.GetRows(SheetCorrelation)
	require.NoError(t, err)
	assert.Equal(t, "1", rows[1][1])
}

func TestWorkbook_WithoutHeatmap(t *testing.T) {
	out, err := Workbook(sampleReport(t), nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("PK")), "xlsx is a zip container")
}

func TestWorkbook_HeatmapPicture(t *testing.T) {
	rep := sampleReport(t)
	heat, err := NewHeatmap().Heatmap(rep.Correlation)
	require.NoError(t, err)
	anchor, err := excelize.CoordinatesToCellName(len(rep.Correlation.Columns)+3, 1)
	require.NoError(t, err)

	tests := []struct {
		name     string
		heatmap  []byte
		pictures int
	}{
		{"rendered heatmap", heat, 1},
		{"truncated png", []byte("\x89PNG\r\n\x1a\nfake"), 0},
		{"not an image", []byte("hello"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Workbook(rep, tt.heatmap)
			require.NoError(t, err)

			f, err := excelize.OpenReader(bytes.NewReader(out))
			require.NoError(t, err)
			defer f.Close()

			assert.Equal(t, WorkbookSheets, f.GetSheetList())
			pics, err := f.GetPictures(SheetCorrelation, anchor)
			require.NoError(t, err)
			assert.Len(t, pics, tt.pictures)
		})
	}
}
