// Package render turns reports into the formats the dashboard serves: the
// HTML page, the correlation heatmap PNG and the Excel workbook.
package render

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

// PageTitle heads the dashboard page.
const PageTitle = "Weather Data Analysis for Crop Yield Prediction"

//go:embed templates/page.html
var templateFS embed.FS

// PageError is the banner shown after a failed upload.
type PageError struct {
	Kind    string
	Message string
}

// Page is the data behind one render of the dashboard.
type Page struct {
	Title      string
	Policy     domain.InvalidPolicy
	Policies   []domain.InvalidPolicy
	Error      *PageError
	Report     *report.Report
	HeatmapURI template.URL
}

// NewPage returns an empty upload page preselecting policy.
func NewPage(policy domain.InvalidPolicy) Page {
	return Page{
		Title:    PageTitle,
		Policy:   policy,
		Policies: []domain.InvalidPolicy{domain.PolicyAbort, domain.PolicySkip, domain.PolicyNull},
	}
}

// WithReport attaches a generated report and inlines its heatmap.
func (p Page) WithReport(rep *report.Report, heatmap []byte) Page {
	p.Report = rep
	p.Policy = rep.Policy
	if len(heatmap) > 0 {
		p.HeatmapURI = PNGDataURI(heatmap)
	}
	return p
}

// WithError attaches an error banner. kind is one of the domain or request
// error kinds; message is shown verbatim and escaped.
func (p Page) WithError(kind, message string) Page {
	p.Error = &PageError{Kind: kind, Message: message}
	return p
}

// PNGDataURI encodes a PNG as a data: URI for an inline <img>.
func PNGDataURI(png []byte) template.URL {
	//nolint:gosec // the payload is a PNG this process rendered
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

// HTML renders the dashboard page.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the embedded page template.
func NewHTML() (*HTML, error) {
	tmpl, err := template.New("page.html").Funcs(funcs).ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &HTML{tmpl: tmpl}, nil
}

// Render writes page to w.
func (h *HTML) Render(w io.Writer, page Page) error {
	return h.tmpl.ExecuteTemplate(w, "page.html", page)
}

type recordTable struct {
	Columns []string
	Rows    [][]string
}

var funcs = template.FuncMap{
	"fixed": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"coef": func(v float64) string {
		if math.IsNaN(v) {
			return ""
		}
		return fmt.Sprintf("%.2f", v)
	},
	"colCropYield": func() string { return domain.ColCropYield },
	"records": func(cols []string, recs []domain.Record) recordTable {
		t := recordTable{Columns: cols, Rows: make([][]string, len(recs))}
		for i := range recs {
			row := make([]string, len(cols))
			for j, c := range cols {
				row[j] = recs[i].Cell(c)
			}
			t.Rows[i] = row
		}
		return t
	},
}
