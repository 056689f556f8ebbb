// Package report derives every table the dashboard shows from a loaded
// dataset: attribute extremes, the classified preview, label counts and the
// correlation matrix.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

// DefaultPreviewRows is the number of rows shown in each preview table.
const DefaultPreviewRows = 5

// Options controls report generation.
type Options struct {
	Policy      domain.InvalidPolicy
	PreviewRows int
}

// RowIssue describes a record the invalid-row policy acted on.
type RowIssue struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Report is the full analysis of one upload.
type Report struct {
	ID          string               `json:"id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Policy      domain.InvalidPolicy `json:"policy"`
	Columns     []string             `json:"columns"`
	Rows        int                  `json:"rows"`

	Preview           []domain.Record `json:"preview"`
	Extremes          []Extreme       `json:"extremes"`
	ClassifiedPreview []domain.Record `json:"classified_preview"`
	Categories        []CategoryCount `json:"categories"`
	ByLocation        CountTable      `json:"by_location"`
	ByLocationMonth   CountTable      `json:"by_location_month"`
	Correlation       Correlation     `json:"correlation"`

	Skipped      []RowIssue `json:"skipped"`
	Unclassified []RowIssue `json:"unclassified"`
}

// Fingerprint identifies an upload analysed under a policy. Identical
// bytes and policy always produce the same value.
func Fingerprint(upload []byte, policy domain.InvalidPolicy) string {
	h := sha256.New()
	h.Write([]byte(policy))
	h.Write([]byte{0})
	h.Write(upload)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Build runs extremes, classification, aggregation and correlation over ds.
// Extremes and the raw preview are taken before classification, so they
// cover every loaded row whatever the policy. ds is modified in place.
func Build(ds *domain.Dataset, id string, opts Options) (*Report, error) {
	if ds.Len() == 0 {
		return nil, domain.ErrEmptyDataset
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Policy == "" {
		opts.Policy = domain.PolicyAbort
	}

	r := &Report{
		ID:          id,
		GeneratedAt: domain.Now(),
		Policy:      opts.Policy,
		Columns:     ds.Columns,
		Rows:        ds.Len(),
		Preview:     cloneRecords(ds.Head(opts.PreviewRows)),
		Extremes:    ColumnExtremes(ds),
	}

	result, err := domain.Classify(ds, opts.Policy)
	if err != nil {
		return nil, err
	}
	r.Skipped = issues(result.Skipped)
	r.Unclassified = issues(result.Unclassified)

	if ds.Len() == 0 {
		return nil, fmt.Errorf("all %d rows skipped: %w", r.Rows, domain.ErrEmptyDataset)
	}

	r.ClassifiedPreview = cloneRecords(ds.Head(opts.PreviewRows))
	r.Categories = CountCategories(ds)
	r.ByLocation = CountByLocation(ds)
	r.ByLocationMonth = CountByLocationMonth(ds)
	r.Correlation = Correlate(ds)
	return r, nil
}

// Classified returns the number of records that received a label.
func (r *Report) Classified() int {
	var n int
	for _, c := range r.Categories {
		n += c.Count
	}
	return n
}

// ClassifiedColumns is the header of the classified preview.
func (r *Report) ClassifiedColumns() []string {
	return append(append([]string(nil), r.Columns...), domain.ColCropYield)
}

// Summary is the compact form of a report published as an event.
type Summary struct {
	ID               string                  `json:"id"`
	GeneratedAt      time.Time               `json:"generated_at"`
	Policy           domain.InvalidPolicy    `json:"policy"`
	Rows             int                     `json:"rows"`
	Categories       map[domain.Category]int `json:"categories"`
	Skipped          int                     `json:"skipped"`
	Unclassified     int                     `json:"unclassified"`
	YieldCorrelation map[string]*float64     `json:"yield_correlation"`
}

// Summary condenses the report. Undefined coefficients are nil.
func (r *Report) Summary() Summary {
	s := Summary{
		ID:               r.ID,
		GeneratedAt:      r.GeneratedAt,
		Policy:           r.Policy,
		Rows:             r.Rows,
		Categories:       make(map[domain.Category]int, len(r.Categories)),
		Skipped:          len(r.Skipped),
		Unclassified:     len(r.Unclassified),
		YieldCorrelation: make(map[string]*float64),
	}
	for _, c := range r.Categories {
		s.Categories[c.Category] = c.Count
	}
	for col, v := range r.Correlation.Against(domain.ColCropYieldNumeric) {
		if math.IsNaN(v) {
			s.YieldCorrelation[col] = nil
			continue
		}
		v := v
		s.YieldCorrelation[col] = &v
	}
	return s
}

func cloneRecords(recs []domain.Record) []domain.Record {
	return append([]domain.Record(nil), recs...)
}

func issues(errs []*domain.InvalidInputError) []RowIssue {
	out := make([]RowIssue, 0, len(errs))
	for _, e := range errs {
		out = append(out, RowIssue{Row: e.Row, Column: e.Column, Value: e.Value, Message: e.Error()})
	}
	return out
}
