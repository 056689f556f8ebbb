// Command yieldreport analyses a weather CSV offline and prints the same
// tables the dashboard shows. It runs the service's loader, classifier and
// aggregations, so its output matches an upload of the same file.
//
// Usage:
//
//	go run ./cmd/yieldreport \
//	  -in data/weather.csv \
//	  -policy skip \
//	  -heatmap out/correlation.png \
//	  -xlsx out/report.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/crop-yield-dashboard/internal/adapter/tabular"
	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/observability"
	"github.com/couchcryptid/crop-yield-dashboard/internal/pipeline"
	"github.com/couchcryptid/crop-yield-dashboard/internal/render"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("yieldreport", flag.ContinueOnError)
	in := fs.String("in", "", "path to the weather CSV (gzip accepted)")
	policyFlag := fs.String("policy", string(domain.PolicyAbort), "invalid-row policy: abort, skip or null")
	heatmapOut := fs.String("heatmap", "", "write the correlation heatmap PNG to this path")
	xlsxOut := fs.String("xlsx", "", "write the Excel workbook to this path")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	previewRows := fs.Int("preview", report.DefaultPreviewRows, "rows shown in previews")
	logLevel := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *in == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -in")
	}
	policy, err := domain.ParseInvalidPolicy(*policyFlag)
	if err != nil {
		return err
	}

	upload, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	p := pipeline.New(tabular.NewLoader(logger), render.NewHeatmap(), nil, logger,
		observability.NewMetricsWithRegistry(prometheus.NewRegistry()), pipeline.Options{PreviewRows: *previewRows, CacheSize: 1})

	res, err := p.Generate(context.Background(), upload, policy)
	if err != nil {
		return fmt.Errorf("%s: %w", domain.ErrorKind(err), err)
	}

	if *heatmapOut != "" {
		if err := os.WriteFile(*heatmapOut, res.Heatmap, 0o644); err != nil {
			return fmt.Errorf("write heatmap: %w", err)
		}
	}
	if *xlsxOut != "" {
		book, err := render.Workbook(res.Report, res.Heatmap)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*xlsxOut, book, 0o644); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Report)
	}
	return printReport(stdout, res.Report)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}

func printReport(out io.Writer, rep *report.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\n\n", render.PageTitle)

	fmt.Fprintln(tw, "Dataset Preview:")
	printRecords(tw, rep.Columns, rep.Preview)

	fmt.Fprintln(tw, "Maximum Values:")
	for _, e := range rep.Extremes {
		fmt.Fprintf(tw, "%s\t%s\n", e.Column, extremeValue(e, e.Max))
	}
	fmt.Fprintln(tw, "\nMinimum Values:")
	for _, e := range rep.Extremes {
		fmt.Fprintf(tw, "%s\t%s\n", e.Column, extremeValue(e, e.Min))
	}

	fmt.Fprintln(tw, "\nUpdated Dataset with Crop Yield:")
	printRecords(tw, rep.ClassifiedColumns(), rep.ClassifiedPreview)

	fmt.Fprintln(tw, "Count of Crop Yield Categories:")
	for _, c := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%d\n", c.Category, c.Count)
	}

	fmt.Fprintln(tw, "\nCount of Crop Yield Categories by Location:")
	printCounts(tw, rep.ByLocation, false)
	fmt.Fprintln(tw, "Count of Crop Yield Categories by Location and Month:")
	printCounts(tw, rep.ByLocationMonth, true)

	fmt.Fprintln(tw, "Correlation Matrix:")
	fmt.Fprintf(tw, "\t%s\n", strings.Join(rep.Correlation.Columns, "\t"))
	for i, col := range rep.Correlation.Columns {
		cells := make([]string, len(rep.Correlation.Columns))
		for j := range cells {
			cells[j] = coefficient(rep.Correlation.At(i, j))
		}
		fmt.Fprintf(tw, "%s\t%s\n", col, strings.Join(cells, "\t"))
	}

	if n := len(rep.Skipped) + len(rep.Unclassified); n > 0 {
		fmt.Fprintf(tw, "\n%d row(s) skipped, %d row(s) unclassified (policy %s)\n",
			len(rep.Skipped), len(rep.Unclassified), rep.Policy)
	}
	return tw.Flush()
}

func printRecords(w io.Writer, cols []string, recs []domain.Record) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	for i := range recs {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = recs[i].Cell(c)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	fmt.Fprintln(w)
}

func printCounts(w io.Writer, t report.CountTable, withMonth bool) {
	header := []string{domain.ColLocation}
	if withMonth {
		header = append(header, domain.ColYearMonth)
	}
	for _, c := range t.Categories {
		header = append(header, string(c))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, r := range t.Rows {
		cells := []string{r.Location}
		if withMonth {
			month := ""
			if r.Month != nil {
				month = r.Month.String()
			}
			cells = append(cells, month)
		}
		for _, n := range r.Counts {
			cells = append(cells, fmt.Sprint(n))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	fmt.Fprintln(w)
}

func extremeValue(e report.Extreme, v float64) string {
	if !e.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func coefficient(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.2f", v)
}
