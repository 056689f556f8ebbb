// Command genmock writes a reproducible synthetic weather CSV for demos and
// fixtures. It runs the generated file through the service's own loader and
// report builder so the printed category stats match what the dashboard
// shows for an upload of the same file.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/weather.csv \
//	  -rows 240 \
//	  -seed 42
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/crop-yield-dashboard/internal/adapter/tabular"
	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/report"
)

var baseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// climate is the seasonal profile of one location.
type climate struct {
	location  string
	meanTemp  float64 // annual mean, C
	tempSwing float64 // half the summer/winter spread, C
	humidity  float64 // mean, pct
	rainMean  float64 // mm
	windMean  float64 // km/h
}

var climates = []climate{
	{location: "Austin", meanTemp: 21, tempSwing: 9, humidity: 66, rainMean: 8, windMean: 12},
	{location: "Boise", meanTemp: 12, tempSwing: 13, humidity: 45, rainMean: 3, windMean: 14},
	{location: "Fresno", meanTemp: 18, tempSwing: 10, humidity: 50, rainMean: 2, windMean: 9},
	{location: "Des Moines", meanTemp: 11, tempSwing: 15, humidity: 70, rainMean: 9, windMean: 17},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	out := fs.String("out", "", "output path; a .gz suffix gzips the file")
	rows := fs.Int("rows", 240, "number of data rows")
	seed := fs.Uint64("seed", 42, "random seed")
	gaps := fs.Float64("gaps", 0, "fraction of weather cells left empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *rows <= 0 {
		return fmt.Errorf("-rows must be positive")
	}

	data, err := generate(*rows, *seed, *gaps)
	if err != nil {
		return err
	}

	if strings.HasSuffix(*out, ".gz") {
		if data, err = gzipBytes(data); err != nil {
			return fmt.Errorf("compress: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.Printf("wrote %d rows: %s", *rows, *out)

	return printStats(data)
}

// generate builds the CSV. The same rows, seed and gaps always yield the
// same bytes.
func generate(rows int, seed uint64, gaps float64) ([]byte, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		domain.ColLocation, domain.ColDateTime,
		domain.ColTemperature, domain.ColHumidity, domain.ColPrecipitation, domain.ColWindSpeed,
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i := 0; i < rows; i++ {
		c := climates[i%len(climates)]
		day := baseDate.AddDate(0, 0, (i/len(climates))*3)
		season := math.Cos(2 * math.Pi * (float64(day.YearDay()) - 200) / 365)

		temp := c.meanTemp + c.tempSwing*season + rng.NormFloat64()*3
		hum := clamp(c.humidity+rng.NormFloat64()*12, 5, 100)
		rain := math.Max(0, c.rainMean+rng.NormFloat64()*c.rainMean)
		wind := math.Max(0, c.windMean+rng.NormFloat64()*6)

		row := []string{c.location, day.Format(domain.DateLayout)}
		for _, v := range []float64{temp, hum, rain, wind} {
			if gaps > 0 && rng.Float64() < gaps {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// printStats loads the generated bytes exactly as an upload would be and
// prints the category breakdown.
func printStats(data []byte) error {
	loader := tabular.NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ds, err := loader.Load(context.Background(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("reload generated data: %w", err)
	}
	rep, err := report.Build(ds, report.Fingerprint(data, domain.PolicyNull), report.Options{Policy: domain.PolicyNull})
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	fmt.Println("\n=== Generated Data Stats ===")
	fmt.Printf("Rows:         %d\n", rep.Rows)
	fmt.Printf("Unclassified: %d\n", len(rep.Unclassified))
	for _, c := range rep.Categories {
		fmt.Printf("  %-10s %d\n", c.Category, c.Count)
	}
	fmt.Printf("Locations:    %d\n", len(rep.ByLocation.Rows))
	return nil
}
