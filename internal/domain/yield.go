package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the crop-yield label derived from a record's weather.
type Category string

const (
	Good     Category = "Good"
	Moderate Category = "Moderate"
	Bad      Category = "Bad"

	// Unclassified marks a record kept under PolicyNull without a label.
	Unclassified Category = ""
)

// Categories lists the labels in the column order of the count tables.
var Categories = []Category{Bad, Good, Moderate}

// ParseCategory accepts exactly "Good", "Moderate" or "Bad".
func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case Good, Moderate, Bad:
		return c, true
	default:
		return Unclassified, false
	}
}

// Conditions are the four weather attributes a rating is computed from.
type Conditions struct {
	TemperatureC    float64
	HumidityPct     float64
	PrecipitationMM float64
	WindSpeedKMH    float64
}

// band scores a value as +1 inside [goodLo, goodHi], 0 inside
// [modLo, goodLo) or (goodHi, modHi], and -1 anywhere else.
func band(v, goodLo, goodHi, modLo, modHi float64) int {
	switch {
	case goodLo <= v && v <= goodHi:
		return 1
	case modLo <= v && v < goodLo, goodHi < v && v <= modHi:
		return 0
	default:
		return -1
	}
}

func temperatureScore(c float64) int    { return band(c, 15, 25, 10, 30) }
func humidityScore(pct float64) int     { return band(pct, 60, 80, 40, 90) }
func precipitationScore(mm float64) int { return band(mm, 10, 12, 5, 14) }

// windScore has no lower bound: calm air is good.
func windScore(kmh float64) int {
	switch {
	case kmh <= 10:
		return 1
	case kmh <= 20:
		return 0
	default:
		return -1
	}
}

// YieldScore sums the per-attribute contributions. The result lies in -4..4.
// NaN fails every comparison and therefore scores -1 per attribute.
func YieldScore(c Conditions) int {
	return temperatureScore(c.TemperatureC) +
		humidityScore(c.HumidityPct) +
		precipitationScore(c.PrecipitationMM) +
		windScore(c.WindSpeedKMH)
}

// CategorizeYield maps a record's weather to Good (score >= 3),
// Moderate (score == 2) or Bad (anything lower).
func CategorizeYield(c Conditions) Category {
	switch score := YieldScore(c); {
	case score >= 3:
		return Good
	case score == 2:
		return Moderate
	default:
		return Bad
	}
}

// YieldToNumeric maps Good to 1, Moderate to 0 and Bad to -1.
// Any other value, including Unclassified, maps to nil.
func YieldToNumeric(c Category) *int {
	var n int
	switch c {
	case Good:
		n = 1
	case Moderate:
		n = 0
	case Bad:
		n = -1
	default:
		return nil
	}
	return &n
}

// InvalidPolicy decides what classification does with a record whose
// weather attributes cannot be scored.
type InvalidPolicy string

const (
	// PolicyAbort fails the whole run with the first InvalidInputError.
	PolicyAbort InvalidPolicy = "abort"
	// PolicySkip removes the record from the dataset before aggregation.
	PolicySkip InvalidPolicy = "skip"
	// PolicyNull keeps the record with an Unclassified label and nil numeric.
	PolicyNull InvalidPolicy = "null"
)

// ParseInvalidPolicy accepts abort, skip or null (case-insensitive).
func ParseInvalidPolicy(s string) (InvalidPolicy, error) {
	switch p := InvalidPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAbort, PolicySkip, PolicyNull:
		return p, nil
	default:
		return "", fmt.Errorf("unknown invalid row policy %q (want abort, skip or null)", s)
	}
}

// Classification summarises one Classify call.
type Classification struct {
	Classified   int                  `json:"classified"`
	Skipped      []*InvalidInputError `json:"-"`
	Unclassified []*InvalidInputError `json:"-"`
}

// Classify derives Crop_Yield and Crop_Yield_Numeric for every record in
// place, applying policy to records that cannot be scored.
func Classify(ds *Dataset, policy InvalidPolicy) (Classification, error) {
	var result Classification
	kept := ds.Records[:0]

	for i := range ds.Records {
		rec := ds.Records[i]
		cond, err := rec.Conditions()
		if err != nil {
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				return result, err
			}
			switch policy {
			case PolicySkip:
				result.Skipped = append(result.Skipped, invalid)
				continue
			case PolicyNull:
				rec.CropYield = Unclassified
				rec.CropYieldNumeric = nil
				result.Unclassified = append(result.Unclassified, invalid)
				kept = append(kept, rec)
				continue
			default:
				return result, fmt.Errorf("classify: %w", err)
			}
		}

		rec.CropYield = CategorizeYield(cond)
		rec.CropYieldNumeric = YieldToNumeric(rec.CropYield)
		result.Classified++
		kept = append(kept, rec)
	}

	ds.Records = kept
	return result, nil
}
