// Package domain models weather observations and the crop-yield rating
// derived from them.
//
// # Input Data
//
// Observations arrive as rows of a comma-separated file with one record per
// location and day. The columns the service depends on are:
//
//	Location          free-text place name, used as a grouping key
//	Date_Time         calendar date in month/day/year form, e.g. "1/23/2024"
//	Temperature_C     air temperature in degrees Celsius
//	Humidity_pct      relative humidity in percent
//	Precipitation_mm  precipitation in millimetres
//	Wind_Speed_kmh    wind speed in kilometres per hour
//
// Other columns are carried through for previews but never interpreted.
// Empty cells and the common missing-value spellings ("NaN", "NA", "N/A",
// "null", "None", "#N/A" and similar; see [IsMissing]) are treated as
// missing values.
//
// # Crop Yield Rating
//
// Each record is scored on its four weather attributes. An attribute in its
// good band adds 1, in its moderate band adds 0, and anywhere else subtracts 1:
//
//	Temperature_C     good 15-25      moderate 10-<15 or >25-30
//	Humidity_pct      good 60-80      moderate 40-<60 or >80-90
//	Precipitation_mm  good 10-12      moderate 5-<10 or >12-14
//	Wind_Speed_kmh    good <=10       moderate >10-20
//
// All bounds are inclusive where written without "<" or ">". The total score
// (-4..4) maps to a label:
//
//	score >= 3  Good
//	score == 2  Moderate
//	score <= 1  Bad
//
// Only an exact 2 yields Moderate. Everything from -4 to 1 collapses to Bad.
// The label maps to a number for correlation analysis: Good=1, Moderate=0,
// Bad=-1. See [CategorizeYield] and [YieldToNumeric].
//
// # Invalid Rows
//
// A record whose weather attributes are missing or non-numeric cannot be
// scored. What happens to it is controlled by [InvalidPolicy]: the upload is
// rejected, the row is dropped, or the row is kept without a label.
package domain
