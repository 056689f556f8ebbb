package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

const weatherCSV = `Location,Date_Time,Temperature_C,Humidity_pct,Precipitation_mm,Wind_Speed_kmh
Austin,1/3/2024,20,70,11,5
Austin,1/9/2024,24,62,8,15
Boise,2/1/2024,35,20,0,30
Boise,2/14/2024,,65,10,8
`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte(weatherCSV), 0o600))
	return path
}

func TestRun_PrintsTables(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-in", writeInput(t), "-policy", "skip"}, &out))

	text := out.String()
	for _, heading := range []string{
		"Dataset Preview:",
		"Maximum Values:",
		"Minimum Values:",
		"Updated Dataset with Crop Yield:",
		"Count of Crop Yield Categories:",
		"Count of Crop Yield Categories by Location:",
		"Count of Crop Yield Categories by Location and Month:",
		"Correlation Matrix:",
	} {
		assert.Contains(t, text, heading)
	}
	assert.Less(t, strings.Index(text, "Maximum Values:"), strings.Index(text, "Minimum Values:"))
	assert.Contains(t, text, "1 row(s) skipped")
}

func TestRun_WritesArtifactsAndJSON(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "heat.png")
	xlsx := filepath.Join(dir, "report.xlsx")

	var out bytes.Buffer
	require.NoError(t, run([]string{"-in", writeInput(t), "-policy", "null", "-heatmap", png, "-xlsx", xlsx, "-json"}, &out))

	var rep struct {
		Rows         int    `json:"rows"`
		Policy       string `json:"policy"`
		Unclassified []any  `json:"unclassified"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, 4, rep.Rows)
	assert.Equal(t, string(domain.PolicyNull), rep.Policy)
	assert.Len(t, rep.Unclassified, 1)

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	data, err = os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestRun_Errors(t *testing.T) {
	input := writeInput(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input flag", nil, "missing required flag"},
		{"bad policy", []string{"-in", input, "-policy", "ignore"}, "policy"},
		{"missing file", []string{"-in", filepath.Join(t.TempDir(), "nope.csv")}, "read input"},
		{"abort on invalid row", []string{"-in", input}, domain.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
