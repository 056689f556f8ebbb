package report

import (
	"slices"
	"sort"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

// CategoryCount is one row of the overall label frequency table.
type CategoryCount struct {
	Category domain.Category `json:"category"`
	Count    int             `json:"count"`
}

// CountRow is one group of a CountTable. Month is nil for the
// location-only table.
type CountRow struct {
	Location string            `json:"location"`
	Month    *domain.YearMonth `json:"year_month,omitempty"`
	Counts   []int             `json:"counts"` // aligned with CountTable.Categories
}

// CountTable is a zero-filled contingency table of labels per group.
type CountTable struct {
	Categories []domain.Category `json:"categories"`
	Rows       []CountRow        `json:"rows"`
}

// Total returns the sum of all cells.
func (t CountTable) Total() int {
	var n int
	for _, r := range t.Rows {
		for _, c := range r.Counts {
			n += c
		}
	}
	return n
}

// CountCategories counts classified records per label, most frequent first.
// Ties are broken by label. Unclassified records are not counted.
func CountCategories(ds *domain.Dataset) []CategoryCount {
	counts := make(map[domain.Category]int)
	for i := range ds.Records {
		if c := ds.Records[i].CropYield; c != domain.Unclassified {
			counts[c]++
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CountByLocation tabulates labels per location. Rows are sorted by
// location and only labels that occur become columns.
func CountByLocation(ds *domain.Dataset) CountTable {
	return tabulate(ds, func(r *domain.Record) (groupKey, bool) {
		return groupKey{location: r.Location}, true
	})
}

// CountByLocationMonth tabulates labels per (location, month). Records
// without a parsed date do not contribute.
func CountByLocationMonth(ds *domain.Dataset) CountTable {
	return tabulate(ds, func(r *domain.Record) (groupKey, bool) {
		if r.Month == nil {
			return groupKey{}, false
		}
		return groupKey{location: r.Location, month: *r.Month, hasMonth: true}, true
	})
}

type groupKey struct {
	location string
	month    domain.YearMonth
	hasMonth bool
}

func (k groupKey) less(o groupKey) bool {
	if k.location != o.location {
		return k.location < o.location
	}
	return k.month.Before(o.month)
}

func tabulate(ds *domain.Dataset, keyOf func(*domain.Record) (groupKey, bool)) CountTable {
	cells := make(map[groupKey]map[domain.Category]int)
	seen := make(map[domain.Category]bool)

	for i := range ds.Records {
		rec := &ds.Records[i]
		if rec.CropYield == domain.Unclassified {
			continue
		}
		key, ok := keyOf(rec)
		if !ok {
			continue
		}
		if cells[key] == nil {
			cells[key] = make(map[domain.Category]int)
		}
		cells[key][rec.CropYield]++
		seen[rec.CropYield] = true
	}

	table := CountTable{Categories: []domain.Category{}, Rows: []CountRow{}}
	for _, c := range domain.Categories {
		if seen[c] {
			table.Categories = append(table.Categories, c)
		}
	}

	keys := make([]groupKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b groupKey) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		default:
			return 0
		}
	})

	for _, k := range keys {
		row := CountRow{Location: k.location, Counts: make([]int, len(table.Categories))}
		if k.hasMonth {
			m := k.month
			row.Month = &m
		}
		for j, c := range table.Categories {
			row.Counts[j] = cells[k][c]
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
