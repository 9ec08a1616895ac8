package measure

import "github.com/atelier-data/bodyfit/internal/units"

// SizeSpec is one row of the US bridal size chart, in inches. Bridal
// sizing runs roughly two sizes smaller than US street wear.
type SizeSpec struct {
	US      int
	BustIn  float64
	WaistIn float64
	HipsIn  float64
}

// bridalChart is the standard US bridal chart, sizes 0 through 24.
var bridalChart = []SizeSpec{
	{US: 0, BustIn: 31.5, WaistIn: 23.5, HipsIn: 34.5},
	{US: 2, BustIn: 32.5, WaistIn: 24.5, HipsIn: 35.5},
	{US: 4, BustIn: 33.5, WaistIn: 25.5, HipsIn: 36.5},
	{US: 6, BustIn: 34.5, WaistIn: 26.5, HipsIn: 37.5},
	{US: 8, BustIn: 35.5, WaistIn: 27.5, HipsIn: 38.5},
	{US: 10, BustIn: 36.5, WaistIn: 28.5, HipsIn: 39.5},
	{US: 12, BustIn: 38.0, WaistIn: 30.0, HipsIn: 41.0},
	{US: 14, BustIn: 39.5, WaistIn: 31.5, HipsIn: 42.5},
	{US: 16, BustIn: 41.0, WaistIn: 33.0, HipsIn: 44.0},
	{US: 18, BustIn: 43.0, WaistIn: 35.0, HipsIn: 46.0},
	{US: 20, BustIn: 45.0, WaistIn: 37.0, HipsIn: 48.0},
	{US: 22, BustIn: 47.0, WaistIn: 39.0, HipsIn: 50.0},
	{US: 24, BustIn: 49.0, WaistIn: 41.0, HipsIn: 52.0},
}

// Size is a sizing recommendation. OffChart is set when even the largest
// chart size is smaller than the body at some tape level.
type Size struct {
	US       int     `json:"us"`
	BustCM   float64 `json:"bust_cm"`
	WaistCM  float64 `json:"waist_cm"`
	HipsCM   float64 `json:"hips_cm"`
	OffChart bool    `json:"off_chart,omitempty"`
}

// SizeFor picks the smallest chart size that accommodates bust, waist and
// hips simultaneously. Gowns are sized to the largest tape level and
// altered inward at the others; sizing down is not alterable.
func SizeFor(m Measurements) Size {
	for _, row := range bridalChart {
		if units.InchesToCM(row.BustIn) >= m.BustCM &&
			units.InchesToCM(row.WaistIn) >= m.WaistCM &&
			units.InchesToCM(row.HipsIn) >= m.HipsCM {
			return sizeFromSpec(row, false)
		}
	}
	return sizeFromSpec(bridalChart[len(bridalChart)-1], true)
}

func sizeFromSpec(row SizeSpec, offChart bool) Size {
	return Size{
		US:       row.US,
		BustCM:   units.InchesToCM(row.BustIn),
		WaistCM:  units.InchesToCM(row.WaistIn),
		HipsCM:   units.InchesToCM(row.HipsIn),
		OffChart: offChart,
	}
}
