package anny

import (
	"fmt"
	"strings"
)

// Gender is the customer-declared gender, used to seed and freeze the
// gender phenotype axis. Unknown is allowed; the axis then starts neutral
// and stays free during fitting.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
)

// ParseGender normalizes user input. Empty and "unknown" map to
// GenderUnknown.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female", "woman":
		return GenderFemale, nil
	case "m", "male", "man":
		return GenderMale, nil
	case "", "unknown":
		return GenderUnknown, nil
	}
	return GenderUnknown, fmt.Errorf("unrecognized gender %q", s)
}

// Pheno returns the gender axis value for a declared gender.
func (g Gender) Pheno() float64 {
	switch g {
	case GenderFemale:
		return 1.0
	case GenderMale:
		return 0.0
	}
	return 0.5
}

// Declared reports whether the gender was stated rather than unknown.
func (g Gender) Declared() bool {
	return g == GenderFemale || g == GenderMale
}

// EstimatePhenotype seeds the phenotype vector from the declared stature
// and gender plus the gross girths measured at the landmark levels, all in
// meters. The weight estimate inverts the model's mean-girth formula, so
// for a body generated by this model it is exact; the remaining axes start
// at coarse buckets the shape fitter refines.
func EstimatePhenotype(stature float64, gender Gender, bustM, waistM, hipM float64) Phenotype {
	p := DefaultPhenotype()
	p.Gender = gender.Pheno()
	p.Height = clip((stature-1.50)/0.50, 0.05, 0.95)

	avgCM := (bustM + waistM + hipM) / 3 * 100
	p.Weight = clip((avgCM-70)/60+0.30, 0.10, 0.95)

	if hipM > 0 {
		switch whr := waistM / hipM; {
		case whr < 0.75:
			p.Proportions = 0.60
		case whr > 0.85:
			p.Proportions = 0.40
		default:
			p.Proportions = 0.50
		}
	}
	return p
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
