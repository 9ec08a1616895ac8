package measure

import "github.com/atelier-data/bodyfit/internal/geom"

// BodyType is the bridal silhouette taxonomy.
type BodyType string

const (
	BodyTypeHourglass        BodyType = "hourglass"
	BodyTypePear             BodyType = "pear"
	BodyTypeApple            BodyType = "apple"
	BodyTypeRectangle        BodyType = "rectangle"
	BodyTypeInvertedTriangle BodyType = "inverted_triangle"
)

// Classification is the body-type call plus the ratios that drove it.
// Confidence reflects how far inside the class region the ratios sit; a
// body on a threshold classifies deterministically but scores near zero.
type Classification struct {
	Type        BodyType `json:"body_type"`
	Confidence  float64  `json:"type_confidence"`
	BustToHips  float64  `json:"bust_to_hips"`
	WaistToBust float64  `json:"waist_to_bust"`
}

// Ratio thresholds for the five classes. A bust/hip ratio near one with a
// pronounced waist reads hourglass; hip dominance reads pear; bust
// dominance reads inverted triangle; bust dominance without a waist reads
// apple; everything else is rectangle.
const (
	bustHipLow    = 0.90
	bustHipHigh   = 1.10
	bustHipEven   = 1.00
	waistBustFlat = 0.80
)

// classMarginScale converts a ratio margin into a confidence: a body 0.1
// of ratio inside its region scores 1.0.
const classMarginScale = 0.10

// Classify applies the fixed ratio thresholds to a measurement card.
func Classify(m Measurements) Classification {
	if m.BustCM <= 0 || m.HipsCM <= 0 {
		return Classification{Type: BodyTypeRectangle}
	}
	bh := m.BustCM / m.HipsCM
	wb := m.WaistCM / m.BustCM

	c := Classification{BustToHips: bh, WaistToBust: wb}
	var margin float64
	switch {
	case bh >= bustHipLow && bh <= bustHipHigh && wb < waistBustFlat:
		c.Type = BodyTypeHourglass
		margin = min(bh-bustHipLow, bustHipHigh-bh, waistBustFlat-wb)
	case bh < bustHipLow:
		c.Type = BodyTypePear
		margin = bustHipLow - bh
	case bh > bustHipHigh:
		c.Type = BodyTypeInvertedTriangle
		margin = bh - bustHipHigh
	case bh > bustHipEven && wb > waistBustFlat:
		c.Type = BodyTypeApple
		margin = min(bh-bustHipEven, wb-waistBustFlat)
	default:
		c.Type = BodyTypeRectangle
		margin = min(bh-bustHipLow, bustHipEven-bh, wb-waistBustFlat)
	}
	c.Confidence = geom.Clamp(margin/classMarginScale, 0, 1)
	return c
}
