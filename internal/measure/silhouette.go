package measure

// Silhouette is a gown cut.
type Silhouette string

const (
	SilhouetteALine       Silhouette = "a_line"
	SilhouetteBallgown    Silhouette = "ballgown"
	SilhouetteMermaid     Silhouette = "mermaid"
	SilhouetteTrumpet     Silhouette = "trumpet"
	SilhouetteSheath      Silhouette = "sheath"
	SilhouetteEmpire      Silhouette = "empire"
	SilhouetteFitAndFlare Silhouette = "fit_and_flare"
)

// silhouetteMatrix maps each body type to gown cuts that flatter it,
// strongest recommendation first. Stylist heuristics: balance the
// narrower half, follow a defined waist, skim an undefined one.
var silhouetteMatrix = map[BodyType][]Silhouette{
	BodyTypeHourglass:        {SilhouetteMermaid, SilhouetteTrumpet, SilhouetteFitAndFlare, SilhouetteSheath},
	BodyTypePear:             {SilhouetteALine, SilhouetteBallgown, SilhouetteEmpire},
	BodyTypeApple:            {SilhouetteEmpire, SilhouetteALine, SilhouetteBallgown},
	BodyTypeRectangle:        {SilhouetteFitAndFlare, SilhouetteALine, SilhouetteTrumpet, SilhouetteBallgown},
	BodyTypeInvertedTriangle: {SilhouetteALine, SilhouetteBallgown, SilhouetteSheath},
}

// avoidMatrix maps each body type to cuts that work against it: anything
// clinging where the figure is widest, or adding volume where it already
// has it.
var avoidMatrix = map[BodyType][]Silhouette{
	BodyTypeHourglass:        {SilhouetteEmpire},
	BodyTypePear:             {SilhouetteMermaid, SilhouetteSheath},
	BodyTypeApple:            {SilhouetteMermaid, SilhouetteSheath, SilhouetteTrumpet},
	BodyTypeRectangle:        {SilhouetteSheath},
	BodyTypeInvertedTriangle: {SilhouetteMermaid, SilhouetteTrumpet},
}

// Silhouettes returns the recommended gown cuts for a body type,
// strongest first. Unknown types get the rectangle recommendations.
func Silhouettes(t BodyType) []Silhouette {
	rec, ok := silhouetteMatrix[t]
	if !ok {
		rec = silhouetteMatrix[BodyTypeRectangle]
	}
	out := make([]Silhouette, len(rec))
	copy(out, rec)
	return out
}

// SilhouettesToAvoid returns the cuts a stylist would steer a body type
// away from.
func SilhouettesToAvoid(t BodyType) []Silhouette {
	av, ok := avoidMatrix[t]
	if !ok {
		av = avoidMatrix[BodyTypeRectangle]
	}
	out := make([]Silhouette, len(av))
	copy(out, av)
	return out
}
