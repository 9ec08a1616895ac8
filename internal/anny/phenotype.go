// Package anny provides the parametric body template the fitting pipeline
// poses and deforms: a procedural analytic model generating a body mesh,
// skeleton and skinning weights from a small phenotype vector. The model
// is deterministic and smooth in every axis, which the shape fitter relies
// on for its numeric derivatives.
package anny

import "fmt"

// Axis identifies one phenotype dimension.
type Axis int

const (
	AxisGender Axis = iota
	AxisAge
	AxisHeight
	AxisWeight
	AxisMuscle
	AxisProportions
	NumAxes
)

var axisNames = [NumAxes]string{"gender", "age", "height", "weight", "muscle", "proportions"}

func (a Axis) String() string {
	if a < 0 || a >= NumAxes {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// Phenotype is the parametric body description. Every axis lives in [0,1]:
// gender 0 is male and 1 female, height 0 is a 1.50 m and 1 a 2.00 m
// stature, weight scales overall girth, proportions shifts the waist/hip
// balance, muscle firms the silhouette.
type Phenotype struct {
	Gender      float64 `json:"gender"`
	Age         float64 `json:"age"`
	Height      float64 `json:"height"`
	Weight      float64 `json:"weight"`
	Muscle      float64 `json:"muscle"`
	Proportions float64 `json:"proportions"`
}

// DefaultPhenotype is the neutral starting body.
func DefaultPhenotype() Phenotype {
	return Phenotype{
		Gender:      0.5,
		Age:         0.4,
		Height:      0.3,
		Weight:      0.5,
		Muscle:      0.5,
		Proportions: 0.5,
	}
}

// Axis returns the value of one axis.
func (p Phenotype) Axis(a Axis) float64 {
	switch a {
	case AxisGender:
		return p.Gender
	case AxisAge:
		return p.Age
	case AxisHeight:
		return p.Height
	case AxisWeight:
		return p.Weight
	case AxisMuscle:
		return p.Muscle
	case AxisProportions:
		return p.Proportions
	}
	return 0
}

// SetAxis sets one axis without clipping.
func (p *Phenotype) SetAxis(a Axis, v float64) {
	switch a {
	case AxisGender:
		p.Gender = v
	case AxisAge:
		p.Age = v
	case AxisHeight:
		p.Height = v
	case AxisWeight:
		p.Weight = v
	case AxisMuscle:
		p.Muscle = v
	case AxisProportions:
		p.Proportions = v
	}
}

// Clipped returns a copy with every axis clamped to [0,1].
func (p Phenotype) Clipped() Phenotype {
	out := p
	for a := Axis(0); a < NumAxes; a++ {
		v := out.Axis(a)
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out.SetAxis(a, v)
	}
	return out
}

func (p Phenotype) String() string {
	return fmt.Sprintf("gender=%.2f age=%.2f height=%.2f weight=%.2f muscle=%.2f proportions=%.2f",
		p.Gender, p.Age, p.Height, p.Weight, p.Muscle, p.Proportions)
}
