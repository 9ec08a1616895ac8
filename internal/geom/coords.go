package geom

import "fmt"

// AxisFlip is the sign convention mapping the upstream reconstruction
// frame onto the canonical body frame. Each field is ±1. The default
// convention mirrors X only: the upstream frame treats +X as the
// subject's right, the body frame as the subject's left.
//
// Applying the same AxisFlip twice is the identity, so a single
// conversion function serves both directions.
type AxisFlip struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DefaultAxisFlip mirrors the X axis and leaves Y and Z unchanged.
func DefaultAxisFlip() AxisFlip { return AxisFlip{X: -1, Y: 1, Z: 1} }

// Validate rejects any component that is not exactly +1 or -1.
func (f AxisFlip) Validate() error {
	for name, v := range map[string]float64{"x": f.X, "y": f.Y, "z": f.Z} {
		if v != 1 && v != -1 {
			return fmt.Errorf("axis flip %s must be +1 or -1, got %v", name, v)
		}
	}
	return nil
}

// ConvertCoordinates maps a point between the upstream mesh frame and the
// canonical body frame. It is its own inverse: converting twice returns
// the original point exactly.
func ConvertCoordinates(v Vec, f AxisFlip) Vec {
	return Vec{X: v.X * f.X, Y: v.Y * f.Y, Z: v.Z * f.Z}
}
