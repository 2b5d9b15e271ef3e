package pointer

import "math"

// Accumulator carries the fractional part of scaled motion over to the next tick,
// so that motion below one unit per tick is deferred instead of lost.
// The residues stay within (-1, 1) and are only ever reduced by emitting whole units.
type Accumulator struct {
	x float64
	y float64
}

// Add adds the given amounts and returns the whole units, which are removed from the residues.
// Whole units beyond the int16 range are dropped.
func (a *Accumulator) Add(x float64, y float64) (int16, int16) {
	a.x += x
	a.y += y
	xInt := clampInt16(math.Trunc(a.x))
	yInt := clampInt16(math.Trunc(a.y))
	a.x -= math.Trunc(a.x)
	a.y -= math.Trunc(a.y)
	return xInt, yInt
}

// Residue returns what has been accumulated but not emitted yet.
func (a *Accumulator) Residue() (float64, float64) {
	return a.x, a.y
}
