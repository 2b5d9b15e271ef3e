package clock

// Gate lets an action fire at most once per Interval.
// The zero value has never fired and is ready immediately.
type Gate struct {
	Interval Millis

	last  Millis
	fired bool
}

func NewGate(interval Millis) Gate {
	return Gate{Interval: interval}
}

// Ready reports whether the interval has passed since the gate last fired.
func (g *Gate) Ready(now Millis) bool {
	return !g.fired || Elapsed(now, g.last) >= g.Interval
}

// Fire marks the gate as fired at now, regardless of readiness.
func (g *Gate) Fire(now Millis) {
	g.last = now
	g.fired = true
}

// TryFire fires the gate if it is ready and reports whether it did.
func (g *Gate) TryFire(now Millis) bool {
	if !g.Ready(now) {
		return false
	}
	g.Fire(now)
	return true
}

// Last returns when the gate last fired, and false if it never did.
func (g *Gate) Last() (Millis, bool) {
	return g.last, g.fired
}
