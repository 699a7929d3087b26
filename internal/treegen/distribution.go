package treegen

import "math"

// distribute splits slots non-synthesis skills across foundation, building
// and compound. At least one foundation skill exists whenever slots > 0;
// compounds are dropped when fewer than two foundation/building skills would
// exist to combine; leftover slots go to foundation.
func distribute(slots int, mix Mix) Distribution {
	if slots <= 0 {
		return Distribution{}
	}
	f := int(math.Round(float64(slots) * mix.Foundation))
	b := int(math.Round(float64(slots) * mix.Building))
	c := int(math.Round(float64(slots) * mix.Compound))
	f = max(f, 1)

	// Over-allocation from rounding comes out of compound, then building.
	for f+b+c > slots {
		switch {
		case c > 0:
			c--
		case b > 0:
			b--
		default:
			f--
		}
	}

	if f+b < 2 {
		c = 0
	}
	f += slots - (f + b + c)

	return Distribution{Foundation: f, Building: b, Compound: c, Synthesis: 1}
}
