package agronomy

import "math"

const (
	inRangeFloor     = 0.5
	outOfRangeCeil   = 0.3
	penaltyPerUnit   = 0.03
	maxPenaltyUnits  = 10.0
	inRangeDecayRate = 0.5
)

// FactorScore rates a single environmental value against a crop range on [0, 1].
//
// Inside the range the score decays linearly from 1 at the optimum to 0.5 at
// the farther edge, so any in-range value scores at least 0.5. Outside the
// range the score starts at 0.3 and loses 0.03 per unit past the nearest edge,
// bottoming out at 0 ten units out.
func FactorScore(value float64, r Range) float64 {
	if r.Contains(value) {
		maxDistance := math.Max(r.Optimal-r.Min, r.Max-r.Optimal)
		if maxDistance == 0 {
			// min == optimal == max: the only in-range value is the optimum.
			return 1
		}
		distance := math.Abs(value - r.Optimal)
		return math.Max(inRangeFloor, 1-(distance/maxDistance)*inRangeDecayRate)
	}

	var beyond float64
	if value < r.Min {
		beyond = r.Min - value
	} else {
		beyond = value - r.Max
	}
	penalty := math.Min(beyond, maxPenaltyUnits)
	return math.Max(0, outOfRangeCeil-penalty*penaltyPerUnit)
}
