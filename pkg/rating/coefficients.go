package rating

// Coefficient vectors follow the stat order speed, stamina, power, guts,
// wisdom. Middle distance is the neutral baseline; the other vectors shift
// weight toward the attributes that decide that kind of race.

var distanceCoefficients = map[Distance][NumStats]float64{
	Short:  {1.2, 0.7, 1.1, 1.0, 1.0},
	Mile:   {1.1, 0.9, 1.0, 1.0, 1.0},
	Middle: {1.0, 1.0, 1.0, 1.0, 1.0},
	Long:   {0.8, 1.2, 0.8, 1.2, 1.2},
}

var strategyCoefficients = map[Strategy][NumStats]float64{
	FrontRunner: {1.2, 1.1, 1.0, 1.0, 0.9},
	PaceChaser:  {1.1, 1.0, 1.1, 1.0, 1.0},
	LateSurger:  {1.0, 1.0, 1.2, 1.0, 1.1},
	Closer:      {0.9, 1.0, 1.2, 1.2, 1.1},
}

var neutralCoefficients = [NumStats]float64{1, 1, 1, 1, 1}

// Coefficients returns the per-stat weights for d. Unknown values rate
// neutrally rather than zeroing the result.
func (d Distance) Coefficients() [NumStats]float64 {
	if c, ok := distanceCoefficients[d]; ok {
		return c
	}
	return neutralCoefficients
}

// Coefficients returns the per-stat weights for s.
func (s Strategy) Coefficients() [NumStats]float64 {
	if c, ok := strategyCoefficients[s]; ok {
		return c
	}
	return neutralCoefficients
}
