package evaluation

// Confusion counts actual decisions per expected decision.
type Confusion map[Decision]map[Decision]int

// Record adds one observation to the matrix.
func (c Confusion) Record(expected, actual Decision) {
	if c[expected] == nil {
		c[expected] = make(map[Decision]int)
	}
	c[expected][actual]++
}

// Precision computes, for a decision class, the fraction of selections
// classified as that class that truly belong to it. Returns 0.0 when the
// class was never predicted.
func (c Confusion) Precision(class Decision) float64 {
	truePositive := c[class][class]
	predicted := 0
	for _, actuals := range c {
		predicted += actuals[class]
	}
	if predicted == 0 {
		return 0.0
	}
	return float64(truePositive) / float64(predicted)
}

// Recall computes, for a decision class, the fraction of selections that
// belong to that class that were classified as it. Returns 0.0 when the
// class never occurs in the golden set.
func (c Confusion) Recall(class Decision) float64 {
	truePositive := c[class][class]
	total := 0
	for _, count := range c[class] {
		total += count
	}
	if total == 0 {
		return 0.0
	}
	return float64(truePositive) / float64(total)
}
