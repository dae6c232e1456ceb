package pricing

import "math"

// PortionPolicy normalizes a submitted gram amount for weight goods. This is
// a portioning rule, not a price rule, and is deliberately pluggable.
type PortionPolicy interface {
	Normalize(grams int64) int64
}

// StepPortionPolicy rounds to the nearest step with a hard floor, so a deli
// counter never cuts below the smallest portion it sells.
type StepPortionPolicy struct {
	Step  int64
	Floor int64
}

func NewStepPortionPolicy(step, floor int64) StepPortionPolicy {
	return StepPortionPolicy{Step: step, Floor: floor}
}

func (p StepPortionPolicy) Normalize(grams int64) int64 {
	if p.Step <= 0 {
		return grams
	}

	normalized := int64(math.Round(float64(grams)/float64(p.Step))) * p.Step
	if normalized < p.Floor {
		normalized = p.Floor
	}

	return normalized
}

// NoPortionPolicy leaves quantities untouched.
type NoPortionPolicy struct{}

func (NoPortionPolicy) Normalize(grams int64) int64 {
	return grams
}
