package decision

import "github.com/Moustafa-Haydar/cargo-smart/models"

// Weights are the coefficients of the scoring function.
type Weights struct {
	ETA    float64
	Toll   float64
	PDelay float64
}

func DefaultWeights() Weights {
	return Weights{ETA: 0.6, Toll: 0.1, PDelay: 0.3}
}

// Score rates an option; higher is better. p is scaled to percent so it is
// comparable to minutes and dollars.
func (w Weights) Score(opt models.RouteOption, p float64) float64 {
	return -(w.ETA*opt.ETAMinutes + w.Toll*opt.TollCostUSD + w.PDelay*(p*100))
}

// Improvement is the relative score gain of best over current.
func Improvement(current, best float64) float64 {
	return (best - current) / (abs(current) + 1e-6)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
