package gov

// RiskBand buckets a riskScore: low 1-3, medium 4-6, high 7-10.
type RiskBand string

const (
	RiskLow    RiskBand = "low"
	RiskMedium RiskBand = "medium"
	RiskHigh   RiskBand = "high"
)

func BandFor(score int) RiskBand {
	switch {
	case score <= 3:
		return RiskLow
	case score <= 6:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Contains reports whether score falls inside the band.
func (b RiskBand) Contains(score int) bool {
	return BandFor(score) == b
}

func ParseRiskBand(s string) (RiskBand, error) {
	switch RiskBand(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskBand(s), nil
	}
	return "", Validationf("unknown risk band %q", s)
}
