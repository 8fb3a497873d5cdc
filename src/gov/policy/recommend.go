// Package policy turns a delegate preference into a vote recommendation.
//
// The recommendation is a pure function of its inputs:
//
//	shift      = -2 conservative, 0 balanced, +2 progressive
//	penalty    = riskScore - riskTolerance
//	margin     = penalty - shift          (riskScore - effective tolerance)
//	support    = margin <= 0
//	x          = (|margin| + 1) * categoryWeight
//	confidence = x / (x + 10)
//
// confidence stays inside (0,1), grows with |margin| for a fixed weight and
// with the weight for a fixed margin.
package policy

import (
	"fmt"

	"github.com/stake-plus/ai-gov/src/gov"
)

const confidenceHalfPoint = 10.0

// Recommendation is the delegate's suggested vote and how sure it is.
type Recommendation struct {
	Support        bool    `json:"support"`
	Confidence     float64 `json:"confidence"`
	RiskPenalty    int     `json:"riskPenalty"`
	StrategyShift  int     `json:"strategyShift"`
	Margin         int     `json:"margin"`
	CategoryWeight int     `json:"categoryWeight"`
	Reasoning      string  `json:"reasoning"`
}

// Shift returns how far a strategy moves the effective risk tolerance.
func Shift(s gov.Strategy) int {
	switch s {
	case gov.StrategyConservative:
		return -2
	case gov.StrategyProgressive:
		return 2
	default:
		return 0
	}
}

// Confidence maps a decision margin and category weight into (0,1).
func Confidence(margin, weight int) float64 {
	if margin < 0 {
		margin = -margin
	}
	if weight < gov.MinCategoryWeight {
		weight = gov.MinCategoryWeight
	}
	x := float64((margin + 1) * weight)
	return x / (x + confidenceHalfPoint)
}

// Recommend evaluates pref against proposal.
func Recommend(pref gov.DelegatePreference, proposal gov.Proposal) Recommendation {
	shift := Shift(pref.VotingStrategy)
	penalty := proposal.RiskScore - pref.RiskTolerance
	margin := penalty - shift
	weight := pref.Weight(proposal.Category)

	rec := Recommendation{
		Support:        margin <= 0,
		Confidence:     Confidence(margin, weight),
		RiskPenalty:    penalty,
		StrategyShift:  shift,
		Margin:         margin,
		CategoryWeight: weight,
	}
	rec.Reasoning = reasoning(pref, proposal, rec)
	return rec
}

func reasoning(pref gov.DelegatePreference, p gov.Proposal, rec Recommendation) string {
	verdict := "against"
	if rec.Support {
		verdict = "for"
	}
	return fmt.Sprintf("%s risk %d/10 vs effective tolerance %d (%s strategy, %s weight %d/5): vote %s",
		p.RiskBand(), p.RiskScore, pref.RiskTolerance+rec.StrategyShift,
		pref.VotingStrategy, p.Category, rec.CategoryWeight, verdict)
}
