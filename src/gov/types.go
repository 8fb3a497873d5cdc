package gov

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a proposal. The set is fixed.
type Category string

const (
	CategoryFinance      Category = "Finance"
	CategoryGovernance   Category = "Governance"
	CategoryTechnical    Category = "Technical"
	CategoryCommunity    Category = "Community"
	CategoryProtocol     Category = "Protocol"
	CategoryPartnerships Category = "Partnerships"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFinance,
	CategoryGovernance,
	CategoryTechnical,
	CategoryCommunity,
	CategoryProtocol,
	CategoryPartnerships,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory accepts any casing of a known category name.
func ParseCategory(s string) (Category, error) {
	for _, known := range Categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", Validationf("unknown category %q", s)
}

// Status is the proposal lifecycle state.
type Status string

const (
	StatusActive   Status = "Active"
	StatusExecuted Status = "Executed"
)

func ParseStatus(s string) (Status, error) {
	switch {
	case strings.EqualFold(s, string(StatusActive)):
		return StatusActive, nil
	case strings.EqualFold(s, string(StatusExecuted)):
		return StatusExecuted, nil
	}
	return "", Validationf("unknown status %q", s)
}

// Strategy shifts the delegate's effective risk tolerance.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyProgressive  Strategy = "progressive"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case StrategyConservative:
		return StrategyConservative, nil
	case StrategyBalanced:
		return StrategyBalanced, nil
	case StrategyProgressive:
		return StrategyProgressive, nil
	}
	return "", Validationf("unknown voting strategy %q", s)
}

const (
	MinRiskScore = 1
	MaxRiskScore = 10

	MinCategoryWeight     = 1
	MaxCategoryWeight     = 5
	DefaultCategoryWeight = 3
)

// Proposal is a governance item subject to voting. Only Status changes after creation.
type Proposal struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	RiskScore   int       `json:"riskScore"`
	Summary     string    `json:"summary"`
	Explanation string    `json:"explanation"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	Proposer    string    `json:"proposer"`
}

func (p Proposal) RiskBand() RiskBand { return BandFor(p.RiskScore) }

// Vote is a single voter's binding choice on one proposal.
type Vote struct {
	ProposalID uint64    `json:"proposalId"`
	Voter      string    `json:"voter"`
	Support    bool      `json:"support"`
	Delegated  bool      `json:"delegated"`
	CastAt     time.Time `json:"castAt"`
}

// Tally aggregates the votes of one proposal.
type Tally struct {
	ProposalID uint64  `json:"proposalId"`
	For        int     `json:"for"`
	Against    int     `json:"against"`
	ForPct     float64 `json:"forPct"`
	AgainstPct float64 `json:"againstPct"`
}

func (t Tally) Total() int { return t.For + t.Against }

// DelegatePreference is the single mutable delegate record of an owner.
type DelegatePreference struct {
	Owner           string           `json:"owner"`
	Active          bool             `json:"active"`
	RiskTolerance   int              `json:"riskTolerance"`
	CategoryWeights map[Category]int `json:"categoryWeights"`
	VotingStrategy  Strategy         `json:"votingStrategy"`
	CustomRules     string           `json:"customRules,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Weight returns the owner's weight for c, or DefaultCategoryWeight when unmapped.
func (p DelegatePreference) Weight(c Category) int {
	if w, ok := p.CategoryWeights[c]; ok {
		return w
	}
	return DefaultCategoryWeight
}

func (p DelegatePreference) Validate() error {
	if strings.TrimSpace(p.Owner) == "" {
		return Validationf("owner is required")
	}
	if p.RiskTolerance < MinRiskScore || p.RiskTolerance > MaxRiskScore {
		return Validationf("riskTolerance %d outside [%d,%d]", p.RiskTolerance, MinRiskScore, MaxRiskScore)
	}
	if _, err := ParseStrategy(string(p.VotingStrategy)); err != nil {
		return err
	}
	for c, w := range p.CategoryWeights {
		if !c.Valid() {
			return Validationf("unknown category %q", c)
		}
		if w < MinCategoryWeight || w > MaxCategoryWeight {
			return Validationf("weight %d for %s outside [%d,%d]", w, c, MinCategoryWeight, MaxCategoryWeight)
		}
	}
	return nil
}

// Clone returns a copy that does not share the weights map.
func (p DelegatePreference) Clone() DelegatePreference {
	out := p
	if p.CategoryWeights != nil {
		out.CategoryWeights = make(map[Category]int, len(p.CategoryWeights))
		for c, w := range p.CategoryWeights {
			out.CategoryWeights[c] = w
		}
	}
	return out
}

// DelegateRecord compares a cast vote with what the delegate policy recommended.
type DelegateRecord struct {
	Owner         string    `json:"owner"`
	ProposalID    uint64    `json:"proposalId"`
	ProposalTitle string    `json:"proposalTitle"`
	Recommended   bool      `json:"recommended"`
	Confidence    float64   `json:"confidence"`
	Support       bool      `json:"support"`
	Delegated     bool      `json:"delegated"`
	Match         bool      `json:"match"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (r DelegateRecord) String() string {
	return fmt.Sprintf("%s #%d recommended=%t support=%t", r.Owner, r.ProposalID, r.Recommended, r.Support)
}

// Analysis is what the proposal-analysis collaborator supplies at creation.
type Analysis struct {
	Category    Category `json:"category"`
	RiskScore   int      `json:"riskScore"`
	Summary     string   `json:"summary"`
	Explanation string   `json:"explanation"`
}
