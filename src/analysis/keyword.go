// Package analysis supplies the category and risk score of a proposal when
// its submitter leaves them out.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/stake-plus/ai-gov/src/gov"
)

const maxSummaryLen = 200

// keywords per category. A proposal lands in the category with the most hits;
// ties go to the earlier category in gov.Categories.
var categoryKeywords = map[gov.Category][]string{
	gov.CategoryFinance:      {"treasury", "budget", "fund", "funding", "grant", "payment", "stablecoin", "diversif", "invest", "fee", "revenue", "token"},
	gov.CategoryGovernance:   {"vote", "voting", "quorum", "delegate", "council", "charter", "election", "governance", "proposal threshold"},
	gov.CategoryTechnical:    {"upgrade", "contract", "audit", "bug", "migration", "infrastructure", "node", "security", "oracle"},
	gov.CategoryCommunity:    {"community", "event", "ambassador", "education", "forum", "meetup", "hackathon", "social"},
	gov.CategoryProtocol:     {"protocol", "parameter", "collateral", "liquidity", "emission", "staking", "reward", "rate"},
	gov.CategoryPartnerships: {"partner", "partnership", "integration", "collaborat", "alliance", "bridge", "listing"},
}

// riskSignals raise the score by their weight on each distinct match.
var riskSignals = map[string]int{
	"emergency":    2,
	"mint":         2,
	"unlimited":    2,
	"upgrade":      1,
	"migration":    1,
	"treasury":     1,
	"transfer":     1,
	"leverage":     2,
	"experimental": 2,
	"irreversible": 2,
	"remove":       1,
}

// calmSignals lower the score.
var calmSignals = map[string]int{
	"audited":      1,
	"gradual":      1,
	"pilot":        1,
	"rollback":     1,
	"timelock":     1,
	"spending cap": 1,
}

// baseRisk is the starting score of each category.
var baseRisk = map[gov.Category]int{
	gov.CategoryFinance:      4,
	gov.CategoryGovernance:   3,
	gov.CategoryTechnical:    5,
	gov.CategoryCommunity:    2,
	gov.CategoryProtocol:     5,
	gov.CategoryPartnerships: 4,
}

// Keyword is a deterministic keyword analyzer. It has no state.
type Keyword struct{}

func NewKeyword() Keyword { return Keyword{} }

func (Keyword) Analyze(ctx context.Context, title, description string) (gov.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return gov.Analysis{}, err
	}
	text := strings.ToLower(title + " " + description)
	if strings.TrimSpace(text) == "" {
		return gov.Analysis{}, fmt.Errorf("analysis: empty proposal")
	}

	category := classify(text)
	risk, hits := score(category, text, len(strings.Fields(description)))
	return gov.Analysis{
		Category:    category,
		RiskScore:   risk,
		Summary:     summarize(description),
		Explanation: explain(category, risk, hits),
	}, nil
}

func classify(text string) gov.Category {
	best, bestHits := gov.CategoryGovernance, 0
	for _, c := range gov.Categories {
		hits := 0
		for _, kw := range categoryKeywords[c] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = c, hits
		}
	}
	return best
}

func score(c gov.Category, text string, words int) (int, []string) {
	risk := baseRisk[c]
	var hits []string
	for kw, w := range riskSignals {
		if strings.Contains(text, kw) {
			risk += w
			hits = append(hits, "+"+kw)
		}
	}
	for kw, w := range calmSignals {
		if strings.Contains(text, kw) {
			risk -= w
			hits = append(hits, "-"+kw)
		}
	}
	// Very short proposals leave too much unspecified.
	if words < 15 {
		risk++
		hits = append(hits, "+brief")
	}
	sort.Strings(hits)
	return clamp(risk, gov.MinRiskScore, gov.MaxRiskScore), hits
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// summarize returns the first sentence of s, cut at maxSummaryLen runes.
func summarize(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?\n"); i >= 0 {
		s = s[:i+1]
	}
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if r := []rune(s); len(r) > maxSummaryLen {
		s = strings.TrimRightFunc(string(r[:maxSummaryLen]), unicode.IsSpace) + "..."
	}
	return s
}

func explain(c gov.Category, risk int, hits []string) string {
	if len(hits) == 0 {
		return fmt.Sprintf("%s proposal with base risk %d/10", c, risk)
	}
	return fmt.Sprintf("%s proposal scored %d/10 (%s)", c, risk, strings.Join(hits, ", "))
}
