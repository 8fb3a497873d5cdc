package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/ai-gov/src/gov"
)

func TestKeywordClassifiesTreasuryProposal(t *testing.T) {
	a, err := NewKeyword().Analyze(context.Background(),
		"Treasury Diversification",
		"Diversify 20% of the treasury into stablecoins over three months. The gradual plan keeps a spending cap per week and was reviewed by the finance working group.")
	require.NoError(t, err)

	assert.Equal(t, gov.CategoryFinance, a.Category)
	assert.Equal(t, 3, a.RiskScore)
	assert.Equal(t, "Diversify 20% of the treasury into stablecoins over three months.", a.Summary)
	assert.Contains(t, a.Explanation, "+treasury")
	assert.Contains(t, a.Explanation, "-gradual")
}

func TestKeywordRiskySignalsRaiseScore(t *testing.T) {
	a, err := NewKeyword().Analyze(context.Background(),
		"Emergency contract upgrade",
		"Emergency upgrade of the core contract with unlimited mint rights for the migration multisig.")
	require.NoError(t, err)

	assert.Equal(t, gov.CategoryTechnical, a.Category)
	assert.Equal(t, gov.MaxRiskScore, a.RiskScore)
}

func TestKeywordDefaultsToGovernance(t *testing.T) {
	a, err := NewKeyword().Analyze(context.Background(), "Hello", "Nothing in here matches anything at all, it is simply a long enough sentence to avoid the brevity flag.")
	require.NoError(t, err)
	assert.Equal(t, gov.CategoryGovernance, a.Category)
	assert.Equal(t, 3, a.RiskScore)
}

func TestKeywordIsDeterministic(t *testing.T) {
	k := NewKeyword()
	first, err := k.Analyze(context.Background(), "Partnership with bridge", "Integration partner listing. Treasury transfer.")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := k.Analyze(context.Background(), "Partnership with bridge", "Integration partner listing. Treasury transfer.")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestKeywordRejectsEmptyAndCancelled(t *testing.T) {
	_, err := NewKeyword().Analyze(context.Background(), " ", "")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewKeyword().Analyze(ctx, "t", "d")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := summarize(long)
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.LessOrEqual(t, len([]rune(s)), maxSummaryLen+3)
}
