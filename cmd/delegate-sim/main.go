// delegate-sim prints what a delegate preference would vote across risk
// scores, without touching a running server.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/stake-plus/ai-gov/src/gov"
	"github.com/stake-plus/ai-gov/src/gov/policy"
)

var (
	toleranceFlag = pflag.IntP("tolerance", "t", 5, "Risk tolerance 1-10")
	strategyFlag  = pflag.StringP("strategy", "s", "balanced", "conservative|balanced|progressive")
	weightsFlag   = pflag.StringSliceP("weight", "w", nil, "Category weight as Category=N, repeatable")
	categoryFlag  = pflag.StringP("category", "c", "", "Only simulate this category")
	verboseFlag   = pflag.BoolP("verbose", "v", false, "Print the reasoning for each row")
)

func main() {
	log.SetFlags(0)
	pflag.Parse()

	pref, err := buildPreference(*toleranceFlag, *strategyFlag, *weightsFlag)
	if err != nil {
		log.Fatalf("invalid preference: %v", err)
	}

	categories := gov.Categories
	if *categoryFlag != "" {
		c, err := gov.ParseCategory(*categoryFlag)
		if err != nil {
			log.Fatalf("invalid category: %v", err)
		}
		categories = []gov.Category{c}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tRISK\tBAND\tVOTE\tCONFIDENCE")
	for _, c := range categories {
		for risk := gov.MinRiskScore; risk <= gov.MaxRiskScore; risk++ {
			rec := policy.Recommend(pref, gov.Proposal{Category: c, RiskScore: risk})
			vote := "against"
			if rec.Support {
				vote = "for"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%.2f\n", c, risk, gov.BandFor(risk), vote, rec.Confidence)
			if *verboseFlag {
				fmt.Fprintf(w, "\t\t\t%s\t\n", rec.Reasoning)
			}
		}
	}
	_ = w.Flush()
}

func buildPreference(tolerance int, strategy string, weights []string) (gov.DelegatePreference, error) {
	s, err := gov.ParseStrategy(strategy)
	if err != nil {
		return gov.DelegatePreference{}, err
	}
	pref := gov.DelegatePreference{
		Owner:           "simulator",
		Active:          true,
		RiskTolerance:   tolerance,
		VotingStrategy:  s,
		CategoryWeights: map[gov.Category]int{},
	}
	for _, kv := range weights {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return gov.DelegatePreference{}, fmt.Errorf("weight %q is not Category=N", kv)
		}
		c, err := gov.ParseCategory(strings.TrimSpace(name))
		if err != nil {
			return gov.DelegatePreference{}, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return gov.DelegatePreference{}, fmt.Errorf("weight %q: %w", kv, err)
		}
		pref.CategoryWeights[c] = n
	}
	return pref, pref.Validate()
}
