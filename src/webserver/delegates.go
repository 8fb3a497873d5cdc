package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/ai-gov/src/gov"
)

func (s *Server) putDelegate(c *gin.Context) {
	var req struct {
		Active          bool           `json:"active"`
		RiskTolerance   int            `json:"riskTolerance"   binding:"required"`
		CategoryWeights map[string]int `json:"categoryWeights"`
		VotingStrategy  string         `json:"votingStrategy"  binding:"required"`
		CustomRules     string         `json:"customRules"     binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	strategy, err := gov.ParseStrategy(req.VotingStrategy)
	if err != nil {
		s.fail(c, err)
		return
	}
	weights := make(map[gov.Category]int, len(req.CategoryWeights))
	for name, w := range req.CategoryWeights {
		cat, err := gov.ParseCategory(name)
		if err != nil {
			s.fail(c, err)
			return
		}
		weights[cat] = w
	}

	saved, err := s.gov.SavePreference(c.Request.Context(), gov.DelegatePreference{
		Owner:           c.GetString("addr"),
		Active:          req.Active,
		RiskTolerance:   req.RiskTolerance,
		CategoryWeights: weights,
		VotingStrategy:  strategy,
		CustomRules:     cleanText(req.CustomRules),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) getDelegate(c *gin.Context) {
	owner := c.Param("address")
	pref, err := s.gov.Preference(owner)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondCached(c, gin.H{
		"preference": pref,
		"matchRate":  s.gov.MatchRate(owner),
	})
}

func (s *Server) getDelegateHistory(c *gin.Context) {
	owner := c.Param("address")
	respondCached(c, gin.H{
		"history":   s.gov.History(owner),
		"matchRate": s.gov.MatchRate(owner),
	})
}
