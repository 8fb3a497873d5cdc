package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/ai-gov/src/gov"
	"github.com/stake-plus/ai-gov/src/ledger"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func proposalID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, gov.Validationf("invalid proposal id %q", c.Param("id"))
	}
	return id, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, gov.Validationf("invalid %s %q", key, raw)
	}
	return n, nil
}

func parseFilter(c *gin.Context) (ledger.Filter, error) {
	var f ledger.Filter
	var err error
	if v := c.Query("status"); v != "" {
		if f.Status, err = gov.ParseStatus(v); err != nil {
			return f, err
		}
	}
	if v := c.Query("category"); v != "" {
		if f.Category, err = gov.ParseCategory(v); err != nil {
			return f, err
		}
	}
	if v := c.Query("risk"); v != "" {
		if f.Band, err = gov.ParseRiskBand(v); err != nil {
			return f, err
		}
	}
	if f.Offset, err = queryInt(c, "offset", 0); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit", defaultPageSize); err != nil {
		return f, err
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f, nil
}

func (s *Server) listProposals(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondCached(c, gin.H{
		"proposals": s.gov.List(f),
		"total":     s.gov.Count(f),
		"offset":    f.Offset,
		"limit":     f.Limit,
	})
}

func (s *Server) getProposal(c *gin.Context) {
	id, err := proposalID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.gov.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondCached(c, p)
}

// getProposalFull returns the proposal with its tally and ballots.
func (s *Server) getProposalFull(c *gin.Context) {
	id, err := proposalID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.gov.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	tally, err := s.gov.Tally(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	votes, err := s.gov.Votes(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondCached(c, gin.H{
		"proposal": p,
		"riskBand": p.RiskBand(),
		"tally":    tally,
		"votes":    votes,
	})
}

func (s *Server) getTally(c *gin.Context) {
	id, err := proposalID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.gov.Tally(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondCached(c, t)
}

func (s *Server) createProposal(c *gin.Context) {
	var req struct {
		Title       string `json:"title"       binding:"required,max=256"`
		Description string `json:"description" binding:"required"`
		Category    string `json:"category"`
		RiskScore   int    `json:"riskScore"   binding:"min=0,max=10"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sub := ledger.Submission{
		Title:       cleanText(req.Title),
		Description: cleanText(req.Description),
		RiskScore:   req.RiskScore,
		Proposer:    c.GetString("addr"),
	}
	if req.Category != "" {
		cat, err := gov.ParseCategory(req.Category)
		if err != nil {
			s.fail(c, err)
			return
		}
		sub.Category = cat
	}

	p, err := s.gov.Submit(c.Request.Context(), sub)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) executeProposal(c *gin.Context) {
	id, err := proposalID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.gov.Execute(c.Request.Context(), id, c.GetString("addr"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("admin executed proposal", zap.Uint64("proposal", id), zap.String("addr", c.GetString("addr")))
	c.JSON(http.StatusOK, p)
}
