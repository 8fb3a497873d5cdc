package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/ai-gov/src/gov"
)

// castVote records the caller's vote. With delegate=true the caller's
// delegate policy decides the choice.
func (s *Server) castVote(c *gin.Context) {
	id, err := proposalID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req struct {
		Support  *bool `json:"support"`
		Delegate bool  `json:"delegate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	voter := c.GetString("addr")

	if req.Delegate {
		v, rec, err := s.gov.VoteAsDelegate(c.Request.Context(), id, voter)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"vote": v, "recommendation": rec})
		return
	}

	if req.Support == nil {
		s.fail(c, gov.Validationf("support is required"))
		return
	}
	v, err := s.gov.Vote(c.Request.Context(), id, voter, *req.Support)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vote": v})
}

func (s *Server) getRecommendation(c *gin.Context) {
	id, err := proposalID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.gov.RecommendFor(c.GetString("addr"), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
