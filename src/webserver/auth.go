package webserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/ai-gov/src/data"
)

// NonceStore keeps one pending sign-in challenge per address.
type NonceStore interface {
	Set(ctx context.Context, addr, nonce string) error
	Take(ctx context.Context, addr string) (string, error)
}

func (s *Server) challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		Method  string `json:"method"  binding:"required,oneof=walletconnect polkadotjs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := decodeSS58(req.Address); err != nil {
		badRequest(c, err)
		return
	}

	nonce := uuid.NewString()
	if err := s.nonces.Set(c.Request.Context(), req.Address, nonce); err != nil {
		s.log.Error("store nonce", zap.String("addr", req.Address), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"err": "upstream unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (s *Server) verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Method    string `json:"method"    binding:"required,oneof=walletconnect polkadotjs"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	nonce, err := s.nonces.Take(c.Request.Context(), req.Address)
	if errors.Is(err, data.ErrNoNonce) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}
	if err != nil {
		s.log.Error("take nonce", zap.String("addr", req.Address), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"err": "upstream unavailable"})
		return
	}

	if err := verifySignature(req.Address, req.Signature, nonce); err != nil {
		s.log.Info("signature rejected", zap.String("addr", req.Address), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}

	token, err := issueJWT(req.Address, s.secret, s.cfg.JWTTTL, s.now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
