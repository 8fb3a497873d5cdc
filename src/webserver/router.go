package webserver

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/ai-gov/src/config"
	"github.com/stake-plus/ai-gov/src/ledger"
	"github.com/stake-plus/ai-gov/src/logging"
)

type Server struct {
	cfg    config.Config
	gov    *ledger.Governance
	nonces NonceStore
	log    *zap.Logger
	secret []byte
	now    func() time.Time
}

type Options struct {
	Config config.Config
	Ledger *ledger.Governance
	Nonces NonceStore
	Logger *zap.Logger
	Now    func() time.Time
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		cfg:    opts.Config,
		gov:    opts.Ledger,
		nonces: opts.Nonces,
		log:    opts.Logger.Named("http"),
		secret: []byte(opts.Config.JWTSecret),
		now:    opts.Now,
	}
}

// Handler builds the gin engine with every route attached.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), logging.GinLogger(s.log))
	r.Use(cors.New(s.corsConfig()))
	s.attachRoutes(r)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders: []string{"Content-Length", "ETag", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) == 0 || slices.Contains(s.cfg.CORSOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) attachRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	authLimit := NewRateLimiter(s.cfg.RateLimit, s.cfg.RateWindow)
	writeLimit := NewRateLimiter(s.cfg.RateLimit, s.cfg.RateWindow)

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth", RateLimitMiddleware(authLimit))
		auth.POST("/challenge", s.challenge)
		auth.POST("/verify", s.verify)

		v1.GET("/proposals", s.listProposals)
		v1.GET("/proposals/:id", s.getProposal)
		v1.GET("/proposals/:id/full", s.getProposalFull)
		v1.GET("/proposals/:id/tally", s.getTally)
		v1.GET("/delegates/:address", s.getDelegate)
		v1.GET("/delegates/:address/history", s.getDelegateHistory)

		secured := v1.Group("", JWTMiddleware(s.secret), RateLimitMiddleware(writeLimit))
		secured.POST("/proposals", s.createProposal)
		secured.POST("/proposals/:id/votes", s.castVote)
		secured.GET("/proposals/:id/recommendation", s.getRecommendation)
		secured.PUT("/delegates/me", s.putDelegate)

		admin := secured.Group("", AdminMiddleware(s.cfg.IsAdmin))
		admin.POST("/proposals/:id/execute", s.executeProposal)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "proposals": s.gov.Count(ledger.Filter{})})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
