package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/ai-gov/src/analysis"
	"github.com/stake-plus/ai-gov/src/config"
	"github.com/stake-plus/ai-gov/src/data"
	"github.com/stake-plus/ai-gov/src/gov"
	"github.com/stake-plus/ai-gov/src/ledger"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	h     http.Handler
	gov   *ledger.Governance
	redis *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := data.NewRedis("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	g := ledger.New(ledger.Options{Analyzer: analysis.NewKeyword()})
	srv := New(Options{
		Config: config.Config{
			JWTSecret:      testSecret,
			JWTTTL:         time.Hour,
			CORSOrigins:    []string{"*"},
			AdminAddresses: []string{"admin"},
			RateLimit:      1000,
			RateWindow:     time.Minute,
		},
		Ledger: g,
		Nonces: data.NewNonces(rdb),
	})
	return &testEnv{h: srv.Handler(), gov: g, redis: mr}
}

func token(t *testing.T, addr string) string {
	t.Helper()
	tok, err := issueJWT(addr, []byte(testSecret), time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) create(t *testing.T, tok, title string, category string, risk int) gov.Proposal {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/proposals", tok, gin.H{
		"title": title, "description": "Details for " + title, "category": category, "riskScore": risk,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[gov.Proposal](t, w)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestWritesRequireToken(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/v1/proposals", "", gin.H{"title": "a", "description": "b"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/v1/proposals", "not-a-jwt", gin.H{"title": "a", "description": "b"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := issueJWT("alice", []byte(testSecret), time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	w = e.do(t, http.MethodPost, "/v1/proposals", expired, gin.H{"title": "a", "description": "b"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProposalLifecycle(t *testing.T) {
	e := newTestEnv(t)
	alice, bob, carol := token(t, "alice"), token(t, "bob"), token(t, "carol")

	p := e.create(t, alice, "Fund the <b>grants</b> program", "finance", 4)
	assert.Equal(t, uint64(1), p.ID)
	assert.Equal(t, "Fund the grants program", p.Title)
	assert.Equal(t, gov.CategoryFinance, p.Category)
	assert.Equal(t, gov.StatusActive, p.Status)
	assert.Equal(t, "alice", p.Proposer)

	assert.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/proposals/1/votes", alice, gin.H{"support": true}).Code)
	assert.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/proposals/1/votes", bob, gin.H{"support": true}).Code)
	assert.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/proposals/1/votes", carol, gin.H{"support": false}).Code)

	w := e.do(t, http.MethodPost, "/v1/proposals/1/votes", carol, gin.H{"support": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodGet, "/v1/proposals/1/tally", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tally := decode[gov.Tally](t, w)
	assert.Equal(t, 2, tally.For)
	assert.Equal(t, 1, tally.Against)
	assert.InDelta(t, 66.67, tally.ForPct, 0.01)
	assert.InDelta(t, 100, tally.ForPct+tally.AgainstPct, 1e-9)

	w = e.do(t, http.MethodPost, "/v1/proposals/1/execute", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := token(t, "admin")
	w = e.do(t, http.MethodPost, "/v1/proposals/1/execute", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gov.StatusExecuted, decode[gov.Proposal](t, w).Status)

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/v1/proposals/1/execute", admin, nil).Code)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/v1/proposals/1/votes", token(t, "dave"), gin.H{"support": true}).Code)

	w = e.do(t, http.MethodGet, "/v1/proposals/1/full", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[struct {
		Proposal gov.Proposal `json:"proposal"`
		RiskBand gov.RiskBand `json:"riskBand"`
		Tally    gov.Tally    `json:"tally"`
		Votes    []gov.Vote   `json:"votes"`
	}](t, w)
	assert.Equal(t, gov.RiskMedium, full.RiskBand)
	assert.Len(t, full.Votes, 3)
	assert.Equal(t, "alice", full.Votes[0].Voter)
}

func TestProposalErrors(t *testing.T) {
	e := newTestEnv(t)
	alice := token(t, "alice")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/proposals/9", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/proposals/abc", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/v1/proposals/9/votes", alice, gin.H{"support": true}).Code)

	w := e.do(t, http.MethodPost, "/v1/proposals", alice, gin.H{"title": "x", "description": "y", "category": "Sports"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown category")

	w = e.do(t, http.MethodPost, "/v1/proposals", alice, gin.H{"title": "x", "description": "y", "riskScore": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/v1/proposals", alice, gin.H{"title": "<i></i>", "description": "y", "category": "Finance", "riskScore": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code, "title empty after sanitising")

	e.create(t, alice, "Something", "Community", 2)
	w = e.do(t, http.MethodPost, "/v1/proposals/1/votes", alice, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUsesAnalyzer(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/v1/proposals", token(t, "alice"), gin.H{
		"title":       "Treasury grant budget",
		"description": "Allocate treasury funds to a grant budget with a spending cap and quarterly reporting to the community",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[gov.Proposal](t, w)
	assert.Equal(t, gov.CategoryFinance, p.Category)
	assert.GreaterOrEqual(t, p.RiskScore, gov.MinRiskScore)
	assert.LessOrEqual(t, p.RiskScore, gov.MaxRiskScore)
}

func TestProposalCarriesAnalysisText(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/v1/proposals", token(t, "alice"), gin.H{
		"title":       "Runtime upgrade",
		"description": "Upgrade the runtime to v2. The audit is linked on the forum.",
		"category":    "Technical",
		"riskScore":   6,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[gov.Proposal](t, w)
	assert.Equal(t, gov.CategoryTechnical, created.Category)
	assert.Equal(t, 6, created.RiskScore)

	require.Equal(t, uint64(1), created.ID)
	w = e.do(t, http.MethodGet, "/v1/proposals/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "Upgrade the runtime to v2.", got["summary"])
	assert.NotEmpty(t, got["explanation"])
}

func TestListFiltersAndPaging(t *testing.T) {
	e := newTestEnv(t)
	alice := token(t, "alice")
	e.create(t, alice, "One", "Finance", 2)
	e.create(t, alice, "Two", "Technical", 8)
	e.create(t, alice, "Three", "Finance", 9)
	e.create(t, alice, "Four", "Finance", 5)

	type page struct {
		Proposals []gov.Proposal `json:"proposals"`
		Total     int            `json:"total"`
		Offset    int            `json:"offset"`
		Limit     int            `json:"limit"`
	}

	w := e.do(t, http.MethodGet, "/v1/proposals?category=finance", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[page](t, w)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, defaultPageSize, got.Limit)
	require.Len(t, got.Proposals, 3)
	assert.Equal(t, "One", got.Proposals[0].Title)
	assert.Equal(t, "Four", got.Proposals[2].Title)

	got = decode[page](t, e.do(t, http.MethodGet, "/v1/proposals?risk=high", "", nil))
	assert.Equal(t, 2, got.Total)

	got = decode[page](t, e.do(t, http.MethodGet, "/v1/proposals?offset=1&limit=2", "", nil))
	assert.Equal(t, 4, got.Total)
	require.Len(t, got.Proposals, 2)
	assert.Equal(t, "Two", got.Proposals[0].Title)

	got = decode[page](t, e.do(t, http.MethodGet, "/v1/proposals?limit=500", "", nil))
	assert.Equal(t, maxPageSize, got.Limit)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/proposals?status=Pending", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/proposals?risk=extreme", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/proposals?offset=-1", "", nil).Code)
}

func TestETagNotModified(t *testing.T) {
	e := newTestEnv(t)
	e.create(t, token(t, "alice"), "One", "Finance", 2)

	w := e.do(t, http.MethodGet, "/v1/proposals/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	w = e.do(t, http.MethodGet, "/v1/proposals/1", "", nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	e.do(t, http.MethodPost, "/v1/proposals/1/votes", token(t, "bob"), gin.H{"support": true})
	w = e.do(t, http.MethodGet, "/v1/proposals/1/tally", "", nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDelegateFlow(t *testing.T) {
	e := newTestEnv(t)
	carol := token(t, "carol")
	e.create(t, token(t, "alice"), "Small grant", "Finance", 3)

	w := e.do(t, http.MethodPost, "/v1/proposals/1/votes", carol, gin.H{"delegate": true})
	assert.Equal(t, http.StatusNotFound, w.Code, "no preference yet")

	w = e.do(t, http.MethodPut, "/v1/delegates/me", carol, gin.H{
		"active": true, "riskTolerance": 5, "votingStrategy": "Balanced",
		"categoryWeights": gin.H{"finance": 5},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pref := decode[gov.DelegatePreference](t, w)
	assert.Equal(t, "carol", pref.Owner)
	assert.Equal(t, 5, pref.Weight(gov.CategoryFinance))

	w = e.do(t, http.MethodGet, "/v1/proposals/1/recommendation", carol, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[struct {
		Support    bool    `json:"support"`
		Confidence float64 `json:"confidence"`
	}](t, w)
	assert.True(t, rec.Support)
	assert.Greater(t, rec.Confidence, 0.5)

	w = e.do(t, http.MethodPost, "/v1/proposals/1/votes", carol, gin.H{"delegate": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cast := decode[struct {
		Vote gov.Vote `json:"vote"`
	}](t, w)
	assert.True(t, cast.Vote.Support)
	assert.True(t, cast.Vote.Delegated)

	w = e.do(t, http.MethodGet, "/v1/delegates/carol/history", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		History   []gov.DelegateRecord `json:"history"`
		MatchRate float64              `json:"matchRate"`
	}](t, w)
	require.Len(t, hist.History, 1)
	assert.Equal(t, 100.0, hist.MatchRate)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/delegates/carol", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/delegates/nobody", "", nil).Code)

	w = e.do(t, http.MethodPut, "/v1/delegates/me", carol, gin.H{"riskTolerance": 5, "votingStrategy": "yolo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPut, "/v1/delegates/me", carol, gin.H{"riskTolerance": 12, "votingStrategy": "balanced"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInactiveDelegateCannotVote(t *testing.T) {
	e := newTestEnv(t)
	dave := token(t, "dave")
	e.create(t, token(t, "alice"), "Small grant", "Finance", 3)

	w := e.do(t, http.MethodPut, "/v1/delegates/me", dave, gin.H{"active": false, "riskTolerance": 5, "votingStrategy": "balanced"})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/v1/proposals/1/votes", dave, gin.H{"delegate": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(gov.Validationf("x")))
	assert.Equal(t, http.StatusNotFound, statusFor(gov.NotFoundf("x")))
	assert.Equal(t, http.StatusConflict, statusFor(gov.InvalidTransitionf("x")))
	assert.Equal(t, http.StatusConflict, statusFor(gov.DuplicateVotef("x")))
	assert.Equal(t, http.StatusBadGateway, statusFor(gov.Collaborator("save", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Fund & grow", cleanText("<b>Fund & grow</b>"))
	assert.Equal(t, "Hi", cleanText("<script>alert(1)</script>Hi"))
	assert.Equal(t, "", cleanText("   "))
}
