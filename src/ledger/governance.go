package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stake-plus/ai-gov/src/gov"
	"github.com/stake-plus/ai-gov/src/gov/policy"
)

// Fallback analysis used when the analyzer fails.
const (
	fallbackRiskScore = 5
	fallbackCategory  = gov.CategoryGovernance
)

type Options struct {
	Journal   Journal
	Publisher Publisher
	Analyzer  Analyzer
	Logger    *zap.Logger
	Now       func() time.Time
}

// Governance is the single entry point used by the API: submit, vote, tally,
// recommend, list and execute, plus delegate preference management.
type Governance struct {
	proposals *ProposalStore
	tally     *TallyEngine
	delegates *DelegateRegistry
	analyzer  Analyzer
	events    Publisher
	log       *zap.Logger
	now       func() time.Time
}

func New(opts Options) *Governance {
	if opts.Journal == nil {
		opts.Journal = nopJournal{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	store := NewProposalStore(opts.Journal, opts.Now)
	return &Governance{
		proposals: store,
		tally:     NewTallyEngine(store, opts.Journal, opts.Now),
		delegates: NewDelegateRegistry(opts.Journal, opts.Now),
		analyzer:  opts.Analyzer,
		events:    opts.Publisher,
		log:       opts.Logger.Named("ledger"),
		now:       opts.Now,
	}
}

// Submission is a proposal as sent by a proposer. Category and RiskScore may
// be left zero, in which case the analyzer supplies them. The analyzer's
// summary and explanation are always kept on the proposal.
type Submission struct {
	Title       string
	Description string
	Category    gov.Category
	RiskScore   int
	Proposer    string
}

func (g *Governance) Submit(ctx context.Context, s Submission) (gov.Proposal, error) {
	if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Description) == "" {
		return gov.Proposal{}, gov.Validationf("title and description are required")
	}
	a := g.analyze(ctx, s.Title, s.Description)
	if s.Category == "" {
		s.Category = a.Category
	}
	if s.RiskScore == 0 {
		s.RiskScore = a.RiskScore
	}

	p, err := g.proposals.Create(ctx, NewProposal{
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		RiskScore:   s.RiskScore,
		Summary:     a.Summary,
		Explanation: a.Explanation,
		Proposer:    s.Proposer,
	})
	if err != nil {
		return gov.Proposal{}, err
	}

	g.log.Info("proposal created",
		zap.Uint64("proposal", p.ID),
		zap.String("proposer", p.Proposer),
		zap.String("category", string(p.Category)),
		zap.Int("risk", p.RiskScore))
	g.publish(ctx, Event{
		Type:       EventProposalCreated,
		ProposalID: p.ID,
		Title:      p.Title,
		Summary:    p.Summary,
		Actor:      p.Proposer,
		Category:   string(p.Category),
		RiskScore:  p.RiskScore,
		At:         p.CreatedAt,
	})
	return p, nil
}

func (g *Governance) analyze(ctx context.Context, title, description string) gov.Analysis {
	fallback := gov.Analysis{Category: fallbackCategory, RiskScore: fallbackRiskScore}
	if g.analyzer == nil {
		return fallback
	}
	a, err := g.analyzer.Analyze(ctx, title, description)
	if err != nil {
		g.log.Warn("proposal analysis failed, using fallback", zap.Error(err))
		return fallback
	}
	if !a.Category.Valid() {
		a.Category = fallback.Category
	}
	if a.RiskScore < gov.MinRiskScore || a.RiskScore > gov.MaxRiskScore {
		a.RiskScore = fallback.RiskScore
	}
	return a
}

// Vote casts the voter's own choice.
func (g *Governance) Vote(ctx context.Context, proposalID uint64, voter string, support bool) (gov.Vote, error) {
	return g.cast(ctx, Ballot{ProposalID: proposalID, Voter: voter, Support: support})
}

// VoteAsDelegate casts the vote the voter's active delegate policy recommends.
func (g *Governance) VoteAsDelegate(ctx context.Context, proposalID uint64, voter string) (gov.Vote, policy.Recommendation, error) {
	voter = strings.TrimSpace(voter)
	pref, err := g.delegates.Get(voter)
	if err != nil {
		return gov.Vote{}, policy.Recommendation{}, err
	}
	if !pref.Active {
		return gov.Vote{}, policy.Recommendation{}, gov.Validationf("delegate for %s is not active", voter)
	}
	p, err := g.proposals.Get(proposalID)
	if err != nil {
		return gov.Vote{}, policy.Recommendation{}, err
	}

	// The record is built from the same preference the vote was decided with,
	// even if the owner saves a new one concurrently.
	rec := policy.Recommend(pref, p)
	v, err := g.cast(ctx, Ballot{
		ProposalID: proposalID,
		Voter:      voter,
		Support:    rec.Support,
		Delegated:  true,
		Record:     recordWith(pref),
	})
	if err != nil {
		return gov.Vote{}, policy.Recommendation{}, err
	}
	return v, rec, nil
}

func (g *Governance) cast(ctx context.Context, b Ballot) (gov.Vote, error) {
	if b.Record == nil {
		b.Record = g.recorder(b.Voter)
	}
	v, rec, err := g.tally.CastVote(ctx, b)
	if err != nil {
		return gov.Vote{}, err
	}
	if rec != nil {
		g.delegates.append(*rec)
	}

	g.log.Info("vote cast",
		zap.Uint64("proposal", v.ProposalID),
		zap.String("voter", v.Voter),
		zap.Bool("support", v.Support),
		zap.Bool("delegated", v.Delegated))
	support := v.Support
	g.publish(ctx, Event{
		Type:       EventVoteCast,
		ProposalID: v.ProposalID,
		Actor:      v.Voter,
		Support:    &support,
		At:         v.CastAt,
	})
	return v, nil
}

// recorder compares a vote with the voter's delegate policy, if they have one.
func (g *Governance) recorder(voter string) func(gov.Proposal, gov.Vote) *gov.DelegateRecord {
	pref, ok := g.delegates.lookup(strings.TrimSpace(voter))
	if !ok {
		return nil
	}
	return recordWith(pref)
}

func recordWith(pref gov.DelegatePreference) func(gov.Proposal, gov.Vote) *gov.DelegateRecord {
	return func(p gov.Proposal, v gov.Vote) *gov.DelegateRecord {
		rec := policy.Recommend(pref, p)
		return &gov.DelegateRecord{
			Owner:         v.Voter,
			ProposalID:    p.ID,
			ProposalTitle: p.Title,
			Recommended:   rec.Support,
			Confidence:    rec.Confidence,
			Support:       v.Support,
			Delegated:     v.Delegated,
			Match:         rec.Support == v.Support,
			CreatedAt:     v.CastAt,
		}
	}
}

func (g *Governance) Tally(proposalID uint64) (gov.Tally, error) {
	return g.tally.GetTally(proposalID)
}

func (g *Governance) Votes(proposalID uint64) ([]gov.Vote, error) {
	return g.tally.Votes(proposalID)
}

// Recommend is read-only and depends on its arguments alone.
func (g *Governance) Recommend(pref gov.DelegatePreference, p gov.Proposal) policy.Recommendation {
	return policy.Recommend(pref, p)
}

// RecommendFor evaluates the owner's stored preference against a proposal.
func (g *Governance) RecommendFor(owner string, proposalID uint64) (policy.Recommendation, error) {
	pref, err := g.delegates.Get(owner)
	if err != nil {
		return policy.Recommendation{}, err
	}
	p, err := g.proposals.Get(proposalID)
	if err != nil {
		return policy.Recommendation{}, err
	}
	return policy.Recommend(pref, p), nil
}

func (g *Governance) List(f Filter) []gov.Proposal { return g.proposals.List(f) }

func (g *Governance) Count(f Filter) int { return g.proposals.Count(f) }

func (g *Governance) Get(proposalID uint64) (gov.Proposal, error) {
	return g.proposals.Get(proposalID)
}

// Execute is the external execution trigger.
func (g *Governance) Execute(ctx context.Context, proposalID uint64, by string) (gov.Proposal, error) {
	p, err := g.proposals.MarkExecuted(ctx, proposalID)
	if err != nil {
		return gov.Proposal{}, err
	}
	g.log.Info("proposal executed", zap.Uint64("proposal", p.ID), zap.String("by", by))
	g.publish(ctx, Event{
		Type:       EventProposalExecuted,
		ProposalID: p.ID,
		Title:      p.Title,
		Summary:    p.Summary,
		Actor:      by,
		Category:   string(p.Category),
		RiskScore:  p.RiskScore,
		At:         g.now().UTC(),
	})
	return p, nil
}

func (g *Governance) SavePreference(ctx context.Context, p gov.DelegatePreference) (gov.DelegatePreference, error) {
	saved, err := g.delegates.Save(ctx, p)
	if err != nil {
		return gov.DelegatePreference{}, err
	}
	g.publish(ctx, Event{Type: EventPreferenceSaved, Actor: saved.Owner, At: saved.UpdatedAt})
	return saved, nil
}

func (g *Governance) Preference(owner string) (gov.DelegatePreference, error) {
	return g.delegates.Get(owner)
}

func (g *Governance) History(owner string) []gov.DelegateRecord {
	return g.delegates.History(owner)
}

func (g *Governance) MatchRate(owner string) float64 {
	return g.delegates.MatchRate(owner)
}

// publish never fails the caller: the mutation is already committed.
func (g *Governance) publish(ctx context.Context, e Event) {
	if err := g.events.Publish(context.WithoutCancel(ctx), e); err != nil {
		g.log.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}

// Restore rebuilds in-memory state from durable storage. It must run before
// the ledger serves requests.
func (g *Governance) Restore(ctx context.Context, l Loader) error {
	snap, err := l.Load(ctx)
	if err != nil {
		return gov.Collaborator("load snapshot", err)
	}

	sort.Slice(snap.Proposals, func(i, j int) bool { return snap.Proposals[i].ID < snap.Proposals[j].ID })
	for _, p := range snap.Proposals {
		if err := g.proposals.restore(p); err != nil {
			return err
		}
	}
	for _, v := range snap.Votes {
		if err := g.tally.restore(v); err != nil {
			return err
		}
	}
	for _, p := range snap.Preferences {
		g.delegates.restorePreference(p)
	}
	for _, rec := range snap.History {
		g.delegates.append(rec)
	}

	g.log.Info("ledger restored",
		zap.Int("proposals", len(snap.Proposals)),
		zap.Int("votes", len(snap.Votes)),
		zap.Int("preferences", len(snap.Preferences)))
	return nil
}
