package ledger

import (
	"context"
	"time"

	"github.com/stake-plus/ai-gov/src/gov"
)

// Journal durably records committed mutations. A nil error means the write is
// durable; the ledger applies the mutation in memory only after that.
type Journal interface {
	SaveProposal(ctx context.Context, p gov.Proposal) error
	// SaveVote stores the vote and, when rec is non-nil, the delegate record
	// produced by the same cast, in one transaction.
	SaveVote(ctx context.Context, v gov.Vote, rec *gov.DelegateRecord) error
	SaveStatus(ctx context.Context, proposalID uint64, status gov.Status) error
	SavePreference(ctx context.Context, p gov.DelegatePreference) error
}

// Snapshot is the durable state the ledger is rebuilt from.
type Snapshot struct {
	Proposals   []gov.Proposal
	Votes       []gov.Vote
	Preferences []gov.DelegatePreference
	History     []gov.DelegateRecord
}

type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Analyzer classifies a proposal. Its category and riskScore fill in what a
// submitter leaves out; its summary and explanation are stored as is.
type Analyzer interface {
	Analyze(ctx context.Context, title, description string) (gov.Analysis, error)
}

// Publisher receives events after a mutation has been committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

const (
	EventProposalCreated  = "proposal.created"
	EventVoteCast         = "vote.cast"
	EventProposalExecuted = "proposal.executed"
	EventPreferenceSaved  = "preference.saved"
)

type Event struct {
	Type       string    `json:"type"`
	ProposalID uint64    `json:"proposalId,omitempty"`
	Title      string    `json:"title,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Actor      string    `json:"actor"`
	Support    *bool     `json:"support,omitempty"`
	Category   string    `json:"category,omitempty"`
	RiskScore  int       `json:"riskScore,omitempty"`
	At         time.Time `json:"at"`
}

type nopJournal struct{}

func (nopJournal) SaveProposal(context.Context, gov.Proposal) error              { return nil }
func (nopJournal) SaveVote(context.Context, gov.Vote, *gov.DelegateRecord) error { return nil }
func (nopJournal) SaveStatus(context.Context, uint64, gov.Status) error          { return nil }
func (nopJournal) SavePreference(context.Context, gov.DelegatePreference) error  { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
