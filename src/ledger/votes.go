package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/stake-plus/ai-gov/src/gov"
)

// TallyEngine records votes on proposals held by a ProposalStore. The first
// vote of a voter on a proposal is binding.
type TallyEngine struct {
	store   *ProposalStore
	journal Journal
	now     func() time.Time
}

func NewTallyEngine(store *ProposalStore, j Journal, now func() time.Time) *TallyEngine {
	if j == nil {
		j = nopJournal{}
	}
	if now == nil {
		now = time.Now
	}
	return &TallyEngine{store: store, journal: j, now: now}
}

// Ballot is one vote request.
type Ballot struct {
	ProposalID uint64
	Voter      string
	Support    bool
	Delegated  bool
	// Record is called with the cast vote while the proposal is still locked.
	// A non-nil result is journaled together with the vote.
	Record func(p gov.Proposal, v gov.Vote) *gov.DelegateRecord
}

// CastVote records a vote. It fails with NotFound, InvalidTransition when the
// proposal is not Active, or DuplicateVote when the voter already voted.
func (t *TallyEngine) CastVote(ctx context.Context, b Ballot) (gov.Vote, *gov.DelegateRecord, error) {
	voter := strings.TrimSpace(b.Voter)
	if voter == "" {
		return gov.Vote{}, nil, gov.Validationf("voter is required")
	}

	var (
		vote gov.Vote
		rec  *gov.DelegateRecord
	)
	err := t.store.withEntry(b.ProposalID, func(e *entry) error {
		if e.proposal.Status != gov.StatusActive {
			return gov.InvalidTransitionf("proposal %d is %s", b.ProposalID, e.proposal.Status)
		}
		if _, voted := e.votes[voter]; voted {
			return gov.DuplicateVotef("%s already voted on proposal %d", voter, b.ProposalID)
		}

		vote = gov.Vote{
			ProposalID: b.ProposalID,
			Voter:      voter,
			Support:    b.Support,
			Delegated:  b.Delegated,
			CastAt:     t.now().UTC().Truncate(time.Microsecond),
		}
		if b.Record != nil {
			rec = b.Record(e.proposal, vote)
		}
		if err := t.journal.SaveVote(ctx, vote, rec); err != nil {
			return gov.Collaborator("save vote", err)
		}
		e.apply(vote)
		return nil
	})
	if err != nil {
		return gov.Vote{}, nil, err
	}
	return vote, rec, nil
}

func (e *entry) apply(v gov.Vote) {
	e.votes[v.Voter] = v
	e.voters = append(e.voters, v.Voter)
	if v.Support {
		e.ayes++
	} else {
		e.nays++
	}
}

// GetTally returns counts and percentages. Both percentages are 0 when no
// votes were cast.
func (t *TallyEngine) GetTally(proposalID uint64) (gov.Tally, error) {
	var out gov.Tally
	err := t.store.withEntry(proposalID, func(e *entry) error {
		out = computeTally(proposalID, e.ayes, e.nays)
		return nil
	})
	return out, err
}

func computeTally(id uint64, ayes, nays int) gov.Tally {
	tally := gov.Tally{ProposalID: id, For: ayes, Against: nays}
	if total := ayes + nays; total > 0 {
		tally.ForPct = float64(ayes) * 100 / float64(total)
		tally.AgainstPct = 100 - tally.ForPct
	}
	return tally
}

// Votes lists a proposal's votes by cast time. Votes cast in the same
// instant are ordered by voter, so the listing is identical after a restore.
func (t *TallyEngine) Votes(proposalID uint64) ([]gov.Vote, error) {
	var out []gov.Vote
	err := t.store.withEntry(proposalID, func(e *entry) error {
		out = make([]gov.Vote, 0, len(e.voters))
		for _, voter := range e.voters {
			out = append(out, e.votes[voter])
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CastAt.Equal(out[j].CastAt) {
			return out[i].CastAt.Before(out[j].CastAt)
		}
		return out[i].Voter < out[j].Voter
	})
	return out, err
}

// VoteOf returns the voter's vote, if any.
func (t *TallyEngine) VoteOf(proposalID uint64, voter string) (gov.Vote, bool, error) {
	var (
		v  gov.Vote
		ok bool
	)
	err := t.store.withEntry(proposalID, func(e *entry) error {
		v, ok = e.votes[voter]
		return nil
	})
	return v, ok, err
}

// restore replays a persisted vote. Status is not checked: votes on executed
// proposals were cast while they were active.
func (t *TallyEngine) restore(v gov.Vote) error {
	return t.store.withEntry(v.ProposalID, func(e *entry) error {
		if _, voted := e.votes[v.Voter]; voted {
			return gov.DuplicateVotef("%s restored twice on proposal %d", v.Voter, v.ProposalID)
		}
		e.apply(v)
		return nil
	})
}
