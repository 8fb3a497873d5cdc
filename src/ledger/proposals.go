package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stake-plus/ai-gov/src/gov"
)

// entry owns one proposal and its vote set. Every mutation of either goes
// through mu, so proposals are serialized individually and never globally.
type entry struct {
	mu       sync.Mutex
	proposal gov.Proposal
	votes    map[string]gov.Vote
	voters   []string
	ayes     int
	nays     int
}

func newEntry(p gov.Proposal) *entry {
	return &entry{proposal: p, votes: make(map[string]gov.Vote)}
}

// Filter selects proposals. Zero fields match everything.
type Filter struct {
	Status   gov.Status
	Category gov.Category
	Band     gov.RiskBand
	Offset   int
	Limit    int
}

func (f Filter) match(p gov.Proposal) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Band != "" && !f.Band.Contains(p.RiskScore) {
		return false
	}
	return true
}

// ProposalStore holds proposals in creation order.
type ProposalStore struct {
	// createMu serializes id assignment and the proposal write. mu is only
	// held for map and order updates, never across journal I/O.
	createMu sync.Mutex
	mu       sync.RWMutex
	entries  map[uint64]*entry
	order    []uint64
	lastID   uint64
	journal  Journal
	now      func() time.Time
}

func NewProposalStore(j Journal, now func() time.Time) *ProposalStore {
	if j == nil {
		j = nopJournal{}
	}
	if now == nil {
		now = time.Now
	}
	return &ProposalStore{
		entries: make(map[uint64]*entry),
		journal: j,
		now:     now,
	}
}

// NewProposal carries the creation inputs of a proposal.
type NewProposal struct {
	Title       string
	Description string
	Category    gov.Category
	RiskScore   int
	Summary     string
	Explanation string
	Proposer    string
}

func (n NewProposal) validate() error {
	switch {
	case strings.TrimSpace(n.Title) == "":
		return gov.Validationf("title is required")
	case strings.TrimSpace(n.Description) == "":
		return gov.Validationf("description is required")
	case strings.TrimSpace(n.Proposer) == "":
		return gov.Validationf("proposer is required")
	case n.RiskScore < gov.MinRiskScore || n.RiskScore > gov.MaxRiskScore:
		return gov.Validationf("riskScore %d outside [%d,%d]", n.RiskScore, gov.MinRiskScore, gov.MaxRiskScore)
	case !n.Category.Valid():
		return gov.Validationf("unknown category %q", n.Category)
	}
	return nil
}

// Create validates n, journals the proposal and assigns the next ordinal id.
func (s *ProposalStore) Create(ctx context.Context, n NewProposal) (gov.Proposal, error) {
	if err := n.validate(); err != nil {
		return gov.Proposal{}, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.mu.RLock()
	id := s.lastID + 1
	s.mu.RUnlock()

	p := gov.Proposal{
		ID:          id,
		Title:       strings.TrimSpace(n.Title),
		Description: strings.TrimSpace(n.Description),
		Category:    n.Category,
		RiskScore:   n.RiskScore,
		Summary:     strings.TrimSpace(n.Summary),
		Explanation: strings.TrimSpace(n.Explanation),
		Status:      gov.StatusActive,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		Proposer:    n.Proposer,
	}
	if err := s.journal.SaveProposal(ctx, p); err != nil {
		return gov.Proposal{}, gov.Collaborator("save proposal", err)
	}

	s.mu.Lock()
	s.lastID = p.ID
	s.entries[p.ID] = newEntry(p)
	s.order = append(s.order, p.ID)
	s.mu.Unlock()
	return p, nil
}

func (s *ProposalStore) lookup(id uint64) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, gov.NotFoundf("proposal %d", id)
	}
	return e, nil
}

// withEntry runs fn while holding the proposal's lock.
func (s *ProposalStore) withEntry(id uint64, fn func(e *entry) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e)
}

func (s *ProposalStore) Get(id uint64) (gov.Proposal, error) {
	var p gov.Proposal
	err := s.withEntry(id, func(e *entry) error {
		p = e.proposal
		return nil
	})
	return p, err
}

// List returns matching proposals in creation order.
func (s *ProposalStore) List(f Filter) []gov.Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gov.Proposal, 0)
	skipped := 0
	for _, id := range s.order {
		e := s.entries[id]
		e.mu.Lock()
		p := e.proposal
		e.mu.Unlock()

		if !f.match(p) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Count returns how many proposals match f, ignoring Offset and Limit.
func (s *ProposalStore) Count(f Filter) int {
	f.Offset, f.Limit = 0, 0
	return len(s.List(f))
}

// MarkExecuted moves an Active proposal to Executed.
func (s *ProposalStore) MarkExecuted(ctx context.Context, id uint64) (gov.Proposal, error) {
	var out gov.Proposal
	err := s.withEntry(id, func(e *entry) error {
		if e.proposal.Status != gov.StatusActive {
			return gov.InvalidTransitionf("proposal %d is %s", id, e.proposal.Status)
		}
		if err := s.journal.SaveStatus(ctx, id, gov.StatusExecuted); err != nil {
			return gov.Collaborator("save status", err)
		}
		e.proposal.Status = gov.StatusExecuted
		out = e.proposal
		return nil
	})
	return out, err
}

// restore inserts an already persisted proposal without journaling it.
func (s *ProposalStore) restore(p gov.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[p.ID]; dup {
		return gov.Validationf("proposal %d restored twice", p.ID)
	}
	if p.ID <= s.lastID {
		return gov.Validationf("proposal %d restored out of order", p.ID)
	}
	s.lastID = p.ID
	s.entries[p.ID] = newEntry(p)
	s.order = append(s.order, p.ID)
	return nil
}
