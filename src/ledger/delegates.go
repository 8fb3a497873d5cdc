package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stake-plus/ai-gov/src/gov"
)

// DelegateRegistry keeps one preference per owner and the history of how
// each owner's votes compared with the policy's recommendation.
type DelegateRegistry struct {
	mu      sync.RWMutex
	prefs   map[string]gov.DelegatePreference
	history map[string][]gov.DelegateRecord
	// owners serializes saves per owner so journal I/O for one owner never
	// blocks another owner's reads or writes.
	owners  map[string]*sync.Mutex
	journal Journal
	now     func() time.Time
}

func NewDelegateRegistry(j Journal, now func() time.Time) *DelegateRegistry {
	if j == nil {
		j = nopJournal{}
	}
	if now == nil {
		now = time.Now
	}
	return &DelegateRegistry{
		prefs:   make(map[string]gov.DelegatePreference),
		history: make(map[string][]gov.DelegateRecord),
		owners:  make(map[string]*sync.Mutex),
		journal: j,
		now:     now,
	}
}

// Save validates p and overwrites the owner's previous preference.
func (r *DelegateRegistry) Save(ctx context.Context, p gov.DelegatePreference) (gov.DelegatePreference, error) {
	p = p.Clone()
	p.Owner = strings.TrimSpace(p.Owner)
	if err := p.Validate(); err != nil {
		return gov.DelegatePreference{}, err
	}
	if p.CategoryWeights == nil {
		p.CategoryWeights = map[gov.Category]int{}
	}
	p.UpdatedAt = r.now().UTC().Truncate(time.Microsecond)

	lock := r.ownerLock(p.Owner)
	lock.Lock()
	defer lock.Unlock()
	if err := r.journal.SavePreference(ctx, p); err != nil {
		return gov.DelegatePreference{}, gov.Collaborator("save preference", err)
	}

	r.mu.Lock()
	r.prefs[p.Owner] = p
	r.mu.Unlock()
	return p.Clone(), nil
}

func (r *DelegateRegistry) ownerLock(owner string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.owners[owner]
	if !ok {
		l = new(sync.Mutex)
		r.owners[owner] = l
	}
	return l
}

func (r *DelegateRegistry) Get(owner string) (gov.DelegatePreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[owner]
	if !ok {
		return gov.DelegatePreference{}, gov.NotFoundf("delegate preference for %s", owner)
	}
	return p.Clone(), nil
}

// lookup is Get without the NotFound error.
func (r *DelegateRegistry) lookup(owner string) (gov.DelegatePreference, bool) {
	p, err := r.Get(owner)
	return p, err == nil
}

func (r *DelegateRegistry) History(owner string) []gov.DelegateRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append(make([]gov.DelegateRecord, 0, len(r.history[owner])), r.history[owner]...)
}

// MatchRate is the percentage of the owner's votes that matched the
// recommendation, 0 when there is no history.
func (r *DelegateRegistry) MatchRate(owner string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.history[owner]
	if len(records) == 0 {
		return 0
	}
	matched := 0
	for _, rec := range records {
		if rec.Match {
			matched++
		}
	}
	return float64(matched) * 100 / float64(len(records))
}

// append inserts rec keeping the owner's history ordered by creation time,
// then proposal id, whatever order records arrive in.
func (r *DelegateRegistry) append(rec gov.DelegateRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.history[rec.Owner]
	i := sort.Search(len(records), func(i int) bool {
		return historyLess(rec, records[i])
	})
	records = append(records, gov.DelegateRecord{})
	copy(records[i+1:], records[i:])
	records[i] = rec
	r.history[rec.Owner] = records
}

func historyLess(a, b gov.DelegateRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ProposalID < b.ProposalID
}

func (r *DelegateRegistry) restorePreference(p gov.DelegatePreference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[p.Owner] = p.Clone()
}
