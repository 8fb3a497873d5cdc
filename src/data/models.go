package data

import (
	"encoding/json"
	"time"

	"github.com/stake-plus/ai-gov/src/gov"
)

// ProposalRow is the durable form of gov.Proposal. IDs are assigned by the
// ledger, not the database.
type ProposalRow struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement:false"`
	Title       string    `gorm:"size:256;not null"`
	Description string    `gorm:"type:text;not null"`
	Category    string    `gorm:"size:32;index"`
	RiskScore   int       `gorm:"not null"`
	Summary     string    `gorm:"type:text"`
	Explanation string    `gorm:"type:text"`
	Status      string    `gorm:"size:16;index;not null"`
	Proposer    string    `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"precision:6"`
}

func (ProposalRow) TableName() string { return "proposals" }

// VoteRow keys on (proposal_id, voter) so a second vote cannot be stored.
type VoteRow struct {
	ProposalID uint64    `gorm:"primaryKey;autoIncrement:false"`
	Voter      string    `gorm:"primaryKey;size:128"`
	Support    bool      `gorm:"not null"`
	Delegated  bool      `gorm:"not null;default:false"`
	CastAt     time.Time `gorm:"precision:6;index"`
}

func (VoteRow) TableName() string { return "votes" }

type PreferenceRow struct {
	Owner          string    `gorm:"primaryKey;size:128"`
	Active         bool      `gorm:"not null"`
	RiskTolerance  int       `gorm:"not null"`
	Weights        string    `gorm:"type:text"`
	VotingStrategy string    `gorm:"size:16;not null"`
	CustomRules    string    `gorm:"type:text"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false;precision:6"`
}

func (PreferenceRow) TableName() string { return "delegate_preferences" }

type DelegateRecordRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Owner         string `gorm:"size:128;index"`
	ProposalID    uint64 `gorm:"index"`
	ProposalTitle string `gorm:"size:256"`
	Recommended   bool
	Confidence    float64
	Support       bool
	Delegated     bool
	Match         bool      `gorm:"column:matched"`
	CreatedAt     time.Time `gorm:"precision:6"`
}

func (DelegateRecordRow) TableName() string { return "delegate_history" }

// Setting is a name/value override read at startup.
type Setting struct {
	ID     uint32 `gorm:"primaryKey"`
	Name   string `gorm:"size:64;uniqueIndex;not null"`
	Value  string `gorm:"type:text;not null"`
	Active bool   `gorm:"not null;default:true"`
}

func (Setting) TableName() string { return "settings" }

// Models lists every table AutoMigrate manages.
func Models() []any {
	return []any{&ProposalRow{}, &VoteRow{}, &PreferenceRow{}, &DelegateRecordRow{}, &Setting{}}
}

func proposalRow(p gov.Proposal) ProposalRow {
	return ProposalRow{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    string(p.Category),
		RiskScore:   p.RiskScore,
		Summary:     p.Summary,
		Explanation: p.Explanation,
		Status:      string(p.Status),
		Proposer:    p.Proposer,
		CreatedAt:   p.CreatedAt,
	}
}

func (r ProposalRow) proposal() gov.Proposal {
	return gov.Proposal{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    gov.Category(r.Category),
		RiskScore:   r.RiskScore,
		Summary:     r.Summary,
		Explanation: r.Explanation,
		Status:      gov.Status(r.Status),
		Proposer:    r.Proposer,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func voteRow(v gov.Vote) VoteRow {
	return VoteRow{ProposalID: v.ProposalID, Voter: v.Voter, Support: v.Support, Delegated: v.Delegated, CastAt: v.CastAt}
}

func (r VoteRow) vote() gov.Vote {
	return gov.Vote{ProposalID: r.ProposalID, Voter: r.Voter, Support: r.Support, Delegated: r.Delegated, CastAt: r.CastAt.UTC()}
}

func preferenceRow(p gov.DelegatePreference) (PreferenceRow, error) {
	weights, err := json.Marshal(p.CategoryWeights)
	if err != nil {
		return PreferenceRow{}, err
	}
	return PreferenceRow{
		Owner:          p.Owner,
		Active:         p.Active,
		RiskTolerance:  p.RiskTolerance,
		Weights:        string(weights),
		VotingStrategy: string(p.VotingStrategy),
		CustomRules:    p.CustomRules,
		UpdatedAt:      p.UpdatedAt,
	}, nil
}

func (r PreferenceRow) preference() (gov.DelegatePreference, error) {
	weights := map[gov.Category]int{}
	if r.Weights != "" && r.Weights != "null" {
		if err := json.Unmarshal([]byte(r.Weights), &weights); err != nil {
			return gov.DelegatePreference{}, err
		}
	}
	return gov.DelegatePreference{
		Owner:           r.Owner,
		Active:          r.Active,
		RiskTolerance:   r.RiskTolerance,
		CategoryWeights: weights,
		VotingStrategy:  gov.Strategy(r.VotingStrategy),
		CustomRules:     r.CustomRules,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}, nil
}

func recordRow(r gov.DelegateRecord) DelegateRecordRow {
	return DelegateRecordRow{
		Owner:         r.Owner,
		ProposalID:    r.ProposalID,
		ProposalTitle: r.ProposalTitle,
		Recommended:   r.Recommended,
		Confidence:    r.Confidence,
		Support:       r.Support,
		Delegated:     r.Delegated,
		Match:         r.Match,
		CreatedAt:     r.CreatedAt,
	}
}

func (r DelegateRecordRow) record() gov.DelegateRecord {
	return gov.DelegateRecord{
		Owner:         r.Owner,
		ProposalID:    r.ProposalID,
		ProposalTitle: r.ProposalTitle,
		Recommended:   r.Recommended,
		Confidence:    r.Confidence,
		Support:       r.Support,
		Delegated:     r.Delegated,
		Match:         r.Match,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
