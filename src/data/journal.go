package data

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/ai-gov/src/gov"
	"github.com/stake-plus/ai-gov/src/ledger"
)

// Journal persists ledger mutations through gorm. It satisfies both
// ledger.Journal and ledger.Loader.
type Journal struct {
	db *gorm.DB
}

func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) Migrate(ctx context.Context) error {
	return j.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (j *Journal) SaveProposal(ctx context.Context, p gov.Proposal) error {
	row := proposalRow(p)
	return j.db.WithContext(ctx).Create(&row).Error
}

func (j *Journal) SaveVote(ctx context.Context, v gov.Vote, rec *gov.DelegateRecord) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := voteRow(v)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		hist := recordRow(*rec)
		return tx.Create(&hist).Error
	})
}

func (j *Journal) SaveStatus(ctx context.Context, proposalID uint64, status gov.Status) error {
	res := j.db.WithContext(ctx).Model(&ProposalRow{}).
		Where("id = ?", proposalID).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("proposal %d not stored", proposalID)
	}
	return nil
}

func (j *Journal) SavePreference(ctx context.Context, p gov.DelegatePreference) error {
	row, err := preferenceRow(p)
	if err != nil {
		return err
	}
	return j.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (j *Journal) Load(ctx context.Context) (ledger.Snapshot, error) {
	db := j.db.WithContext(ctx)
	var snap ledger.Snapshot

	var proposals []ProposalRow
	if err := db.Order("id").Find(&proposals).Error; err != nil {
		return snap, fmt.Errorf("load proposals: %w", err)
	}
	for _, r := range proposals {
		snap.Proposals = append(snap.Proposals, r.proposal())
	}

	var votes []VoteRow
	if err := db.Order("proposal_id").Order("cast_at").Order("voter").Find(&votes).Error; err != nil {
		return snap, fmt.Errorf("load votes: %w", err)
	}
	for _, r := range votes {
		snap.Votes = append(snap.Votes, r.vote())
	}

	var prefs []PreferenceRow
	if err := db.Order("owner").Find(&prefs).Error; err != nil {
		return snap, fmt.Errorf("load preferences: %w", err)
	}
	for _, r := range prefs {
		p, err := r.preference()
		if err != nil {
			return snap, fmt.Errorf("decode preference %s: %w", r.Owner, err)
		}
		snap.Preferences = append(snap.Preferences, p)
	}

	var history []DelegateRecordRow
	if err := db.Order("created_at").Order("proposal_id").Order("id").Find(&history).Error; err != nil {
		return snap, fmt.Errorf("load delegate history: %w", err)
	}
	for _, r := range history {
		snap.History = append(snap.History, r.record())
	}
	return snap, nil
}

var (
	_ ledger.Journal = (*Journal)(nil)
	_ ledger.Loader  = (*Journal)(nil)
)
