package data

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Settings caches active rows of the settings table.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

// LoadSettings reads every active setting into a new cache.
func LoadSettings(ctx context.Context, db *gorm.DB) (*Settings, error) {
	s := &Settings{}
	if err := s.Reload(ctx, db); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Reload(ctx context.Context, db *gorm.DB) error {
	var rows []Setting
	if err := db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return err
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Name] = r.Value
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// GetSetting returns the cached value, or "" when unset.
func (s *Settings) GetSetting(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}
