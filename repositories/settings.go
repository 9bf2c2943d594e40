package repositories

import (
	"github.com/dgraph-io/badger/v4"
)

const darkModeKey = "settings:dark_mode"

type ISettingsRepository interface {
	DarkMode() (bool, error)
	SetDarkMode(enabled bool) error
}

// SettingsRepository persists display settings next to the message cache.
type SettingsRepository struct {
	db *badger.DB
}

func NewSettingsRepository(db *badger.DB) SettingsRepository {
	return SettingsRepository{db: db}
}

// DarkMode returns the persisted flag, defaulting to false when unset.
func (s SettingsRepository) DarkMode() (bool, error) {
	var enabled bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(darkModeKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			enabled = len(value) == 1 && value[0] == 1
			return nil
		})
	})
	return enabled, err
}

func (s SettingsRepository) SetDarkMode(enabled bool) error {
	value := []byte{0}
	if enabled {
		value[0] = 1
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(darkModeKey), value)
	})
}
