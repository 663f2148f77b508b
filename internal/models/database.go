package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
	now   func() time.Time
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store, now: time.Now}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// CreateAction validates and inserts a new action, assigning its ID
func (db *Database) CreateAction(action *Action) error {
	action.ApplyDefaults()
	if err := action.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}

	action.CreatedAt = db.now()
	action.UpdatedAt = action.CreatedAt
	return db.store.Insert(bolthold.NextSequence(), action)
}

// GetActionByID retrieves an action by ID
func (db *Database) GetActionByID(id uint64) (*Action, error) {
	var action Action
	err := db.store.Get(id, &action)
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// GetDueActions retrieves incomplete actions due on or before today,
// earliest due first, ties in insertion order
func (db *Database) GetDueActions(today time.Time) ([]*Action, error) {
	var actions []*Action
	err := db.store.Find(&actions,
		bolthold.Where("Completed").Eq(false).
			And("DueDate").Le(Date(today)))
	if err != nil {
		return nil, err
	}

	sortByDueDate(actions)
	return actions, nil
}

// GetUpcomingActions retrieves up to limit incomplete actions of a kind
// regardless of due date, earliest due first
func (db *Database) GetUpcomingActions(kind Kind, limit int) ([]*Action, error) {
	var actions []*Action
	err := db.store.Find(&actions,
		bolthold.Where("Completed").Eq(false).
			And("Kind").Eq(kind))
	if err != nil {
		return nil, err
	}

	sortByDueDate(actions)
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}
	return actions, nil
}

// GetPendingActions retrieves all incomplete actions, earliest due first
func (db *Database) GetPendingActions() ([]*Action, error) {
	var actions []*Action
	err := db.store.Find(&actions, bolthold.Where("Completed").Eq(false))
	if err != nil {
		return nil, err
	}

	sortByDueDate(actions)
	return actions, nil
}

// GetAllActions retrieves every action including completed history
func (db *Database) GetAllActions() ([]*Action, error) {
	var actions []*Action
	err := db.store.Find(&actions, nil)
	if err != nil {
		return nil, err
	}

	sortByDueDate(actions)
	return actions, nil
}

// CountActions returns the number of stored actions
func (db *Database) CountActions() (int, error) {
	actions, err := db.GetAllActions()
	if err != nil {
		return 0, err
	}
	return len(actions), nil
}

// SaveExecution persists an executed action and its optional successor in
// one transaction. Either both are written or neither is.
func (db *Database) SaveExecution(action *Action, successor *Action) error {
	now := db.now()

	if successor != nil {
		successor.ApplyDefaults()
		if err := successor.Validate(); err != nil {
			return fmt.Errorf("invalid successor: %w", err)
		}
	}

	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		action.UpdatedAt = now
		if err := db.store.TxUpdate(tx, action.ID, action); err != nil {
			return fmt.Errorf("failed to update action %d: %w", action.ID, err)
		}

		if successor == nil {
			return nil
		}

		successor.CreatedAt = now
		successor.UpdatedAt = now
		if err := db.store.TxInsert(tx, bolthold.NextSequence(), successor); err != nil {
			return fmt.Errorf("failed to insert successor: %w", err)
		}
		return nil
	})
}

func sortByDueDate(actions []*Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		if !actions[i].DueDate.Equal(actions[j].DueDate) {
			return actions[i].DueDate.Before(actions[j].DueDate)
		}
		return actions[i].ID < actions[j].ID
	})
}
