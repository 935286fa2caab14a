// Package storage persists a pool.Manager's pools and user ledgers to an
// embedded bbolt database: one bounded bucket for pool objects (config,
// program registry, balances) and one unbounded per-pool bucket for the
// user-share side table, matching the engine's "bounded primary object,
// unbounded user set" layout.
package storage

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/bockstake/stakepool/pool"
)

var poolsBucket = []byte("pools")

func usersBucketName(poolID string) []byte {
	return []byte("users/" + poolID)
}

// Store is a bbolt-backed persistence layer for pool.Manager.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and ensures
// the top-level pools bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(poolsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init pools bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// poolRecord is the on-disk shape of a pool.Pool, minus its UserShares
// (which live in the side-table bucket instead).
type poolRecord struct {
	ID                string                    `json:"id"`
	StakeTokenType    string                    `json:"stake_token_type"`
	UnlockCountdownMs int64                     `json:"unlock_countdown_ms"`
	Active            bool                      `json:"active"`
	TotalActiveShares uint64                    `json:"total_active_shares"`
	StakeBalance      uint64                    `json:"stake_balance"`
	NextIncentiveID   uint64                    `json:"next_incentive_id"`
	Programs          []*pool.IncentiveProgram `json:"programs"`
}

// SavePool writes p's bounded fields into the pools bucket, keyed by p.ID.
// User ledgers are not touched; call SaveUserLedger per modified user.
// NextIncentiveID is persisted verbatim -- RemoveIncentiveProgram can
// shrink Programs without shrinking the counter, so len(Programs) is
// never a safe substitute for it on reload.
func (s *Store) SavePool(p *pool.Pool) error {
	rec := poolRecord{
		ID:                p.ID,
		StakeTokenType:    p.StakeTokenType,
		UnlockCountdownMs: p.UnlockCountdownMs,
		Active:            p.Active,
		TotalActiveShares: p.TotalActiveShares,
		StakeBalance:      p.StakeBalance,
		NextIncentiveID:   p.NextIncentiveID(),
		Programs:          p.Programs,
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: marshal pool %s: %w", p.ID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(poolsBucket)
		if _, err := tx.CreateBucketIfNotExists(usersBucketName(p.ID)); err != nil {
			return err
		}
		return b.Put([]byte(p.ID), buf)
	})
}

// LoadPoolRecord reads back a pool's bounded fields, without any user
// ledgers attached. Returns (nil, nil) if no such pool exists.
func (s *Store) LoadPoolRecord(poolID string) (*poolRecord, error) {
	var rec *poolRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(poolsBucket)
		raw := b.Get([]byte(poolID))
		if raw == nil {
			return nil
		}
		rec = &poolRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load pool %s: %w", poolID, err)
	}
	return rec, nil
}

// ListPoolIDs returns every pool id known to the store.
func (s *Store) ListPoolIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(poolsBucket)
		return b.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list pools: %w", err)
	}
	return ids, nil
}

// SaveUserLedger writes one user's ledger into poolID's side-table bucket.
func (s *Store) SaveUserLedger(poolID string, ledger *pool.UserShareLedger) error {
	buf, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("storage: marshal ledger %s/%s: %w", poolID, ledger.User, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(usersBucketName(poolID))
		if err != nil {
			return err
		}
		return b.Put([]byte(ledger.User), buf)
	})
}

// DeleteUserLedger removes a user's ledger, matching the engine's "destroy
// on total_shares == 0" lifecycle.
func (s *Store) DeleteUserLedger(poolID, user string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucketName(poolID))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(user))
	})
}

// LoadUserLedger reads one user's ledger back. Returns (nil, nil) if absent.
func (s *Store) LoadUserLedger(poolID, user string) (*pool.UserShareLedger, error) {
	var ledger *pool.UserShareLedger
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucketName(poolID))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(user))
		if raw == nil {
			return nil
		}
		ledger = &pool.UserShareLedger{}
		return json.Unmarshal(raw, ledger)
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load ledger %s/%s: %w", poolID, user, err)
	}
	return ledger, nil
}

// Hydrate rebuilds every persisted pool and its user ledgers into m, for
// use at process startup before serving any traffic. Pools already
// present in m are left untouched.
func (s *Store) Hydrate(m *pool.Manager) error {
	ids, err := s.ListPoolIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := m.GetPool(id); err == nil {
			continue
		}
		rec, err := s.LoadPoolRecord(id)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		p, _, err := pool.NewPool(rec.ID, rec.StakeTokenType, rec.UnlockCountdownMs)
		if err != nil {
			return fmt.Errorf("storage: rehydrate pool %s: %w", id, err)
		}
		p.Active = rec.Active
		p.TotalActiveShares = rec.TotalActiveShares
		p.StakeBalance = rec.StakeBalance
		p.Programs = rec.Programs
		p.RehydrateFromStorage(rec.NextIncentiveID)

		ledgers, err := s.LoadAllUserLedgers(id)
		if err != nil {
			return err
		}
		p.UserShares = ledgers

		m.AttachPool(p)
	}
	return nil
}

// LoadAllUserLedgers reads every ledger in a pool's side table, for
// rehydrating a pool.Pool at process startup.
func (s *Store) LoadAllUserLedgers(poolID string) (map[string]*pool.UserShareLedger, error) {
	out := make(map[string]*pool.UserShareLedger)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucketName(poolID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			ledger := &pool.UserShareLedger{}
			if err := json.Unmarshal(v, ledger); err != nil {
				return err
			}
			out[string(k)] = ledger
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load ledgers for %s: %w", poolID, err)
	}
	return out, nil
}
