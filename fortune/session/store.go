// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package session keeps fortune runs in an embedded bolt database so that a
// run interrupted by a crash or a failed stage can be picked up again.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/boltdb/bolt"
)

var (
	runsBucket     = []byte("runs")
	paymentsBucket = []byte("payments")
)

// ErrNotFound is returned when no run is stored under the requested key.
var ErrNotFound = errors.New("session: run not found")

// Store persists runs as JSON, keyed by run id, with a secondary index from
// payment id to run id.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, paymentsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save implements fortune.Journal.
func (s *Store) Save(run fortune.Run) error {
	_, err := s.Put(run)
	return err
}

// Put stores run. A run identical to the stored one is not rewritten; the
// result reports whether a write happened.
func (s *Store) Put(run fortune.Run) (bool, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return false, err
	}
	written := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runsBucket)
		if bytes.Equal(runs.Get([]byte(run.ID)), data) {
			return nil
		}
		if err := runs.Put([]byte(run.ID), data); err != nil {
			return err
		}
		written = true
		if run.PaymentID == nil {
			return nil
		}
		return tx.Bucket(paymentsBucket).Put([]byte(run.PaymentID.String()), []byte(run.ID))
	})
	return written, err
}

// Load returns the run with the given id.
func (s *Store) Load(id string) (fortune.Run, error) {
	var run fortune.Run
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &run)
	})
	return run, err
}

// ByPayment returns the latest run that paid with paymentID.
func (s *Store) ByPayment(paymentID *big.Int) (fortune.Run, error) {
	var id []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(paymentsBucket).Get([]byte(paymentID.String())); v != nil {
			id = append(id, v...)
		}
		return nil
	})
	if id == nil {
		return fortune.Run{}, ErrNotFound
	}
	return s.Load(string(id))
}

// List returns every stored run, most recently updated first.
func (s *Store) List() ([]fortune.Run, error) {
	runs := []fortune.Run{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var run fortune.Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].UpdatedAt.After(runs[j].UpdatedAt)
	})
	return runs, nil
}

// Delete removes a run. Deleting a missing run is not an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Delete([]byte(id))
	})
}
