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

package verify

import (
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultTTL is how long a verification result stays available.
const DefaultTTL = time.Hour

// Result is a verification outcome for one user.
type Result struct {
	Verified    bool   `json:"verified"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// Checker records verification callbacks and answers client checks.
type Checker struct {
	cache Cache[Result]
	ttl   time.Duration
}

// NewChecker creates a checker over cache. A zero ttl means DefaultTTL.
func NewChecker(cache Cache[Result], ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Checker{cache: cache, ttl: ttl}
}

func normalize(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}

// Record stores the result of a completed verification.
func (c *Checker) Record(userID string, r Result) error {
	key := normalize(userID)
	if key == "" {
		return fault.New(fault.InvalidInput, "verify", "user ID is required")
	}
	if r.Verified && r.DateOfBirth != "" {
		if _, err := ParseDateOfBirth(r.DateOfBirth); err != nil {
			return err
		}
	}
	c.cache.Put(key, r, c.ttl)
	log.Info("Recorded identity verification", "user", key, "verified", r.Verified)
	return nil
}

// Check returns the stored result for userID. Unknown and expired users are
// reported unverified.
func (c *Checker) Check(userID string) (Result, error) {
	key := normalize(userID)
	if key == "" {
		return Result{}, fault.New(fault.InvalidInput, "verify", "user ID is required")
	}
	r, ok := c.cache.Get(key)
	if !ok {
		return Result{Verified: false}, nil
	}
	return r, nil
}

// ParseDateOfBirth accepts the YYYY-MM-DD and DD-MM-YY forms returned by the
// verification service.
func ParseDateOfBirth(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02-01-06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fault.New(fault.InvalidInput, "verify", "unrecognised date of birth "+s)
}
