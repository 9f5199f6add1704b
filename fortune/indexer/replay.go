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

package indexer

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Ownership is the result of replaying a transfer history for one owner.
type Ownership struct {
	owned    map[string]*big.Int
	mintedAt map[string]time.Time
}

// Replay walks transfers in chain order (see Transfer.Before): a transfer to owner marks
// the token owned, a transfer from owner clears it. Mint times are recorded
// for every token regardless of its current owner.
func Replay(transfers []Transfer, owner common.Address) *Ownership {
	ordered := make([]Transfer, len(transfers))
	copy(ordered, transfers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	o := &Ownership{owned: make(map[string]*big.Int), mintedAt: make(map[string]time.Time)}
	for _, t := range ordered {
		key := t.TokenID.String()
		if t.IsMint() {
			o.mintedAt[key] = t.Timestamp
		}
		if t.From == owner {
			delete(o.owned, key)
		}
		if t.To == owner {
			o.owned[key] = t.TokenID
		}
	}
	return o
}

// Owned returns the owned token ids in ascending order.
func (o *Ownership) Owned() []*big.Int {
	ids := make([]*big.Int, 0, len(o.owned))
	for _, id := range o.owned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}

// Owns reports whether the replay ended with the token owned.
func (o *Ownership) Owns(id *big.Int) bool {
	_, ok := o.owned[id.String()]
	return ok
}

// MintedAt returns the time the token was minted, if the history contains it.
func (o *Ownership) MintedAt(id *big.Int) (time.Time, bool) {
	t, ok := o.mintedAt[id.String()]
	return t, ok
}
