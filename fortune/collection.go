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

package fortune

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/indexer"
	"github.com/JulioMCruz/ZodiacCards/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// ErrCollectionUnavailable is returned when no contract version could be read.
var ErrCollectionUnavailable = errors.New("fortune: collection unavailable")

// EntryKind distinguishes minted tokens from paid generations not yet minted.
type EntryKind string

const (
	EntryMinted  EntryKind = "minted"
	EntryPending EntryKind = "pending"
)

// Entry is one item of a user's collection.
type Entry struct {
	Kind        EntryKind      `json:"kind"`
	Version     string         `json:"version"`
	Contract    common.Address `json:"contract"`
	TokenID     *big.Int       `json:"tokenId,omitempty"`
	PaymentID   *big.Int       `json:"paymentId,omitempty"`
	TokenURI    string         `json:"tokenUri,omitempty"`
	MetadataURI string         `json:"metadataUri,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (e Entry) id() *big.Int {
	if e.Kind == EntryMinted {
		return e.TokenID
	}
	return e.PaymentID
}

// Version is one deployed pair of payment and NFT contracts. Either may be
// nil.
type Version struct {
	Name    string
	Payment *zodiac.ImagePayment
	NFT     *zodiac.ZodiacNFT
}

// TransferSource returns the ERC-721 transfer history of owner on contract.
type TransferSource interface {
	Transfers(ctx context.Context, contract, owner common.Address) ([]indexer.Transfer, error)
}

// Collector rebuilds a user's collection from every contract version.
type Collector struct {
	versions  []Version
	transfers TransferSource
}

// NewCollector creates a collector. transfers may be nil, in which case
// ownership always comes from the per-token scan.
func NewCollector(transfers TransferSource, versions ...Version) *Collector {
	return &Collector{versions: versions, transfers: transfers}
}

// Collect returns the minted tokens and pending generations of owner, newest
// first. A version that cannot be read is skipped; an error is returned only
// when every version failed.
func (c *Collector) Collect(ctx context.Context, owner common.Address) ([]Entry, error) {
	var (
		entries []Entry
		failed  int
		seen    = make(map[string]bool)
	)
	for _, v := range c.versions {
		found, err := c.collectVersion(ctx, v, owner)
		if err != nil {
			failed++
			log.Warn("Collection version unavailable", "version", v.Name, "owner", owner, "err", err)
			continue
		}
		for _, e := range found {
			key := fmt.Sprintf("%s/%s/%s", e.Kind, e.Contract.Hex(), e.id())
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, e)
		}
	}
	if failed > 0 && failed == len(c.versions) {
		return nil, fault.Wrap(fault.ServiceUnavailable, "collection", ErrCollectionUnavailable)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].id().Cmp(entries[j].id()) > 0
	})
	return entries, nil
}

func (c *Collector) collectVersion(ctx context.Context, v Version, owner common.Address) ([]Entry, error) {
	var entries []Entry

	// Generation records, keyed by token id once minted.
	minted := make(map[string]zodiac.Generation)
	paymentOf := make(map[string]*big.Int)
	if v.Payment != nil && v.Payment.HasMethod("getUserCollection") {
		ids, gens, err := v.Payment.GetUserCollection(ctx, owner)
		if err != nil {
			if v.NFT == nil {
				return nil, err
			}
			log.Warn("Generation records unavailable", "version", v.Name, "err", err)
		}
		for i, gen := range gens {
			switch {
			case gen.IsMinted && gen.TokenId != nil:
				minted[gen.TokenId.String()] = gen
				paymentOf[gen.TokenId.String()] = ids[i]
			case gen.MetadataURI != "":
				entries = append(entries, Entry{
					Kind:        EntryPending,
					Version:     v.Name,
					Contract:    v.Payment.Address(),
					PaymentID:   ids[i],
					MetadataURI: gen.MetadataURI,
					Timestamp:   unixTime(gen.CreatedAt),
				})
			}
		}
	}
	if v.NFT == nil {
		return entries, nil
	}

	tokens, mintTimes, err := c.owned(ctx, v, owner)
	if err != nil {
		return nil, err
	}
	for _, id := range tokens {
		uri, err := v.NFT.TokenURI(ctx, id)
		if err != nil {
			log.Warn("Token URI unavailable", "version", v.Name, "tokenId", id, "err", err)
		}
		e := Entry{
			Kind:      EntryMinted,
			Version:   v.Name,
			Contract:  v.NFT.Address(),
			TokenID:   id,
			PaymentID: paymentOf[id.String()],
			TokenURI:  uri,
		}
		if gen, ok := minted[id.String()]; ok {
			e.MetadataURI = gen.MetadataURI
			e.Timestamp = unixTime(gen.MintedAt)
		}
		if at, ok := mintTimes[id.String()]; ok {
			e.Timestamp = at
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// owned returns the tokens owner holds on v.NFT with their mint times where
// known. The indexer is preferred; an empty or failing indexer falls back to
// checking ownerOf for every issued token.
func (c *Collector) owned(ctx context.Context, v Version, owner common.Address) ([]*big.Int, map[string]time.Time, error) {
	times := make(map[string]time.Time)
	if c.transfers != nil {
		transfers, err := c.transfers.Transfers(ctx, v.NFT.Address(), owner)
		switch {
		case err != nil:
			log.Warn("Indexer unavailable, scanning ownership", "version", v.Name, "err", err)
		case len(transfers) > 0:
			replay := indexer.Replay(transfers, owner)
			ids := replay.Owned()
			for _, id := range ids {
				if at, ok := replay.MintedAt(id); ok {
					times[id.String()] = at
				}
			}
			return ids, times, nil
		}
	}

	metrics.CollectionScan(v.Name)
	next, err := v.NFT.NextTokenId(ctx)
	if err != nil {
		return nil, nil, err
	}
	var ids []*big.Int
	for i := int64(0); i < next.Int64(); i++ {
		id := big.NewInt(i)
		holder, err := v.NFT.OwnerOf(ctx, id)
		if err != nil {
			if fault.Is(err, fault.ContractReverted) {
				continue
			}
			return nil, nil, err
		}
		if holder == owner {
			ids = append(ids, id)
		}
	}
	return ids, times, nil
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}
