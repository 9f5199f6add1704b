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

// Package indexer reads NFT transfer history from a Blockscout-compatible
// explorer API and replays it into per-token ownership.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultPageSize is the number of transfers requested per page.
const DefaultPageSize = 100

// maxPages stops paging through a misbehaving indexer.
const maxPages = 100

// Transfer is one ERC-721 transfer reported by the indexer.
type Transfer struct {
	Contract  common.Address
	From      common.Address
	To        common.Address
	TokenID   *big.Int
	Timestamp time.Time
	TxHash    common.Hash

	// Position within the chain. Zero when the indexer omits the field.
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
}

// Before orders transfers by time, then by block, transaction and log
// position. Transfers in one block share a timestamp.
func (t Transfer) Before(o Transfer) bool {
	if !t.Timestamp.Equal(o.Timestamp) {
		return t.Timestamp.Before(o.Timestamp)
	}
	if t.BlockNumber != o.BlockNumber {
		return t.BlockNumber < o.BlockNumber
	}
	if t.TxIndex != o.TxIndex {
		return t.TxIndex < o.TxIndex
	}
	return t.LogIndex < o.LogIndex
}

// IsMint reports whether the transfer created the token.
func (t Transfer) IsMint() bool {
	return t.From == (common.Address{})
}

type transferJSON struct {
	From            string `json:"from"`
	To              string `json:"to"`
	TokenID         string `json:"tokenID"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	ContractAddress string `json:"contractAddress"`
	BlockNumber     string `json:"blockNumber"`
	TxIndex         string `json:"transactionIndex"`
	LogIndex        string `json:"logIndex"`
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client queries the explorer's account API.
type Client struct {
	base     string
	pageSize int
	client   *http.Client
}

// NewClient creates an indexer client for the API at base
// (e.g. https://celo.blockscout.com/api).
func NewClient(base string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{base: base, pageSize: pageSize, client: &http.Client{Timeout: timeout}}
}

// Transfers returns every transfer of contract tokens to or from owner in
// ascending chronological order. An empty slice means the indexer knows of
// no transfers.
func (c *Client) Transfers(ctx context.Context, contract, owner common.Address) ([]Transfer, error) {
	if c.base == "" {
		return nil, fault.New(fault.ServiceUnavailable, "indexer", "indexer is not configured")
	}
	var all []Transfer
	for page := 1; page <= maxPages; page++ {
		batch, err := c.page(ctx, contract, owner, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}
	log.Debug("Fetched transfer history", "contract", contract, "owner", owner, "transfers", len(all))
	return all, nil
}

func (c *Client) page(ctx context.Context, contract, owner common.Address, page int) ([]Transfer, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokennfttx")
	q.Set("contractaddress", contract.Hex())
	q.Set("address", owner.Hex())
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(c.pageSize))
	q.Set("sort", "asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, "indexer", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.ServiceUnavailable, "indexer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fault.New(fault.ServiceUnavailable, "indexer", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fault.Wrap(fault.ServiceUnavailable, "indexer", err)
	}
	// Status "0" is both "no transactions found" and a real error; only the
	// latter carries a non-array result.
	var rows []transferJSON
	if err := json.Unmarshal(out.Result, &rows); err != nil {
		if out.Status == "0" {
			return nil, fault.New(fault.ServiceUnavailable, "indexer", out.Message)
		}
		return nil, fault.Wrap(fault.ServiceUnavailable, "indexer", err)
	}
	transfers := make([]Transfer, 0, len(rows))
	for _, row := range rows {
		t, err := row.decode()
		if err != nil {
			log.Warn("Skipping malformed transfer", "hash", row.Hash, "err", err)
			continue
		}
		transfers = append(transfers, t)
	}
	return transfers, nil
}

func (r transferJSON) decode() (Transfer, error) {
	id, ok := new(big.Int).SetString(r.TokenID, 10)
	if !ok {
		return Transfer{}, fmt.Errorf("invalid token id %q", r.TokenID)
	}
	secs, err := strconv.ParseInt(r.TimeStamp, 10, 64)
	if err != nil {
		return Transfer{}, fmt.Errorf("invalid timestamp %q", r.TimeStamp)
	}
	if !common.IsHexAddress(r.From) || !common.IsHexAddress(r.To) {
		return Transfer{}, fmt.Errorf("invalid address in %s -> %s", r.From, r.To)
	}
	block, err := optionalUint(r.BlockNumber, 64)
	if err != nil {
		return Transfer{}, fmt.Errorf("invalid block number %q", r.BlockNumber)
	}
	txIndex, err := optionalUint(r.TxIndex, 32)
	if err != nil {
		return Transfer{}, fmt.Errorf("invalid transaction index %q", r.TxIndex)
	}
	logIndex, err := optionalUint(r.LogIndex, 32)
	if err != nil {
		return Transfer{}, fmt.Errorf("invalid log index %q", r.LogIndex)
	}
	return Transfer{
		Contract:    common.HexToAddress(r.ContractAddress),
		From:        common.HexToAddress(r.From),
		To:          common.HexToAddress(r.To),
		TokenID:     id,
		Timestamp:   time.Unix(secs, 0).UTC(),
		TxHash:      common.HexToHash(r.Hash),
		BlockNumber: block,
		TxIndex:     uint(txIndex),
		LogIndex:    uint(logIndex),
	}, nil
}

func optionalUint(s string, bits int) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, bits)
}
