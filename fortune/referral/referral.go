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

// Package referral builds the attribution suffix appended to mint call data
// and reports confirmed transactions to the attribution service.
package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Marker prefixes every referral tag so the attribution service can find it
// at the end of the call data.
var Marker = []byte{0x72, 0x65, 0x66, 0x31}

// TagLength is the size of a tag in bytes.
var TagLength = len(Marker) + 2*common.AddressLength

// Tag returns marker ‖ consumer ‖ user. The contract ignores trailing call
// data, so the tag does not change execution.
func Tag(consumer, user common.Address) []byte {
	tag := make([]byte, 0, TagLength)
	tag = append(tag, Marker...)
	tag = append(tag, consumer.Bytes()...)
	return append(tag, user.Bytes()...)
}

// Parse extracts the consumer and user from call data ending in a tag.
func Parse(data []byte) (consumer, user common.Address, ok bool) {
	if len(data) < TagLength {
		return common.Address{}, common.Address{}, false
	}
	tag := data[len(data)-TagLength:]
	if !bytes.Equal(tag[:len(Marker)], Marker) {
		return common.Address{}, common.Address{}, false
	}
	tag = tag[len(Marker):]
	return common.BytesToAddress(tag[:common.AddressLength]), common.BytesToAddress(tag[common.AddressLength:]), true
}

// Reporter submits confirmed transactions for attribution.
type Reporter struct {
	endpoint string
	consumer common.Address
	client   *http.Client
}

// NewReporter creates a reporter. A zero consumer disables tagging and
// reporting altogether.
func NewReporter(endpoint string, consumer common.Address, timeout time.Duration) *Reporter {
	return &Reporter{endpoint: endpoint, consumer: consumer, client: &http.Client{Timeout: timeout}}
}

// Enabled reports whether a consumer is configured.
func (r *Reporter) Enabled() bool {
	return r != nil && r.consumer != (common.Address{})
}

// Tag returns the suffix for user, or nil when disabled.
func (r *Reporter) Tag(user common.Address) []byte {
	if !r.Enabled() {
		return nil
	}
	return Tag(r.consumer, user)
}

type report struct {
	TxHash  string `json:"txHash"`
	ChainID int64  `json:"chainId"`
}

// Report submits tx. Failures are logged and returned but never affect the
// transaction itself.
func (r *Reporter) Report(ctx context.Context, tx common.Hash, chainID int64) error {
	if !r.Enabled() || r.endpoint == "" {
		return nil
	}
	body, _ := json.Marshal(report{TxHash: tx.Hex(), ChainID: chainID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Warn("Referral report failed", "tx", tx, "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("referral report: status %d", resp.StatusCode)
		log.Warn("Referral report rejected", "tx", tx, "status", resp.StatusCode)
		return err
	}
	log.Info("Submitted referral", "tx", tx, "chain", chainID, "consumer", r.consumer)
	return nil
}
