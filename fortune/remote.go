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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Wire types of the backend HTTP API.
type (
	VerifyPaymentRequest struct {
		TxHash      common.Hash    `json:"txHash"`
		UserAddress common.Address `json:"userAddress"`
	}

	VerifyPaymentResponse struct {
		Token   string        `json:"token"`
		Payment *PaymentProof `json:"payment"`
	}

	StoreGenerationRequest struct {
		PaymentID   *big.Int `json:"paymentId"`
		MetadataURI string   `json:"metadataURI"`
	}

	ErrorResponse struct {
		Error string     `json:"error"`
		Kind  fault.Kind `json:"kind"`
	}
)

// RemoteLinker links generations through the backend HTTP API, for clients
// that do not hold the backend key. The payment transaction is exchanged
// for an access token first.
type RemoteLinker struct {
	base   string
	client *http.Client
}

// NewRemoteLinker creates a linker for the backend at base.
func NewRemoteLinker(base string, timeout time.Duration) *RemoteLinker {
	return &RemoteLinker{base: strings.TrimRight(base, "/"), client: &http.Client{Timeout: timeout}}
}

// Link verifies the payment and asks the backend to store the generation.
func (r *RemoteLinker) Link(ctx context.Context, req LinkRequest) (LinkResult, error) {
	if req.PaymentTx == (common.Hash{}) {
		return LinkResult{}, fault.New(fault.InvalidInput, "link", "payment transaction is required")
	}
	var verified VerifyPaymentResponse
	if err := r.post(ctx, "/api/payment/verify", "", VerifyPaymentRequest{TxHash: req.PaymentTx, UserAddress: req.Requester}, &verified); err != nil {
		return LinkResult{}, err
	}
	if verified.Payment != nil && req.PaymentID != nil && verified.Payment.PaymentID.Cmp(req.PaymentID) != 0 {
		return LinkResult{}, fault.New(fault.Unauthorized, "link", fmt.Sprintf("transaction paid for %s, not %s", verified.Payment.PaymentID, req.PaymentID))
	}

	var res LinkResult
	err := r.post(ctx, "/api/store-generation", verified.Token, StoreGenerationRequest{PaymentID: req.PaymentID, MetadataURI: req.MetadataURI}, &res)
	if err != nil {
		return LinkResult{}, err
	}
	log.Info("Generation linked by backend", "paymentId", req.PaymentID, "uri", res.MetadataURI, "tx", res.TxHash)
	return res, nil
}

func (r *RemoteLinker) post(ctx context.Context, path, token string, in, out interface{}) error {
	op := "backend " + path
	body, err := json.Marshal(in)
	if err != nil {
		return fault.Wrap(fault.InvalidInput, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(body))
	if err != nil {
		return fault.Wrap(fault.InvalidInput, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fault.Wrap(fault.ServiceUnavailable, op, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			kind := e.Kind
			if kind == fault.Unknown {
				kind = fault.ServiceUnavailable
			}
			return fault.New(kind, op, e.Error)
		}
		return fault.New(fault.ServiceUnavailable, op, fmt.Sprintf("status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fault.Wrap(fault.ServiceUnavailable, op, err)
	}
	return nil
}
