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

// Package txn is the single path through which the pipeline talks to the
// chain: it simulates before submitting, waits for receipts, retries only
// transient failures and classifies every provider error into a fault kind.
package txn

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the subset of *ethclient.Client the pipeline needs.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Call describes a single contract invocation. Suffix is appended verbatim
// after the ABI-encoded calldata.
type Call struct {
	To     common.Address
	ABI    *abi.ABI
	Method string
	Args   []interface{}
	Value  *big.Int
	Suffix []byte
}

// Data returns the calldata for the call.
func (c Call) Data() ([]byte, error) {
	if c.ABI == nil {
		return nil, fmt.Errorf("txn: call %s has no ABI", c.Method)
	}
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("txn: pack %s: %w", c.Method, err)
	}
	if len(c.Suffix) > 0 {
		data = append(data, c.Suffix...)
	}
	return data, nil
}

// WithSuffix returns a copy of the call carrying suffix after its calldata.
func (c Call) WithSuffix(suffix []byte) Call {
	c.Suffix = common.CopyBytes(suffix)
	return c
}

func (c Call) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

func (c Call) msg(from common.Address, data []byte) ethereum.CallMsg {
	to := c.To
	return ethereum.CallMsg{From: from, To: &to, Value: c.value(), Data: data}
}
