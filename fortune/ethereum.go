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
	"fmt"
	"math/big"
	"strings"

	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainBackend is everything the service needs from a node. *ethclient.Client
// satisfies it, as does the in-memory chain used by tests.
type ChainBackend interface {
	txn.Backend
	TxSource

	// ChainID returns the id transactions must be signed for.
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dial connects to the RPC endpoint at url and checks that it serves the
// expected chain. A zero want skips the check.
func Dial(ctx context.Context, url string, want int64) (ChainBackend, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fortune: dial %s: %v", url, err)
	}
	if want != 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("fortune: chain id: %v", err)
		}
		if id.Int64() != want {
			client.Close()
			return nil, fmt.Errorf("fortune: endpoint serves chain %d, want %d", id, want)
		}
	}
	return client, nil
}

// KeyedTransactOpts parses a hex private key, with or without 0x prefix,
// into transact options for chainID.
func KeyedTransactOpts(hexKey string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("fortune: invalid private key: %v", err)
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// ParseAddress parses a hex address, rejecting malformed input instead of
// silently truncating it.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("fortune: invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
