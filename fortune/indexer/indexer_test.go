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
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	nft   = common.HexToAddress("0x415Df58904f56A159748476610B8830db2548158")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	zero  = "0x0000000000000000000000000000000000000000"
)

func row(from, to common.Address, id int, ts int64) map[string]string {
	return map[string]string{
		"from":            from.Hex(),
		"to":              to.Hex(),
		"tokenID":         fmt.Sprint(id),
		"timeStamp":       fmt.Sprint(ts),
		"hash":            common.BigToHash(big.NewInt(ts)).Hex(),
		"contractAddress": nft.Hex(),
	}
}

func TestTransfersPaging(t *testing.T) {
	defer gock.Off()

	first := []map[string]string{
		row(common.HexToAddress(zero), alice, 0, 100),
		row(common.HexToAddress(zero), alice, 1, 200),
	}
	second := []map[string]string{
		row(alice, bob, 0, 300),
	}
	gock.New("https://explorer.example").
		Get("/api").
		MatchParam("action", "tokennfttx").
		MatchParam("page", "1").
		MatchParam("offset", "2").
		MatchParam("sort", "asc").
		Reply(200).
		JSON(map[string]interface{}{"status": "1", "message": "OK", "result": first})
	gock.New("https://explorer.example").
		Get("/api").
		MatchParam("page", "2").
		Reply(200).
		JSON(map[string]interface{}{"status": "1", "message": "OK", "result": second})

	transfers, err := NewClient("https://explorer.example/api", 2, time.Second).Transfers(context.Background(), nft, alice)
	require.NoError(t, err)
	require.Len(t, transfers, 3)
	assert.True(t, transfers[0].IsMint())
	assert.Equal(t, bob, transfers[2].To)
	assert.True(t, gock.IsDone())

	o := Replay(transfers, alice)
	require.Len(t, o.Owned(), 1)
	assert.Equal(t, int64(1), o.Owned()[0].Int64())
	assert.False(t, o.Owns(big.NewInt(0)))

	minted, ok := o.MintedAt(big.NewInt(0))
	require.True(t, ok)
	assert.Equal(t, int64(100), minted.Unix())
}

func TestTransfersEmpty(t *testing.T) {
	defer gock.Off()
	gock.New("https://explorer.example").
		Get("/api").
		Reply(200).
		JSON(map[string]interface{}{"status": "0", "message": "No token transfers found", "result": []interface{}{}})

	transfers, err := NewClient("https://explorer.example/api", 0, time.Second).Transfers(context.Background(), nft, alice)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestTransfersErrors(t *testing.T) {
	tests := []struct {
		name string
		mock func()
	}{
		{
			name: "RateLimited",
			mock: func() {
				gock.New("https://explorer.example").Get("/api").Reply(429).BodyString("slow down")
			},
		},
		{
			name: "ErrorStatus",
			mock: func() {
				gock.New("https://explorer.example").
					Get("/api").
					Reply(200).
					JSON(map[string]interface{}{"status": "0", "message": "Invalid contract address", "result": "error"})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mock()

			_, err := NewClient("https://explorer.example/api", 0, time.Second).Transfers(context.Background(), nft, alice)
			assert.Equal(t, fault.ServiceUnavailable, fault.KindOf(err))
		})
	}
}

func TestReplayOrdersByTime(t *testing.T) {
	zeroAddr := common.HexToAddress(zero)
	transfers := []Transfer{
		{From: bob, To: alice, TokenID: big.NewInt(5), Timestamp: time.Unix(300, 0)},
		{From: zeroAddr, To: bob, TokenID: big.NewInt(5), Timestamp: time.Unix(100, 0)},
		{From: alice, To: bob, TokenID: big.NewInt(5), Timestamp: time.Unix(200, 0)},
	}
	o := Replay(transfers, alice)
	assert.True(t, o.Owns(big.NewInt(5)))
	minted, ok := o.MintedAt(big.NewInt(5))
	require.True(t, ok)
	assert.Equal(t, int64(100), minted.Unix())
}

func TestReplaySameBlock(t *testing.T) {
	zeroAddr := common.HexToAddress(zero)
	at := time.Unix(500, 0)
	tests := []struct {
		name      string
		transfers []Transfer
		owns      bool
	}{
		{
			"SeparateTransactions",
			[]Transfer{
				{From: alice, To: bob, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 10, TxIndex: 3},
				{From: zeroAddr, To: alice, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 10, TxIndex: 1},
			},
			false,
		},
		{
			"SameTransaction",
			[]Transfer{
				{From: alice, To: bob, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 10, TxIndex: 1, LogIndex: 4},
				{From: zeroAddr, To: alice, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 10, TxIndex: 1, LogIndex: 2},
			},
			false,
		},
		{
			"ReceivedBack",
			[]Transfer{
				{From: bob, To: alice, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 11},
				{From: alice, To: bob, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 10, TxIndex: 3},
				{From: zeroAddr, To: alice, TokenID: big.NewInt(7), Timestamp: at, BlockNumber: 10, TxIndex: 1},
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Replay(tt.transfers, alice)
			assert.Equal(t, tt.owns, o.Owns(big.NewInt(7)))
			_, minted := o.MintedAt(big.NewInt(7))
			assert.True(t, minted)
		})
	}
}

func TestTransfersDecodePosition(t *testing.T) {
	defer gock.Off()

	mint := row(common.HexToAddress(zero), alice, 3, 100)
	mint["blockNumber"] = "42"
	mint["transactionIndex"] = "1"
	mint["logIndex"] = "7"
	gock.New("https://explorer.example").
		Get("/api").
		Reply(200).
		JSON(map[string]interface{}{"status": "1", "message": "OK", "result": []map[string]string{mint, row(alice, bob, 3, 200)}})

	got, err := NewClient("https://explorer.example/api", 0, time.Second).Transfers(context.Background(), nft, alice)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(42), got[0].BlockNumber)
	assert.Equal(t, uint(1), got[0].TxIndex)
	assert.Equal(t, uint(7), got[0].LogIndex)
	assert.Zero(t, got[1].BlockNumber)
}
