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

package fortune_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendLinker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	paid, err := e.service.ExecuteUntil(ctx, e.start(t), fortune.StagePaid)
	require.NoError(t, err)
	linker := fortune.NewBackendLinker(e.backTx, e.payment)

	tests := []struct {
		name string
		req  fortune.LinkRequest
		kind fault.Kind
	}{
		{"missing id", fortune.LinkRequest{MetadataURI: "ipfs://bafyx", Requester: e.user.Address}, fault.InvalidInput},
		{"missing uri", fortune.LinkRequest{PaymentID: paid.PaymentID, Requester: e.user.Address}, fault.InvalidInput},
		{"unknown payment", fortune.LinkRequest{PaymentID: big.NewInt(7), MetadataURI: "ipfs://bafyx", Requester: e.user.Address}, fault.NotFound},
		{"foreign requester", fortune.LinkRequest{PaymentID: paid.PaymentID, MetadataURI: "ipfs://bafyx", Requester: e.backend.Address}, fault.Unauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := linker.Link(ctx, tt.req)
			assert.Equal(t, tt.kind, fault.KindOf(err))
		})
	}

	req := fortune.LinkRequest{PaymentID: paid.PaymentID, MetadataURI: "ipfs://bafyfirst", Requester: e.user.Address}
	res, err := linker.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafyfirst", res.MetadataURI)
	assert.NotEqual(t, common.Hash{}, res.TxHash)
	writes := e.chain.Calls("SendTransaction")

	again, err := linker.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafyfirst", again.MetadataURI)
	assert.Equal(t, common.Hash{}, again.TxHash)

	req.MetadataURI = "ipfs://bafysecond"
	other, err := linker.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafyfirst", other.MetadataURI)
	assert.Equal(t, writes, e.chain.Calls("SendTransaction"))
}

func TestLinkAdoptsCanonicalDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	run, err := e.service.ExecuteUntil(ctx, e.start(t), fortune.StageImageDone)
	require.NoError(t, err)

	_, err = fortune.NewBackendLinker(e.backTx, e.payment).Link(ctx, fortune.LinkRequest{
		PaymentID:   run.PaymentID,
		MetadataURI: "ipfs://bafyelsewhere",
		Requester:   e.user.Address,
	})
	require.NoError(t, err)

	run, err = e.service.ExecuteUntil(ctx, run, fortune.StageLinked)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafyelsewhere", run.MetadataURI)
	assert.Equal(t, common.Hash{}, run.LinkTx)
}
