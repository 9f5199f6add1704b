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

package zodiac_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac/zodiactest"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fee = new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))

type fixture struct {
	chain   *zodiactest.Chain
	user    *zodiactest.Account
	backend *zodiactest.Account
	userTx  *txn.Transactor
	backTx  *txn.Transactor
	payment *zodiac.ImagePayment
	nft     *zodiac.ZodiacNFT
}

func newFixture(t *testing.T, firstPaymentID uint64) *fixture {
	t.Helper()
	chain := zodiactest.NewChain()
	user, backend := zodiactest.NewAccount(), zodiactest.NewAccount()
	cfg := txn.Config{Policy: txn.Policy{MaxAttempts: 2}, PollInterval: 1, ConfirmTimeout: 1e9}
	userTx := txn.NewTransactor(chain, user.Opts, cfg)
	return &fixture{
		chain:   chain,
		user:    user,
		backend: backend,
		userTx:  userTx,
		backTx:  txn.NewTransactor(chain, backend.Opts, cfg),
		payment: zodiac.NewImagePayment(chain.DeployPayment(fee, backend.Address, firstPaymentID), userTx),
		nft:     zodiac.NewZodiacNFT(chain.DeployNFT(fee, 1), userTx),
	}
}

func TestPaymentEventDecoding(t *testing.T) {
	f := newFixture(t, 42)
	ctx := context.Background()

	receipt, err := f.userTx.Execute(ctx, f.payment.PayForImage(fee))
	require.NoError(t, err)

	id, err := f.payment.PaymentIDFromReceipt(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Int64())

	require.Len(t, receipt.Logs, 1)
	ev, err := f.payment.ParsePaymentReceived(*receipt.Logs[0])
	require.NoError(t, err)
	assert.Equal(t, f.user.Address, ev.User)
	assert.Equal(t, 0, ev.Amount.Cmp(fee))

	raw, ok := zodiac.RawPaymentID(*receipt.Logs[0])
	require.True(t, ok)
	assert.Equal(t, 0, raw.Cmp(ev.PaymentId), "raw topic and structured decoding must agree")
}

func TestPaymentIDFallsBackToRawTopic(t *testing.T) {
	payment := zodiac.NewImagePayment(common.HexToAddress("0x01"), nil)
	oldSig := crypto.Keccak256Hash([]byte("ImagePaymentReceived(address,uint256,uint256)"))
	receipt := &types.Receipt{Logs: []*types.Log{{
		Address: payment.Address(),
		Topics: []common.Hash{
			oldSig,
			common.BytesToHash(common.HexToAddress("0xbeef").Bytes()),
			common.BigToHash(big.NewInt(7)),
		},
	}}}

	_, err := payment.ParsePaymentReceived(*receipt.Logs[0])
	assert.ErrorIs(t, err, zodiac.ErrEventSignatureMismatch)

	id, err := payment.PaymentIDFromReceipt(receipt)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.Int64())
}

func TestPaymentIDMissing(t *testing.T) {
	payment := zodiac.NewImagePayment(common.HexToAddress("0x01"), nil)
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x02"), Topics: []common.Hash{{1}, {2}, {3}}},
		{Address: payment.Address(), Topics: []common.Hash{{1}}},
	}}
	_, err := payment.PaymentIDFromReceipt(receipt)
	assert.ErrorIs(t, err, zodiac.ErrNoPaymentEvent)
}

func TestGenerationLifecycle(t *testing.T) {
	f := newFixture(t, 42)
	ctx := context.Background()

	receipt, err := f.userTx.Execute(ctx, f.payment.PayForImage(fee))
	require.NoError(t, err)
	id, err := f.payment.PaymentIDFromReceipt(receipt)
	require.NoError(t, err)

	gen, err := f.payment.GetGeneration(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, gen.MetadataURI)
	assert.False(t, gen.IsMinted)

	_, err = f.backTx.Execute(ctx, f.payment.StoreGeneration(id, "ipfs://bafymeta"))
	require.NoError(t, err)

	gen, err = f.payment.GetGeneration(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafymeta", gen.MetadataURI)
	assert.False(t, gen.IsMinted)
	assert.NotZero(t, gen.CreatedAt.Uint64())

	receipt, err = f.userTx.Execute(ctx, f.nft.Mint(f.user.Address, "ipfs://bafytoken", fee))
	require.NoError(t, err)
	tokenID, err := f.nft.MintedTokenID(receipt)
	require.NoError(t, err)

	_, err = f.userTx.Execute(ctx, f.payment.MarkAsMinted(id, tokenID))
	require.NoError(t, err)

	gen, err = f.payment.GetGeneration(ctx, id)
	require.NoError(t, err)
	assert.True(t, gen.IsMinted)
	assert.Equal(t, 0, gen.TokenId.Cmp(tokenID))
	assert.NotZero(t, gen.TokenId.Uint64())

	ids, gens, err := f.payment.GetUserCollection(ctx, f.user.Address)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, int64(42), ids[0].Int64())
	assert.True(t, gens[0].IsMinted)

	uri, err := f.nft.TokenURI(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafytoken", uri)

	owner, err := f.nft.OwnerOf(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, f.user.Address, owner)

	next, err := f.nft.NextTokenId(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokenID.Int64()+1, next.Int64())
}

func TestMintedTokenIDFallsBackToTransfer(t *testing.T) {
	f := newFixture(t, 1)
	receipt, err := f.userTx.Execute(context.Background(), f.nft.Mint(f.user.Address, "ipfs://x", fee))
	require.NoError(t, err)

	var transfers []*types.Log
	for _, l := range receipt.Logs {
		if _, err := f.nft.ParseTransfer(*l); err == nil {
			transfers = append(transfers, l)
		}
	}
	require.Len(t, transfers, 1)

	id, err := f.nft.MintedTokenID(&types.Receipt{Logs: transfers})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())

	_, err = f.nft.MintedTokenID(&types.Receipt{})
	assert.ErrorIs(t, err, zodiac.ErrNoMintEvent)
}

func TestLegacyPaymentHasNoCollection(t *testing.T) {
	legacy := zodiac.NewLegacyImagePayment(common.HexToAddress("0x01"), nil)
	assert.False(t, legacy.HasMethod("getUserCollection"))
	assert.True(t, legacy.HasMethod("payForImage"))

	current := zodiac.NewImagePayment(common.HexToAddress("0x01"), nil)
	assert.True(t, current.HasMethod("getUserCollection"))
}
