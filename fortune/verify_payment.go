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
	"math/big"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// TxSource looks up mined transactions.
type TxSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
}

// PaymentProof is a payment verified against chain state.
type PaymentProof struct {
	PaymentID   *big.Int       `json:"paymentId"`
	User        common.Address `json:"userAddress"`
	Amount      *big.Int       `json:"amount"`
	TxHash      common.Hash    `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
}

// PaymentVerifier checks that a transaction is a successful image payment
// made by a given user.
type PaymentVerifier struct {
	chain   TxSource
	payment *zodiac.ImagePayment
	signer  types.Signer
	policy  txn.Policy
}

// NewPaymentVerifier creates a verifier for payments to the given contract.
func NewPaymentVerifier(chain TxSource, payment *zodiac.ImagePayment, chainID *big.Int, policy txn.Policy) *PaymentVerifier {
	return &PaymentVerifier{
		chain:   chain,
		payment: payment,
		signer:  types.LatestSignerForChainID(chainID),
		policy:  policy,
	}
}

// Verify returns the proof of the payment made in txHash, or an error of kind
// NotFound, Unauthorized or InvalidInput describing the first failed check.
func (v *PaymentVerifier) Verify(ctx context.Context, txHash common.Hash, user common.Address) (*PaymentProof, error) {
	var (
		receipt *types.Receipt
		tx      *types.Transaction
	)
	err := v.policy.Do(ctx, "rpc.verify", func(ctx context.Context) error {
		var err error
		if receipt, err = v.chain.TransactionReceipt(ctx, txHash); err != nil {
			return notFound(err, "transaction not found: "+txHash.Hex())
		}
		if tx, _, err = v.chain.TransactionByHash(ctx, txHash); err != nil {
			return notFound(err, "transaction not found: "+txHash.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fault.New(fault.ContractReverted, "verify payment", "transaction failed: "+txHash.Hex())
	}
	if tx.To() == nil || *tx.To() != v.payment.Address() {
		return nil, fault.New(fault.InvalidInput, "verify payment", "transaction was not sent to the payment contract")
	}
	sender, err := types.Sender(v.signer, tx)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, "verify payment", err)
	}
	if sender != user {
		return nil, fault.New(fault.Unauthorized, "verify payment", "transaction was sent by "+sender.Hex())
	}

	var event *zodiac.PaymentReceived
	for _, l := range receipt.Logs {
		if l.Address != v.payment.Address() {
			continue
		}
		if ev, err := v.payment.ParsePaymentReceived(*l); err == nil {
			event = ev
			break
		}
	}
	if event == nil {
		return nil, &fault.Error{Kind: fault.NotFound, Op: "verify payment", Reason: "no payment event in " + txHash.Hex(), Err: ErrNoPaymentEvent}
	}
	if event.User != user {
		return nil, fault.New(fault.Unauthorized, "verify payment", "payment was made by "+event.User.Hex())
	}

	// payForImage reverts below the fee in effect at its block, so a mined
	// event already proves the fee was covered then. Later fee changes do not
	// invalidate it.
	if event.Amount == nil || event.Amount.Cmp(tx.Value()) != 0 {
		return nil, fault.New(fault.InvalidInput, "verify payment", "payment event amount does not match the transaction value")
	}
	log.Debug("Payment verified", "tx", txHash, "paymentId", event.PaymentId, "user", user)
	return &PaymentProof{
		PaymentID:   event.PaymentId,
		User:        user,
		Amount:      event.Amount,
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func notFound(err error, reason string) error {
	if errors.Is(err, ethereum.NotFound) {
		return &fault.Error{Kind: fault.NotFound, Op: "verify payment", Reason: reason, Err: err}
	}
	return err
}
