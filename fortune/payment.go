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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// PaymentStage pays the image fee from the user's account and recovers the
// payment id from the receipt.
type PaymentStage struct {
	tx      *txn.Transactor
	payment *zodiac.ImagePayment
	fees    *FeeSchedule
}

// NewPaymentStage creates the payment stage. tx must sign for the user.
func NewPaymentStage(tx *txn.Transactor, payment *zodiac.ImagePayment, fees *FeeSchedule) *PaymentStage {
	return &PaymentStage{tx: tx, payment: payment, fees: fees}
}

// Pay submits payForImage, or resumes waiting for a payment submitted
// earlier, and moves the run to Paid.
func (s *PaymentStage) Pay(ctx context.Context, run Run) (Run, error) {
	if run.Past(StageIdle) {
		return run, nil
	}
	if run.Stage != StageIdle {
		return run, ErrInvalidStage
	}
	if run.User != s.tx.From() {
		return run, fault.New(fault.Unauthorized, "pay", "run belongs to "+run.User.Hex())
	}

	fee := s.fees.QuoteImage()
	if run.PaymentTx == (common.Hash{}) {
		hash, err := s.tx.Write(ctx, s.payment.PayForImage(fee))
		if err != nil {
			if fault.Is(err, fault.InsufficientFunds) {
				return run, &fault.Error{Kind: fault.InsufficientFunds, Op: "pay", Reason: "payment requires " + s.fees.Format(fee), Err: err}
			}
			return run, err
		}
		run.PaymentTx = hash
		log.Info("Payment submitted", "run", run.ID, "tx", hash, "fee", s.fees.Format(fee))
	}

	receipt, err := s.tx.Wait(ctx, run.PaymentTx)
	if err != nil {
		if fault.Is(err, fault.ContractReverted) {
			// The payment reverted; a resumed run pays again.
			run.PaymentTx = common.Hash{}
		}
		return run, err
	}
	id, amount, err := s.paymentFromReceipt(receipt)
	if err != nil {
		return run, err
	}
	if amount == nil {
		amount = fee
	}
	run.PaymentID = id
	run.PaymentAmount = amount
	run.Stage = StagePaid
	log.Info("Payment confirmed", "run", run.ID, "paymentId", id, "tx", run.PaymentTx)
	return run, nil
}

// paymentFromReceipt prefers the structured event, which also carries the
// amount, and otherwise falls back to the raw topic of the payment id.
func (s *PaymentStage) paymentFromReceipt(receipt *types.Receipt) (*big.Int, *big.Int, error) {
	for _, l := range receipt.Logs {
		if l.Address != s.payment.Address() {
			continue
		}
		if ev, err := s.payment.ParsePaymentReceived(*l); err == nil {
			return ev.PaymentId, ev.Amount, nil
		}
	}
	id, err := s.payment.PaymentIDFromReceipt(receipt)
	if errors.Is(err, zodiac.ErrNoPaymentEvent) {
		return nil, nil, &fault.Error{Kind: fault.NotFound, Op: "pay", Reason: "no payment event found, the payment is on-chain but needs manual reconciliation", Err: ErrNoPaymentEvent}
	}
	if err != nil {
		return nil, nil, err
	}
	return id, nil, nil
}
