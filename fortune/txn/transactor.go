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

package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// ErrReadOnly is returned when a write is attempted through a transactor
// built without a signer.
var ErrReadOnly = errors.New("txn: transactor has no signer")

// Config tunes a Transactor. Zero fields take the defaults.
type Config struct {
	Policy           Policy
	PollInterval     time.Duration
	ConfirmTimeout   time.Duration
	GasBufferPercent uint64
}

// DefaultConfig matches the public Celo RPC behaviour the pipeline was tuned on.
var DefaultConfig = Config{
	Policy:           DefaultPolicy,
	PollInterval:     time.Second,
	ConfirmTimeout:   time.Minute,
	GasBufferPercent: 20,
}

// Transactor submits and reads contract calls on behalf of one account.
type Transactor struct {
	backend Backend
	opts    *bind.TransactOpts
	cfg     Config
}

// NewTransactor creates a transactor signing with opts. A nil opts yields a
// read-only transactor.
func NewTransactor(backend Backend, opts *bind.TransactOpts, cfg Config) *Transactor {
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultConfig.Policy
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultConfig.PollInterval
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = DefaultConfig.ConfirmTimeout
	}
	return &Transactor{backend: backend, opts: opts, cfg: cfg}
}

// NewReader creates a read-only transactor.
func NewReader(backend Backend, cfg Config) *Transactor {
	return NewTransactor(backend, nil, cfg)
}

// From returns the signing account, or the zero address for a reader.
func (t *Transactor) From() common.Address {
	if t.opts == nil {
		return common.Address{}
	}
	return t.opts.From
}

// Read executes a view call and returns the unpacked outputs.
func (t *Transactor) Read(ctx context.Context, call Call) ([]interface{}, error) {
	data, err := call.Data()
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, "rpc.read", err)
	}
	op := "rpc.read." + call.Method
	return retry(ctx, t.cfg.Policy, op, func(ctx context.Context) ([]interface{}, error) {
		out, err := t.backend.CallContract(ctx, call.msg(t.From(), data), nil)
		if err != nil {
			return nil, err
		}
		values, err := call.ABI.Unpack(call.Method, out)
		if err != nil {
			return nil, fault.Wrap(fault.ContractReverted, op, fmt.Errorf("unpack %s: %w", call.Method, err))
		}
		return values, nil
	})
}

// Simulate dry-runs the call from the signing account against the latest
// state. A revert surfaces as ContractReverted with the decoded reason.
func (t *Transactor) Simulate(ctx context.Context, call Call) error {
	data, err := call.Data()
	if err != nil {
		return fault.Wrap(fault.InvalidInput, "rpc.simulate", err)
	}
	return t.cfg.Policy.Do(ctx, "rpc.simulate."+call.Method, func(ctx context.Context) error {
		_, err := t.backend.CallContract(ctx, call.msg(t.From(), data), nil)
		return err
	})
}

// Write simulates the call and, if it would succeed, signs and broadcasts it.
// Preparation is retried on transient failures. The transaction is signed
// once and every broadcast retry resends that same transaction, so a send
// whose response was lost never produces a second transaction.
func (t *Transactor) Write(ctx context.Context, call Call) (common.Hash, error) {
	if t.opts == nil {
		return common.Hash{}, fault.Wrap(fault.InvalidInput, "rpc.write", ErrReadOnly)
	}
	data, err := call.Data()
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.InvalidInput, "rpc.write", err)
	}
	op := "rpc.write." + call.Method
	tx, err := retry(ctx, t.cfg.Policy, op, func(ctx context.Context) (*types.Transaction, error) {
		return t.prepare(ctx, call, data)
	})
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := t.opts.Signer(t.opts.From, tx)
	if err != nil {
		return common.Hash{}, fault.Wrap(fault.UserDeclined, "rpc.sign", err)
	}
	if err := t.broadcast(ctx, "rpc.send."+call.Method, signed); err != nil {
		return common.Hash{}, err
	}
	log.Debug("Transaction submitted", "method", call.Method, "to", call.To, "tx", signed.Hash())
	return signed.Hash(), nil
}

// prepare simulates the call and builds the unsigned transaction.
func (t *Transactor) prepare(ctx context.Context, call Call, data []byte) (*types.Transaction, error) {
	msg := call.msg(t.opts.From, data)
	if _, err := t.backend.CallContract(ctx, msg, nil); err != nil {
		return nil, err
	}
	nonce, err := t.backend.PendingNonceAt(ctx, t.opts.From)
	if err != nil {
		return nil, err
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	gas, err := t.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, err
	}
	gas += gas * t.cfg.GasBufferPercent / 100

	to := call.To
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    call.value(),
		Data:     data,
	}), nil
}

// broadcast sends signed, resending the same transaction on transient
// failures. A node that already holds the transaction counts as success, as
// does a nonce conflict on a resend once the transaction has a receipt.
func (t *Transactor) broadcast(ctx context.Context, op string, signed *types.Transaction) error {
	resent := false
	return t.cfg.Policy.Do(ctx, op, func(ctx context.Context) error {
		err := t.backend.SendTransaction(ctx, signed)
		if err == nil {
			return nil
		}
		if isAlreadyKnown(err) {
			log.Debug("Transaction already known to node", "tx", signed.Hash())
			return nil
		}
		if resent && fault.Is(Classify(op, err), fault.NonceConflict) {
			if _, rerr := t.backend.TransactionReceipt(ctx, signed.Hash()); rerr == nil {
				log.Debug("Resent transaction already mined", "tx", signed.Hash())
				return nil
			}
		}
		resent = true
		return err
	})
}

// Wait polls for the receipt of hash. Each attempt is bounded by the confirm
// timeout; a timed-out attempt is transient and retried under the policy.
// A receipt with failed status is reported as ContractReverted.
func (t *Transactor) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := retry(ctx, t.cfg.Policy, "rpc.wait", func(ctx context.Context) (*types.Receipt, error) {
		return t.poll(ctx, hash)
	})
	if err != nil {
		if fault.Is(err, fault.TransientRPC) {
			return nil, &fault.Error{
				Kind:   fault.TransientRPC,
				Op:     "rpc.wait",
				Reason: "transaction confirmation timed out, it may still be processing: " + hash.Hex(),
				Err:    err,
			}
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &fault.Error{Kind: fault.ContractReverted, Op: "rpc.wait", Reason: "transaction reverted on-chain: " + hash.Hex()}
	}
	return receipt, nil
}

func (t *Transactor) poll(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			if classified := Classify("rpc.receipt", err); !fault.Is(classified, fault.TransientRPC) {
				return nil, classified
			}
			log.Debug("Receipt lookup failed", "tx", hash, "err", err)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fault.Wrap(fault.Unknown, "rpc.receipt", ctx.Err())
			}
			return nil, fault.Wrap(fault.TransientRPC, "rpc.receipt", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Execute writes the call and waits for its receipt.
func (t *Transactor) Execute(ctx context.Context, call Call) (*types.Receipt, error) {
	hash, err := t.Write(ctx, call)
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx, hash)
}
