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

// Package zodiactest provides an in-memory chain that executes the ZodiacCard
// payment and NFT contracts, for tests of code built on package txn.
package zodiactest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChainID is the id the simulated chain signs for (Celo mainnet).
var ChainID = big.NewInt(42220)

const (
	gasPrice    = 1_000_000_000
	gasEstimate = 90_000
	genesisTime = 1_700_000_000
	blockTime   = 5
)

// Chain is a single-node, instantly-mining chain hosting any number of
// payment and NFT contracts.
type Chain struct {
	mu       sync.Mutex
	signer   types.Signer
	deployed int64

	payments map[common.Address]*paymentContract
	nfts     map[common.Address]*nftContract

	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	block    uint64
	now      uint64

	faults        map[string][]error
	lostSends     []error
	reverts       map[string][]string
	calls         map[string]int
	receiptDelays int
}

type paymentContract struct {
	legacy   bool
	abi      *abi.ABI
	fee      *big.Int
	next     uint64
	backend  common.Address
	payments map[uint64]*paymentRecord
	byUser   map[common.Address][]uint64
}

type paymentRecord struct {
	user      common.Address
	amount    *big.Int
	timestamp uint64
	gen       zodiac.Generation
}

type nftContract struct {
	abi    *abi.ABI
	fee    *big.Int
	next   uint64
	owners map[uint64]common.Address
	uris   map[uint64]string
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{
		signer:   types.LatestSignerForChainID(ChainID),
		payments: make(map[common.Address]*paymentContract),
		nfts:     make(map[common.Address]*nftContract),
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*big.Int),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
		now:      genesisTime,
		faults:   make(map[string][]error),
		reverts:  make(map[string][]string),
		calls:    make(map[string]int),
	}
}

// Account is a funded test key with its transact options.
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
	Opts    *bind.TransactOpts
}

// NewAccount generates a key and transact options for the simulated chain.
func NewAccount() *Account {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, ChainID)
	if err != nil {
		panic(err)
	}
	return &Account{Key: key, Address: opts.From, Opts: opts}
}

func (c *Chain) nextAddress() common.Address {
	c.deployed++
	return common.BigToAddress(big.NewInt(0x2a0000 + c.deployed))
}

// DeployPayment deploys a current payment contract whose storeGeneration is
// restricted to backend. The first payment receives firstID.
func (c *Chain) DeployPayment(fee *big.Int, backend common.Address, firstID uint64) common.Address {
	return c.deployPayment(false, &zodiac.PaymentABI, fee, backend, firstID)
}

// DeployLegacyPayment deploys a V2 payment contract.
func (c *Chain) DeployLegacyPayment(fee *big.Int, firstID uint64) common.Address {
	return c.deployPayment(true, &zodiac.PaymentLegacyABI, fee, common.Address{}, firstID)
}

func (c *Chain) deployPayment(legacy bool, parsed *abi.ABI, fee *big.Int, backend common.Address, firstID uint64) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := c.nextAddress()
	c.payments[addr] = &paymentContract{
		legacy:   legacy,
		abi:      parsed,
		fee:      new(big.Int).Set(fee),
		next:     firstID,
		backend:  backend,
		payments: make(map[uint64]*paymentRecord),
		byUser:   make(map[common.Address][]uint64),
	}
	return addr
}

// DeployNFT deploys an NFT contract whose first token receives firstID.
func (c *Chain) DeployNFT(fee *big.Int, firstID uint64) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := c.nextAddress()
	c.nfts[addr] = &nftContract{
		abi:    &zodiac.NFTABI,
		fee:    new(big.Int).Set(fee),
		next:   firstID,
		owners: make(map[uint64]common.Address),
		uris:   make(map[uint64]string),
	}
	return addr
}

// Fund limits addr to balance. Accounts never funded have unlimited balance.
func (c *Chain) Fund(addr common.Address, balance *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Set(balance)
}

// Fail queues errors returned by the next invocations of an RPC method
// (e.g. "SendTransaction"), one per invocation.
func (c *Chain) Fail(rpcMethod string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[rpcMethod] = append(c.faults[rpcMethod], errs...)
}

// SetImageFee changes the fee of a deployed payment contract, as its owner
// would.
func (c *Chain) SetImageFee(payment common.Address, fee *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payments[payment].fee = new(big.Int).Set(fee)
}

// LoseSends makes the next sends apply the transaction and then report err,
// once per queued error, as a node whose response never arrived.
func (c *Chain) LoseSends(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lostSends = append(c.lostSends, errs...)
}

// Revert makes the next executions of a contract method revert with reason,
// once per queued reason.
func (c *Chain) Revert(contractMethod string, reasons ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reverts[contractMethod] = append(c.reverts[contractMethod], reasons...)
}

// DelayReceipts makes the next n receipt lookups report the receipt missing.
func (c *Chain) DelayReceipts(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptDelays = n
}

// Calls returns how often an RPC method or contract method was invoked.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// TransferToken moves a token between owners outside of any transaction.
func (c *Chain) TransferToken(nft common.Address, tokenID uint64, to common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nfts[nft].owners[tokenID] = to
}

// Now returns the timestamp of the latest block.
func (c *Chain) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Chain) enter(method string) error {
	c.calls[method]++
	if queued := c.faults[method]; len(queued) > 0 {
		c.faults[method] = queued[1:]
		return queued[0]
	}
	return nil
}

// ──────────────────────────────────────────────
//  Backend
// ──────────────────────────────────────────────

// ChainID returns the chain id.
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(ChainID), nil
}

// CallContract executes msg against the latest state without committing.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CallContract"); err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, errors.New("contract creation not supported")
	}
	out, _, err := c.exec(msg.From, *msg.To, msg.Value, msg.Data, false)
	return out, err
}

// EstimateGas returns a fixed estimate for calls that would succeed.
func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("EstimateGas"); err != nil {
		return 0, err
	}
	if err := c.checkBalance(msg.From, msg.Value, 0); err != nil {
		return 0, err
	}
	if msg.To == nil {
		return 0, errors.New("contract creation not supported")
	}
	if _, _, err := c.exec(msg.From, *msg.To, msg.Value, msg.Data, false); err != nil {
		return 0, err
	}
	return gasEstimate, nil
}

// PendingNonceAt returns the next nonce of account.
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("PendingNonceAt"); err != nil {
		return 0, err
	}
	return c.nonces[account], nil
}

// SuggestGasPrice returns a fixed gas price.
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SuggestGasPrice"); err != nil {
		return nil, err
	}
	return big.NewInt(gasPrice), nil
}

// SendTransaction mines tx into its own block.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SendTransaction"); err != nil {
		return err
	}
	if _, ok := c.txs[tx.Hash()]; ok {
		return errors.New("already known")
	}
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	switch nonce := c.nonces[from]; {
	case tx.Nonce() < nonce:
		return fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), nonce)
	case tx.Nonce() > nonce:
		return fmt.Errorf("nonce too high: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), nonce)
	}
	if err := c.checkBalance(from, tx.Value(), tx.Gas()); err != nil {
		return err
	}
	if tx.To() == nil {
		return errors.New("contract creation not supported")
	}
	c.nonces[from]++
	c.block++
	c.now += blockTime
	if bal, ok := c.balances[from]; ok {
		bal.Sub(bal, tx.Value())
	}

	receipt := &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: gasEstimate,
		GasUsed:           gasEstimate,
		TxHash:            tx.Hash(),
		BlockNumber:       new(big.Int).SetUint64(c.block),
		BlockHash:         common.BigToHash(new(big.Int).SetUint64(c.block)),
	}
	_, logs, execErr := c.exec(from, *tx.To(), tx.Value(), tx.Data(), true)
	if execErr != nil {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		for i, l := range logs {
			l.TxHash = tx.Hash()
			l.BlockNumber = c.block
			l.BlockHash = receipt.BlockHash
			l.Index = uint(i)
		}
		receipt.Logs = logs
	}
	c.txs[tx.Hash()] = tx
	c.receipts[tx.Hash()] = receipt
	if len(c.lostSends) > 0 {
		err := c.lostSends[0]
		c.lostSends = c.lostSends[1:]
		return err
	}
	return nil
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("TransactionReceipt"); err != nil {
		return nil, err
	}
	if c.receiptDelays > 0 {
		c.receiptDelays--
		return nil, ethereum.NotFound
	}
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// TransactionByHash returns a mined transaction.
func (c *Chain) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("TransactionByHash"); err != nil {
		return nil, false, err
	}
	tx, ok := c.txs[txHash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (c *Chain) checkBalance(from common.Address, value *big.Int, gas uint64) error {
	bal, ok := c.balances[from]
	if !ok {
		return nil
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gas), big.NewInt(gasPrice))
	if value != nil {
		cost.Add(cost, value)
	}
	if bal.Cmp(cost) < 0 {
		return fmt.Errorf("insufficient funds for gas * price + value: address %s have %v want %v", from.Hex(), bal, cost)
	}
	return nil
}

// ──────────────────────────────────────────────
//  Reverts
// ──────────────────────────────────────────────

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// RevertError mirrors the JSON-RPC error geth returns for a reverted call.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// ErrorCode returns the JSON-RPC code of execution errors.
func (e *RevertError) ErrorCode() int { return 3 }

// ErrorData returns the hex-encoded Error(string) revert payload.
func (e *RevertError) ErrorData() interface{} {
	if e.Reason == "" {
		return nil
	}
	stringTy, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringTy}}.Pack(e.Reason)
	return hexutil.Encode(append(common.CopyBytes(revertSelector), packed...))
}

func revert(reason string) error { return &RevertError{Reason: reason} }
