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

// Package zodiac provides Go bindings for the ZodiacCard payment and NFT
// contracts. Writes are returned as txn.Call descriptors so that every
// submission goes through the simulate-then-submit path of package txn;
// reads go through a Reader with the same retry policy.
package zodiac

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac/contract"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Errors returned by the event decoders.
var (
	ErrNoEventSignature       = errors.New("zodiac: log has no event signature")
	ErrEventSignatureMismatch = errors.New("zodiac: log is not the expected event")
	ErrTopicCount             = errors.New("zodiac: unexpected number of indexed topics")
	ErrNoPaymentEvent         = errors.New("zodiac: no payment event in receipt")
	ErrNoMintEvent            = errors.New("zodiac: no mint event in receipt")
)

// Reader executes view calls.
type Reader interface {
	Read(ctx context.Context, call txn.Call) ([]interface{}, error)
}

// Parsed ABIs, shared by every binding and by test backends.
var (
	PaymentABI       = mustParse(contract.ImagePaymentABI)
	PaymentLegacyABI = mustParse(contract.ImagePaymentLegacyABI)
	NFTABI           = mustParse(contract.ZodiacNFTABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("zodiac: invalid ABI: %v", err))
	}
	return parsed
}

type binding struct {
	abi     abi.ABI
	address common.Address
	reader  Reader
}

func (b *binding) Address() common.Address { return b.address }

// ABI returns the parsed contract ABI.
func (b *binding) ABI() *abi.ABI { return &b.abi }

// HasMethod reports whether the deployed version exposes method.
func (b *binding) HasMethod(method string) bool {
	_, ok := b.abi.Methods[method]
	return ok
}

func (b *binding) call(method string, value *big.Int, args ...interface{}) txn.Call {
	return txn.Call{To: b.address, ABI: &b.abi, Method: method, Args: args, Value: value}
}

func (b *binding) read(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if b.reader == nil {
		return nil, fmt.Errorf("zodiac: no reader bound to %s", b.address.Hex())
	}
	return b.reader.Read(ctx, b.call(method, nil, args...))
}

// decode unpacks a log of the named event into out: data fields through the
// ABI, indexed fields from the topics.
func (b *binding) decode(out interface{}, event string, l types.Log) error {
	ev, ok := b.abi.Events[event]
	if !ok {
		return fmt.Errorf("zodiac: event %s not in ABI", event)
	}
	if len(l.Topics) == 0 {
		return ErrNoEventSignature
	}
	if l.Topics[0] != ev.ID {
		return ErrEventSignatureMismatch
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(l.Topics)-1 != len(indexed) {
		return ErrTopicCount
	}
	if len(l.Data) > 0 {
		if err := b.abi.UnpackIntoInterface(out, event, l.Data); err != nil {
			return err
		}
	}
	return abi.ParseTopics(out, indexed, l.Topics[1:])
}

// ──────────────────────────────────────────────
//  Image payment contract
// ──────────────────────────────────────────────

// ImagePayment binds one deployed version of the image payment contract.
type ImagePayment struct {
	binding
}

// NewImagePayment binds the current payment contract at addr.
func NewImagePayment(addr common.Address, reader Reader) *ImagePayment {
	return &ImagePayment{binding{abi: PaymentABI, address: addr, reader: reader}}
}

// NewLegacyImagePayment binds a V2 payment contract at addr.
func NewLegacyImagePayment(addr common.Address, reader Reader) *ImagePayment {
	return &ImagePayment{binding{abi: PaymentLegacyABI, address: addr, reader: reader}}
}

// Generation is the on-chain record linking a payment to its metadata and,
// once minted, to its token. Field order matches the contract struct.
type Generation struct {
	MetadataURI string
	TokenId     *big.Int
	IsMinted    bool
	CreatedAt   *big.Int
	MintedAt    *big.Int
}

// Payment is the on-chain record of a fee payment.
type Payment struct {
	User           common.Address
	Amount         *big.Int
	Timestamp      *big.Int
	ImageS3Key     string
	ImageGenerated bool
}

// PaymentReceived is the decoded ImagePaymentReceived event.
type PaymentReceived struct {
	User      common.Address
	PaymentId *big.Int
	Amount    *big.Int
	Timestamp *big.Int
	Raw       types.Log
}

// PayForImage pays the image fee.
func (p *ImagePayment) PayForImage(fee *big.Int) txn.Call {
	return p.call("payForImage", fee)
}

// StoreGeneration records the metadata address of a payment's generation.
func (p *ImagePayment) StoreGeneration(paymentID *big.Int, metadataURI string) txn.Call {
	return p.call("storeGeneration", nil, paymentID, metadataURI)
}

// MarkAsMinted links a payment's generation to the token minted from it.
func (p *ImagePayment) MarkAsMinted(paymentID, tokenID *big.Int) txn.Call {
	return p.call("markAsMinted", nil, paymentID, tokenID)
}

// GetGeneration reads the generation record of a payment.
func (p *ImagePayment) GetGeneration(ctx context.Context, paymentID *big.Int) (*Generation, error) {
	out, err := p.read(ctx, "getGeneration", paymentID)
	if err != nil {
		return nil, err
	}
	gen := *abi.ConvertType(out[0], new(Generation)).(*Generation)
	return &gen, nil
}

// GetPayment reads the payment record.
func (p *ImagePayment) GetPayment(ctx context.Context, paymentID *big.Int) (*Payment, error) {
	out, err := p.read(ctx, "getPayment", paymentID)
	if err != nil {
		return nil, err
	}
	return &Payment{
		User:           out[0].(common.Address),
		Amount:         out[1].(*big.Int),
		Timestamp:      out[2].(*big.Int),
		ImageS3Key:     out[3].(string),
		ImageGenerated: out[4].(bool),
	}, nil
}

// GetUserCollection returns every payment of user with its generation record.
func (p *ImagePayment) GetUserCollection(ctx context.Context, user common.Address) ([]*big.Int, []Generation, error) {
	out, err := p.read(ctx, "getUserCollection", user)
	if err != nil {
		return nil, nil, err
	}
	ids := out[0].([]*big.Int)
	gens := *abi.ConvertType(out[1], new([]Generation)).(*[]Generation)
	if len(ids) != len(gens) {
		return nil, nil, fmt.Errorf("zodiac: collection length mismatch: %d ids, %d generations", len(ids), len(gens))
	}
	return ids, gens, nil
}

// ImageFee reads the fee required by payForImage.
func (p *ImagePayment) ImageFee(ctx context.Context) (*big.Int, error) {
	out, err := p.read(ctx, "imageFee")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ParsePaymentReceived decodes an ImagePaymentReceived log.
func (p *ImagePayment) ParsePaymentReceived(l types.Log) (*PaymentReceived, error) {
	ev := new(PaymentReceived)
	if err := p.decode(ev, "ImagePaymentReceived", l); err != nil {
		return nil, err
	}
	ev.Raw = l
	return ev, nil
}

// RawPaymentID reads the payment id from topic slot 2 of a log carrying at
// least three topics. It is the fallback for logs the structured decoder
// rejects.
func RawPaymentID(l types.Log) (*big.Int, bool) {
	if len(l.Topics) < 3 {
		return nil, false
	}
	return new(big.Int).SetBytes(l.Topics[2].Bytes()), true
}

// PaymentIDFromReceipt returns the payment id emitted by this contract in
// receipt. Structured decoding is tried on every log before the raw topic
// fallback.
func (p *ImagePayment) PaymentIDFromReceipt(receipt *types.Receipt) (*big.Int, error) {
	var fallback *types.Log
	for _, l := range receipt.Logs {
		if l.Address != p.address {
			continue
		}
		ev, err := p.ParsePaymentReceived(*l)
		if err == nil {
			return ev.PaymentId, nil
		}
		if fallback == nil && len(l.Topics) >= 3 {
			fallback = l
		}
	}
	if fallback != nil {
		if id, ok := RawPaymentID(*fallback); ok {
			return id, nil
		}
	}
	return nil, ErrNoPaymentEvent
}

// ──────────────────────────────────────────────
//  NFT contract
// ──────────────────────────────────────────────

// ZodiacNFT binds one deployed version of the ZodiacCard NFT contract.
type ZodiacNFT struct {
	binding
}

// NewZodiacNFT binds the NFT contract at addr.
func NewZodiacNFT(addr common.Address, reader Reader) *ZodiacNFT {
	return &ZodiacNFT{binding{abi: NFTABI, address: addr, reader: reader}}
}

// NFTMinted is the decoded NFTMinted event.
type NFTMinted struct {
	To       common.Address
	TokenId  *big.Int
	TokenURI string
	Raw      types.Log
}

// Transfer is the decoded ERC-721 Transfer event.
type Transfer struct {
	From    common.Address
	To      common.Address
	TokenId *big.Int
	Raw     types.Log
}

// Mint mints a token with tokenURI to the recipient, paying fee.
func (n *ZodiacNFT) Mint(to common.Address, tokenURI string, fee *big.Int) txn.Call {
	return n.call("mint", fee, to, tokenURI)
}

// TokenURI reads the metadata address of a token.
func (n *ZodiacNFT) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := n.read(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// OwnerOf reads the current owner of a token.
func (n *ZodiacNFT) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := n.read(ctx, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// NextTokenId reads the id the next mint will receive.
func (n *ZodiacNFT) NextTokenId(ctx context.Context) (*big.Int, error) {
	out, err := n.read(ctx, "nextTokenId")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// MintFee reads the fee required by mint.
func (n *ZodiacNFT) MintFee(ctx context.Context) (*big.Int, error) {
	out, err := n.read(ctx, "mintFee")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ParseNFTMinted decodes an NFTMinted log.
func (n *ZodiacNFT) ParseNFTMinted(l types.Log) (*NFTMinted, error) {
	ev := new(NFTMinted)
	if err := n.decode(ev, "NFTMinted", l); err != nil {
		return nil, err
	}
	ev.Raw = l
	return ev, nil
}

// ParseTransfer decodes an ERC-721 Transfer log.
func (n *ZodiacNFT) ParseTransfer(l types.Log) (*Transfer, error) {
	ev := new(Transfer)
	if err := n.decode(ev, "Transfer", l); err != nil {
		return nil, err
	}
	ev.Raw = l
	return ev, nil
}

// MintedTokenID returns the token id minted in receipt, preferring the
// NFTMinted event and falling back to a Transfer from the zero address.
func (n *ZodiacNFT) MintedTokenID(receipt *types.Receipt) (*big.Int, error) {
	var fromTransfer *big.Int
	for _, l := range receipt.Logs {
		if l.Address != n.address {
			continue
		}
		if ev, err := n.ParseNFTMinted(*l); err == nil {
			return ev.TokenId, nil
		}
		if ev, err := n.ParseTransfer(*l); err == nil && ev.From == (common.Address{}) && fromTransfer == nil {
			fromTransfer = ev.TokenId
		}
	}
	if fromTransfer != nil {
		return fromTransfer, nil
	}
	return nil, ErrNoMintEvent
}
