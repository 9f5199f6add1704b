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
	"time"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/referral"
	"github.com/JulioMCruz/ZodiacCards/fortune/storage"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Resolver dereferences content addresses.
type Resolver interface {
	FetchJSON(ctx context.Context, uri string, v interface{}) error
	URL(uri string) string
}

// MintConfig carries the fixed parameters of the mint stage.
type MintConfig struct {
	ChainID int64
	SiteURL string
}

// MintStage uploads the card image and its token metadata, mints the token
// and cross-links it to the payment.
type MintStage struct {
	tx       *txn.Transactor
	payment  *zodiac.ImagePayment
	nft      *zodiac.ZodiacNFT
	pinner   Pinner
	resolver Resolver
	referral *referral.Reporter
	fees     *FeeSchedule
	cfg      MintConfig
	now      func() time.Time
}

// NewMintStage creates the mint stage. tx must sign for the user; reporter
// may be nil.
func NewMintStage(tx *txn.Transactor, payment *zodiac.ImagePayment, nft *zodiac.ZodiacNFT, pinner Pinner, resolver Resolver, reporter *referral.Reporter, fees *FeeSchedule, cfg MintConfig) *MintStage {
	return &MintStage{
		tx:       tx,
		payment:  payment,
		nft:      nft,
		pinner:   pinner,
		resolver: resolver,
		referral: reporter,
		fees:     fees,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Mint moves a linked (or image-complete) run to Minted. On a minted run
// with a pending cross-link it only retries markAsMinted.
func (m *MintStage) Mint(ctx context.Context, run Run) (Run, error) {
	if run.Stage == StageMinted {
		if run.CrossLinkPending {
			return m.crossLink(ctx, run), nil
		}
		return run, nil
	}
	if run.Stage != StageLinked && run.Stage != StageImageDone {
		return run, ErrInvalidStage
	}
	if run.User != m.tx.From() {
		return run, fault.New(fault.Unauthorized, "mint", "run belongs to "+run.User.Hex())
	}

	if run.MintTx == (common.Hash{}) {
		var err error
		if run, err = m.prepare(ctx, run); err != nil {
			return run, err
		}
		call := m.nft.Mint(run.User, run.TokenURI, m.fees.QuoteMint())
		if tag := m.referral.Tag(run.User); tag != nil {
			call = call.WithSuffix(tag)
		}
		hash, err := m.tx.Write(ctx, call)
		if err != nil {
			if fault.Is(err, fault.InsufficientFunds) {
				return run, &fault.Error{Kind: fault.InsufficientFunds, Op: "mint", Reason: "minting requires " + m.fees.Format(m.fees.QuoteMint()), Err: err}
			}
			return run, err
		}
		run.MintTx = hash
		log.Info("Mint submitted", "run", run.ID, "tx", hash, "tokenURI", run.TokenURI)
	}

	receipt, err := m.tx.Wait(ctx, run.MintTx)
	if err != nil {
		if fault.Is(err, fault.ContractReverted) {
			run.MintTx = common.Hash{}
		}
		return run, err
	}
	id, err := m.nft.MintedTokenID(receipt)
	if errors.Is(err, zodiac.ErrNoMintEvent) {
		return run, &fault.Error{Kind: fault.NotFound, Op: "mint", Reason: "no mint event found in " + run.MintTx.Hex(), Err: err}
	}
	if err != nil {
		return run, err
	}
	run.TokenID = id
	run.Stage = StageMinted
	log.Info("Token minted", "run", run.ID, "tokenId", id, "tx", run.MintTx)

	// Attribution is best effort; Report logs its own failures.
	_ = m.referral.Report(ctx, run.MintTx, m.cfg.ChainID)
	return m.crossLink(ctx, run), nil
}

// prepare checks the payment has not been minted and uploads the image and
// the token metadata, skipping uploads a previous attempt completed.
func (m *MintStage) prepare(ctx context.Context, run Run) (Run, error) {
	if run.PaymentID == nil {
		return run, fault.New(fault.InvalidInput, "mint", "run has no payment id")
	}
	if m.payment.HasMethod("getGeneration") {
		gen, err := m.payment.GetGeneration(ctx, run.PaymentID)
		if err != nil {
			return run, err
		}
		if gen.IsMinted {
			return run, fault.New(fault.AlreadyMinted, "mint", "payment "+run.PaymentID.String()+" was minted as token "+gen.TokenId.String())
		}
	}

	if run.ImageCID == "" {
		source := m.imageSource(ctx, run)
		if storage.IsContentAddress(source) {
			run.ImageCID = storage.CID(source)
		} else {
			name := storage.ObjectName(run.Username, string(run.ZodiacType), run.Sign, m.now())
			cid, err := m.pinner.PinURL(ctx, name, source)
			if err != nil {
				return run, fault.Scope("upload image", err)
			}
			run.ImageCID = cid
		}
		log.Info("Card image uploaded", "run", run.ID, "cid", run.ImageCID)
	}

	if run.TokenURI == "" {
		meta := NewNFTMetadata(run, m.resolver.URL(storage.URI(run.ImageCID)), m.cfg.SiteURL)
		if err := meta.Validate(); err != nil {
			return run, err
		}
		cid, err := m.pinner.PinJSON(ctx, meta.Name, meta)
		if err != nil {
			return run, fault.Scope("upload metadata", err)
		}
		run.TokenURI = storage.URI(cid)
		log.Info("Token metadata uploaded", "run", run.ID, "uri", run.TokenURI)
	}
	return run, nil
}

// imageSource returns the image recorded in the linked generation document,
// or the run's own image when the document cannot be read.
func (m *MintStage) imageSource(ctx context.Context, run Run) string {
	if run.MetadataURI == "" {
		return run.ImageURL
	}
	var doc GenerationDocument
	if err := m.resolver.FetchJSON(ctx, run.MetadataURI, &doc); err != nil {
		log.Warn("Linked document unavailable, using run image", "run", run.ID, "uri", run.MetadataURI, "err", err)
		return run.ImageURL
	}
	if doc.ImageURL == "" {
		return run.ImageURL
	}
	return doc.ImageURL
}

// crossLink records the token on the payment. A failure leaves the run
// Minted with the cross-link pending.
func (m *MintStage) crossLink(ctx context.Context, run Run) Run {
	if !m.payment.HasMethod("markAsMinted") {
		run.CrossLinkPending = false
		return run
	}
	receipt, err := m.tx.Execute(ctx, m.payment.MarkAsMinted(run.PaymentID, run.TokenID))
	if err != nil {
		log.Warn("Cross-link failed, token is minted", "run", run.ID, "paymentId", run.PaymentID, "tokenId", run.TokenID, "kind", fault.KindOf(err), "err", err)
		run.CrossLinkPending = true
		return run
	}
	run.MarkTx = receipt.TxHash
	run.CrossLinkPending = false
	log.Info("Generation marked as minted", "run", run.ID, "paymentId", run.PaymentID, "tokenId", run.TokenID, "tx", receipt.TxHash)
	return run
}
