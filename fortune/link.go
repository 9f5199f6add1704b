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
	"math/big"
	"time"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/storage"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Pinner uploads to content-addressed storage and returns CIDs.
type Pinner interface {
	PinJSON(ctx context.Context, name string, v interface{}) (string, error)
	PinURL(ctx context.Context, name, url string) (string, error)
}

// LinkRequest asks for a generation document to be linked to a payment.
type LinkRequest struct {
	PaymentID   *big.Int       `json:"paymentId"`
	PaymentTx   common.Hash    `json:"paymentTx"`
	MetadataURI string         `json:"metadataURI"`
	Requester   common.Address `json:"userAddress"`
}

// LinkResult reports the canonical metadata address of the payment.
type LinkResult struct {
	MetadataURI string      `json:"metadataURI"`
	TxHash      common.Hash `json:"txHash"`
}

// Linker writes the link transaction. It is executed with a backend key, so
// implementations must check that the requester owns the payment.
type Linker interface {
	Link(ctx context.Context, req LinkRequest) (LinkResult, error)
}

// LinkStage uploads the generation document and links it to the payment.
type LinkStage struct {
	pinner Pinner
	linker Linker
	now    func() time.Time
}

// NewLinkStage creates the linking stage.
func NewLinkStage(pinner Pinner, linker Linker) *LinkStage {
	return &LinkStage{pinner: pinner, linker: linker, now: time.Now}
}

// Link moves a run from ImageDone to Linked. The document is uploaded at most
// once per run: its address is kept on the run as soon as the upload
// succeeds, and a retried link reuses it.
func (l *LinkStage) Link(ctx context.Context, run Run) (Run, error) {
	if run.Past(StageImageDone) {
		return run, nil
	}
	if run.Stage != StageImageDone {
		return run, ErrInvalidStage
	}
	if run.MetadataURI == "" {
		doc, err := NewGenerationDocument(run, l.now())
		if err != nil {
			return run, err
		}
		cid, err := l.pinner.PinJSON(ctx, doc.Name(), doc)
		if err != nil {
			return run, fault.Scope("upload generation", err)
		}
		run.MetadataURI = storage.URI(cid)
		log.Info("Generation document uploaded", "run", run.ID, "uri", run.MetadataURI)
	}

	res, err := l.linker.Link(ctx, LinkRequest{
		PaymentID:   run.PaymentID,
		PaymentTx:   run.PaymentTx,
		MetadataURI: run.MetadataURI,
		Requester:   run.User,
	})
	if err != nil {
		return run, err
	}
	if res.MetadataURI != "" && res.MetadataURI != run.MetadataURI {
		log.Warn("Payment already linked to another document", "run", run.ID, "ours", run.MetadataURI, "canonical", res.MetadataURI)
		run.MetadataURI = res.MetadataURI
	}
	run.LinkTx = res.TxHash
	run.Stage = StageLinked
	return run, nil
}

// BackendLinker links generations with the backend key. The payment record
// is the authority on ownership; metadata already on-chain is never
// overwritten.
type BackendLinker struct {
	tx      *txn.Transactor
	payment *zodiac.ImagePayment
}

// NewBackendLinker creates a linker signing with the backend key.
func NewBackendLinker(tx *txn.Transactor, payment *zodiac.ImagePayment) *BackendLinker {
	return &BackendLinker{tx: tx, payment: payment}
}

// Link checks ownership and submits storeGeneration.
func (b *BackendLinker) Link(ctx context.Context, req LinkRequest) (LinkResult, error) {
	if req.PaymentID == nil || req.MetadataURI == "" {
		return LinkResult{}, fault.New(fault.InvalidInput, "link", "payment id and metadata URI are required")
	}
	p, err := b.payment.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return LinkResult{}, err
	}
	if p.User == (common.Address{}) {
		return LinkResult{}, fault.New(fault.NotFound, "link", "payment "+req.PaymentID.String()+" does not exist")
	}
	if p.User != req.Requester {
		log.Warn("Rejected link for foreign payment", "paymentId", req.PaymentID, "payer", p.User, "requester", req.Requester)
		return LinkResult{}, fault.New(fault.Unauthorized, "link", "payment does not belong to "+req.Requester.Hex())
	}

	gen, err := b.payment.GetGeneration(ctx, req.PaymentID)
	if err != nil {
		return LinkResult{}, err
	}
	if gen.MetadataURI != "" {
		return LinkResult{MetadataURI: gen.MetadataURI}, nil
	}

	receipt, err := b.tx.Execute(ctx, b.payment.StoreGeneration(req.PaymentID, req.MetadataURI))
	if err != nil {
		return LinkResult{}, err
	}
	log.Info("Generation linked", "paymentId", req.PaymentID, "uri", req.MetadataURI, "tx", receipt.TxHash)
	return LinkResult{MetadataURI: req.MetadataURI, TxHash: receipt.TxHash}, nil
}
