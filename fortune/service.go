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
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// ErrNotConfigured is returned by operations whose collaborator was not
// provided, such as minting without a user key.
var ErrNotConfigured = errors.New("fortune: operation not configured")

// Journal records runs so an interrupted client can resume them.
type Journal interface {
	Save(run Run) error
}

// Components are the collaborators a Service drives. Any of them may be nil;
// operations needing a missing one fail with ErrNotConfigured.
type Components struct {
	Payment    *PaymentStage
	Generation *GenerationStage
	Link       *LinkStage
	Mint       *MintStage

	Linker    Linker
	Verifier  *PaymentVerifier
	Collector *Collector
	Contract  *zodiac.ImagePayment
	Resolver  Resolver
	Fees      *FeeSchedule
	Journal   Journal
}

// Service orchestrates the pay, generate, link and mint lifecycle of a card:
//  1. Pay the image fee and recover the payment id
//  2. Generate the fortune text (with a fallback) and the card image
//  3. Upload the generation document and link it to the payment
//  4. Upload the image and token metadata, mint, and mark the payment minted
//
// Every step is a stage of the Pipeline; the run value carries the progress
// and is saved to the Journal after each transition.
type Service struct {
	pipeline   *Pipeline
	generation *GenerationStage
	linker     Linker
	verifier   *PaymentVerifier
	collector  *Collector
	contract   *zodiac.ImagePayment
	resolver   Resolver
	fees       *FeeSchedule
	journal    Journal
}

// NewService registers a processor for every provided stage. Without a link
// stage, image-complete runs go straight to minting.
func NewService(c Components) *Service {
	p := NewPipeline()
	if c.Payment != nil {
		p.Register(NewProcessor(StageIdle, c.Payment.Pay))
	}
	if c.Generation != nil {
		p.Register(NewProcessor(StagePaid, c.Generation.Text))
		p.Register(NewProcessor(StageTextDone, c.Generation.Image))
	}
	if c.Link != nil {
		p.Register(NewProcessor(StageImageDone, c.Link.Link))
	}
	if c.Mint != nil {
		if c.Link == nil {
			p.Register(NewProcessor(StageImageDone, c.Mint.Mint))
		}
		p.Register(NewProcessor(StageLinked, c.Mint.Mint))
		p.Register(NewProcessor(StageMinted, c.Mint.Mint))
	}
	return &Service{
		pipeline:   p,
		generation: c.Generation,
		linker:     c.Linker,
		verifier:   c.Verifier,
		collector:  c.Collector,
		contract:   c.Contract,
		resolver:   c.Resolver,
		fees:       c.Fees,
		journal:    c.Journal,
	}
}

// ──────────────────────────────────────────────
//  Runs
// ──────────────────────────────────────────────

// Start creates and records a new idle run.
func (s *Service) Start(p Profile) (Run, error) {
	run, err := NewRun(p)
	if err != nil {
		return Run{}, err
	}
	s.save(run)
	log.Info("Run started", "run", run.ID, "user", run.User, "type", run.ZodiacType, "sign", run.Sign)
	return run, nil
}

// Execute drives run until it is minted and cross-linked.
func (s *Service) Execute(ctx context.Context, run Run) (Run, error) {
	return s.ExecuteUntil(ctx, run, StageMinted)
}

// ExecuteUntil advances run until it reaches target. A failed run is resumed
// from the stage it failed in. A minted run whose cross-link fails again is
// returned without error; the cross-link stays pending.
func (s *Service) ExecuteUntil(ctx context.Context, run Run, target Stage) (Run, error) {
	run = run.Resume()
	for !reached(run, target) {
		retrying := run.Stage == StageMinted
		next, err := s.pipeline.Advance(ctx, run)
		s.save(next)
		if err != nil {
			return next, err
		}
		run = next
		if retrying && run.CrossLinkPending {
			return run, nil
		}
	}
	return run, nil
}

func reached(run Run, target Stage) bool {
	switch {
	case run.Stage == StageFailed:
		return false
	case run.Stage > target:
		return true
	case run.Stage == target:
		return target != StageMinted || !run.CrossLinkPending
	}
	return false
}

// ResumePayment rebuilds a run for a payment made in an earlier session from
// contract state and the linked generation document.
func (s *Service) ResumePayment(ctx context.Context, p Profile, paymentID *big.Int) (Run, error) {
	if s.contract == nil {
		return Run{}, ErrNotConfigured
	}
	run, err := NewRun(p)
	if err != nil {
		return Run{}, err
	}
	pay, err := s.contract.GetPayment(ctx, paymentID)
	if err != nil {
		return Run{}, err
	}
	switch {
	case pay.User == (common.Address{}):
		return Run{}, fault.New(fault.NotFound, "resume", "payment "+paymentID.String()+" does not exist")
	case pay.User != run.User:
		return Run{}, fault.New(fault.Unauthorized, "resume", "payment does not belong to "+run.User.Hex())
	}
	run.PaymentID = paymentID
	run.PaymentAmount = pay.Amount
	run.CreatedAt = unixTime(pay.Timestamp)
	run.Stage = StagePaid

	if s.contract.HasMethod("getGeneration") {
		gen, err := s.contract.GetGeneration(ctx, paymentID)
		if err != nil {
			return Run{}, err
		}
		if gen.MetadataURI != "" {
			if err := s.restoreDocument(ctx, &run, gen.MetadataURI); err != nil {
				return Run{}, err
			}
			run.Stage = StageLinked
		}
		if gen.IsMinted {
			run.TokenID = gen.TokenId
			run.Stage = StageMinted
		}
	}
	s.save(run)
	log.Info("Run resumed from chain", "run", run.ID, "paymentId", paymentID, "stage", run.Stage)
	return run, nil
}

func (s *Service) restoreDocument(ctx context.Context, run *Run, uri string) error {
	if s.resolver == nil {
		return ErrNotConfigured
	}
	var doc GenerationDocument
	if err := s.resolver.FetchJSON(ctx, uri, &doc); err != nil {
		return fault.Scope("resume", err)
	}
	run.MetadataURI = uri
	run.Fortune = doc.FortuneText
	run.ImageURL = doc.ImageURL
	if doc.Theme != "" {
		run.Theme = doc.Theme
	}
	if doc.PaymentTxHash != "" {
		run.PaymentTx = common.HexToHash(doc.PaymentTxHash)
	}
	return nil
}

func (s *Service) save(run Run) {
	if s.journal == nil {
		return
	}
	// The chain stays the record of truth; a lost journal entry only costs
	// a ResumePayment.
	if err := s.journal.Save(run); err != nil {
		log.Error("Failed to journal run", "run", run.ID, "stage", run.Stage, "err", err)
	}
}

// ──────────────────────────────────────────────
//  Backend operations
// ──────────────────────────────────────────────

// VerifyPayment checks that tx is a successful image payment by user.
func (s *Service) VerifyPayment(ctx context.Context, tx common.Hash, user common.Address) (*PaymentProof, error) {
	if s.verifier == nil {
		return nil, ErrNotConfigured
	}
	return s.verifier.Verify(ctx, tx, user)
}

// Link links a generation document to a payment.
func (s *Service) Link(ctx context.Context, req LinkRequest) (LinkResult, error) {
	if s.linker == nil {
		return LinkResult{}, ErrNotConfigured
	}
	return s.linker.Link(ctx, req)
}

// Fortune tells a fortune outside of any run.
func (s *Service) Fortune(ctx context.Context, req generate.FortuneRequest) (string, bool) {
	if s.generation == nil {
		return generate.FallbackFortune(req.Sign, generate.Element(req.ZodiacType, req.Sign)), true
	}
	return s.generation.Fortune(ctx, req)
}

// FetchMetadata resolves a content address to its JSON document.
func (s *Service) FetchMetadata(ctx context.Context, uri string) (json.RawMessage, error) {
	if s.resolver == nil {
		return nil, ErrNotConfigured
	}
	var doc json.RawMessage
	if err := s.resolver.FetchJSON(ctx, uri, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ──────────────────────────────────────────────
//  Reads
// ──────────────────────────────────────────────

// Collection returns the cards of owner across every contract version.
func (s *Service) Collection(ctx context.Context, owner common.Address) ([]Entry, error) {
	if s.collector == nil {
		return nil, ErrNotConfigured
	}
	return s.collector.Collect(ctx, owner)
}

// Generation reads the generation record of a payment.
func (s *Service) Generation(ctx context.Context, paymentID *big.Int) (*zodiac.Generation, error) {
	if s.contract == nil {
		return nil, ErrNotConfigured
	}
	return s.contract.GetGeneration(ctx, paymentID)
}

// Fees returns the fee schedule.
func (s *Service) Fees() *FeeSchedule {
	return s.fees
}

// ──────────────────────────────────────────────
//  JSON-RPC API
// ──────────────────────────────────────────────

// API exposes the service over JSON-RPC. Method namespace: "fortune".
type API struct {
	service *Service
}

// NewAPI creates a JSON-RPC API backed by the given service.
func NewAPI(service *Service) *API {
	return &API{service: service}
}

// Quote is a fee in the smallest unit and formatted.
type Quote struct {
	Wei       string `json:"wei"`
	Formatted string `json:"formatted"`
}

// QuoteImage handles "fortune_quoteImage" RPC calls.
func (api *API) QuoteImage() (*Quote, error) {
	fees := api.service.Fees()
	if fees == nil {
		return nil, ErrNotConfigured
	}
	v := fees.QuoteImage()
	return &Quote{Wei: v.String(), Formatted: fees.Format(v)}, nil
}

// QuoteMint handles "fortune_quoteMint" RPC calls.
func (api *API) QuoteMint() (*Quote, error) {
	fees := api.service.Fees()
	if fees == nil {
		return nil, ErrNotConfigured
	}
	v := fees.QuoteMint()
	return &Quote{Wei: v.String(), Formatted: fees.Format(v)}, nil
}

// GenerationRecord is the JSON form of an on-chain generation record.
type GenerationRecord struct {
	MetadataURI string    `json:"metadataURI"`
	TokenID     *big.Int  `json:"tokenId"`
	IsMinted    bool      `json:"isMinted"`
	CreatedAt   time.Time `json:"createdAt"`
	MintedAt    time.Time `json:"mintedAt"`
}

// GetGeneration handles "fortune_getGeneration" RPC calls.
func (api *API) GetGeneration(ctx context.Context, paymentID string) (*GenerationRecord, error) {
	id, ok := new(big.Int).SetString(paymentID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid payment id: %s", paymentID)
	}
	gen, err := api.service.Generation(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GenerationRecord{
		MetadataURI: gen.MetadataURI,
		TokenID:     gen.TokenId,
		IsMinted:    gen.IsMinted,
		CreatedAt:   unixTime(gen.CreatedAt),
		MintedAt:    unixTime(gen.MintedAt),
	}, nil
}

// Collection handles "fortune_collection" RPC calls.
func (api *API) Collection(ctx context.Context, owner common.Address) ([]Entry, error) {
	return api.service.Collection(ctx, owner)
}
