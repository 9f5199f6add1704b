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

// Package fortune implements the payment-gated generation-and-mint pipeline
// for ZodiacCard fortunes. A Run moves through
//
//	Idle → Paid → TextDone → ImageDone → Linked → Minted
//
// one stage at a time. Every stage is a function from Run to Run: the run is
// passed in, and the updated run is returned, so a stage can never observe a
// half-applied transition and re-invoking a stage on a run that is already
// past it is a no-op. Any failure moves the run to Failed, remembering the
// stage it failed in so that it can be resumed with every artefact produced
// so far (transaction hashes, content addresses) intact.
package fortune

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Stage is the position of a run in the pipeline.
type Stage uint8

const (
	StageIdle      Stage = iota // nothing paid yet
	StagePaid                   // payment confirmed, payment id known
	StageTextDone               // fortune text produced (possibly the fallback)
	StageImageDone              // card image produced and persisted
	StageLinked                 // generation document linked to the payment
	StageMinted                 // token minted
	StageFailed                 // a stage failed; see Run.Failure
)

var stageNames = [...]string{
	StageIdle:      "idle",
	StagePaid:      "paid",
	StageTextDone:  "text_done",
	StageImageDone: "image_done",
	StageLinked:    "linked",
	StageMinted:    "minted",
	StageFailed:    "failed",
}

// String returns a human-readable stage name.
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if int(s) >= len(stageNames) {
		return nil, fmt.Errorf("fortune: invalid stage %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("fortune: unknown stage %q", text)
}

// Errors returned by pipeline operations.
var (
	ErrInvalidStage     = errors.New("fortune: invalid stage transition")
	ErrPipelineComplete = errors.New("fortune: run is already minted")
	ErrRunFailed        = errors.New("fortune: run has failed, resume it first")
	ErrNoPaymentEvent   = errors.New("fortune: no payment event found")
	ErrInvalidProfile   = errors.New("fortune: username, zodiac type and sign are required")
)

// Failure records why and where a run stopped.
type Failure struct {
	From    Stage      `json:"from"`
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Profile is what the user supplies before paying.
type Profile struct {
	User       common.Address      `json:"user"`
	Username   string              `json:"username"`
	ZodiacType generate.ZodiacType `json:"zodiacType"`
	Sign       string              `json:"sign"`
	Theme      generate.Theme      `json:"theme,omitempty"`
}

// Validate checks that the profile names a known sign of a known zodiac
// type. The sign is canonicalised to its table spelling.
func (p Profile) Validate() (Profile, error) {
	if strings.TrimSpace(p.Username) == "" || p.Sign == "" || !p.ZodiacType.Valid() {
		return p, ErrInvalidProfile
	}
	sign, ok := generate.Lookup(p.ZodiacType, p.Sign)
	if !ok {
		return p, fmt.Errorf("%w: %q is not a %s sign", ErrInvalidProfile, p.Sign, p.ZodiacType)
	}
	p.Sign = sign.Name
	if p.Theme == "" {
		p.Theme = generate.ThemeRegular
	}
	if _, ok := generate.ThemeByID(p.Theme); !ok {
		return p, fmt.Errorf("%w: unknown theme %q", ErrInvalidProfile, p.Theme)
	}
	return p, nil
}

// Run is the state of one pass through the pipeline. It is a plain value:
// stages receive a copy and return the updated copy.
type Run struct {
	ID string `json:"id"`
	Profile
	Stage   Stage    `json:"stage"`
	Failure *Failure `json:"failure,omitempty"`

	// Payment
	PaymentTx     common.Hash `json:"paymentTx"`
	PaymentID     *big.Int    `json:"paymentId,omitempty"`
	PaymentAmount *big.Int    `json:"paymentAmount,omitempty"`

	// Generation
	Fortune         string `json:"fortune,omitempty"`
	FortuneFallback bool   `json:"fortuneFallback,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	ImageTransient  bool   `json:"imageTransient,omitempty"`

	// Linking
	MetadataURI string      `json:"metadataUri,omitempty"`
	LinkTx      common.Hash `json:"linkTx"`

	// Minting
	ImageCID         string      `json:"imageCid,omitempty"`
	TokenURI         string      `json:"tokenUri,omitempty"`
	MintTx           common.Hash `json:"mintTx"`
	TokenID          *big.Int    `json:"tokenId,omitempty"`
	MarkTx           common.Hash `json:"markTx"`
	CrossLinkPending bool        `json:"crossLinkPending,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRun starts an idle run for a validated profile.
func NewRun(p Profile) (Run, error) {
	p, err := p.Validate()
	if err != nil {
		return Run{}, err
	}
	now := time.Now().UTC()
	return Run{ID: uuid.NewString(), Profile: p, Stage: StageIdle, CreatedAt: now, UpdatedAt: now}, nil
}

// Past reports whether the run has completed stage s.
func (r Run) Past(s Stage) bool {
	return r.Stage != StageFailed && r.Stage > s
}

// Done reports whether the run is minted and cross-linked.
func (r Run) Done() bool {
	return r.Stage == StageMinted && !r.CrossLinkPending
}

// Fail moves the run to Failed, remembering the stage it was in.
func (r Run) Fail(err error) Run {
	from := r.Stage
	if from == StageFailed && r.Failure != nil {
		from = r.Failure.From
	}
	r.Failure = &Failure{From: from, Kind: fault.KindOf(err), Message: fault.Message(err)}
	r.Stage = StageFailed
	return r
}

// Resume returns a failed run to the stage it failed in. Artefacts produced
// before the failure are kept. Runs that have not failed are returned as is.
func (r Run) Resume() Run {
	if r.Stage != StageFailed || r.Failure == nil {
		return r
	}
	r.Stage = r.Failure.From
	r.Failure = nil
	return r
}

func (r Run) String() string {
	id := "-"
	if r.PaymentID != nil {
		id = r.PaymentID.String()
	}
	return fmt.Sprintf("run %s [%s payment=%s]", r.ID, r.Stage, id)
}
