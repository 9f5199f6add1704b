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
	"fmt"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/internal/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// StageFunc performs one transition. It returns the updated run even on
// failure so that artefacts produced before the failure are kept.
type StageFunc func(ctx context.Context, run Run) (Run, error)

// StageProcessor handles the transition out of one stage.
//
// Implementations in this package:
//
//	Idle       PaymentStage.Pay
//	Paid       GenerationStage.Text
//	TextDone   GenerationStage.Image
//	ImageDone  LinkStage.Link
//	Linked     MintStage.Mint
//	Minted     MintStage.Mint (retries a pending cross-link)
type StageProcessor interface {
	// Process performs the transition and returns the updated run.
	Process(ctx context.Context, run Run) (Run, error)

	// Stage returns the stage this processor consumes.
	Stage() Stage
}

type processor struct {
	stage Stage
	fn    StageFunc
}

func (p processor) Process(ctx context.Context, run Run) (Run, error) { return p.fn(ctx, run) }
func (p processor) Stage() Stage                                      { return p.stage }

// NewProcessor adapts a stage function into a processor for stage.
func NewProcessor(stage Stage, fn StageFunc) StageProcessor {
	return processor{stage: stage, fn: fn}
}

// transitions lists the stages each stage may move to.
var transitions = map[Stage][]Stage{
	StageIdle:      {StagePaid},
	StagePaid:      {StageTextDone},
	StageTextDone:  {StageImageDone},
	StageImageDone: {StageLinked, StageMinted},
	StageLinked:    {StageMinted},
	StageMinted:    {StageMinted},
}

func allowed(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Pipeline dispatches a run to the processor registered for its stage and
// checks that the processor moved it along a legal edge.
type Pipeline struct {
	processors map[Stage]StageProcessor
	now        func() time.Time
}

// NewPipeline creates an empty pipeline. Register processors before use.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make(map[Stage]StageProcessor),
		now:        time.Now,
	}
}

// Register adds a stage processor, replacing any existing processor for the
// same stage.
func (p *Pipeline) Register(proc StageProcessor) {
	p.processors[proc.Stage()] = proc
}

// Advance performs the next transition of run. A failing processor moves the
// run to Failed; the returned error is the processor's, scoped to the stage.
func (p *Pipeline) Advance(ctx context.Context, run Run) (Run, error) {
	switch {
	case run.Stage == StageFailed:
		return run, ErrRunFailed
	case run.Done():
		return run, ErrPipelineComplete
	}
	from := run.Stage
	proc, ok := p.processors[from]
	if !ok {
		return run, fmt.Errorf("fortune: no processor registered for stage %s", from)
	}

	next, err := proc.Process(ctx, run)
	next.UpdatedAt = p.now().UTC()
	if err != nil {
		err = fault.Scope(from.String(), err)
		metrics.Stage(from.String(), fault.KindOf(err).String())
		log.Warn("Stage failed", "run", run.ID, "stage", from, "kind", fault.KindOf(err), "err", err)
		return next.Fail(err), err
	}
	if !allowed(from, next.Stage) {
		return run, fmt.Errorf("%w: %s -> %s", ErrInvalidStage, from, next.Stage)
	}
	metrics.Stage(from.String(), "ok")
	log.Info("Stage complete", "run", run.ID, "from", from, "to", next.Stage, "paymentId", next.PaymentID)
	return next, nil
}
