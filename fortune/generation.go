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
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/JulioMCruz/ZodiacCards/fortune/storage"
	"github.com/ethereum/go-ethereum/log"
)

// Texter produces fortune text.
type Texter interface {
	Fortune(ctx context.Context, req generate.FortuneRequest) (string, error)
}

// Imager produces a transient image URL for a prompt.
type Imager interface {
	Image(ctx context.Context, prompt string) (string, error)
}

// Persister copies a transient image into durable storage.
type Persister interface {
	Persist(ctx context.Context, req storage.PersistRequest) (string, error)
}

// GenerationStage produces the fortune text and the card image of a paid
// run, each exactly once.
type GenerationStage struct {
	text    Texter
	image   Imager
	persist Persister
	now     func() time.Time
}

// NewGenerationStage creates the generation stage.
func NewGenerationStage(text Texter, image Imager, persist Persister) *GenerationStage {
	return &GenerationStage{text: text, image: image, persist: persist, now: time.Now}
}

// Fortune returns fortune text for req. A failing text service never stops
// the caller: the deterministic fallback is returned with fallback set.
func (g *GenerationStage) Fortune(ctx context.Context, req generate.FortuneRequest) (text string, fallback bool) {
	text, err := g.text.Fortune(ctx, req)
	if err == nil {
		return text, false
	}
	log.Warn("Fortune generation failed, using fallback", "sign", req.Sign, "kind", fault.KindOf(err), "err", err)
	return generate.FallbackFortune(req.Sign, generate.Element(req.ZodiacType, req.Sign)), true
}

// Text moves a paid run to TextDone.
func (g *GenerationStage) Text(ctx context.Context, run Run) (Run, error) {
	if run.Past(StagePaid) {
		return run, nil
	}
	if run.Stage != StagePaid {
		return run, ErrInvalidStage
	}
	run.Fortune, run.FortuneFallback = g.Fortune(ctx, generate.FortuneRequest{
		Username:   run.Username,
		Sign:       run.Sign,
		ZodiacType: run.ZodiacType,
	})
	run.Stage = StageTextDone
	return run, nil
}

// Image moves a run to ImageDone. An image failure halts the run; there is
// no placeholder image. A durable-storage failure keeps the transient URL.
func (g *GenerationStage) Image(ctx context.Context, run Run) (Run, error) {
	if run.Past(StageTextDone) {
		return run, nil
	}
	if run.Stage != StageTextDone {
		return run, ErrInvalidStage
	}
	now := g.now()
	if !run.Theme.Available(now) {
		log.Info("Theme not available, using regular", "run", run.ID, "theme", run.Theme)
		run.Theme = generate.ThemeRegular
	}
	url, err := g.image.Image(ctx, generate.ImagePrompt(run.Sign, run.ZodiacType, run.Theme, now))
	if err != nil {
		return run, fault.Scope("generate image", err)
	}

	durable, err := g.persist.Persist(ctx, storage.PersistRequest{
		ImageURL:   url,
		Username:   run.Username,
		Sign:       run.Sign,
		ZodiacType: string(run.ZodiacType),
	})
	if err != nil {
		log.Warn("Image persistence failed, keeping transient URL", "run", run.ID, "err", err)
		run.ImageURL = url
		run.ImageTransient = true
	} else {
		run.ImageURL = durable
		run.ImageTransient = false
	}
	run.Stage = StageImageDone
	return run, nil
}
