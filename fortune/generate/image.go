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

package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sashabaranov/go-openai"
)

// MaxPromptLength is the longest prompt the image service accepts.
const MaxPromptLength = 4000

const promptTemplate = `Create a stunning digital artwork in an anime and cosmic art style featuring two main subjects: a mystical character and their spirit animal companion representing {sign} of the {type} zodiac.

The first subject is an ethereal anime character with an otherworldly presence. They have flowing hair in shades of celestial blue and turquoise, adorned with constellation patterns of {sign}. Their elegant robes shimmer with cosmic energy and feature intricate {type} zodiac symbols woven into the fabric. Their eyes reflect the wisdom of the stars, and they hold a glowing Celo blockchain symbol that pulses with ethereal energy.

The second subject is a majestic spirit animal that embodies the essence of {sign}. This mystical creature radiates with stellar energy, its form partially composed of stardust and constellation lines. The animal's features blend traditional {sign} symbolism with magical elements, creating a powerful guardian presence beside the character.

Both figures are surrounded by a mesmerizing cosmic backdrop featuring swirling nebulae in deep purples and blues, with the Celo blockchain symbol appearing as a constellation pattern among the stars. The composition creates a harmonious balance between the character, their spirit animal, and the technological elements of the blockchain, all unified by the mystical energy of {sign}.

The artwork should maintain a perfect balance between anime aesthetics, zodiac mysticism, and blockchain symbolism, creating a captivating and meaningful representation of {sign}'s spiritual energy in the digital age.`

// ImagePrompt builds the artwork prompt for a sign, with the theme's backdrop
// when the theme is available at now. Unavailable themes use the regular
// backdrop.
func ImagePrompt(sign string, zodiacType ZodiacType, theme Theme, now time.Time) string {
	prompt := strings.NewReplacer("{sign}", sign, "{type}", string(zodiacType)).Replace(promptTemplate)
	if theme != "" && theme != ThemeRegular && theme.Available(now) {
		prompt = SeasonalPrompt(prompt, theme)
	}
	return prompt
}

// Image defaults.
const (
	DefaultImageModel = openai.CreateImageModelDallE3
	DefaultImageSize  = openai.CreateImageSize1024x1024
)

// ImageClient generates artwork through an OpenAI-compatible images API and
// returns its transient URL. Prompts pass the moderation endpoint first.
type ImageClient struct {
	client *openai.Client
	apiKey string
	model  string
	size   string
}

// NewImageClient creates an image client for the API at baseURL. An empty
// apiKey leaves the client unconfigured.
func NewImageClient(baseURL, apiKey, model, size string, timeout time.Duration) *ImageClient {
	if model == "" {
		model = DefaultImageModel
	}
	if size == "" {
		size = DefaultImageSize
	}
	return &ImageClient{
		client: newOpenAIClient(baseURL, apiKey, timeout, nil),
		apiKey: apiKey,
		model:  model,
		size:   size,
	}
}

// Image generates an image for prompt.
func (c *ImageClient) Image(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fault.New(fault.InvalidInput, "image", "prompt must be a non-empty string")
	}
	if len(prompt) > MaxPromptLength {
		return "", fault.New(fault.InvalidInput, "image", fmt.Sprintf("prompt is too long, maximum length is %d characters", MaxPromptLength))
	}
	if c.apiKey == "" {
		return "", fault.New(fault.ServiceUnavailable, "image", "image generation is not configured")
	}
	if err := c.moderate(ctx, prompt); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              1,
		Size:           c.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", serviceError("image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fault.New(fault.ServiceUnavailable, "image", "no image URL returned")
	}
	log.Info("Image generated", "model", c.model, "elapsed", time.Since(start))
	return resp.Data[0].URL, nil
}

// moderate refuses prompts the moderation endpoint flags.
func (c *ImageClient) moderate(ctx context.Context, prompt string) error {
	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{Input: prompt})
	if err != nil {
		return serviceError("moderation", err)
	}
	for _, r := range resp.Results {
		if r.Flagged {
			log.Warn("Image prompt flagged by moderation")
			return fault.New(fault.InvalidInput, "image", "prompt contains inappropriate content and was flagged by moderation")
		}
	}
	return nil
}
