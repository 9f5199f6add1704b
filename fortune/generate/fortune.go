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
	"github.com/sashabaranov/go-openai"
)

// DefaultTextModel is the chat model used for fortunes.
const DefaultTextModel = "openai/gpt-4o-mini"

const maxFortuneTokens = 150

// FortuneRequest identifies whose fortune to tell.
type FortuneRequest struct {
	Username   string     `json:"username"`
	Sign       string     `json:"sign"`
	ZodiacType ZodiacType `json:"zodiacType"`
}

// FallbackFortune is the fortune used whenever the text service cannot
// produce one.
func FallbackFortune(sign, element string) string {
	return fmt.Sprintf("As a %s, your crypto journey looks promising! The stars align for financial growth, "+
		"and your natural %s energy will guide you to make wise investment choices. Trust your intuition this week.",
		sign, element)
}

var systemPrompts = map[ZodiacType]string{
	Western: " You specialize in Western astrology based on the sun's position at birth.",
	Chinese: " You specialize in Chinese zodiac based on the 12-year animal cycle.",
	Vedic:   " You specialize in Vedic astrology (Jyotish) based on actual constellations.",
	Mayan:   " You specialize in Mayan Tzolk'in calendar and its 20 day signs.",
}

func systemPrompt(t ZodiacType) string {
	return "You are a mystical fortune teller specializing in fortunes for crypto projects based on zodiac signs." + systemPrompts[t]
}

func userPrompt(req FortuneRequest) string {
	return fmt.Sprintf(`Generate a positive, optimistic crypto fortune for a person with the %s zodiac sign of %s.
The fortune should be 1-2 sentences long, and include:
1. A reference to their zodiac sign's traits
2. A positive prediction about their crypto investments or projects
3. Mention their potential for creating impactful blockchain solutions or contributing to web3
4. A bit of mystical/celestial language
5. Keep it upbeat and encouraging, focusing on growth and development (not market conditions)

Format it as a direct message to the user without any additional text.`, req.ZodiacType, req.Sign)
}

// TextClient requests fortunes from an OpenAI-compatible chat completion
// API such as OpenRouter.
type TextClient struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewTextClient creates a text client for the API at baseURL. An empty apiKey
// leaves the client unconfigured; every request then fails as
// ServiceUnavailable.
func NewTextClient(baseURL, apiKey, model, referer string, timeout time.Duration) *TextClient {
	if model == "" {
		model = DefaultTextModel
	}
	headers := map[string]string{"X-Title": "Zodiac Fortune Teller"}
	if referer != "" {
		headers["HTTP-Referer"] = referer
	}
	return &TextClient{
		client: newOpenAIClient(baseURL, apiKey, timeout, headers),
		apiKey: apiKey,
		model:  model,
	}
}

// Fortune asks the model for a fortune.
func (c *TextClient) Fortune(ctx context.Context, req FortuneRequest) (string, error) {
	if c.apiKey == "" {
		return "", fault.New(fault.ServiceUnavailable, "fortune", "text completion is not configured")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.ZodiacType)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		MaxTokens: maxFortuneTokens,
	})
	if err != nil {
		return "", serviceError("fortune", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fault.New(fault.ServiceUnavailable, "fortune", "empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
