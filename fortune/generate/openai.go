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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/sashabaranov/go-openai"
)

// headerTransport adds fixed headers to every request. A nil base uses
// http.DefaultTransport at request time.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// newOpenAIClient creates a client for an OpenAI-compatible API at baseURL.
func newOpenAIClient(baseURL, apiKey string, timeout time.Duration, headers map[string]string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := &http.Client{Timeout: timeout}
	if len(headers) > 0 {
		client.Transport = headerTransport{headers: headers}
	}
	cfg.HTTPClient = client
	return openai.NewClientWithConfig(cfg)
}

// serviceError maps an API failure to a fault kind. Requests the service
// rejects as malformed or against its policy are InvalidInput; everything
// else is ServiceUnavailable.
func serviceError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fault.Wrap(fault.Unknown, op, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := fault.ServiceUnavailable
		if apiErr.HTTPStatusCode == http.StatusBadRequest {
			kind = fault.InvalidInput
		}
		return &fault.Error{Kind: kind, Op: op, Reason: fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &fault.Error{Kind: fault.ServiceUnavailable, Op: op, Reason: fmt.Sprintf("status %d", reqErr.HTTPStatusCode), Err: err}
	}
	return fault.Wrap(fault.ServiceUnavailable, op, err)
}
