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

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
)

// Poll calls fn every interval until it reports done, fails, or attempts are
// exhausted. Exhaustion is a NotFound error.
func Poll[T any](ctx context.Context, interval time.Duration, attempts int, fn func(context.Context) (T, bool, error)) (T, error) {
	var zero T
	for i := 0; i < attempts; i++ {
		v, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return zero, fault.Wrap(fault.Unknown, "poll", ctx.Err())
		}
	}
	return zero, fault.New(fault.NotFound, "poll", fmt.Sprintf("no result after %d attempts", attempts))
}

// Client asks a verification-check endpoint for a user's result.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client for the check endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Check performs a single check.
func (c *Client) Check(ctx context.Context, userID string) (Result, error) {
	body, _ := json.Marshal(map[string]string{"userId": userID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fault.Wrap(fault.InvalidInput, "verify check", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fault.Wrap(fault.ServiceUnavailable, "verify check", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fault.New(fault.ServiceUnavailable, "verify check", fmt.Sprintf("status %d", resp.StatusCode))
	}
	var r Result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{}, fault.Wrap(fault.ServiceUnavailable, "verify check", err)
	}
	return r, nil
}

// Wait polls the endpoint until the user is verified.
func (c *Client) Wait(ctx context.Context, userID string, interval time.Duration, attempts int) (Result, error) {
	return Poll(ctx, interval, attempts, func(ctx context.Context) (Result, bool, error) {
		r, err := c.Check(ctx, userID)
		if err != nil {
			return Result{}, false, err
		}
		return r, r.Verified, nil
	})
}
