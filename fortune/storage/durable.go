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

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
)

// PersistRequest describes an image to copy into durable object storage.
type PersistRequest struct {
	ImageURL   string `json:"imageUrl"`
	Username   string `json:"username"`
	Sign       string `json:"sign"`
	ZodiacType string `json:"zodiacType"`
}

type persistResponse struct {
	Success bool   `json:"success"`
	S3URL   string `json:"s3Url"`
	Error   string `json:"error,omitempty"`
}

// Persister copies transient provider URLs into durable object storage.
type Persister struct {
	endpoint string
	client   *http.Client
}

// NewPersister creates a client for the upload service at endpoint.
func NewPersister(endpoint string, timeout time.Duration) *Persister {
	return &Persister{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Persist stores the image and returns its permanent URL.
func (p *Persister) Persist(ctx context.Context, r PersistRequest) (string, error) {
	if p.endpoint == "" {
		return "", fault.New(fault.ServiceUnavailable, "persist image", "durable storage is not configured")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return "", fault.Wrap(fault.InvalidInput, "persist image", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(fault.InvalidInput, "persist image", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.ServiceUnavailable, "persist image", err)
	}
	defer resp.Body.Close()

	var out persistResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fault.New(fault.ServiceUnavailable, "persist image", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fault.Wrap(fault.ServiceUnavailable, "persist image", err)
	}
	if out.S3URL == "" {
		return "", fault.New(fault.ServiceUnavailable, "persist image", "no durable URL returned")
	}
	return out.S3URL, nil
}
