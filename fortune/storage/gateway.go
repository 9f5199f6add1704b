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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/internal/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// maxDocumentSize bounds a document read through a gateway.
var maxDocumentSize int64 = 4 << 20

// Gateways resolves content addresses through an ordered list of HTTP
// gateways. The first gateway is the primary; the rest are fallbacks.
type Gateways struct {
	urls    []string
	timeout time.Duration
	client  *http.Client
}

// NewGateways creates a resolver. Each gateway attempt is bounded by timeout.
func NewGateways(urls []string, timeout time.Duration) *Gateways {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			normalized = append(normalized, strings.TrimRight(u, "/")+"/")
		}
	}
	return &Gateways{urls: normalized, timeout: timeout, client: &http.Client{}}
}

// URL returns the primary gateway URL of a content address. Addresses that
// are not content-addressed are returned unchanged.
func (g *Gateways) URL(uri string) string {
	cid := CID(uri)
	if cid == "" || len(g.urls) == 0 {
		return uri
	}
	return g.urls[0] + cid
}

// Fetch returns the content at uri from the first gateway that serves it.
// Plain http(s) URLs that are not gateway URLs are fetched directly.
func (g *Gateways) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return g.fetch(ctx, uri, nil)
}

// FetchJSON decodes the JSON document at uri into v. A gateway that returns a
// body which is not valid JSON counts as failed and the next one is tried.
func (g *Gateways) FetchJSON(ctx context.Context, uri string, v interface{}) error {
	_, err := g.fetch(ctx, uri, func(body []byte) error {
		return json.Unmarshal(body, v)
	})
	return err
}

func (g *Gateways) fetch(ctx context.Context, uri string, accept func([]byte) error) ([]byte, error) {
	targets, err := g.targets(uri)
	if err != nil {
		return nil, err
	}
	var failures []string
	for _, target := range targets {
		body, err := g.get(ctx, target.url)
		if err == nil && accept != nil {
			err = accept(body)
		}
		if err == nil {
			metrics.GatewayFetch(target.host, "ok")
			return body, nil
		}
		metrics.GatewayFetch(target.host, "error")
		log.Debug("Gateway fetch failed", "gateway", target.host, "uri", uri, "err", err)
		failures = append(failures, fmt.Sprintf("%s: %v", target.host, err))

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fault.New(fault.ServiceUnavailable, "fetch "+uri, "all gateways failed: "+strings.Join(failures, "; "))
}

type target struct {
	host string
	url  string
}

func (g *Gateways) targets(uri string) ([]target, error) {
	cid := CID(uri)
	if cid == "" {
		if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
			return []target{{host: hostOf(uri), url: uri}}, nil
		}
		return nil, fault.New(fault.InvalidInput, "fetch", fmt.Sprintf("not a content address: %q", uri))
	}
	if len(g.urls) == 0 {
		return nil, fault.New(fault.ServiceUnavailable, "fetch", "no gateways configured")
	}
	out := make([]target, len(g.urls))
	for i, gw := range g.urls {
		out[i] = target{host: hostOf(gw), url: gw + cid}
	}
	return out, nil
}

func (g *Gateways) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return readLimited(resp.Body, maxDocumentSize)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
