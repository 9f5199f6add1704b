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

// Package metrics records pipeline counters with VictoriaMetrics and exposes
// them for scraping or pushes them to a remote collector.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JulioMCruz/ZodiacCards/internal/config"
	"github.com/VictoriaMetrics/metrics"
	"github.com/ethereum/go-ethereum/log"
)

// Setup starts pushing metrics when a push URL is configured.
func Setup(cfg config.Metrics) {
	if cfg.URL == "" {
		return
	}
	err := metrics.InitPush(cfg.URL, cfg.Interval(), cfg.CommonLabels, true)
	if err != nil {
		log.Error("Error initializing metrics push", "err", err)
	}
}

// Handler serves the Prometheus text exposition of every registered metric.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}

// RPCRetry counts a retried RPC operation.
func RPCRetry(op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`zodiac_rpc_retries_total{op=%q}`, op)).Inc()
}

// RPCDuration records how long a (possibly retried) RPC operation took.
func RPCDuration(op string, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`zodiac_rpc_duration_seconds{op=%q}`, op)).UpdateDuration(start)
}

// Stage counts a stage outcome; result is "ok" or a failure kind.
func Stage(stage, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`zodiac_stage_total{stage=%q,result=%q}`, stage, result)).Inc()
}

// CollectionScan counts collection reconstructions that fell back to the
// per-token ownership scan.
func CollectionScan(version string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`zodiac_collection_scan_total{version=%q}`, version)).Inc()
}

// GatewayFetch counts content-address resolutions per gateway.
func GatewayFetch(gateway, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`zodiac_gateway_fetch_total{gateway=%q,result=%q}`, gateway, result)).Inc()
}

// StageCount returns the current value of a stage counter.
func StageCount(stage, result string) uint64 {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`zodiac_stage_total{stage=%q,result=%q}`, stage, result)).Get()
}
