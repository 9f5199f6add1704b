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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	RPCRetry("metrics-test")
	Stage("metrics-test", "ok")
	GatewayFetch("https://gw.example/ipfs/", "error")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `zodiac_rpc_retries_total{op="metrics-test"} 1`)
	assert.Contains(t, body, `zodiac_stage_total{stage="metrics-test",result="ok"} 1`)
	assert.Contains(t, body, `zodiac_gateway_fetch_total{gateway="https://gw.example/ipfs/",result="error"} 1`)
}

func TestStageCount(t *testing.T) {
	before := StageCount("count-test", "timeout")
	Stage("count-test", "timeout")
	Stage("count-test", "timeout")
	assert.Equal(t, before+2, StageCount("count-test", "timeout"))
}
