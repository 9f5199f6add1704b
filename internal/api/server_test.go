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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac/zodiactest"
	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/JulioMCruz/ZodiacCards/fortune/storage"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/JulioMCruz/ZodiacCards/fortune/verify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var testCfg = txn.Config{
	Policy:         txn.Policy{MaxAttempts: 2, Delay: time.Millisecond},
	PollInterval:   time.Millisecond,
	ConfirmTimeout: 50 * time.Millisecond,
}

type docs map[string]string

func (d docs) FetchJSON(ctx context.Context, uri string, v interface{}) error {
	raw, ok := d[storage.CID(uri)]
	if !ok {
		return fault.New(fault.ServiceUnavailable, "fetch "+uri, "all gateways failed")
	}
	return json.Unmarshal([]byte(raw), v)
}

func (d docs) URL(uri string) string { return "https://gateway.test/ipfs/" + storage.CID(uri) }

type fixture struct {
	chain   *zodiactest.Chain
	user    *zodiactest.Account
	payment *zodiac.ImagePayment
	service *fortune.Service
	server  *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fees, err := fortune.NewFeeSchedule("2.0", "2.0", fortune.DefaultDecimals, "CELO")
	require.NoError(t, err)
	chain := zodiactest.NewChain()
	user, backend := zodiactest.NewAccount(), zodiactest.NewAccount()
	reader := txn.NewReader(chain, testCfg)
	payment := zodiac.NewImagePayment(chain.DeployPayment(fees.ImageFee, backend.Address, 42), reader)
	nft := zodiac.NewZodiacNFT(chain.DeployNFT(fees.MintFee, 1), reader)

	service := fortune.NewService(fortune.Components{
		Payment:   fortune.NewPaymentStage(txn.NewTransactor(chain, user.Opts, testCfg), payment, fees),
		Linker:    fortune.NewBackendLinker(txn.NewTransactor(chain, backend.Opts, testCfg), payment),
		Verifier:  fortune.NewPaymentVerifier(chain, payment, zodiactest.ChainID, testCfg.Policy),
		Collector: fortune.NewCollector(nil, fortune.Version{Name: "v3", Payment: payment, NFT: nft}),
		Contract:  payment,
		Resolver:  docs{"bafymeta": `{"name":"Zodiac Card Fortune #42"}`},
		Fees:      fees,
	})
	server, err := New(service, verify.NewChecker(verify.NewMemoryCache[verify.Result](), 0), "test-secret", 0, WithCallbackSecret("callback-secret"))
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return &fixture{chain: chain, user: user, payment: payment, service: service, server: server}
}

// pay runs the payment stage and returns the payment transaction.
func (f *fixture) pay(t *testing.T) fortune.Run {
	t.Helper()
	run, err := f.service.Start(fortune.Profile{User: f.user.Address, Username: "alice", ZodiacType: generate.Western, Sign: "Leo"})
	require.NoError(t, err)
	run, err = f.service.ExecuteUntil(context.Background(), run, fortune.StagePaid)
	require.NoError(t, err)
	return run
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) fortune.ErrorResponse {
	t.Helper()
	var e fortune.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(fortune.NewService(fortune.Components{}), nil, "", 0)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestLivenessAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.pay(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/liveness", nil).Code)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `zodiac_stage_total{stage="idle",result="ok"}`)
}

func TestVerifyAndStoreGeneration(t *testing.T) {
	f := newFixture(t)
	run := f.pay(t)

	w := f.do(t, http.MethodPost, "/api/payment/verify", fortune.VerifyPaymentRequest{TxHash: run.PaymentTx, UserAddress: f.user.Address})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified fortune.VerifyPaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	require.NotEmpty(t, verified.Token)
	assert.Equal(t, int64(42), verified.Payment.PaymentID.Int64())
	bearer := "Bearer " + verified.Token

	store := fortune.StoreGenerationRequest{PaymentID: run.PaymentID, MetadataURI: "ipfs://bafydoc"}
	w = f.do(t, http.MethodPost, "/api/store-generation", store)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/store-generation", fortune.StoreGenerationRequest{PaymentID: bigID(43), MetadataURI: "ipfs://bafydoc"}, "Authorization", bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, fault.Unauthorized, decodeError(t, w).Kind)

	w = f.do(t, http.MethodPost, "/api/store-generation", store, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res fortune.LinkResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "ipfs://bafydoc", res.MetadataURI)
	assert.NotEqual(t, common.Hash{}, res.TxHash)

	gen, err := f.payment.GetGeneration(context.Background(), run.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafydoc", gen.MetadataURI)
}

func TestVerifyPaymentErrors(t *testing.T) {
	f := newFixture(t)
	run := f.pay(t)
	stranger := common.HexToAddress("0x00000000000000000000000000000000000b0b00")

	tests := []struct {
		name   string
		body   interface{}
		status int
		kind   fault.Kind
	}{
		{"malformed", map[string]string{"txHash": "0xzz", "userAddress": "nope"}, http.StatusBadRequest, fault.InvalidInput},
		{"missing", map[string]string{}, http.StatusBadRequest, fault.InvalidInput},
		{"other payer", fortune.VerifyPaymentRequest{TxHash: run.PaymentTx, UserAddress: stranger}, http.StatusForbidden, fault.Unauthorized},
		{"unknown tx", fortune.VerifyPaymentRequest{TxHash: common.HexToHash("0xbeef"), UserAddress: f.user.Address}, http.StatusNotFound, fault.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/payment/verify", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.kind, decodeError(t, w).Kind)
		})
	}
}

func TestRemoteLinkerAgainstServer(t *testing.T) {
	f := newFixture(t)
	run := f.pay(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	linker := fortune.NewRemoteLinker(ts.URL, time.Second)
	res, err := linker.Link(context.Background(), fortune.LinkRequest{
		PaymentID:   run.PaymentID,
		PaymentTx:   run.PaymentTx,
		MetadataURI: "ipfs://bafyremote",
		Requester:   f.user.Address,
	})
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafyremote", res.MetadataURI)

	_, err = linker.Link(context.Background(), fortune.LinkRequest{
		PaymentID:   run.PaymentID,
		PaymentTx:   run.PaymentTx,
		MetadataURI: "ipfs://bafyremote",
		Requester:   common.HexToAddress("0x0b0b"),
	})
	assert.Equal(t, fault.Unauthorized, fault.KindOf(err))
}

func TestGenerateFortune(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/generate-fortune", map[string]string{"username": "alice", "sign": "leo", "zodiacType": "western"})
	require.Equal(t, http.StatusOK, w.Code)
	var got fortuneResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Fallback)
	assert.Equal(t, generate.FallbackFortune("Leo", "Fire"), got.Fortune)

	w = f.do(t, http.MethodPost, "/api/generate-fortune", map[string]string{"sign": "Leo", "zodiacType": "celtic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetchMetadata(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/fetch-nft-metadata", metadataRequest{TokenURI: "ipfs://bafymeta"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"Zodiac Card Fortune #42"}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/fetch-nft-metadata", metadataRequest{TokenURI: "ipfs://bafymissing"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(t, http.MethodPost, "/api/fetch-nft-metadata", metadataRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifySelf(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/verify-self/check", checkRequest{UserID: "0xABC"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"verified":false}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/verify-self/callback", callbackRequest{UserID: "0xAbC", Verified: true, DateOfBirth: "1990-08-01"},
		"Authorization", "Bearer callback-secret")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/verify-self/check", checkRequest{UserID: "0xabc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"verified":true,"date_of_birth":"1990-08-01"}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/verify-self/check", checkRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifySelfCallbackRequiresSecret(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{name: "Missing"},
		{name: "WrongSecret", header: []string{"Authorization", "Bearer guess"}},
		{name: "TokenSecret", header: []string{"Authorization", "Bearer test-secret"}},
		{name: "NoBearerPrefix", header: []string{"Authorization", "callback-secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(t, http.MethodPost, "/api/verify-self/callback", callbackRequest{UserID: "victim", Verified: true, DateOfBirth: "1990-08-01"}, tt.header...)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, fault.Unauthorized, decodeError(t, w).Kind)

			w = f.do(t, http.MethodPost, "/api/verify-self/check", checkRequest{UserID: "victim"})
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"verified":false}`, w.Body.String())
		})
	}
}

func TestCollection(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/collection/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/collection/"+f.user.Address.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got collectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, f.user.Address, got.Owner)
	assert.Empty(t, got.Entries)
	assert.True(t, strings.Contains(w.Body.String(), `"entries":[]`))
}

func TestJSONRPC(t *testing.T) {
	f := newFixture(t)
	body := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "fortune_quoteImage", "params": []interface{}{}}

	w := f.do(t, http.MethodPost, "/rpc", body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Result fortune.Quote `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2.0 CELO", resp.Result.Formatted)
}
