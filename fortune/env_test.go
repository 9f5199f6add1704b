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

package fortune_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac/zodiactest"
	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/JulioMCruz/ZodiacCards/fortune/referral"
	"github.com/JulioMCruz/ZodiacCards/fortune/storage"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/stretchr/testify/require"
)

const firstPaymentID = 42

var testCfg = txn.Config{
	Policy:         txn.Policy{MaxAttempts: 4, Delay: time.Millisecond},
	PollInterval:   time.Millisecond,
	ConfirmTimeout: 50 * time.Millisecond,
}

// fakeStore pins into memory and resolves what it pinned.
type fakeStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	jsonPins int
	urlPins  int
	urls     []string
	failJSON int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string][]byte)}
}

func (s *fakeStore) PinJSON(ctx context.Context, name string, v interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failJSON > 0 {
		s.failJSON--
		return "", fault.New(fault.StorageUploadFailed, "pin json", "status 503")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s.jsonPins++
	cid := fmt.Sprintf("bafyjson%d", s.jsonPins)
	s.docs[cid] = raw
	return cid, nil
}

func (s *fakeStore) PinURL(ctx context.Context, name, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlPins++
	s.urls = append(s.urls, url)
	return fmt.Sprintf("bafyimage%d", s.urlPins), nil
}

func (s *fakeStore) FetchJSON(ctx context.Context, uri string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[storage.CID(uri)]
	if !ok {
		return fault.New(fault.ServiceUnavailable, "fetch "+uri, "all gateways failed")
	}
	return json.Unmarshal(raw, v)
}

func (s *fakeStore) URL(uri string) string {
	return "https://gateway.test/ipfs/" + storage.CID(uri)
}

// fakeGen stands in for the text, image and durable storage services.
type fakeGen struct {
	text       string
	textErr    error
	image      string
	imageErr   error
	durable    string
	persistErr error
	prompts    []string
}

func (g *fakeGen) Fortune(ctx context.Context, req generate.FortuneRequest) (string, error) {
	return g.text, g.textErr
}

func (g *fakeGen) Image(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.image, g.imageErr
}

func (g *fakeGen) Persist(ctx context.Context, req storage.PersistRequest) (string, error) {
	return g.durable, g.persistErr
}

type memJournal struct {
	runs []fortune.Run
}

func (j *memJournal) Save(run fortune.Run) error {
	j.runs = append(j.runs, run)
	return nil
}

func (j *memJournal) stages() []fortune.Stage {
	out := make([]fortune.Stage, len(j.runs))
	for i, r := range j.runs {
		out[i] = r.Stage
	}
	return out
}

type env struct {
	chain    *zodiactest.Chain
	user     *zodiactest.Account
	backend  *zodiactest.Account
	userTx   *txn.Transactor
	backTx   *txn.Transactor
	payment  *zodiac.ImagePayment
	nft      *zodiac.ZodiacNFT
	fees     *fortune.FeeSchedule
	store    *fakeStore
	gen      *fakeGen
	journal  *memJournal
	reporter *referral.Reporter
	versions []fortune.Version
	service  *fortune.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fees, err := fortune.NewFeeSchedule("2.0", "2.0", fortune.DefaultDecimals, "CELO")
	require.NoError(t, err)

	chain := zodiactest.NewChain()
	user, backend := zodiactest.NewAccount(), zodiactest.NewAccount()
	reader := txn.NewReader(chain, testCfg)
	e := &env{
		chain:   chain,
		user:    user,
		backend: backend,
		userTx:  txn.NewTransactor(chain, user.Opts, testCfg),
		backTx:  txn.NewTransactor(chain, backend.Opts, testCfg),
		payment: zodiac.NewImagePayment(chain.DeployPayment(fees.ImageFee, backend.Address, firstPaymentID), reader),
		nft:     zodiac.NewZodiacNFT(chain.DeployNFT(fees.MintFee, 1), reader),
		fees:    fees,
		store:   newFakeStore(),
		gen: &fakeGen{
			text:    "The stars favour bold builders this week.",
			image:   "https://images.test/tmp/card.png",
			durable: "https://bucket.test/cards/card.png",
		},
		journal: &memJournal{},
	}
	e.versions = []fortune.Version{{Name: "v3", Payment: e.payment, NFT: e.nft}}
	e.service = e.build()
	return e
}

func (e *env) build() *fortune.Service {
	linker := fortune.NewBackendLinker(e.backTx, e.payment)
	return fortune.NewService(fortune.Components{
		Payment:    fortune.NewPaymentStage(e.userTx, e.payment, e.fees),
		Generation: fortune.NewGenerationStage(e.gen, e.gen, e.gen),
		Link:       fortune.NewLinkStage(e.store, linker),
		Mint: fortune.NewMintStage(e.userTx, e.payment, e.nft, e.store, e.store, e.reporter, e.fees,
			fortune.MintConfig{ChainID: zodiactest.ChainID.Int64(), SiteURL: "https://zodiaccard.xyz"}),
		Linker:    linker,
		Verifier:  fortune.NewPaymentVerifier(e.chain, e.payment, zodiactest.ChainID, testCfg.Policy),
		Collector: fortune.NewCollector(nil, e.versions...),
		Contract:  e.payment,
		Resolver:  e.store,
		Fees:      e.fees,
		Journal:   e.journal,
	})
}

func (e *env) profile() fortune.Profile {
	return fortune.Profile{User: e.user.Address, Username: "alice", ZodiacType: generate.Western, Sign: "leo"}
}

func (e *env) start(t *testing.T) fortune.Run {
	t.Helper()
	run, err := e.service.Start(e.profile())
	require.NoError(t, err)
	return run
}
