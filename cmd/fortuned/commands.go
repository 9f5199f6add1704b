// Copyright 2018 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/JulioMCruz/ZodiacCards/fortune/session"
	"github.com/JulioMCruz/ZodiacCards/fortune/verify"
	"github.com/JulioMCruz/ZodiacCards/internal/api"
	"github.com/JulioMCruz/ZodiacCards/internal/config"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	usernameFlag = &cli.StringFlag{Name: "username", Usage: "Name shown on the card"}
	zodiacFlag   = &cli.StringFlag{Name: "zodiac", Usage: "Zodiac type: western, chinese, vedic or mayan", Value: string(generate.Western)}
	signFlag     = &cli.StringFlag{Name: "sign", Usage: "Zodiac sign"}
	birthFlag    = &cli.StringFlag{Name: "birthdate", Usage: "Birth date (YYYY-MM-DD), used when --sign is not given"}
	themeFlag    = &cli.StringFlag{Name: "theme", Usage: "Seasonal theme id", Value: string(generate.ThemeRegular)}
	verifiedFlag = &cli.StringFlag{Name: "verified-user", Usage: "Identity-verification user id whose date of birth picks the sign"}
	resumeFlag   = &cli.StringFlag{Name: "resume", Usage: "Id of a stored run to continue"}
	paymentFlag  = &cli.StringFlag{Name: "payment", Usage: "Payment id to continue from"}
	ownerFlag    = &cli.StringFlag{Name: "owner", Usage: "Collection owner address (defaults to the user key's account)"}

	profileFlags = []cli.Flag{usernameFlag, zodiacFlag, signFlag, birthFlag, verifiedFlag, themeFlag}
)

var (
	serveCommand = &cli.Command{
		Name:   "serve",
		Usage:  "Serve the backend HTTP and JSON-RPC API",
		Action: serve,
	}
	payCommand = &cli.Command{
		Name:   "pay",
		Usage:  "Pay the image fee and record the run",
		Flags:  profileFlags,
		Action: pay,
	}
	runCommand = &cli.Command{
		Name:   "run",
		Usage:  "Run the whole pipeline, or continue a stored run or payment",
		Flags:  append([]cli.Flag{resumeFlag, paymentFlag}, profileFlags...),
		Action: runPipeline,
	}
	mintCommand = &cli.Command{
		Name:   "mint",
		Usage:  "Mint a stored run whose card has been generated",
		Flags:  []cli.Flag{resumeFlag},
		Action: mint,
	}
	collectionCommand = &cli.Command{
		Name:   "collection",
		Usage:  "List minted cards and pending generations of an owner",
		Flags:  []cli.Flag{ownerFlag},
		Action: collection,
	}
	infoCommand = &cli.Command{
		Name:   "info",
		Usage:  "Print chain, contract and fee information",
		Action: info,
	}
	runsCommand = &cli.Command{
		Name:   "runs",
		Usage:  "List stored runs, most recent first",
		Action: listRuns,
	}
)

// ──────────────────────────────────────────────
//  Backend
// ──────────────────────────────────────────────

func serve(ctx *cli.Context) error {
	e, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	checker := verify.NewChecker(verify.NewMemoryCache[verify.Result](), e.cfg.Verify.TTL())
	server, err := api.New(e.service, checker, e.cfg.Server.JWTSecret, 0, api.WithCallbackSecret(e.cfg.Verify.CallbackSecret))
	if err != nil {
		return err
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              e.cfg.Server.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	sigctx, stop := interruptible(ctx.Context)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("Fortune backend listening", "addr", httpServer.Addr)
		errc <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-sigctx.Done():
	}
	log.Info("Shutting down fortune backend")
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ──────────────────────────────────────────────
//  Client pipeline
// ──────────────────────────────────────────────

// profile assembles the user's profile from flags. The account is the one of
// the configured user key.
func profile(ctx *cli.Context, e *env) (fortune.Profile, error) {
	opts, err := fortune.KeyedTransactOpts(e.cfg.Keys.User, big.NewInt(e.cfg.Chain.ChainID))
	if err != nil {
		return fortune.Profile{}, fmt.Errorf("user key: %w", err)
	}
	p := fortune.Profile{
		User:       opts.From,
		Username:   ctx.String(usernameFlag.Name),
		ZodiacType: generate.ZodiacType(ctx.String(zodiacFlag.Name)),
		Sign:       ctx.String(signFlag.Name),
		Theme:      generate.Theme(ctx.String(themeFlag.Name)),
	}
	if p.Sign == "" {
		birth, err := birthDate(ctx, e)
		if err != nil || birth.IsZero() {
			return p, err
		}
		sign, ok := generate.SignFor(p.ZodiacType, birth)
		if !ok {
			return p, fmt.Errorf("no %s sign for %s", p.ZodiacType, birth.Format("2006-01-02"))
		}
		p.Sign = sign.Name
	}
	if !p.Theme.Available(time.Now()) {
		log.Warn("Theme is out of season, using the classic theme", "theme", p.Theme)
		p.Theme = generate.ThemeRegular
	}
	return p, nil
}

// birthDate reads --birthdate, or waits for the backend to report the
// identity verification of --verified-user. It is zero when neither is set.
func birthDate(ctx *cli.Context, e *env) (time.Time, error) {
	switch {
	case ctx.IsSet(birthFlag.Name):
		birth, err := time.Parse("2006-01-02", ctx.String(birthFlag.Name))
		if err != nil {
			return time.Time{}, fmt.Errorf("birthdate: %w", err)
		}
		return birth, nil
	case ctx.IsSet(verifiedFlag.Name):
		if e.cfg.Server.BackendURL == "" {
			return time.Time{}, errors.New("--verified-user needs server.backend-url")
		}
		client := verify.NewClient(strings.TrimRight(e.cfg.Server.BackendURL, "/")+"/api/verify-self/check", 10*time.Second)
		log.Info("Waiting for identity verification", "user", ctx.String(verifiedFlag.Name))
		r, err := client.Wait(ctx.Context, ctx.String(verifiedFlag.Name), e.cfg.Verify.PollInterval(), e.cfg.Verify.PollAttempts)
		if err != nil {
			return time.Time{}, err
		}
		if r.DateOfBirth == "" {
			return time.Time{}, errors.New("verification carries no date of birth")
		}
		return verify.ParseDateOfBirth(r.DateOfBirth)
	}
	return time.Time{}, nil
}

func pay(ctx *cli.Context) error {
	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := profile(ctx, e)
	if err != nil {
		return err
	}
	run, err := e.service.Start(p)
	if err != nil {
		return err
	}
	sigctx, stop := interruptible(ctx.Context)
	defer stop()
	run, err = e.service.ExecuteUntil(sigctx, run, fortune.StagePaid)
	report(run, err)
	return err
}

func runPipeline(ctx *cli.Context) error {
	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	sigctx, stop := interruptible(ctx.Context)
	defer stop()

	var run fortune.Run
	switch {
	case ctx.IsSet(resumeFlag.Name):
		run, err = e.store.Load(ctx.String(resumeFlag.Name))
	case ctx.IsSet(paymentFlag.Name):
		run, err = fromPayment(sigctx, ctx, e)
	default:
		var p fortune.Profile
		if p, err = profile(ctx, e); err == nil {
			run, err = e.service.Start(p)
		}
	}
	if err != nil {
		return err
	}
	run, err = e.service.Execute(sigctx, run)
	report(run, err)
	return err
}

// fromPayment finds the stored run of a payment, or rebuilds it from the
// contracts when this machine has no record of it.
func fromPayment(ctx context.Context, c *cli.Context, e *env) (fortune.Run, error) {
	id, ok := new(big.Int).SetString(c.String(paymentFlag.Name), 10)
	if !ok {
		return fortune.Run{}, fmt.Errorf("invalid payment id %q", c.String(paymentFlag.Name))
	}
	run, err := e.store.ByPayment(id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return run, err
	}
	p, err := profile(c, e)
	if err != nil {
		return fortune.Run{}, err
	}
	return e.service.ResumePayment(ctx, p, id)
}

func mint(ctx *cli.Context) error {
	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	run, err := e.store.Load(ctx.String(resumeFlag.Name))
	if err != nil {
		return err
	}
	if !run.Resume().Past(fortune.StageTextDone) {
		return fmt.Errorf("run %s has no card yet (stage %s), use the run command", run.ID, run.Resume().Stage)
	}
	sigctx, stop := interruptible(ctx.Context)
	defer stop()
	run, err = e.service.Execute(sigctx, run)
	report(run, err)
	return err
}

func report(run fortune.Run, err error) {
	if err != nil {
		log.Error("Run stopped", "run", run.ID, "stage", run.Stage, "err", err)
		if run.Failure != nil {
			fmt.Fprintln(os.Stderr, run.Failure.Message)
		}
	}
	printJSON(run)
}

// ──────────────────────────────────────────────
//  Reads
// ──────────────────────────────────────────────

func collection(ctx *cli.Context) error {
	e, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	var owner string
	switch {
	case ctx.IsSet(ownerFlag.Name):
		owner = ctx.String(ownerFlag.Name)
	case e.cfg.Keys.User != "":
		opts, err := fortune.KeyedTransactOpts(e.cfg.Keys.User, big.NewInt(e.cfg.Chain.ChainID))
		if err != nil {
			return err
		}
		owner = opts.From.Hex()
	default:
		return errors.New("--owner is required without a user key")
	}
	addr, err := fortune.ParseAddress(owner)
	if err != nil {
		return err
	}
	entries, err := e.service.Collection(ctx.Context, addr)
	if err != nil {
		return err
	}
	log.Info("Collection loaded", "owner", addr, "entries", len(entries))
	printJSON(entries)
	return nil
}

func info(ctx *cli.Context) error {
	e, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	chainID, err := e.chain.ChainID(ctx.Context)
	if err != nil {
		return err
	}
	rpcAPI := fortune.NewAPI(e.service)
	imageFee, err := rpcAPI.QuoteImage()
	if err != nil {
		return err
	}
	mintFee, err := rpcAPI.QuoteMint()
	if err != nil {
		return err
	}
	log.Info("Zodiac card contracts",
		"chain", chainID,
		"payment", e.cfg.Contracts.Payment,
		"nft", e.cfg.Contracts.NFT,
		"paymentLegacy", e.cfg.Contracts.PaymentLegacy,
		"nftLegacy", e.cfg.Contracts.NFTLegacy,
	)
	log.Info("Fees", "image", imageFee.Formatted, "mint", mintFee.Formatted)
	for _, theme := range generate.AvailableThemes(time.Now()) {
		log.Info("Theme available", "id", theme.ID, "name", theme.Name)
	}
	return nil
}

func listRuns(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	store, err := session.Open(cfg.Session.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Printf("%s  %-10s  payment=%-6v token=%-6v  %s\n", run.ID, run.Stage, run.PaymentID, run.TokenID, run.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error("Failed to encode output", "err", err)
		return
	}
	fmt.Println(string(out))
}
