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

// fortuned drives the Zodiac card pipeline: pay the image fee, generate the
// fortune and card, link the generation to the payment and mint the NFT.
// It also serves the backend HTTP and JSON-RPC API.
//
// Usage:
//
//	fortuned [--config <dir>] [--verbosity <0-5>] serve
//	fortuned pay --username <name> --zodiac <type> (--sign <sign> | --birthdate <YYYY-MM-DD> | --verified-user <id>)
//	fortuned run (--username ... | --resume <run-id> | --payment <id>)
//	fortuned mint --resume <run-id>
//	fortuned collection --owner <address>
//	fortuned info
//	fortuned runs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JulioMCruz/ZodiacCards/fortune"
	"github.com/JulioMCruz/ZodiacCards/fortune/session"
	"github.com/JulioMCruz/ZodiacCards/internal/config"
	"github.com/JulioMCruz/ZodiacCards/internal/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Directory containing config.yaml",
		Value: ".",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
)

var app = &cli.App{
	Name:    "fortuned",
	Usage:   "Zodiac card fortune and NFT pipeline",
	Version: "0.3.0",
	Flags:   []cli.Flag{configFlag, verbosityFlag},
	Before:  setupLogging,
	Commands: []*cli.Command{
		serveCommand,
		payCommand,
		runCommand,
		mintCommand,
		collectionCommand,
		infoCommand,
		runsCommand,
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) error {
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	color := os.Getenv("NO_COLOR") == ""
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, color)))
	return nil
}

// env is everything a command needs, built from the configuration.
type env struct {
	cfg     *config.Config
	chain   fortune.ChainBackend
	store   *session.Store
	service *fortune.Service
}

// setup loads the configuration, dials the chain and builds the service.
// The session journal is opened only when withJournal is set.
func setup(ctx *cli.Context, withJournal bool) (*env, error) {
	cfg, err := config.LoadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	metrics.Setup(cfg.Metrics)

	chain, err := fortune.Dial(ctx.Context, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, chain: chain}

	var journal fortune.Journal
	if withJournal {
		if e.store, err = session.Open(cfg.Session.Path); err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		journal = e.store
	}
	if e.service, err = fortune.Build(ctx.Context, cfg, chain, journal); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func (e *env) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Warn("Failed to close session store", "err", err)
		}
	}
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
