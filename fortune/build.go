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

package fortune

import (
	"context"
	"fmt"
	"math/big"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/JulioMCruz/ZodiacCards/fortune/indexer"
	"github.com/JulioMCruz/ZodiacCards/fortune/referral"
	"github.com/JulioMCruz/ZodiacCards/fortune/storage"
	"github.com/JulioMCruz/ZodiacCards/fortune/txn"
	"github.com/JulioMCruz/ZodiacCards/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// TxConfig converts the RPC section of the configuration.
func TxConfig(cfg config.RPC) txn.Config {
	return txn.Config{
		Policy:           txn.Policy{MaxAttempts: cfg.MaxAttempts, Delay: cfg.Delay()},
		PollInterval:     cfg.PollInterval(),
		ConfirmTimeout:   cfg.ConfirmTimeout(),
		GasBufferPercent: uint64(cfg.GasBufferPercent),
	}
}

// Build wires a Service from configuration. Stages that sign for the user
// are only built when a user key is configured; linking uses the backend
// key when present and the backend HTTP API otherwise.
func Build(ctx context.Context, cfg *config.Config, chain ChainBackend, journal Journal) (*Service, error) {
	chainID := big.NewInt(cfg.Chain.ChainID)
	tcfg := TxConfig(cfg.RPC)
	reader := txn.NewReader(chain, tcfg)

	var (
		c        = Components{Journal: journal}
		versions []Version
		current  Version
		err      error
	)
	if current, err = bindVersion("v3", cfg.Contracts.Payment, cfg.Contracts.NFT, false, reader); err != nil {
		return nil, err
	}
	if current.Payment != nil || current.NFT != nil {
		versions = append(versions, current)
	}
	legacy, err := bindVersion("v2", cfg.Contracts.PaymentLegacy, cfg.Contracts.NFTLegacy, true, reader)
	if err != nil {
		return nil, err
	}
	if legacy.Payment != nil || legacy.NFT != nil {
		versions = append(versions, legacy)
	}

	if c.Fees, err = NewFeeSchedule(cfg.Fees.Image, cfg.Fees.Mint, cfg.Chain.Decimals, cfg.Chain.Symbol); err != nil {
		return nil, err
	}
	syncFees(ctx, c.Fees, current)

	timeout := cfg.Generation.Timeout()
	pinata := storage.NewPinata(cfg.IPFS.PinataURL, cfg.IPFS.PinataJWT, timeout)
	gateways := storage.NewGateways(cfg.IPFS.Gateways, cfg.IPFS.GatewayTimeout())
	c.Resolver = gateways
	c.Contract = current.Payment
	c.Generation = NewGenerationStage(
		generate.NewTextClient(cfg.Generation.TextURL, cfg.Generation.TextAPIKey, cfg.Generation.TextModel, cfg.Server.SiteURL, timeout),
		generate.NewImageClient(cfg.Generation.ImageURL, cfg.Generation.ImageAPIKey, cfg.Generation.ImageModel, cfg.Generation.ImageSize, timeout),
		storage.NewPersister(cfg.Generation.PersistURL, timeout),
	)

	var transfers TransferSource
	if cfg.Indexer.URL != "" {
		transfers = indexer.NewClient(cfg.Indexer.URL, cfg.Indexer.PageSize, timeout)
	}
	c.Collector = NewCollector(transfers, versions...)

	if current.Payment != nil {
		c.Verifier = NewPaymentVerifier(chain, current.Payment, chainID, tcfg.Policy)
	}

	switch {
	case cfg.Keys.Backend != "" && current.Payment != nil:
		opts, err := KeyedTransactOpts(cfg.Keys.Backend, chainID)
		if err != nil {
			return nil, fmt.Errorf("backend key: %w", err)
		}
		c.Linker = NewBackendLinker(txn.NewTransactor(chain, opts, tcfg), current.Payment)
		log.Info("Linking with backend key", "account", opts.From)
	case cfg.Server.BackendURL != "":
		c.Linker = NewRemoteLinker(cfg.Server.BackendURL, timeout)
	}

	if cfg.Keys.User != "" && current.Payment != nil && current.NFT != nil {
		opts, err := KeyedTransactOpts(cfg.Keys.User, chainID)
		if err != nil {
			return nil, fmt.Errorf("user key: %w", err)
		}
		var consumer common.Address
		if cfg.Referral.Consumer != "" {
			if consumer, err = ParseAddress(cfg.Referral.Consumer); err != nil {
				return nil, fmt.Errorf("referral consumer: %w", err)
			}
		}
		user := txn.NewTransactor(chain, opts, tcfg)
		c.Payment = NewPaymentStage(user, current.Payment, c.Fees)
		c.Mint = NewMintStage(user, current.Payment, current.NFT, pinata, gateways,
			referral.NewReporter(cfg.Referral.ReportURL, consumer, timeout), c.Fees,
			MintConfig{ChainID: cfg.Chain.ChainID, SiteURL: cfg.Server.SiteURL})
		if c.Linker != nil {
			c.Link = NewLinkStage(pinata, c.Linker)
		}
		log.Info("Signing as user", "account", opts.From)
	}
	return NewService(c), nil
}

func bindVersion(name, payment, nft string, legacy bool, reader zodiac.Reader) (Version, error) {
	v := Version{Name: name}
	if payment != "" {
		addr, err := ParseAddress(payment)
		if err != nil {
			return v, fmt.Errorf("%s payment contract: %w", name, err)
		}
		if legacy {
			v.Payment = zodiac.NewLegacyImagePayment(addr, reader)
		} else {
			v.Payment = zodiac.NewImagePayment(addr, reader)
		}
	}
	if nft != "" {
		addr, err := ParseAddress(nft)
		if err != nil {
			return v, fmt.Errorf("%s nft contract: %w", name, err)
		}
		v.NFT = zodiac.NewZodiacNFT(addr, reader)
	}
	return v, nil
}

// syncFees replaces configured fees with the contracts' own when they can be
// read.
func syncFees(ctx context.Context, fees *FeeSchedule, v Version) {
	if v.Payment != nil {
		if fee, err := v.Payment.ImageFee(ctx); err == nil {
			if fee.Cmp(fees.ImageFee) != 0 {
				log.Warn("Configured image fee differs from contract", "configured", fees.Format(fees.ImageFee), "contract", fees.Format(fee))
			}
			fees.ImageFee = fee
		} else {
			log.Warn("Could not read image fee, using configured", "err", err)
		}
	}
	if v.NFT != nil {
		if fee, err := v.NFT.MintFee(ctx); err == nil {
			if fee.Cmp(fees.MintFee) != 0 {
				log.Warn("Configured mint fee differs from contract", "configured", fees.Format(fees.MintFee), "contract", fees.Format(fee))
			}
			fees.MintFee = fee
		} else {
			log.Warn("Could not read mint fee, using configured", "err", err)
		}
	}
}
