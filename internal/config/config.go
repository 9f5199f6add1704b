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

// Package config loads the service configuration from a YAML file, a .env
// file and ZODIAC_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Chain struct {
	RPCURL   string `mapstructure:"rpc-url"`
	ChainID  int64  `mapstructure:"chain-id"`
	Decimals int    `mapstructure:"decimals"`
	Symbol   string `mapstructure:"symbol"`
	Explorer string `mapstructure:"explorer"`
}

type Contracts struct {
	Payment       string `mapstructure:"payment"`
	PaymentLegacy string `mapstructure:"payment-legacy"`
	NFT           string `mapstructure:"nft"`
	NFTLegacy     string `mapstructure:"nft-legacy"`
}

type Fees struct {
	Image string `mapstructure:"image"`
	Mint  string `mapstructure:"mint"`
}

type RPC struct {
	MaxAttempts      int `mapstructure:"max-attempts"`
	DelayMs          int `mapstructure:"delay-ms"`
	PollIntervalMs   int `mapstructure:"poll-interval-ms"`
	ConfirmTimeoutMs int `mapstructure:"confirm-timeout-ms"`
	GasBufferPercent int `mapstructure:"gas-buffer-percent"`
}

type Keys struct {
	User    string `mapstructure:"user-private-key"`
	Backend string `mapstructure:"backend-private-key"`
}

type Generation struct {
	TextURL     string `mapstructure:"text-url"`
	TextAPIKey  string `mapstructure:"text-api-key"`
	TextModel   string `mapstructure:"text-model"`
	ImageURL    string `mapstructure:"image-url"`
	ImageAPIKey string `mapstructure:"image-api-key"`
	ImageModel  string `mapstructure:"image-model"`
	ImageSize   string `mapstructure:"image-size"`
	PersistURL  string `mapstructure:"persist-url"`
	TimeoutMs   int    `mapstructure:"timeout-ms"`
}

type IPFS struct {
	PinataURL        string   `mapstructure:"pinata-url"`
	PinataJWT        string   `mapstructure:"pinata-jwt"`
	Gateways         []string `mapstructure:"gateways"`
	GatewayTimeoutMs int      `mapstructure:"gateway-timeout-ms"`
}

type Indexer struct {
	URL      string `mapstructure:"url"`
	PageSize int    `mapstructure:"page-size"`
}

type Referral struct {
	Consumer  string `mapstructure:"consumer"`
	ReportURL string `mapstructure:"report-url"`
}

type Verify struct {
	TTLMinutes     int    `mapstructure:"ttl-minutes"`
	PollIntervalMs int    `mapstructure:"poll-interval-ms"`
	PollAttempts   int    `mapstructure:"poll-attempts"`
	CallbackSecret string `mapstructure:"callback-secret"`
}

type Server struct {
	Listen     string `mapstructure:"listen"`
	JWTSecret  string `mapstructure:"jwt-secret"`
	SiteURL    string `mapstructure:"site-url"`
	BackendURL string `mapstructure:"backend-url"`
}

type Session struct {
	Path string `mapstructure:"path"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Config struct {
	Chain      Chain      `mapstructure:"chain"`
	Contracts  Contracts  `mapstructure:"contracts"`
	Fees       Fees       `mapstructure:"fees"`
	RPC        RPC        `mapstructure:"rpc"`
	Keys       Keys       `mapstructure:"keys"`
	Generation Generation `mapstructure:"generation"`
	IPFS       IPFS       `mapstructure:"ipfs"`
	Indexer    Indexer    `mapstructure:"indexer"`
	Referral   Referral   `mapstructure:"referral"`
	Verify     Verify     `mapstructure:"verify"`
	Server     Server     `mapstructure:"server"`
	Session    Session    `mapstructure:"session"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

// DefaultGateways are tried in order when resolving ipfs:// addresses.
var DefaultGateways = []string{
	"https://gateway.pinata.cloud/ipfs/",
	"https://ipfs.io/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://dweb.link/ipfs/",
}

var defaults = map[string]interface{}{
	"chain.rpc-url":            "https://forno.celo.org",
	"chain.chain-id":           42220,
	"chain.decimals":           18,
	"chain.symbol":             "CELO",
	"chain.explorer":           "https://celo.blockscout.com",
	"contracts.payment":        "",
	"contracts.payment-legacy": "",
	"contracts.nft":            "",
	"contracts.nft-legacy":     "",
	"fees.image":               "2.0",
	"fees.mint":                "2.0",
	"rpc.max-attempts":         4,
	"rpc.delay-ms":             1000,
	"rpc.poll-interval-ms":     1000,
	"rpc.confirm-timeout-ms":   60000,
	"rpc.gas-buffer-percent":   20,
	"keys.user-private-key":    "",
	"keys.backend-private-key": "",
	"generation.text-url":      "https://openrouter.ai/api/v1",
	"generation.text-api-key":  "",
	"generation.text-model":    "openai/gpt-4o-mini",
	"generation.image-url":     "https://api.openai.com/v1",
	"generation.image-api-key": "",
	"generation.image-model":   "dall-e-3",
	"generation.image-size":    "1024x1024",
	"generation.persist-url":   "",
	"generation.timeout-ms":    60000,
	"ipfs.pinata-url":          "https://api.pinata.cloud",
	"ipfs.pinata-jwt":          "",
	"ipfs.gateways":            DefaultGateways,
	"ipfs.gateway-timeout-ms":  10000,
	"indexer.url":              "https://celo.blockscout.com/api",
	"indexer.page-size":        100,
	"referral.consumer":        "",
	"referral.report-url":      "",
	"verify.ttl-minutes":       60,
	"verify.poll-interval-ms":  2000,
	"verify.poll-attempts":     150,
	"verify.callback-secret":   "",
	"server.listen":            ":8550",
	"server.jwt-secret":        "",
	"server.site-url":          "https://zodiaccard.xyz",
	"server.backend-url":       "",
	"session.path":             "zodiac-sessions.db",
	"metrics.url":              "",
	"metrics.interval-ms":      10000,
	"metrics.common-labels":    "",
}

// LoadConfig reads config.yaml from path (optional), then applies the .env
// file and ZODIAC_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", "err", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if path != "" {
		v.AddConfigPath(path)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ZODIAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// MustLoadConfig is LoadConfig that terminates the process on failure.
func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Crit("Failed to load config", "err", err)
	}
	return config
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (r RPC) Delay() time.Duration           { return ms(r.DelayMs) }
func (r RPC) PollInterval() time.Duration    { return ms(r.PollIntervalMs) }
func (r RPC) ConfirmTimeout() time.Duration  { return ms(r.ConfirmTimeoutMs) }
func (g Generation) Timeout() time.Duration  { return ms(g.TimeoutMs) }
func (i IPFS) GatewayTimeout() time.Duration { return ms(i.GatewayTimeoutMs) }
func (v Verify) TTL() time.Duration          { return time.Duration(v.TTLMinutes) * time.Minute }
func (v Verify) PollInterval() time.Duration { return ms(v.PollIntervalMs) }
func (m Metrics) Interval() time.Duration    { return ms(m.IntervalMs) }
