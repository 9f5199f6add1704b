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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JulioMCruz/ZodiacCards/fortune/fault"
	"github.com/JulioMCruz/ZodiacCards/fortune/generate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/xeipuuv/gojsonschema"
)

// CollectionName is the value of the Collection attribute on every card.
const CollectionName = "Zodiac Card"

// GenerationDocument is the immutable record of one generation, stored in
// content-addressed storage and linked to the payment on-chain.
type GenerationDocument struct {
	FortuneText   string             `json:"fortuneText"`
	ImageURL      string             `json:"imageUrl"`
	ZodiacType    string             `json:"zodiacType"`
	ZodiacSign    string             `json:"zodiacSign"`
	PaymentTxHash string             `json:"paymentTxHash"`
	PaymentAmount string             `json:"paymentAmount"`
	Username      string             `json:"username"`
	Description   string             `json:"description"`
	Theme         generate.Theme     `json:"theme"`
	ThemeInfo     generate.ThemeInfo `json:"themeInfo"`
	GeneratedAt   time.Time          `json:"generatedAt"`
}

// NewGenerationDocument assembles the document for a run that has finished
// generating.
func NewGenerationDocument(run Run, at time.Time) (*GenerationDocument, error) {
	if run.Fortune == "" || run.ImageURL == "" || run.PaymentID == nil {
		return nil, fault.New(fault.InvalidInput, "generation document", "fortune text, image and payment are required")
	}
	theme := run.Theme
	info, ok := generate.ThemeByID(theme)
	if !ok {
		theme = generate.ThemeRegular
		info, _ = generate.ThemeByID(theme)
	}
	amount, tx := "", ""
	if run.PaymentAmount != nil {
		amount = run.PaymentAmount.String()
	}
	if run.PaymentTx != (common.Hash{}) {
		tx = run.PaymentTx.Hex()
	}
	return &GenerationDocument{
		FortuneText:   run.Fortune,
		ImageURL:      run.ImageURL,
		ZodiacType:    string(run.ZodiacType),
		ZodiacSign:    run.Sign,
		PaymentTxHash: tx,
		PaymentAmount: amount,
		Username:      run.Username,
		Theme:         theme,
		ThemeInfo:     info,
		GeneratedAt:   at.UTC(),
	}, nil
}

// Name is the pin name of the document.
func (d *GenerationDocument) Name() string {
	return fmt.Sprintf("%s_%s_fortune_%d", d.ZodiacType, d.ZodiacSign, d.GeneratedAt.UnixMilli())
}

// Attribute is one entry of the NFT attribute list.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// NFTMetadata is the marketplace-standard metadata a token URI points to.
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	ExternalURL string      `json:"external_url,omitempty"`
	Attributes  []Attribute `json:"attributes"`
}

// NewNFTMetadata builds the token metadata for a run. image is the HTTP
// gateway URL of the pinned card image.
func NewNFTMetadata(run Run, image, siteURL string) *NFTMetadata {
	id := "0"
	if run.PaymentID != nil {
		id = run.PaymentID.String()
	}
	meta := &NFTMetadata{
		Name:        "Zodiac Card Fortune #" + id,
		Description: fmt.Sprintf("A unique Zodiac fortune for %s. %s", run.Username, run.Fortune),
		Image:       image,
		ExternalURL: siteURL,
		Attributes: []Attribute{
			{TraitType: "Zodiac Card", Value: string(run.ZodiacType)},
			{TraitType: "Zodiac Sign", Value: run.Sign},
			{TraitType: "Username", Value: run.Username},
			{TraitType: "Collection", Value: CollectionName},
		},
	}
	if run.Theme != "" && run.Theme != generate.ThemeRegular {
		if info, ok := generate.ThemeByID(run.Theme); ok {
			meta.Attributes = append(meta.Attributes, Attribute{TraitType: "Theme", Value: info.Name})
		}
	}
	return meta
}

const nftMetadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "description", "image", "attributes"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "image": {"type": "string", "minLength": 1},
    "external_url": {"type": "string"},
    "attributes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["trait_type", "value"],
        "properties": {
          "trait_type": {"type": "string", "minLength": 1},
          "value": {"type": "string"}
        }
      }
    }
  }
}`

var nftSchema = gojsonschema.NewStringLoader(nftMetadataSchema)

// Validate checks the metadata against the marketplace metadata schema.
func (m *NFTMetadata) Validate() error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fault.Wrap(fault.InvalidInput, "nft metadata", err)
	}
	result, err := gojsonschema.Validate(nftSchema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fault.Wrap(fault.InvalidInput, "nft metadata", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return fault.New(fault.InvalidInput, "nft metadata", strings.Join(problems, "; "))
}
