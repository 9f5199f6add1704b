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

// Package contract contains the ABIs of the ZodiacCard payment and NFT
// contracts deployed on Celo.
package contract

// ImagePaymentABI is the ABI of the current (V3) image payment contract. It
// records one generation per payment and links it to the minted token.
const ImagePaymentABI = `[
	{
		"inputs": [],
		"name": "payForImage",
		"outputs": [{"name": "paymentId", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "paymentId",   "type": "uint256"},
			{"name": "metadataURI", "type": "string"}
		],
		"name": "storeGeneration",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "paymentId", "type": "uint256"},
			{"name": "tokenId",   "type": "uint256"}
		],
		"name": "markAsMinted",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "paymentId", "type": "uint256"}],
		"name": "getGeneration",
		"outputs": [
			{
				"name": "",
				"type": "tuple",
				"internalType": "struct ZodiacImagePaymentV3.Generation",
				"components": [
					{"name": "metadataURI", "type": "string"},
					{"name": "tokenId",     "type": "uint256"},
					{"name": "isMinted",    "type": "bool"},
					{"name": "createdAt",   "type": "uint256"},
					{"name": "mintedAt",    "type": "uint256"}
				]
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "paymentId", "type": "uint256"}],
		"name": "getPayment",
		"outputs": [
			{"name": "user",           "type": "address"},
			{"name": "amount",         "type": "uint256"},
			{"name": "timestamp",      "type": "uint256"},
			{"name": "imageS3Key",     "type": "string"},
			{"name": "imageGenerated", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "user", "type": "address"}],
		"name": "getUserCollection",
		"outputs": [
			{"name": "paymentIds", "type": "uint256[]"},
			{
				"name": "generations",
				"type": "tuple[]",
				"internalType": "struct ZodiacImagePaymentV3.Generation[]",
				"components": [
					{"name": "metadataURI", "type": "string"},
					{"name": "tokenId",     "type": "uint256"},
					{"name": "isMinted",    "type": "bool"},
					{"name": "createdAt",   "type": "uint256"},
					{"name": "mintedAt",    "type": "uint256"}
				]
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "imageFee",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "user",      "type": "address"},
			{"indexed": true,  "name": "paymentId", "type": "uint256"},
			{"indexed": false, "name": "amount",    "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "ImagePaymentReceived",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "paymentId",   "type": "uint256"},
			{"indexed": false, "name": "metadataURI", "type": "string"}
		],
		"name": "GenerationStored",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "paymentId", "type": "uint256"},
			{"indexed": true, "name": "tokenId",   "type": "uint256"}
		],
		"name": "GenerationMinted",
		"type": "event"
	}
]`

// ImagePaymentLegacyABI is the ABI of the V2 image payment contract. It
// predates on-chain generation records and has no collection query.
const ImagePaymentLegacyABI = `[
	{
		"inputs": [],
		"name": "payForImage",
		"outputs": [{"name": "paymentId", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"name": "paymentId", "type": "uint256"}],
		"name": "getPayment",
		"outputs": [
			{"name": "user",           "type": "address"},
			{"name": "amount",         "type": "uint256"},
			{"name": "timestamp",      "type": "uint256"},
			{"name": "imageS3Key",     "type": "string"},
			{"name": "imageGenerated", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "imageFee",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "user",      "type": "address"},
			{"indexed": true,  "name": "paymentId", "type": "uint256"},
			{"indexed": false, "name": "amount",    "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "ImagePaymentReceived",
		"type": "event"
	}
]`

// ZodiacNFTABI is the ABI of the ZodiacCard ERC-721 contract.
const ZodiacNFTABI = `[
	{
		"inputs": [
			{"name": "to",  "type": "address"},
			{"name": "uri", "type": "string"}
		],
		"name": "mint",
		"outputs": [{"name": "tokenId", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "tokenURI",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "nextTokenId",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "mintFee",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true,  "name": "to",       "type": "address"},
			{"indexed": true,  "name": "tokenId",  "type": "uint256"},
			{"indexed": false, "name": "tokenURI", "type": "string"}
		],
		"name": "NFTMinted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "from",    "type": "address"},
			{"indexed": true, "name": "to",      "type": "address"},
			{"indexed": true, "name": "tokenId", "type": "uint256"}
		],
		"name": "Transfer",
		"type": "event"
	}
]`
