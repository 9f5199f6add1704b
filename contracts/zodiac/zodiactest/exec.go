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

package zodiactest

import (
	"math/big"

	"github.com/JulioMCruz/ZodiacCards/contracts/zodiac"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// exec runs calldata against the contract at to. State changes and logs are
// only produced when commit is set; every check runs before any mutation.
func (c *Chain) exec(from, to common.Address, value *big.Int, data []byte, commit bool) ([]byte, []*types.Log, error) {
	if value == nil {
		value = new(big.Int)
	}
	if len(data) < 4 {
		return nil, nil, revert("")
	}
	var parsed *abi.ABI
	pc, isPayment := c.payments[to]
	nc, isNFT := c.nfts[to]
	switch {
	case isPayment:
		parsed = pc.abi
	case isNFT:
		parsed = nc.abi
	default:
		return nil, nil, nil
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, revert("")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, revert("")
	}
	c.calls[method.Name]++
	if queued := c.reverts[method.Name]; len(queued) > 0 {
		c.reverts[method.Name] = queued[1:]
		return nil, nil, revert(queued[0])
	}

	var (
		out  []interface{}
		logs []*types.Log
	)
	if isPayment {
		out, logs, err = c.execPayment(to, pc, from, value, method.Name, args, commit)
	} else {
		out, logs, err = c.execNFT(to, nc, from, value, method.Name, args, commit)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(method.Outputs) == 0 {
		return nil, logs, nil
	}
	packed, err := method.Outputs.Pack(out...)
	if err != nil {
		return nil, nil, err
	}
	return packed, logs, nil
}

func zeroGeneration() zodiac.Generation {
	return zodiac.Generation{TokenId: new(big.Int), CreatedAt: new(big.Int), MintedAt: new(big.Int)}
}

func (c *Chain) execPayment(addr common.Address, pc *paymentContract, from common.Address, value *big.Int, method string, args []interface{}, commit bool) ([]interface{}, []*types.Log, error) {
	switch method {
	case "payForImage":
		if value.Cmp(pc.fee) < 0 {
			return nil, nil, revert("Insufficient payment")
		}
		id := pc.next
		if !commit {
			return []interface{}{new(big.Int).SetUint64(id)}, nil, nil
		}
		pc.next++
		pc.payments[id] = &paymentRecord{user: from, amount: new(big.Int).Set(value), timestamp: c.now, gen: zeroGeneration()}
		pc.byUser[from] = append(pc.byUser[from], id)
		l := eventLog(addr, pc.abi.Events["ImagePaymentReceived"],
			[]common.Hash{addressTopic(from), uintTopic(id)},
			new(big.Int).Set(value), new(big.Int).SetUint64(c.now))
		return []interface{}{new(big.Int).SetUint64(id)}, []*types.Log{l}, nil

	case "storeGeneration":
		id, uri := args[0].(*big.Int), args[1].(string)
		if pc.backend != (common.Address{}) && from != pc.backend {
			return nil, nil, revert("Only backend can store generations")
		}
		rec, ok := pc.payments[id.Uint64()]
		if !ok {
			return nil, nil, revert("Payment does not exist")
		}
		if uri == "" {
			return nil, nil, revert("Metadata URI required")
		}
		if rec.gen.MetadataURI != "" {
			return nil, nil, revert("Generation already stored")
		}
		if !commit {
			return nil, nil, nil
		}
		rec.gen.MetadataURI = uri
		rec.gen.CreatedAt = new(big.Int).SetUint64(c.now)
		l := eventLog(addr, pc.abi.Events["GenerationStored"], []common.Hash{uintTopic(id.Uint64())}, uri)
		return nil, []*types.Log{l}, nil

	case "markAsMinted":
		id, tokenID := args[0].(*big.Int), args[1].(*big.Int)
		rec, ok := pc.payments[id.Uint64()]
		if !ok {
			return nil, nil, revert("Payment does not exist")
		}
		if from != rec.user && from != pc.backend {
			return nil, nil, revert("Not payment owner")
		}
		if rec.gen.IsMinted {
			return nil, nil, revert("Already minted")
		}
		if !commit {
			return nil, nil, nil
		}
		rec.gen.IsMinted = true
		rec.gen.TokenId = new(big.Int).Set(tokenID)
		rec.gen.MintedAt = new(big.Int).SetUint64(c.now)
		l := eventLog(addr, pc.abi.Events["GenerationMinted"], []common.Hash{uintTopic(id.Uint64()), uintTopic(tokenID.Uint64())})
		return nil, []*types.Log{l}, nil

	case "getGeneration":
		rec, ok := pc.payments[args[0].(*big.Int).Uint64()]
		if !ok {
			return []interface{}{zeroGeneration()}, nil, nil
		}
		return []interface{}{rec.gen}, nil, nil

	case "getPayment":
		rec, ok := pc.payments[args[0].(*big.Int).Uint64()]
		if !ok {
			return []interface{}{common.Address{}, new(big.Int), new(big.Int), "", false}, nil, nil
		}
		return []interface{}{rec.user, rec.amount, new(big.Int).SetUint64(rec.timestamp), "", rec.gen.MetadataURI != ""}, nil, nil

	case "getUserCollection":
		user := args[0].(common.Address)
		ids := make([]*big.Int, 0, len(pc.byUser[user]))
		gens := make([]zodiac.Generation, 0, len(pc.byUser[user]))
		for _, id := range pc.byUser[user] {
			ids = append(ids, new(big.Int).SetUint64(id))
			gens = append(gens, pc.payments[id].gen)
		}
		return []interface{}{ids, gens}, nil, nil

	case "imageFee":
		return []interface{}{new(big.Int).Set(pc.fee)}, nil, nil
	}
	return nil, nil, revert("")
}

func (c *Chain) execNFT(addr common.Address, nc *nftContract, from common.Address, value *big.Int, method string, args []interface{}, commit bool) ([]interface{}, []*types.Log, error) {
	switch method {
	case "mint":
		to, uri := args[0].(common.Address), args[1].(string)
		if value.Cmp(nc.fee) < 0 {
			return nil, nil, revert("Insufficient mint fee")
		}
		id := nc.next
		if !commit {
			return []interface{}{new(big.Int).SetUint64(id)}, nil, nil
		}
		nc.next++
		nc.owners[id] = to
		nc.uris[id] = uri
		transfer := eventLog(addr, nc.abi.Events["Transfer"], []common.Hash{addressTopic(common.Address{}), addressTopic(to), uintTopic(id)})
		minted := eventLog(addr, nc.abi.Events["NFTMinted"], []common.Hash{addressTopic(to), uintTopic(id)}, uri)
		return []interface{}{new(big.Int).SetUint64(id)}, []*types.Log{transfer, minted}, nil

	case "tokenURI":
		uri, ok := nc.uris[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, nil, revert("ERC721: invalid token ID")
		}
		return []interface{}{uri}, nil, nil

	case "ownerOf":
		owner, ok := nc.owners[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, nil, revert("ERC721: invalid token ID")
		}
		return []interface{}{owner}, nil, nil

	case "nextTokenId":
		return []interface{}{new(big.Int).SetUint64(nc.next)}, nil, nil

	case "mintFee":
		return []interface{}{new(big.Int).Set(nc.fee)}, nil, nil
	}
	return nil, nil, revert("")
}

func eventLog(addr common.Address, ev abi.Event, indexed []common.Hash, data ...interface{}) *types.Log {
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: addr,
		Topics:  append([]common.Hash{ev.ID}, indexed...),
		Data:    packed,
	}
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func uintTopic(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}
