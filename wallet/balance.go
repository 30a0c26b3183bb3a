package wallet

import (
	"github.com/OdyseeTeam/powchain/blockchain/model"

	"github.com/holiman/uint256"
)

// CalculateBalance replays blocks to find what address can spend. The last transaction sent from
// address, by position in the chain, fixes the balance to its change output; outputs to address
// from other transactions in that block or any later one are added on top. An address that never
// sent anything starts from initial. Timestamps are not consulted.
func CalculateBalance(blocks []model.Block, address string, initial uint64) uint64 {
	received := new(uint256.Int)
	for i := len(blocks) - 1; i >= 0; i-- {
		var own *model.Transaction
		for j := range blocks[i].Data {
			tx := &blocks[i].Data[j]
			if tx.Input != nil && tx.Input.Address == address {
				own = tx
				continue
			}
			for _, out := range tx.Outputs {
				if out.Address == address {
					received.Add(received, uint256.NewInt(out.Amount))
				}
			}
		}

		if own != nil {
			change, _ := own.OutputFor(address)
			return clamp(received.Add(received, uint256.NewInt(change.Amount)))
		}
	}
	return clamp(received.Add(received, uint256.NewInt(initial)))
}

func clamp(v *uint256.Int) uint64 {
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

// Balances replays blocks once per address seen in them and returns every balance. Addresses in
// skip are left out.
func Balances(blocks []model.Block, initial uint64, skip ...string) map[string]uint64 {
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[s] = struct{}{}
	}

	balances := make(map[string]uint64)
	for _, b := range blocks {
		for _, tx := range b.Data {
			for _, out := range tx.Outputs {
				if _, ok := skipped[out.Address]; ok {
					continue
				}
				if _, ok := balances[out.Address]; !ok {
					balances[out.Address] = CalculateBalance(blocks, out.Address, initial)
				}
			}
		}
	}
	return balances
}
