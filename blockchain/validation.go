package blockchain

import (
	"github.com/OdyseeTeam/powchain/blockchain/model"

	"github.com/cockroachdb/errors"
)

// IsValidChain reports whether candidate starts at this chain's genesis and every later block links
// to its predecessor and carries a correct hash. It also checks proof of work: each block's hash
// must meet the block's own difficulty, and that difficulty must be the one AdjustDifficulty derives
// from the predecessor and the block's timestamp.
func (c *Blockchain) IsValidChain(candidate []model.Block) bool {
	return c.Validate(candidate) == nil
}

// Validate is IsValidChain with a reason. The error wraps ErrInvalidChain.
func (c *Blockchain) Validate(candidate []model.Block) error {
	if len(candidate) == 0 {
		return errors.Wrap(ErrInvalidChain, "empty chain")
	}
	if !isGenesis(candidate[0], c.genesis) {
		return errors.Wrap(ErrInvalidChain, "genesis block mismatch")
	}

	for i := 1; i < len(candidate); i++ {
		block, prev := candidate[i], candidate[i-1]

		if block.LastHash != prev.Hash {
			return errors.Wrapf(ErrInvalidChain, "block %d: last hash %s does not match %s", i, block.LastHash, prev.Hash)
		}

		hash, err := BlockHash(block.Timestamp, block.LastHash, block.Data, block.Nonce, block.Difficulty)
		if err != nil {
			return errors.Wrapf(ErrInvalidChain, "block %d: %s", i, err)
		}
		if hash != block.Hash {
			return errors.Wrapf(ErrInvalidChain, "block %d: stored hash %s, computed %s", i, block.Hash, hash)
		}

		if !MeetsDifficulty(block.Hash, block.Difficulty) {
			return errors.Wrapf(ErrInvalidChain, "block %d: hash does not meet difficulty %d", i, block.Difficulty)
		}
		if want := AdjustDifficulty(prev, block.Timestamp, c.cfg.MineRate); block.Difficulty != want {
			return errors.Wrapf(ErrInvalidChain, "block %d: difficulty %d, expected %d", i, block.Difficulty, want)
		}
	}
	return nil
}

func isGenesis(b, genesis model.Block) bool {
	return b.Timestamp == genesis.Timestamp &&
		b.LastHash == genesis.LastHash &&
		b.Hash == genesis.Hash &&
		b.Nonce == genesis.Nonce &&
		b.Difficulty == genesis.Difficulty &&
		len(b.Data) == 0
}
