package loader

import (
	"io"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Blocks yields stored blocks in chain order and io.EOF after the last one.
type Blocks interface {
	NextBlock() (*model.Block, error)
}

type Chain interface {
	Height() int
	ReplaceChain(candidate []model.Block) error
}

// LoadChain restores chain from blocks, reading at most maxHeight blocks (0 = all). Nothing happens
// if the stream is no longer than the chain already is. A stream that fails validation is an error.
func LoadChain(chain Chain, blocks Blocks, maxHeight int) error {
	results := make(chan model.Block)
	done := make(chan error, 1)
	go worker(blocks, maxHeight, results, done)

	var candidate []model.Block
	for b := range results {
		candidate = append(candidate, b)
	}
	if err := <-done; err != nil {
		return err
	}

	if len(candidate) <= chain.Height() {
		logrus.Infof("nothing to restore, store holds %d blocks", len(candidate))
		return nil
	}

	if err := chain.ReplaceChain(candidate); err != nil {
		if errors.Is(err, blockchain.ErrChainTooShort) {
			return nil
		}
		return errors.Wrap(err, "restoring stored chain")
	}
	logrus.Infof("restored %d blocks", len(candidate))
	return nil
}

func worker(blocks Blocks, maxHeight int, results chan<- model.Block, done chan<- error) {
	defer close(results)

	for height := 0; maxHeight <= 0 || height < maxHeight; height++ {
		block, err := blocks.NextBlock()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			done <- errors.Wrapf(err, "reading block %d", height)
			return
		}

		if height > 0 && height%1000 == 0 {
			logrus.Infof("loaded %dk blocks", height/1000)
		}
		results <- *block
	}
	done <- nil
}
