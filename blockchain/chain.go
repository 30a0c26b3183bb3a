package blockchain

import (
	"context"
	"sync"

	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/config"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrChainTooShort = errors.New("received chain is not longer than the current chain")
	ErrInvalidChain  = errors.New("received chain is invalid")
	ErrStaleBlock    = errors.New("chain tip changed while mining")
)

// Reader is the read side of a chain. Every call observes one consistent chain.
type Reader interface {
	Blocks() []model.Block
}

type Blockchain struct {
	cfg     config.Chain
	genesis model.Block

	mu     sync.RWMutex
	blocks []model.Block

	onBlockFns   []func(block model.Block)
	onReplaceFns []func(blocks []model.Block)

	miningMu   sync.Mutex
	miningNext int
	mining     map[int]context.CancelFunc
}

func New(cfg config.Chain) *Blockchain {
	g := Genesis(cfg)
	return &Blockchain{
		cfg:     cfg,
		genesis: g,
		blocks:  []model.Block{g},
		mining:  make(map[int]context.CancelFunc),
	}
}

func (c *Blockchain) Config() config.Chain { return c.cfg }

func (c *Blockchain) Genesis() model.Block { return c.genesis }

// Blocks returns a snapshot of the chain. Blocks are never modified once sealed, so the snapshot
// stays valid after later appends or replacements.
func (c *Blockchain) Blocks() []model.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Block(nil), c.blocks...)
}

func (c *Blockchain) Height() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

func (c *Blockchain) LastBlock() model.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// OnBlock registers fn to be called with every block appended by AddBlock. Callbacks run under the
// chain's write lock and must not call back into the chain.
func (c *Blockchain) OnBlock(fn func(block model.Block)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBlockFns = append(c.onBlockFns, fn)
}

// OnReplace registers fn to be called with the new chain after every successful ReplaceChain.
// Same locking rules as OnBlock.
func (c *Blockchain) OnReplace(fn func(blocks []model.Block)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReplaceFns = append(c.onReplaceFns, fn)
}

// AddBlock mines data on top of the current last block and appends the result. If the chain is
// replaced while mining, the search is abandoned and ErrStaleBlock returned.
func (c *Blockchain) AddBlock(ctx context.Context, data []model.Transaction) (model.Block, error) {
	last := c.LastBlock()

	mineCtx, cancel := context.WithCancel(ctx)
	id := c.trackMining(cancel)
	defer c.untrackMining(id)
	defer cancel()

	block, err := MineBlock(mineCtx, last, data, c.cfg.MineRate)
	if err != nil {
		if ctx.Err() != nil {
			return model.Block{}, errors.WithStack(ctx.Err())
		}
		return model.Block{}, errors.Wrapf(ErrStaleBlock, "mining on %s", last.Hash)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if tip := c.blocks[len(c.blocks)-1]; tip.Hash != last.Hash {
		logrus.Warnf("discarding block %s, tip moved from %s to %s", block.Hash, last.Hash, tip.Hash)
		return model.Block{}, errors.Wrapf(ErrStaleBlock, "mined on %s", last.Hash)
	}

	c.blocks = append(c.blocks, block)
	logrus.Debugf("added block %d (%s) difficulty %d", len(c.blocks)-1, block.Hash, block.Difficulty)

	for _, fn := range c.onBlockFns {
		fn(block)
	}
	return block, nil
}

// ReplaceChain swaps in candidate if it is strictly longer than the local chain and valid. The
// returned error wraps ErrChainTooShort or ErrInvalidChain when the candidate is rejected.
func (c *Blockchain) ReplaceChain(candidate []model.Block) error {
	if h := c.Height(); len(candidate) <= h {
		return errors.Wrapf(ErrChainTooShort, "received %d blocks, have %d", len(candidate), h)
	}

	if err := c.Validate(candidate); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// someone may have grown the chain while we were validating
	if len(candidate) <= len(c.blocks) {
		return errors.Wrapf(ErrChainTooShort, "received %d blocks, have %d", len(candidate), len(c.blocks))
	}

	logrus.Infof("replacing chain of %d blocks with chain of %d blocks", len(c.blocks), len(candidate))
	c.blocks = append([]model.Block(nil), candidate...)
	c.cancelMining()

	for _, fn := range c.onReplaceFns {
		fn(append([]model.Block(nil), c.blocks...))
	}
	return nil
}

func (c *Blockchain) trackMining(cancel context.CancelFunc) int {
	c.miningMu.Lock()
	defer c.miningMu.Unlock()
	id := c.miningNext
	c.miningNext++
	c.mining[id] = cancel
	return id
}

func (c *Blockchain) untrackMining(id int) {
	c.miningMu.Lock()
	defer c.miningMu.Unlock()
	delete(c.mining, id)
}

func (c *Blockchain) cancelMining() {
	c.miningMu.Lock()
	defer c.miningMu.Unlock()
	for _, cancel := range c.mining {
		cancel()
	}
}
