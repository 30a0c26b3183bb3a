package miner

import (
	"context"
	"sync"
	"time"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/metrics"
	"github.com/OdyseeTeam/powchain/transaction"

	"github.com/cockroachdb/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

type Chain interface {
	AddBlock(ctx context.Context, data []model.Transaction) (model.Block, error)
}

type Pool interface {
	Valid() []*model.Transaction
	Clear()
}

// Network propagates the outcome of mining to peers.
type Network interface {
	SyncChains(ctx context.Context) error
	BroadcastClearTransactions(ctx context.Context) error
}

type Miner struct {
	chain   Chain
	pool    Pool
	address string
	network transaction.Signer
	peers   Network
	reward  uint64

	mu sync.Mutex
}

// New returns a miner that pays rewards of reward to address, signed by network.
func New(chain Chain, pool Pool, address string, network transaction.Signer, peers Network, reward uint64) *Miner {
	return &Miner{
		chain:   chain,
		pool:    pool,
		address: address,
		network: network,
		peers:   peers,
		reward:  reward,
	}
}

// Mine seals the pool's valid transactions plus a reward into a new block. Once the block is on
// the chain, peers are synced, the local pool is cleared and peers are told to clear theirs, in
// that order. If sealing fails nothing else happens and the pool is left as it was.
func (m *Miner) Mine(ctx context.Context) (model.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	valid := m.pool.Valid()
	reward, err := transaction.Reward(m.address, m.network, m.reward)
	if err != nil {
		return model.Block{}, err
	}

	data := make([]model.Transaction, 0, len(valid)+1)
	for _, tx := range valid {
		data = append(data, *tx)
	}
	data = append(data, *reward)

	start := time.Now()
	block, err := m.chain.AddBlock(ctx, data)
	if err != nil {
		return model.Block{}, errors.Wrap(err, "sealing block")
	}
	metrics.RecordMinedBlock(time.Since(start))
	logrus.Infof("mined block %s with %d transactions in %s", block.Hash, len(data), time.Since(start))
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Trace(spew.Sdump(block))
	}

	if err := m.peers.SyncChains(ctx); err != nil {
		logrus.Warnf("syncing chains after mining: %+v", err)
	}
	m.pool.Clear()
	if err := m.peers.BroadcastClearTransactions(ctx); err != nil {
		logrus.Warnf("broadcasting clear after mining: %+v", err)
	}

	return block, nil
}

// Run mines whenever the pool holds valid transactions, checking every interval, until ctx is done.
// Blocks lost to a chain replacement are logged and mining continues on the new tip.
func (m *Miner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if len(m.pool.Valid()) == 0 {
			continue
		}
		_, err := m.Mine(ctx)
		switch {
		case err == nil:
		case errors.Is(err, blockchain.ErrStaleBlock):
			logrus.Info("chain replaced while mining, starting over")
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}
