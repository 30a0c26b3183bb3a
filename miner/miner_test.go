package miner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/config"
	"github.com/OdyseeTeam/powchain/pool"
	"github.com/OdyseeTeam/powchain/transaction"
	"github.com/OdyseeTeam/powchain/wallet"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Chain {
	return config.Chain{Difficulty: 2, MineRate: time.Millisecond, InitialBalance: 1000, MiningReward: 50}
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	pool  *pool.TransactionPool
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) SyncChains(context.Context) error {
	// peers must see the new block while the pool still holds its transactions
	r.record("sync")
	if r.pool.Len() == 0 {
		r.record("pool already empty")
	}
	return nil
}

func (r *recorder) BroadcastClearTransactions(context.Context) error {
	r.record("clear")
	if r.pool.Len() != 0 {
		r.record("pool not cleared")
	}
	return nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type setup struct {
	chain   *blockchain.Blockchain
	pool    *pool.TransactionPool
	wallet  *wallet.Wallet
	network *wallet.Wallet
	peers   *recorder
	miner   *Miner
}

func newSetup(t *testing.T, cfg config.Chain) setup {
	t.Helper()
	s := setup{
		chain:   blockchain.New(cfg),
		pool:    pool.New(),
		network: wallet.NetworkWallet(cfg),
	}
	w, err := wallet.New(cfg)
	require.NoError(t, err)
	s.wallet = w
	s.peers = &recorder{pool: s.pool}
	s.miner = New(s.chain, s.pool, w.PublicKey(), s.network, s.peers, cfg.MiningReward)
	return s
}

func TestMine(t *testing.T) {
	s := newSetup(t, testConfig())

	sender, err := wallet.New(testConfig())
	require.NoError(t, err)
	tx, err := sender.CreateTransaction("r3c1p13nt", 50, s.pool)
	require.NoError(t, err)

	bad, err := transaction.New(sender, "r3c1p13nt", 10)
	require.NoError(t, err)
	bad.Input.Amount = 5
	require.NoError(t, s.pool.UpdateOrAdd(bad))

	block, err := s.miner.Mine(context.Background())
	require.NoError(t, err)

	require.Len(t, block.Data, 2)
	assert.Equal(t, *tx, block.Data[0])
	reward := block.Data[1]
	assert.True(t, transaction.IsReward(&reward, s.network.PublicKey()))
	assert.Equal(t, []model.Output{{Amount: 50, Address: s.wallet.PublicKey()}}, reward.Outputs)
	assert.NoError(t, transaction.Validate(&reward))

	assert.Equal(t, block, s.chain.LastBlock())
	assert.Zero(t, s.pool.Len())
	assert.Equal(t, []string{"sync", "clear"}, s.peers.Calls())
}

func TestMineEmptyPool(t *testing.T) {
	s := newSetup(t, testConfig())

	block, err := s.miner.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, block.Data, 1)
	assert.Equal(t, 2, s.chain.Height())
}

func TestMinerRewardShowsInBalance(t *testing.T) {
	s := newSetup(t, testConfig())
	bound, err := wallet.New(testConfig(), wallet.WithChain(s.chain))
	require.NoError(t, err)
	m := New(s.chain, s.pool, bound.PublicKey(), s.network, s.peers, 50)

	_, err = m.Mine(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1050, bound.Balance())
}

func TestMineFailureLeavesPool(t *testing.T) {
	cfg := testConfig()
	cfg.Difficulty = 20
	cfg.MineRate = time.Hour
	s := newSetup(t, cfg)

	sender, err := wallet.New(cfg)
	require.NoError(t, err)
	_, err = sender.CreateTransaction("r3c1p13nt", 50, s.pool)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.miner.Mine(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.Equal(t, 1, s.pool.Len())
	assert.Empty(t, s.peers.Calls())
	assert.Equal(t, 1, s.chain.Height())
}

func TestRun(t *testing.T) {
	s := newSetup(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.miner.Run(ctx, time.Millisecond) }()

	sender, err := wallet.New(testConfig())
	require.NoError(t, err)
	_, err = sender.CreateTransaction("r3c1p13nt", 50, s.pool)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.chain.Height() >= 2 }, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, s.pool.Len())
}
