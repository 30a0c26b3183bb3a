package wallet

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/config"
	"github.com/OdyseeTeam/powchain/pool"
	"github.com/OdyseeTeam/powchain/transaction"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Chain {
	return config.Chain{Difficulty: 2, MineRate: time.Millisecond, InitialBalance: 1000, MiningReward: 50}
}

func TestNew(t *testing.T) {
	w, err := New(testConfig())
	require.NoError(t, err)
	assert.EqualValues(t, 1000, w.Balance())
	assert.Len(t, w.PublicKey(), 66)

	other, err := New(testConfig())
	require.NoError(t, err)
	assert.NotEqual(t, w.PublicKey(), other.PublicKey())

	addr, err := w.Address()
	require.NoError(t, err)
	assert.NotEmpty(t, addr)
}

func TestCreateTransaction(t *testing.T) {
	w, err := New(testConfig())
	require.NoError(t, err)
	p := pool.New()

	tx, err := w.CreateTransaction("r3c1p13nt", 50, p)
	require.NoError(t, err)
	assert.Equal(t, []model.Output{
		{Amount: 950, Address: w.PublicKey()},
		{Amount: 50, Address: "r3c1p13nt"},
	}, tx.Outputs)
	assert.EqualValues(t, 1000, tx.Input.Amount)
	assert.Equal(t, []*model.Transaction{tx}, p.Transactions())

	tx, err = w.CreateTransaction("r3c1p13nt", 50000, p)
	assert.Nil(t, tx)
	assert.True(t, errors.Is(err, transaction.ErrAmountExceedsBalance))
	assert.Equal(t, 1, p.Len())
}

func TestCreateTransactionExtendsPending(t *testing.T) {
	w, err := New(testConfig())
	require.NoError(t, err)
	p := pool.New()

	first, err := w.CreateTransaction("r3c1p13nt", 50, p)
	require.NoError(t, err)
	second, err := w.CreateTransaction("n3xt", 20, p)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, p.Len())
	assert.Equal(t, []model.Output{
		{Amount: 930, Address: w.PublicKey()},
		{Amount: 50, Address: "r3c1p13nt"},
		{Amount: 20, Address: "n3xt"},
	}, p.Transactions()[0].Outputs)
	assert.NoError(t, transaction.Validate(p.Transactions()[0]))
}

func TestConcurrentCreateTransaction(t *testing.T) {
	const (
		rounds  = 50
		senders = 8
		amount  = 10
	)
	w, err := New(testConfig())
	require.NoError(t, err)

	for round := 0; round < rounds; round++ {
		p := pool.New()
		start := make(chan struct{})
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, err := w.CreateTransaction("r3c1p13nt", amount, p); assert.NoError(t, err) {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, p.Len(), "round %d", round)
		pending := p.Transactions()[0]
		require.NoError(t, transaction.Validate(pending), "round %d", round)

		var paid int
		for _, out := range pending.Outputs {
			if out.Address == "r3c1p13nt" {
				assert.EqualValues(t, amount, out.Amount)
				paid++
			}
		}
		assert.Equal(t, succeeded, paid, "round %d", round)
		change, ok := pending.OutputFor(w.PublicKey())
		require.True(t, ok)
		assert.EqualValues(t, 1000-amount*succeeded, change.Amount, "round %d", round)
	}
}

func TestNetworkWallet(t *testing.T) {
	a := NetworkWallet(testConfig())
	b := NetworkWallet(testConfig())
	assert.Equal(t, a.PublicKey(), b.PublicKey())

	w, err := New(testConfig())
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey(), w.PublicKey())
}

type staticChain []model.Block

func (c staticChain) Blocks() []model.Block { return c }

func tx(ts int64, from string, outputs ...model.Output) model.Transaction {
	return model.Transaction{ID: from, Input: &model.Input{Timestamp: ts, Address: from}, Outputs: outputs}
}

func TestCalculateBalance(t *testing.T) {
	blocks := []model.Block{
		{},
		{Data: []model.Transaction{
			tx(10, "A", model.Output{Amount: 950, Address: "A"}, model.Output{Amount: 50, Address: "B"}),
		}},
		{Data: []model.Transaction{
			tx(20, "C", model.Output{Amount: 970, Address: "C"}, model.Output{Amount: 30, Address: "A"}),
			tx(21, "N", model.Output{Amount: 50, Address: "A"}),
		}},
	}

	assert.EqualValues(t, 1030, CalculateBalance(blocks, "A", 1000))
	assert.EqualValues(t, 1050, CalculateBalance(blocks, "B", 1000))
	assert.EqualValues(t, 970, CalculateBalance(blocks, "C", 1000))
	assert.EqualValues(t, 1000, CalculateBalance(blocks, "nobody", 1000))

	blocks = append(blocks, model.Block{Data: []model.Transaction{
		tx(30, "A", model.Output{Amount: 1000, Address: "A"}, model.Output{Amount: 30, Address: "D"}),
		// sealed together with A's transaction, so A could not have spent it yet
		tx(25, "E", model.Output{Amount: 993, Address: "E"}, model.Output{Amount: 7, Address: "A"}),
	}})
	assert.EqualValues(t, 1007, CalculateBalance(blocks, "A", 1000))

	balances := Balances(blocks, 1000, "N")
	assert.Equal(t, map[string]uint64{"A": 1007, "B": 1050, "C": 970, "D": 1030, "E": 993}, balances)
}

func TestCalculateBalanceUsesChainOrder(t *testing.T) {
	// the second transaction from A carries an older timestamp but sits later in the block
	blocks := []model.Block{
		{},
		{Data: []model.Transaction{
			tx(50, "A", model.Output{Amount: 900, Address: "A"}, model.Output{Amount: 100, Address: "B"}),
			tx(40, "A", model.Output{Amount: 850, Address: "A"}, model.Output{Amount: 50, Address: "C"}),
		}},
	}
	assert.EqualValues(t, 850, CalculateBalance(blocks, "A", 1000))

	// and across blocks the later block wins regardless of timestamps
	blocks = append(blocks, model.Block{Data: []model.Transaction{
		tx(1, "A", model.Output{Amount: 800, Address: "A"}, model.Output{Amount: 50, Address: "D"}),
	}})
	assert.EqualValues(t, 800, CalculateBalance(blocks, "A", 1000))
}

func TestBalanceFromChain(t *testing.T) {
	w, err := New(testConfig())
	require.NoError(t, err)

	chain := staticChain{
		{},
		{Data: []model.Transaction{tx(10, "X", model.Output{Amount: 25, Address: w.PublicKey()})}},
	}
	bound, err := New(testConfig(), WithKeyPair(w.keys), WithChain(chain))
	require.NoError(t, err)
	assert.EqualValues(t, 1025, bound.Balance())
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "wallet.key")

	created, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	loaded, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, created.PublicKey(), loaded.PublicKey())
}
