package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Chain.Difficulty)
	assert.Equal(t, 3*time.Second, cfg.Chain.MineRate)
	assert.EqualValues(t, 1000, cfg.Chain.InitialBalance)
	assert.EqualValues(t, 50, cfg.Chain.MiningReward)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yml")
	err := os.WriteFile(path, []byte(`
chain:
  difficulty: 4
  mine_rate: 5s
node:
  http_addr: ":4000"
  peers:
    - /ip4/127.0.0.1/tcp/5002/p2p/QmPeer
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Chain.Difficulty)
	assert.Equal(t, 5*time.Second, cfg.Chain.MineRate)
	assert.EqualValues(t, 50, cfg.Chain.MiningReward)
	assert.Equal(t, ":4000", cfg.Node.HTTPAddr)
	assert.Len(t, cfg.Node.Peers, 1)
}

func TestValidate(t *testing.T) {
	c := DefaultChain()
	c.Difficulty = 0
	assert.True(t, errors.Is(c.Validate(), ErrInvalidConfig))

	c = DefaultChain()
	c.MineRate = 0
	assert.True(t, errors.Is(c.Validate(), ErrInvalidConfig))

	c = DefaultChain()
	c.MiningReward = 0
	assert.True(t, errors.Is(c.Validate(), ErrInvalidConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
