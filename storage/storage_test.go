package storage

import (
	"io"
	"testing"

	"github.com/OdyseeTeam/powchain/blockchain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlocks(n int) []model.Block {
	blocks := make([]model.Block, n)
	for i := range blocks {
		blocks[i] = model.Block{
			Timestamp:  int64(1000 + i),
			Hash:       string(rune('a' + i)),
			Nonce:      uint64(i),
			Difficulty: 2,
			Data:       []model.Transaction{},
		}
		if i > 0 {
			blocks[i].LastHash = blocks[i-1].Hash
			blocks[i].Data = []model.Transaction{{
				ID:    "tx" + blocks[i].Hash,
				Input: &model.Input{Timestamp: 1, Amount: 100, Address: "sender", Signature: "sig"},
				Outputs: []model.Output{
					{Amount: 60, Address: "sender"},
					{Amount: 40, Address: "r3c1p13nt"},
				},
			}}
		}
	}
	return blocks
}

func readAll(t *testing.T, s *ChainStore) []model.Block {
	t.Helper()
	stream := s.Stream()
	defer stream.Close()

	var blocks []model.Block
	for {
		b, err := stream.NextBlock()
		if err == io.EOF {
			return blocks
		}
		require.NoError(t, err)
		blocks = append(blocks, *b)
	}
}

func TestChainStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenChainStore(dir)
	require.NoError(t, err)

	assert.Zero(t, s.Height())
	assert.Empty(t, readAll(t, s))

	blocks := testBlocks(3)
	for _, b := range blocks {
		require.NoError(t, s.Append(b))
	}
	assert.Equal(t, 3, s.Height())
	assert.Equal(t, blocks, readAll(t, s))

	require.NoError(t, s.Close())

	s, err = OpenChainStore(dir)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 3, s.Height())
	assert.Equal(t, blocks, readAll(t, s))
}

func TestChainStoreReplace(t *testing.T) {
	s, err := OpenChainStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Replace(testBlocks(5)))
	assert.Equal(t, 5, s.Height())

	shorter := testBlocks(2)
	shorter[1].Hash = "other"
	require.NoError(t, s.Replace(shorter))
	assert.Equal(t, 2, s.Height())
	assert.Equal(t, shorter, readAll(t, s))

	next := testBlocks(3)[2]
	require.NoError(t, s.Append(next))
	assert.Equal(t, append(shorter, next), readAll(t, s))
}

func TestBlockKeysSortByHeight(t *testing.T) {
	assert.Less(t, string(blockKey(255)), string(blockKey(256)))
	assert.Less(t, string(blockKey(1)), string(blockKey(1<<40)))
}

func TestIndex(t *testing.T) {
	idx, err := OpenIndex(":memory:")
	require.NoError(t, err)
	defer idx.Close()

	blocks := testBlocks(3)
	for _, b := range blocks {
		require.NoError(t, idx.IndexBlock(b))
	}

	rows, err := idx.Query("SELECT height, hash FROM blocks WHERE height = ?", 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0]["height"])
	assert.Equal(t, "c", rows[0]["hash"])

	rows, err = idx.Query("SELECT address, amount FROM outputs WHERE address = 'r3c1p13nt'")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = idx.Query("SELECT * FROM transactions")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = idx.Query("SELEC nonsense")
	assert.Error(t, err)
}

func TestReindex(t *testing.T) {
	idx, err := OpenIndex(":memory:")
	require.NoError(t, err)
	defer idx.Close()

	for _, b := range testBlocks(3) {
		require.NoError(t, idx.IndexBlock(b))
	}
	require.NoError(t, idx.Reindex(testBlocks(2)))

	rows, err := idx.Query("SELECT height FROM blocks")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, idx.IndexBlock(testBlocks(3)[2]))
	rows, err = idx.Query("SELECT hash FROM blocks WHERE height = 2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0]["hash"])
}
