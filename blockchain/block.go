package blockchain

import (
	"context"
	"strconv"
	"time"

	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/chainutil"
	"github.com/OdyseeTeam/powchain/config"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
)

const (
	genesisTimestamp int64 = 1577836800000 // 2020-01-01T00:00:00Z in ms
	genesisLastHash        = "-----"

	// how many nonces to try between checks for cancellation
	cancelCheckInterval = 1 << 10
)

var now = func() int64 { return time.Now().UnixMilli() }

// Genesis returns the fixed first block of every chain built with cfg. It carries no proof of work.
func Genesis(cfg config.Chain) model.Block {
	b := model.Block{
		Timestamp:  genesisTimestamp,
		LastHash:   genesisLastHash,
		Data:       []model.Transaction{},
		Nonce:      0,
		Difficulty: cfg.Difficulty,
	}
	b.Hash = hashWithData(b.Timestamp, b.LastHash, []byte("[]"), b.Nonce, b.Difficulty)
	return b
}

// BlockHash computes the hash of a block from its fields.
func BlockHash(timestamp int64, lastHash string, data []model.Transaction, nonce uint64, difficulty int) (string, error) {
	if data == nil {
		data = []model.Transaction{}
	}
	encoded, err := chainutil.JSON.Marshal(data)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return hashWithData(timestamp, lastHash, encoded, nonce, difficulty), nil
}

func hashWithData(timestamp int64, lastHash string, data []byte, nonce uint64, difficulty int) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = strconv.AppendInt(buf.B, timestamp, 10)
	buf.B = append(buf.B, '|')
	buf.B = append(buf.B, lastHash...)
	buf.B = append(buf.B, '|')
	buf.B = append(buf.B, data...)
	buf.B = append(buf.B, '|')
	buf.B = strconv.AppendUint(buf.B, nonce, 10)
	buf.B = append(buf.B, '|')
	buf.B = strconv.AppendInt(buf.B, int64(difficulty), 10)

	return chainutil.Hash(buf.B)
}

// MeetsDifficulty reports whether hash starts with difficulty zero hex characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty > len(hash) {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

// AdjustDifficulty lowers the difficulty by one if the block at currentTimestamp comes later than
// mineRate after lastBlock, and raises it by one otherwise. It never goes below 1.
func AdjustDifficulty(lastBlock model.Block, currentTimestamp int64, mineRate time.Duration) int {
	difficulty := lastBlock.Difficulty
	if currentTimestamp-lastBlock.Timestamp > mineRate.Milliseconds() {
		difficulty--
	} else {
		difficulty++
	}
	if difficulty < 1 {
		difficulty = 1
	}
	return difficulty
}

// MineBlock searches for a nonce that seals data on top of lastBlock. The timestamp, and with it the
// difficulty, is refreshed on every attempt. It returns ctx.Err() if ctx is done first.
func MineBlock(ctx context.Context, lastBlock model.Block, data []model.Transaction, mineRate time.Duration) (model.Block, error) {
	if data == nil {
		data = []model.Transaction{}
	}
	encoded, err := chainutil.JSON.Marshal(data)
	if err != nil {
		return model.Block{}, errors.WithStack(err)
	}

	var (
		nonce      uint64
		timestamp  int64
		difficulty int
		hash       string
	)
	for {
		if nonce%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return model.Block{}, err
			}
		}
		nonce++
		timestamp = now()
		difficulty = AdjustDifficulty(lastBlock, timestamp, mineRate)
		hash = hashWithData(timestamp, lastBlock.Hash, encoded, nonce, difficulty)
		if MeetsDifficulty(hash, difficulty) {
			break
		}
	}

	return model.Block{
		Timestamp:  timestamp,
		LastHash:   lastBlock.Hash,
		Hash:       hash,
		Data:       data,
		Nonce:      nonce,
		Difficulty: difficulty,
	}, nil
}
