package model

import "fmt"

type Block struct {
	Timestamp  int64         `json:"timestamp"`
	LastHash   string        `json:"lastHash"`
	Hash       string        `json:"hash"`
	Data       []Transaction `json:"data"`
	Nonce      uint64        `json:"nonce"`
	Difficulty int           `json:"difficulty"`
}

func (b Block) String() string {
	return fmt.Sprintf("Block - timestamp: %d, lastHash: %.10s, hash: %.10s, nonce: %d, difficulty: %d, txs: %d",
		b.Timestamp, b.LastHash, b.Hash, b.Nonce, b.Difficulty, len(b.Data))
}
