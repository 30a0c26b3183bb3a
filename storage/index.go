package storage

import (
	"sync"

	"github.com/OdyseeTeam/powchain/blockchain/model"

	"github.com/cockroachdb/errors"
	"github.com/genjidb/genji"
	"github.com/genjidb/genji/document"
	"github.com/genjidb/genji/types"
)

var tables = []string{"blocks", "transactions", "outputs"}

// Index mirrors the chain into genji tables so it can be explored with SQL.
type Index struct {
	db *genji.DB

	mu     sync.Mutex
	height int
}

// OpenIndex opens an index at path. Use ":memory:" for one that lives as long as the process.
func OpenIndex(path string) (*Index, error) {
	db, err := genji.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, t := range tables {
		if err := db.Exec("CREATE TABLE IF NOT EXISTS " + t); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "creating table %s", t)
		}
	}
	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return errors.WithStack(i.db.Close())
}

// IndexBlock adds block as the next height.
func (i *Index) IndexBlock(block model.Block) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.Begin(true)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	if err := insertBlock(tx, i.height, block); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.WithStack(err)
	}
	i.height++
	return nil
}

// Reindex drops everything and indexes blocks from scratch.
func (i *Index) Reindex(blocks []model.Block) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.Begin(true)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if err := tx.Exec("DELETE FROM " + t); err != nil {
			return errors.Wrapf(err, "clearing %s", t)
		}
	}
	for h, block := range blocks {
		if err := insertBlock(tx, h, block); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.WithStack(err)
	}
	i.height = len(blocks)
	return nil
}

func insertBlock(tx *genji.Tx, height int, block model.Block) error {
	err := tx.Exec(`INSERT INTO blocks (height, hash, last_hash, timestamp, nonce, difficulty, tx_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		height, block.Hash, block.LastHash, block.Timestamp, int64(block.Nonce), block.Difficulty, len(block.Data))
	if err != nil {
		return errors.Wrapf(err, "indexing block %d", height)
	}

	for _, t := range block.Data {
		var sender string
		var amount int64
		if t.Input != nil {
			sender, amount = t.Input.Address, int64(t.Input.Amount)
		}
		err = tx.Exec(`INSERT INTO transactions (id, height, sender, amount, outputs) VALUES (?, ?, ?, ?, ?)`,
			t.ID, height, sender, amount, len(t.Outputs))
		if err != nil {
			return errors.Wrapf(err, "indexing transaction %s", t.ID)
		}
		for n, out := range t.Outputs {
			err = tx.Exec(`INSERT INTO outputs (tx_id, height, n, address, amount) VALUES (?, ?, ?, ?, ?)`,
				t.ID, height, n, out.Address, int64(out.Amount))
			if err != nil {
				return errors.Wrapf(err, "indexing output %s:%d", t.ID, n)
			}
		}
	}
	return nil
}

// Query runs a read query and returns one map per resulting document.
func (i *Index) Query(q string, args ...interface{}) ([]map[string]interface{}, error) {
	res, err := i.db.Query(q, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer res.Close()

	results := make([]map[string]interface{}, 0)
	err = res.Iterate(func(d types.Document) error {
		var m map[string]interface{}
		if err := document.MapScan(d, &m); err != nil {
			return errors.WithStack(err)
		}
		results = append(results, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
