package storage

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/chainutil"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var blockPrefix = []byte("b")

// ChainStore keeps the chain in leveldb, one JSON encoded block per key. Keys are the prefix followed
// by the big endian height, so iteration is in chain order.
type ChainStore struct {
	db *leveldb.DB

	mu     sync.Mutex
	height int
}

func OpenChainStore(dir string) (*ChainStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening chain store in %s", dir)
	}

	s := &ChainStore{db: db}
	iter := db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	for iter.Next() {
		s.height++
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}

	logrus.Infof("chain store %s holds %d blocks", dir, s.height)
	return s, nil
}

func (s *ChainStore) Close() error {
	return errors.WithStack(s.db.Close())
}

// Height is the number of stored blocks.
func (s *ChainStore) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Append stores block after the last stored one.
func (s *ChainStore) Append(block model.Block) error {
	value, err := chainutil.JSON.Marshal(block)
	if err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Put(blockKey(s.height), value, nil); err != nil {
		return errors.Wrapf(err, "storing block %d", s.height)
	}
	s.height++
	return nil
}

// Replace overwrites everything stored with blocks in a single batch.
func (s *ChainStore) Replace(blocks []model.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	for h := len(blocks); h < s.height; h++ {
		batch.Delete(blockKey(h))
	}
	for h, block := range blocks {
		value, err := chainutil.JSON.Marshal(block)
		if err != nil {
			return errors.WithStack(err)
		}
		batch.Put(blockKey(h), value)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "replacing stored chain")
	}
	s.height = len(blocks)
	return nil
}

// Stream reads the stored blocks in order from a snapshot taken now.
func (s *ChainStore) Stream() *BlockStream {
	return &BlockStream{iter: s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)}
}

func blockKey(height int) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], uint64(height))
	return key
}

type BlockStream struct {
	iter iterator.Iterator
}

// NextBlock returns the next stored block, or io.EOF after the last one.
func (bs *BlockStream) NextBlock() (*model.Block, error) {
	if !bs.iter.Next() {
		if err := bs.iter.Error(); err != nil {
			return nil, errors.WithStack(err)
		}
		return nil, io.EOF
	}

	block := new(model.Block)
	if err := chainutil.JSON.Unmarshal(bs.iter.Value(), block); err != nil {
		return nil, errors.Wrapf(err, "decoding block at key %x", bs.iter.Key())
	}
	return block, nil
}

func (bs *BlockStream) Close() error {
	bs.iter.Release()
	return nil
}
