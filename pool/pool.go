package pool

import (
	"sync"

	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/metrics"
	"github.com/OdyseeTeam/powchain/transaction"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

var ErrMalformedTransaction = errors.New("malformed transaction")

// TransactionPool holds pending transactions keyed by id. Iteration follows insertion order, and
// replacing a transaction keeps its position.
type TransactionPool struct {
	mu    sync.RWMutex
	byID  map[string]int
	queue []*model.Transaction

	// entries already reported by Valid, so each is logged and counted once
	rejected map[*model.Transaction]struct{}
}

func New() *TransactionPool {
	return &TransactionPool{
		byID:     make(map[string]int),
		rejected: make(map[*model.Transaction]struct{}),
	}
}

// UpdateOrAdd stores tx, replacing any pending transaction with the same id.
func (p *TransactionPool) UpdateOrAdd(tx *model.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.upsert(tx)
}

// UpsertFrom looks up the pending transaction sent from address (nil if there is none), passes it
// to build and stores the result, all under one lock. build must not call back into the pool.
func (p *TransactionPool) UpsertFrom(address string, build func(existing *model.Transaction) (*model.Transaction, error)) (*model.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := build(p.existing(address))
	if err != nil {
		return nil, err
	}
	if err := p.upsert(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (p *TransactionPool) upsert(tx *model.Transaction) error {
	if tx == nil || tx.ID == "" || tx.Input == nil {
		return errors.WithStack(ErrMalformedTransaction)
	}

	if i, ok := p.byID[tx.ID]; ok {
		delete(p.rejected, p.queue[i])
		p.queue[i] = tx
		logrus.WithField("id", tx.ID).Debug("updated pooled transaction")
		return nil
	}
	p.byID[tx.ID] = len(p.queue)
	p.queue = append(p.queue, tx)
	metrics.SetPoolSize(len(p.queue))
	logrus.WithField("id", tx.ID).Debug("pooled transaction")
	return nil
}

// Existing returns the pending transaction sent from address, if any.
func (p *TransactionPool) Existing(address string) (*model.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx := p.existing(address)
	return tx, tx != nil
}

func (p *TransactionPool) existing(address string) *model.Transaction {
	for _, tx := range p.queue {
		if tx.Input.Address == address {
			return tx
		}
	}
	return nil
}

// Valid returns the pending transactions whose outputs add up to their input and whose signature
// verifies. Invalid entries are skipped but stay in the pool until Clear; each is logged and
// counted the first time it is seen.
func (p *TransactionPool) Valid() []*model.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	valid := make([]*model.Transaction, 0, len(p.queue))
	for _, tx := range p.queue {
		if err := transaction.Validate(tx); err != nil {
			if _, seen := p.rejected[tx]; seen {
				continue
			}
			p.rejected[tx] = struct{}{}
			logrus.WithFields(logrus.Fields{"id": tx.ID, "address": tx.Input.Address}).Warnf("invalid transaction: %s", err)
			metrics.RecordRejectedTx(rejectReason(err))
			continue
		}
		valid = append(valid, tx)
	}
	return valid
}

func rejectReason(err error) metrics.RejectReason {
	switch {
	case errors.Is(err, transaction.ErrOutputMismatch):
		return metrics.TxOutputMismatch
	case errors.Is(err, transaction.ErrInvalidSignature):
		return metrics.TxInvalidSignature
	case errors.Is(err, transaction.ErrMissingInput):
		return metrics.TxMissingInput
	}
	return metrics.TxRejectedUnknown
}

// Transactions returns every pending transaction, valid or not.
func (p *TransactionPool) Transactions() []*model.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*model.Transaction(nil), p.queue...)
}

func (p *TransactionPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queue)
}

func (p *TransactionPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]int)
	p.rejected = make(map[*model.Transaction]struct{})
	p.queue = nil
	metrics.SetPoolSize(0)
}
