package p2p

import (
	"context"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/metrics"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Transport delivers encoded messages between nodes. Next never returns a node's own messages.
type Transport interface {
	Publish(ctx context.Context, data []byte) error
	Next(ctx context.Context) ([]byte, error)
	PeerCount() int
	Close() error
}

type Chain interface {
	Blocks() []model.Block
	ReplaceChain(candidate []model.Block) error
}

type Pool interface {
	UpdateOrAdd(tx *model.Transaction) error
	Clear()
}

// Server keeps the local chain and pool in step with peers.
type Server struct {
	transport Transport
	chain     Chain
	pool      Pool
}

func NewServer(transport Transport, chain Chain, pool Pool) *Server {
	return &Server{transport: transport, chain: chain, pool: pool}
}

// SyncChains sends the local chain to every peer. Peers adopt it if it beats theirs.
func (s *Server) SyncChains(ctx context.Context) error {
	return s.publish(ctx, Message{Type: MessageChain, Chain: s.chain.Blocks()})
}

func (s *Server) BroadcastTransaction(ctx context.Context, tx *model.Transaction) error {
	return s.publish(ctx, Message{Type: MessageTransaction, Transaction: tx})
}

func (s *Server) BroadcastClearTransactions(ctx context.Context) error {
	return s.publish(ctx, Message{Type: MessageClearTransactions})
}

// RequestChain asks every peer to send its chain.
func (s *Server) RequestChain(ctx context.Context) error {
	return s.publish(ctx, Message{Type: MessageRequestChain})
}

func (s *Server) publish(ctx context.Context, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.transport.Publish(ctx, data), "publishing %s", m.Type)
}

// Run asks peers for their chains and then handles incoming messages until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.RequestChain(ctx); err != nil {
		logrus.Warnf("requesting chains: %+v", err)
	}

	for {
		data, err := s.transport.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		metrics.SetPeerCount(s.transport.PeerCount())
		s.handle(ctx, data)
	}
}

func (s *Server) handle(ctx context.Context, data []byte) {
	m, err := Decode(data)
	if err != nil {
		logrus.Warnf("dropping message: %s", err)
		return
	}

	switch m.Type {
	case MessageChain:
		err := s.chain.ReplaceChain(m.Chain)
		switch {
		case err == nil:
		case errors.Is(err, blockchain.ErrChainTooShort):
			metrics.RecordRejectedChain(metrics.ChainTooShort)
			logrus.Debugf("ignoring chain: %s", err)
		default:
			metrics.RecordRejectedChain(metrics.ChainInvalid)
			logrus.Warnf("rejected chain: %s", err)
		}

	case MessageTransaction:
		if err := s.pool.UpdateOrAdd(m.Transaction); err != nil {
			logrus.Warnf("dropping transaction: %s", err)
		}

	case MessageClearTransactions:
		s.pool.Clear()

	case MessageRequestChain:
		if err := s.SyncChains(ctx); err != nil {
			logrus.Warnf("answering chain request: %+v", err)
		}
	}
}
