package p2p

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

const (
	TopicName      = "powchain/1"
	maxMessageSize = 16 << 20
)

// GossipTransport publishes messages to a libp2p GossipSub topic.
type GossipTransport struct {
	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// NewGossipTransport listens on listenAddr (a multiaddr such as /ip4/0.0.0.0/tcp/5001) and dials
// peers, given as full /p2p/ multiaddrs. Peers that cannot be reached are logged and skipped.
func NewGossipTransport(ctx context.Context, listenAddr string, peers []string) (*GossipTransport, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return nil, errors.Wrap(err, "creating libp2p host")
	}

	ps, err := pubsub.NewGossipSub(ctx, h, pubsub.WithMaxMessageSize(maxMessageSize))
	if err != nil {
		h.Close()
		return nil, errors.Wrap(err, "creating pubsub")
	}
	topic, err := ps.Join(TopicName)
	if err != nil {
		h.Close()
		return nil, errors.Wrapf(err, "joining %s", TopicName)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		h.Close()
		return nil, errors.Wrapf(err, "subscribing to %s", TopicName)
	}

	t := &GossipTransport{host: h, ps: ps, topic: topic, sub: sub}
	for _, p := range peers {
		if err := t.Connect(ctx, p); err != nil {
			logrus.Warnf("connecting to %s: %s", p, err)
		}
	}
	for _, a := range t.Addrs() {
		logrus.Infof("p2p listening on %s", a)
	}
	return t, nil
}

func (t *GossipTransport) Connect(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return errors.WithStack(err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(t.host.Connect(ctx, *info))
}

// Addrs returns the addresses other nodes can dial, including this node's peer id.
func (t *GossipTransport) Addrs() []string {
	self, err := ma.NewMultiaddr("/p2p/" + t.host.ID().String())
	if err != nil {
		return nil
	}
	var addrs []string
	for _, a := range t.host.Addrs() {
		addrs = append(addrs, a.Encapsulate(self).String())
	}
	return addrs
}

func (t *GossipTransport) Publish(ctx context.Context, data []byte) error {
	return errors.WithStack(t.topic.Publish(ctx, data))
}

func (t *GossipTransport) Next(ctx context.Context) ([]byte, error) {
	for {
		msg, err := t.sub.Next(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if msg.ReceivedFrom == t.host.ID() {
			continue
		}
		return msg.Data, nil
	}
}

func (t *GossipTransport) PeerCount() int {
	return len(t.topic.ListPeers())
}

func (t *GossipTransport) Close() error {
	t.sub.Cancel()
	if err := t.topic.Close(); err != nil {
		logrus.Warnf("closing topic: %s", err)
	}
	return errors.WithStack(t.host.Close())
}
