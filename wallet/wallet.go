package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/chainutil"
	"github.com/OdyseeTeam/powchain/config"
	"github.com/OdyseeTeam/powchain/transaction"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// networkSeed derives the key every node uses to sign mining rewards.
const networkSeed = "powchain network wallet"

// Pool is the part of the transaction pool a wallet needs to place its transactions.
type Pool interface {
	UpsertFrom(address string, build func(existing *model.Transaction) (*model.Transaction, error)) (*model.Transaction, error)
}

type Wallet struct {
	cfg   config.Chain
	keys  *chainutil.KeyPair
	chain blockchain.Reader
}

type Option func(w *Wallet)

// WithChain makes the wallet compute its balance by replaying the chain instead of reporting the
// initial balance.
func WithChain(r blockchain.Reader) Option {
	return func(w *Wallet) { w.chain = r }
}

func WithKeyPair(kp *chainutil.KeyPair) Option {
	return func(w *Wallet) { w.keys = kp }
}

func New(cfg config.Chain, opts ...Option) (*Wallet, error) {
	w := &Wallet{cfg: cfg}
	for _, opt := range opts {
		opt(w)
	}
	if w.keys == nil {
		kp, err := chainutil.GenKeyPair()
		if err != nil {
			return nil, err
		}
		w.keys = kp
	}
	return w, nil
}

// NetworkWallet returns the well-known identity that signs reward transactions. Its key is derived
// from a fixed seed, so all nodes share it.
func NetworkWallet(cfg config.Chain) *Wallet {
	return &Wallet{cfg: cfg, keys: chainutil.KeyFromSeed(networkSeed)}
}

func (w *Wallet) PublicKey() string { return w.keys.PublicKey() }

func (w *Wallet) PrivateKey() string { return w.keys.PrivateKey() }

// Address is the short form of the public key, for display.
func (w *Wallet) Address() (string, error) { return chainutil.AddressFor(w.PublicKey()) }

func (w *Wallet) Sign(hash []byte) (string, error) { return w.keys.Sign(hash) }

func (w *Wallet) Balance() uint64 {
	if w.chain == nil {
		return w.cfg.InitialBalance
	}
	return CalculateBalance(w.chain.Blocks(), w.PublicKey(), w.cfg.InitialBalance)
}

// CreateTransaction pays amount to recipient and places the result in p. If p already holds a
// transaction from this wallet, that transaction is extended instead of creating a second one.
// The lookup and the store happen atomically, so concurrent calls never fork the pending transaction.
func (w *Wallet) CreateTransaction(recipient string, amount uint64, p Pool) (*model.Transaction, error) {
	tx, err := p.UpsertFrom(w.PublicKey(), func(existing *model.Transaction) (*model.Transaction, error) {
		if existing != nil {
			return transaction.Update(existing, w, recipient, amount)
		}
		return transaction.New(w, recipient, amount)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"id": tx.ID, "amount": amount}).Debug("created transaction")
	return tx, nil
}

func (w *Wallet) String() string {
	return fmt.Sprintf("Wallet - publicKey: %s balance: %d", w.PublicKey(), w.Balance())
}

// LoadOrCreateKey reads a hex private key from path, generating and saving a new one if the file
// does not exist.
func LoadOrCreateKey(path string) (*chainutil.KeyPair, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return chainutil.ParseKeyPair(strings.TrimSpace(string(b)))
	}
	if !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}

	kp, err := chainutil.GenKeyPair()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.WriteFile(path, []byte(kp.PrivateKey()+"\n"), 0o600); err != nil {
		return nil, errors.WithStack(err)
	}
	logrus.Infof("generated new wallet key in %s", path)
	return kp, nil
}
