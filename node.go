package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/config"
	"github.com/OdyseeTeam/powchain/loader"
	"github.com/OdyseeTeam/powchain/metrics"
	"github.com/OdyseeTeam/powchain/miner"
	"github.com/OdyseeTeam/powchain/p2p"
	"github.com/OdyseeTeam/powchain/pool"
	"github.com/OdyseeTeam/powchain/server"
	"github.com/OdyseeTeam/powchain/storage"
	"github.com/OdyseeTeam/powchain/wallet"

	"github.com/cockroachdb/errors"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var profileMode string

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a node: p2p, http api and optional auto mining",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		switch profileMode {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.Node.DataDir), profile.NoShutdownHook).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(cfg.Node.DataDir), profile.NoShutdownHook).Stop()
		default:
			return errors.Newf("unknown profile mode %q", profileMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNode(ctx, cfg)
	},
}

func init() {
	nodeCmd.Flags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the data dir")
	rootCmd.AddCommand(nodeCmd)
}

func runNode(ctx context.Context, cfg config.Config) error {
	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return errors.WithStack(err)
	}

	key, err := wallet.LoadOrCreateKey(filepath.Join(cfg.Node.DataDir, "wallet.key"))
	if err != nil {
		return err
	}

	chain := blockchain.New(cfg.Chain)
	store, err := restoreChain(chain, filepath.Join(cfg.Node.DataDir, "chain"))
	if err != nil {
		return err
	}
	defer store.Close()

	index, err := storage.OpenIndex(":memory:")
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.Reindex(chain.Blocks()); err != nil {
		return err
	}

	wireHooks(chain, store, index)

	txPool := pool.New()
	w, err := wallet.New(cfg.Chain, wallet.WithKeyPair(key), wallet.WithChain(chain))
	if err != nil {
		return err
	}
	logrus.Infof("wallet %s", w.PublicKey())

	transport, err := p2p.NewGossipTransport(ctx, cfg.Node.ListenAddr, cfg.Node.Peers)
	if err != nil {
		return err
	}
	defer transport.Close()
	peers := p2p.NewServer(transport, chain, txPool)

	m := miner.New(chain, txPool, w.PublicKey(), wallet.NetworkWallet(cfg.Chain), peers, cfg.Chain.MiningReward)
	api := server.New(server.Services{
		Chain:          chain,
		Pool:           txPool,
		Wallet:         w,
		Miner:          m,
		Peers:          peers,
		Index:          index,
		InitialBalance: cfg.Chain.InitialBalance,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logrus.Errorf("%s stopped: %+v", name, err)
				errOnce.Do(func() { firstErr = err })
				cancel()
			}
		}()
	}

	run("p2p", peers.Run)
	run("http", func(ctx context.Context) error { return api.ListenAndServe(ctx, cfg.Node.HTTPAddr) })
	if cfg.Node.AutoMine > 0 {
		run("miner", func(ctx context.Context) error { return m.Run(ctx, cfg.Node.AutoMine) })
	}

	wg.Wait()
	logrus.Info("node stopped")
	return firstErr
}

// restoreChain opens the chain store in dir and loads what it holds into chain. The store is made
// to match the chain before it is returned.
func restoreChain(chain *blockchain.Blockchain, dir string) (*storage.ChainStore, error) {
	store, err := storage.OpenChainStore(dir)
	if err != nil {
		return nil, err
	}

	stream := store.Stream()
	err = loader.LoadChain(chain, stream, 0)
	stream.Close()
	if err != nil {
		store.Close()
		return nil, err
	}

	if store.Height() != chain.Height() {
		if err := store.Replace(chain.Blocks()); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

func wireHooks(chain *blockchain.Blockchain, store *storage.ChainStore, index *storage.Index) {
	metrics.SetChainHeight(chain.Height())
	metrics.SetDifficulty(chain.LastBlock().Difficulty)

	height := chain.Height()
	chain.OnBlock(func(block model.Block) {
		height++
		if err := store.Append(block); err != nil {
			logrus.Errorf("%+v", err)
		}
		if err := index.IndexBlock(block); err != nil {
			logrus.Errorf("%+v", err)
		}
		metrics.SetChainHeight(height)
		metrics.SetDifficulty(block.Difficulty)
	})
	chain.OnReplace(func(blocks []model.Block) {
		height = len(blocks)
		if err := store.Replace(blocks); err != nil {
			logrus.Errorf("%+v", err)
		}
		if err := index.Reindex(blocks); err != nil {
			logrus.Errorf("%+v", err)
		}
		metrics.SetChainHeight(height)
		metrics.SetDifficulty(blocks[len(blocks)-1].Difficulty)
	})
}
