package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/loader"
	"github.com/OdyseeTeam/powchain/storage"
	"github.com/OdyseeTeam/powchain/wallet"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	snapshotEvery int
	snapshotDir   string
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Write balance snapshots of the stored chain to CSV files",
	Long: "Replays the chain kept in the data dir and writes balances_<height>.csv every --every blocks " +
		"and at the tip. The node must not be running.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		chain := blockchain.New(cfg.Chain)
		store, err := storage.OpenChainStore(filepath.Join(cfg.Node.DataDir, "chain"))
		if err != nil {
			return err
		}
		defer store.Close()

		stream := store.Stream()
		defer stream.Close()
		if err := loader.LoadChain(chain, stream, 0); err != nil {
			return err
		}

		network := wallet.NetworkWallet(cfg.Chain).PublicKey()
		return BalanceSnapshots(chain.Blocks(), cfg.Chain.InitialBalance, snapshotEvery, snapshotDir, network)
	},
}

func init() {
	balancesCmd.Flags().IntVar(&snapshotEvery, "every", 1000, "blocks between snapshots")
	balancesCmd.Flags().StringVar(&snapshotDir, "out", ".", "directory for the CSV files")
	rootCmd.AddCommand(balancesCmd)
}

type snapshot struct {
	height   int
	balances map[string]uint64
}

// BalanceSnapshots writes the balance of every address seen at each reported height. Addresses in
// skip are left out.
func BalanceSnapshots(blocks []model.Block, initial uint64, every int, dir string, skip ...string) error {
	if every < 1 {
		return errors.Newf("snapshot interval must be positive, got %d", every)
	}

	snapshots := make(chan snapshot)
	var (
		wg       sync.WaitGroup
		writeErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = accountant(snapshots, dir)
	}()

	for h := every; h < len(blocks); h += every {
		snapshots <- snapshot{height: h, balances: wallet.Balances(blocks[:h], initial, skip...)}
	}
	snapshots <- snapshot{height: len(blocks), balances: wallet.Balances(blocks, initial, skip...)}
	close(snapshots)
	wg.Wait()

	logrus.Printf("done")
	return writeErr
}

func accountant(snapshots <-chan snapshot, dir string) error {
	var firstErr error
	for s := range snapshots {
		logrus.Printf("saving balances at height %d", s.height)
		err := balancesToCSV(s.balances, filepath.Join(dir, fmt.Sprintf("balances_%d.csv", s.height)))
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func balancesToCSV(balances map[string]uint64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	addresses := make([]string, 0, len(balances))
	for address := range balances {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	writer := csv.NewWriter(f)
	for _, address := range addresses {
		if err := writer.Write([]string{address, strconv.FormatUint(balances[address], 10)}); err != nil {
			return errors.WithStack(err)
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}
