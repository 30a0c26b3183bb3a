package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type RejectReason string

const (
	TxMissingInput     RejectReason = "missing_input"
	TxOutputMismatch   RejectReason = "output_mismatch"
	TxInvalidSignature RejectReason = "invalid_signature"
	TxRejectedUnknown  RejectReason = "other"

	ChainTooShort RejectReason = "too_short"
	ChainInvalid  RejectReason = "invalid"
)

var (
	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powchain_chain_height",
		Help: "Number of blocks in the local chain, genesis included",
	})
	difficulty = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powchain_difficulty",
		Help: "Difficulty of the last block",
	})
	minedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powchain_mined_blocks_total",
		Help: "Blocks mined by this node",
	})
	miningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "powchain_mining_duration_seconds",
		Help:    "Time spent searching for a nonce per mined block",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	poolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powchain_pool_size",
		Help: "Pending transactions in the pool",
	})
	rejectedTxs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powchain_rejected_tx_total",
		Help: "Pool entries left out of a block",
	}, []string{"reason"})
	rejectedChains = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powchain_rejected_chain_total",
		Help: "Chains received from peers and not adopted",
	}, []string{"reason"})
	peerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powchain_peer_count",
		Help: "Connected peers",
	})
)

func RegisterMetrics(mux *http.ServeMux) {
	logrus.Info("registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetChainHeight(height int) {
	chainHeight.Set(float64(height))
}

func SetDifficulty(d int) {
	difficulty.Set(float64(d))
}

func RecordMinedBlock(took time.Duration) {
	minedBlocks.Inc()
	miningDuration.Observe(took.Seconds())
}

func SetPoolSize(size int) {
	poolSize.Set(float64(size))
}

func RecordRejectedTx(reason RejectReason) {
	rejectedTxs.WithLabelValues(string(reason)).Inc()
}

func RecordRejectedChain(reason RejectReason) {
	rejectedChains.WithLabelValues(string(reason)).Inc()
}

func SetPeerCount(peers int) {
	peerCount.Set(float64(peers))
}
