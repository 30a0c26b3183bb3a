package server

import (
	"context"
	"net/http"
	"time"

	"github.com/OdyseeTeam/powchain/blockchain"
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/chainutil"
	"github.com/OdyseeTeam/powchain/metrics"
	"github.com/OdyseeTeam/powchain/transaction"
	"github.com/OdyseeTeam/powchain/wallet"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

type Chain interface {
	Blocks() []model.Block
}

type Pool interface {
	wallet.Pool
	Transactions() []*model.Transaction
}

type Wallet interface {
	PublicKey() string
	Address() (string, error)
	Balance() uint64
	CreateTransaction(recipient string, amount uint64, p wallet.Pool) (*model.Transaction, error)
}

type Miner interface {
	Mine(ctx context.Context) (model.Block, error)
}

type Broadcaster interface {
	BroadcastTransaction(ctx context.Context, tx *model.Transaction) error
}

type Index interface {
	Query(q string, args ...interface{}) ([]map[string]interface{}, error)
}

// Services is everything the API serves. Index may be nil, which disables /sql.
type Services struct {
	Chain          Chain
	Pool           Pool
	Wallet         Wallet
	Miner          Miner
	Peers          Broadcaster
	Index          Index
	InitialBalance uint64
}

type Server struct {
	svc Services
	mux *http.ServeMux
}

func New(svc Services) *Server {
	s := &Server{svc: svc, mux: http.NewServeMux()}
	s.mux.Handle("GET /blocks", s.blocks())
	s.mux.Handle("POST /mine", s.mine())
	s.mux.Handle("GET /transactions", s.transactions())
	s.mux.Handle("POST /transact", s.transact())
	s.mux.Handle("GET /public-key", s.publicKey())
	s.mux.Handle("GET /balance", s.balance())
	if svc.Index != nil {
		s.mux.Handle("/sql", s.query())
	}
	metrics.RegisterMetrics(s.mux)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves the API on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logrus.Infof("http api listening on %s", addr)

	select {
	case err := <-errCh:
		return errors.WithStack(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.WithStack(srv.Shutdown(shutdownCtx))
}

func (s *Server) blocks() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.svc.Chain.Blocks())
	})
}

func (s *Server) mine() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		block, err := s.svc.Miner.Mine(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, blockchain.ErrStaleBlock) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, block)
	})
}

func (s *Server) transactions() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.svc.Pool.Transactions())
	})
}

type transactRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

func (s *Server) transact() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transactRequest
		if err := chainutil.JSON.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding request"))
			return
		}
		if req.Recipient == "" || req.Amount == 0 {
			writeError(w, http.StatusBadRequest, errors.New("recipient and a positive amount are required"))
			return
		}

		tx, err := s.svc.Wallet.CreateTransaction(req.Recipient, req.Amount, s.svc.Pool)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, transaction.ErrAmountExceedsBalance) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}

		if err := s.svc.Peers.BroadcastTransaction(r.Context(), tx); err != nil {
			logrus.Warnf("broadcasting transaction %s: %+v", tx.ID, err)
		}
		writeJSON(w, http.StatusOK, tx)
	})
}

func (s *Server) publicKey() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := s.svc.Wallet.Address()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"publicKey": s.svc.Wallet.PublicKey(),
			"address":   addr,
		})
	})
}

func (s *Server) balance() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.FormValue("address")
		var balance uint64
		if address == "" || address == s.svc.Wallet.PublicKey() {
			address, balance = s.svc.Wallet.PublicKey(), s.svc.Wallet.Balance()
		} else {
			balance = wallet.CalculateBalance(s.svc.Chain.Blocks(), address, s.svc.InitialBalance)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"address": address, "balance": balance})
	})
}

func (s *Server) query() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results, err := s.svc.Index.Query(r.FormValue("query"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := chainutil.JSON.Marshal(v)
	if err != nil {
		logrus.Errorf("encoding response: %+v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logrus.Errorf("%+v", err)
	} else {
		logrus.Debugf("request failed: %s", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
