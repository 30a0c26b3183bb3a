package transaction

import (
	"time"

	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/chainutil"

	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
)

var (
	ErrAmountExceedsBalance = errors.New("amount exceeds balance")
	ErrMissingInput         = errors.New("transaction has no input")
	ErrOutputMismatch       = errors.New("output total does not match input amount")
	ErrInvalidSignature     = errors.New("invalid signature")
)

var now = func() int64 { return time.Now().UnixMilli() }

// Signer signs output hashes on behalf of the public key it exposes.
type Signer interface {
	PublicKey() string
	Sign(hash []byte) (string, error)
}

// Sender is a Signer that knows its spendable balance.
type Sender interface {
	Signer
	Balance() uint64
}

// New spends the sender's whole balance into a change output and an output of amount to
// recipient. It returns a nil transaction and ErrAmountExceedsBalance if the balance is too low.
func New(sender Sender, recipient string, amount uint64) (*model.Transaction, error) {
	balance := sender.Balance()
	if amount > balance {
		return nil, errors.Wrapf(ErrAmountExceedsBalance, "amount %d, balance %d", amount, balance)
	}

	tx := &model.Transaction{
		ID: chainutil.NewID(),
		Outputs: []model.Output{
			{Amount: balance - amount, Address: sender.PublicKey()},
			{Amount: amount, Address: recipient},
		},
	}
	if err := sign(tx, sender, balance); err != nil {
		return nil, err
	}
	return tx, nil
}

// Update returns a copy of tx, keeping its id, that additionally pays amount to recipient out of
// the sender's change output. The input is signed again with a fresh timestamp.
func Update(tx *model.Transaction, sender Signer, recipient string, amount uint64) (*model.Transaction, error) {
	if tx == nil || tx.Input == nil {
		return nil, errors.WithStack(ErrMissingInput)
	}

	updated := tx.Clone()
	change := -1
	for i, out := range updated.Outputs {
		if out.Address == sender.PublicKey() {
			change = i
			break
		}
	}
	if change < 0 {
		return nil, errors.Wrapf(ErrAmountExceedsBalance, "transaction %s has no change output", tx.ID)
	}
	if amount > updated.Outputs[change].Amount {
		return nil, errors.Wrapf(ErrAmountExceedsBalance, "amount %d, remaining %d", amount, updated.Outputs[change].Amount)
	}

	updated.Outputs[change].Amount -= amount
	updated.Outputs = append(updated.Outputs, model.Output{Amount: amount, Address: recipient})

	if err := sign(&updated, sender, tx.Input.Amount); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Reward mints reward to minerAddress. It is signed by the network identity and does not spend
// any balance.
func Reward(minerAddress string, network Signer, reward uint64) (*model.Transaction, error) {
	tx := &model.Transaction{
		ID:      chainutil.NewID(),
		Outputs: []model.Output{{Amount: reward, Address: minerAddress}},
	}
	if err := sign(tx, network, reward); err != nil {
		return nil, err
	}
	return tx, nil
}

// IsReward reports whether tx was issued by the network identity.
func IsReward(tx *model.Transaction, networkAddress string) bool {
	return tx != nil && tx.Input != nil && tx.Input.Address == networkAddress
}

func sign(tx *model.Transaction, signer Signer, amount uint64) error {
	hash, err := chainutil.HashOutputs(tx.Outputs)
	if err != nil {
		return err
	}
	signature, err := signer.Sign(hash)
	if err != nil {
		return errors.Wrapf(err, "signing transaction %s", tx.ID)
	}
	tx.Input = &model.Input{
		Timestamp: now(),
		Amount:    amount,
		Address:   signer.PublicKey(),
		Signature: signature,
	}
	return nil
}

// Verify reports whether the input signature over the outputs verifies against the input address.
// It says nothing about whether the amounts add up.
func Verify(tx *model.Transaction) bool {
	if tx == nil || tx.Input == nil {
		return false
	}
	hash, err := chainutil.HashOutputs(tx.Outputs)
	if err != nil {
		return false
	}
	return chainutil.Verify(tx.Input.Address, tx.Input.Signature, hash)
}

// OutputTotal sums the output amounts. ok is false if the sum does not fit in a uint64.
func OutputTotal(outputs []model.Output) (total uint64, ok bool) {
	sum := new(uint256.Int)
	for _, out := range outputs {
		sum.Add(sum, uint256.NewInt(out.Amount))
	}
	if !sum.IsUint64() {
		return 0, false
	}
	return sum.Uint64(), true
}

// Validate checks that tx has an input, that its outputs add up to the input amount and that the
// signature verifies.
func Validate(tx *model.Transaction) error {
	if tx == nil || tx.Input == nil {
		return errors.WithStack(ErrMissingInput)
	}
	total, ok := OutputTotal(tx.Outputs)
	if !ok || total != tx.Input.Amount {
		return errors.Wrapf(ErrOutputMismatch, "outputs %d, input %d", total, tx.Input.Amount)
	}
	if !Verify(tx) {
		return errors.WithStack(ErrInvalidSignature)
	}
	return nil
}
