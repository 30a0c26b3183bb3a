package p2p

import (
	"github.com/OdyseeTeam/powchain/blockchain/model"
	"github.com/OdyseeTeam/powchain/chainutil"

	"github.com/cockroachdb/errors"
)

var ErrUnknownMessage = errors.New("unknown message type")

type MessageType string

const (
	MessageChain             MessageType = "CHAIN"
	MessageTransaction       MessageType = "TRANSACTION"
	MessageClearTransactions MessageType = "CLEAR_TRANSACTIONS"
	MessageRequestChain      MessageType = "REQUEST_CHAIN"
)

type Message struct {
	Type        MessageType        `json:"type"`
	Chain       []model.Block      `json:"chain,omitempty"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

func Encode(m Message) ([]byte, error) {
	b, err := chainutil.JSON.Marshal(m)
	return b, errors.WithStack(err)
}

func Decode(data []byte) (Message, error) {
	var m Message
	if err := chainutil.JSON.Unmarshal(data, &m); err != nil {
		return Message{}, errors.WithStack(err)
	}
	switch m.Type {
	case MessageChain, MessageTransaction, MessageClearTransactions, MessageRequestChain:
		return m, nil
	}
	return Message{}, errors.Wrapf(ErrUnknownMessage, "%q", m.Type)
}
