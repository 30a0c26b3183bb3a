package chainutil

import (
	"encoding/hex"

	"github.com/OdyseeTeam/powchain/blockchain/model"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
)

// JSON is the codec used wherever bytes are hashed, stored or sent to peers. Struct fields are
// encoded in declaration order and map keys sorted, so the output is stable across nodes.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Hash returns the hex encoded SHA-256 of data.
func Hash(data []byte) string {
	h := chainhash.HashH(data)
	return hex.EncodeToString(h[:])
}

// HashOutputs returns the digest a sender signs: SHA-256 over the encoded outputs.
func HashOutputs(outputs []model.Output) ([]byte, error) {
	b, err := JSON.Marshal(outputs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return chainhash.HashB(b), nil
}
