package chainutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg"
	"github.com/lbryio/lbcutil"
	"golang.org/x/crypto/ripemd160"
)

// Fingerprint returns ripemd160(sha256(pubkey)) of a hex encoded public key.
func Fingerprint(publicKey string) ([]byte, error) {
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s := sha256.New()
	s.Write(pub)

	r := ripemd160.New()
	r.Write(s.Sum(nil))

	return r.Sum(nil), nil
}

// AddressFor renders a public key as a base58check pay-to-pubkey-hash address. It is only used for
// display; transactions always carry the full public key.
func AddressFor(publicKey string) (string, error) {
	fp, err := Fingerprint(publicKey)
	if err != nil {
		return "", err
	}
	addr, err := lbcutil.NewAddressPubKeyHash(fp, &chaincfg.MainNetParams)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return addr.EncodeAddress(), nil
}
