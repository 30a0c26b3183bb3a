package chainutil

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/btcec"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
)

// KeyPair is a secp256k1 key pair.
type KeyPair struct {
	priv *btcec.PrivateKey
}

func GenKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyFromSeed derives a key pair deterministically from seed. Anyone who knows the seed holds
// the private key, so this is only meant for well-known identities.
func KeyFromSeed(seed string) *KeyPair {
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), chainhash.HashB([]byte(seed)))
	return &KeyPair{priv: priv}
}

// PublicKey returns the hex encoded compressed public key.
func (k *KeyPair) PublicKey() string {
	return hex.EncodeToString(k.priv.PubKey().SerializeCompressed())
}

// Sign signs hash and returns the hex encoded DER signature.
func (k *KeyPair) Sign(hash []byte) (string, error) {
	sig, err := k.priv.Sign(hash)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify reports whether signature is a valid signature of hash by publicKey. Malformed keys or
// signatures are not valid.
func Verify(publicKey, signature string, hash []byte) bool {
	pubBytes, err := hex.DecodeString(publicKey)
	if err != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(pubBytes, btcec.S256())
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := btcec.ParseDERSignature(sigBytes, btcec.S256())
	if err != nil {
		return false
	}
	return sig.Verify(hash, pub)
}

// ParseKeyPair restores a key pair from the hex encoded private key returned by PrivateKey.
func ParseKeyPair(privateKey string) (*KeyPair, error) {
	b, err := hex.DecodeString(privateKey)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, errors.Newf("private key is %d bytes, expected %d", len(b), btcec.PrivKeyBytesLen)
	}
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return &KeyPair{priv: priv}, nil
}

// PrivateKey returns the hex encoded private key.
func (k *KeyPair) PrivateKey() string {
	return hex.EncodeToString(k.priv.Serialize())
}
