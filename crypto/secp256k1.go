package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Ecrecover recovers the 64-byte uncompressed public key (without the 0x04
// prefix) from a 32-byte message hash and a 65-byte [R || S || V] signature,
// where V is the recovery id either as 0/1 or as 27/28. Returns an error if
// the signature is invalid or the recovery fails.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	if len(hash) != 32 || len(sig) != 65 {
		return nil, errInvalidSignature
	}
	// dcrd expects a 65-byte [recoveryID || R || S] compact signature.
	compact := make([]byte, 65)
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	compact[0] = v + 27
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed()[1:], nil
}

// PubkeyToAddress derives the 20-byte Ethereum address from a 64-byte
// uncompressed public key (X||Y, no 0x04 prefix): the low 20 bytes of
// Keccak256(pubkey).
func PubkeyToAddress(pub []byte) []byte {
	h := Keccak256(pub)
	return h[12:]
}

var errInvalidSignature = cryptoError("crypto: invalid signature")

// cryptoError is a plain string error used across this package's small
// sentinel errors (invalid signature, invalid precompile input, ...).
type cryptoError string

func (e cryptoError) Error() string { return string(e) }
