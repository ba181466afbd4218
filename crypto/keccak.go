// Package crypto provides the hash and precompile primitives the
// interpreter needs: Keccak-256 for address derivation and event topics,
// and the identity/ecrecover/sha256/ripemd160/modexp/bn256/blake2f
// precompiled contracts.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/sbip-sg/tevm/types"
)

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Word is Keccak256 wrapped as a types.Word.
func Keccak256Word(data ...[]byte) types.Word {
	return types.BytesToWord(Keccak256(data...))
}

// CreateAddress derives the address of a contract created via CREATE:
// keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	enc := rlpList(rlpBytes(sender[:]), rlpUint(nonce))
	return types.BytesToAddress(Keccak256(enc)[12:])
}

// CreateAddress2 derives the address of a contract created via CREATE2:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func CreateAddress2(sender types.Address, salt types.Word, initCodeHash []byte) types.Address {
	saltBytes := salt.Bytes()
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, sender[:]...)
	data = append(data, saltBytes...)
	data = append(data, initCodeHash...)
	return types.BytesToAddress(Keccak256(data)[12:])
}

// --- minimal RLP encoding for the single [sender, nonce] list CREATE needs.
// A full rlp package isn't wired in (see DESIGN.md); this mirrors the
// teacher's own hand-rolled encoder in core/vm/interpreter.go.

func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	if len(b) < 56 {
		return append([]byte{byte(0x80 + len(b))}, b...)
	}
	lb := minBytes(uint64(len(b)))
	return append(append([]byte{byte(0xb7 + len(lb))}, lb...), b...)
}

func rlpUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	if v < 128 {
		return []byte{byte(v)}
	}
	b := minBytes(v)
	return append([]byte{byte(0x80 + len(b))}, b...)
}

func rlpList(items ...[]byte) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, it...)
	}
	if len(payload) < 56 {
		return append([]byte{byte(0xc0 + len(payload))}, payload...)
	}
	lb := minBytes(uint64(len(payload)))
	return append(append([]byte{byte(0xf7 + len(lb))}, lb...), payload...)
}

func minBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
		if buf[i] != 0 {
			n = 8 - i
		}
	}
	return buf[8-n:]
}
