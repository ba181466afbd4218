// Package types defines the primitive data types shared across the EVM
// executor: addresses, 256-bit words, accounts, and event logs.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	AddressLength = 20
	WordLength    = 32
)

// Address is a 20-byte account identifier.
type Address [AddressLength]byte

// BytesToAddress converts bytes to an Address, left-padding if shorter than
// 20 bytes and truncating from the left if longer.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a hex string (with or without "0x" prefix) to an Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

func (a Address) Bytes() []byte { return a[:] }
func (a Address) Hex() string   { return fmt.Sprintf("0x%x", a[:]) }
func (a Address) String() string { return a.Hex() }
func (a Address) IsZero() bool  { return a == Address{} }

// Word is a 32-byte big-endian value: a stack element, storage key/value,
// or hash. It is backed by uint256.Int for wrapping 256-bit arithmetic.
type Word struct {
	u uint256.Int
}

// NewWord returns the zero word.
func NewWord() Word { return Word{} }

// WordFromUint256 wraps an existing uint256.Int (by value).
func WordFromUint256(u *uint256.Int) Word {
	var w Word
	w.u.Set(u)
	return w
}

// BytesToWord left-pads (or truncates from the left) b to 32 bytes.
func BytesToWord(b []byte) Word {
	var w Word
	w.u.SetBytes(b)
	return w
}

// HexToWord parses a hex string into a Word.
func HexToWord(s string) Word {
	return BytesToWord(fromHex(s))
}

// Uint256 returns a pointer to the underlying uint256.Int. Callers must not
// retain it across mutations of other Words without copying.
func (w *Word) Uint256() *uint256.Int { return &w.u }

// Bytes32 returns the big-endian 32-byte representation.
func (w Word) Bytes32() [32]byte { return w.u.Bytes32() }

// Bytes returns the big-endian 32-byte representation as a slice.
func (w Word) Bytes() []byte {
	b := w.u.Bytes32()
	return b[:]
}

func (w Word) Hex() string   { return fmt.Sprintf("0x%x", w.Bytes()) }
func (w Word) String() string { return w.Hex() }
func (w Word) IsZero() bool  { return w.u.IsZero() }
func (w Word) Eq(o Word) bool { return w.u.Eq(&o.u) }

// AddressFromWord truncates a word to its low 20 bytes (used e.g. for
// CALLER/ADDRESS pushed-and-read-back round trips).
func AddressFromWord(w Word) Address {
	b := w.Bytes()
	return BytesToAddress(b[12:])
}

// WordFromAddress left-pads an address to a full word.
func WordFromAddress(a Address) Word {
	return BytesToWord(a[:])
}

// Account is the in-memory account record. Invariant: CodeHash ==
// Keccak256(Code); CodeHash == EmptyCodeHash iff Code is empty.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash Word
}

// NewAccount returns a fresh, empty account.
func NewAccount() Account {
	return Account{Balance: new(uint256.Int), CodeHash: EmptyCodeHash}
}

// IsEmpty reports whether the account is "empty" per EIP-161: zero nonce,
// zero balance, no code.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && a.CodeHash == EmptyCodeHash
}

// Log is one emitted event (LOG0..LOG4).
type Log struct {
	Address Address
	Topics  []Word
	Data    []byte
}

var (
	// EmptyCodeHash is Keccak256 of the empty byte string.
	EmptyCodeHash = HexToWord("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
)

func fromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}
