package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// wordFromUint256 and addressFromUint256 convert stack values (uint256.Int,
// wrapping arithmetic) to the fixed-width types the state database and
// logs are keyed by.

func wordFromUint256(v *uint256.Int) types.Word {
	return types.WordFromUint256(v)
}

func addressFromUint256(v *uint256.Int) types.Address {
	b := v.Bytes32()
	return types.BytesToAddress(b[12:])
}

func uint256FromWord(w types.Word) uint256.Int {
	return *w.Uint256()
}

func uint256FromAddress(a types.Address) uint256.Int {
	var u uint256.Int
	u.SetBytes(a[:])
	return u
}
