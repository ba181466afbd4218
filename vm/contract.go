package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// Contract is one call frame's execution context: the running code, its
// input, the gas budget for this frame, and a lazily-built JUMPDEST
// bitmap (built on the frame's first jump and reused for later ones).
type Contract struct {
	CallerAddress types.Address
	Address       types.Address
	Code          []byte
	CodeHash      types.Word
	Input         []byte
	Gas           uint64
	Value         *uint256.Int

	jumpdests *jumpdestSet
}

// NewContract creates a contract execution context.
func NewContract(caller, addr types.Address, value *uint256.Int, gas uint64) *Contract {
	return &Contract{
		CallerAddress: caller,
		Address:       addr,
		Value:         value,
		Gas:           gas,
	}
}

// GetOp returns the opcode at position n, or STOP past the end of code.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas attempts to deduct gas from the frame's budget. Returns false,
// leaving Gas unchanged, if the budget is insufficient.
func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

// RefundGas credits gas back to the frame (used when a sub-call or
// sub-create returns unused gas).
func (c *Contract) RefundGas(gas uint64) { c.Gas += gas }

// SetCallCode installs code for execution under this frame (a CALL-type
// target's own code, or a DELEGATECALL/CALLCODE target's code run against
// the caller's storage context).
func (c *Contract) SetCallCode(addr *types.Address, hash types.Word, code []byte) {
	c.Code = code
	c.CodeHash = hash
	if addr != nil {
		c.Address = *addr
	}
}

// ValidJumpdest reports whether dest is a JUMPDEST opcode not embedded in
// PUSH immediate data.
func (c *Contract) ValidJumpdest(dest *uint256.Int) bool {
	if !dest.IsUint64() {
		return false
	}
	udest := dest.Uint64()
	if udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.jumpdestBitmap().isSet(udest)
}

func (c *Contract) jumpdestBitmap() *jumpdestSet {
	if c.jumpdests == nil {
		c.jumpdests = newJumpdestSet(c.Code)
	}
	return c.jumpdests
}

// jumpdestSet is a dense bitset over code positions, precomputed once per
// code body, marking every offset that is a genuine JUMPDEST (as opposed
// to a byte that merely has the JUMPDEST opcode value but sits inside a
// PUSH instruction's immediate data).
type jumpdestSet struct {
	bits []uint64
}

func newJumpdestSet(code []byte) *jumpdestSet {
	s := &jumpdestSet{bits: make([]uint64, (len(code)/64)+1)}
	for i := 0; i < len(code); i++ {
		op := OpCode(code[i])
		if op == JUMPDEST {
			s.bits[i/64] |= 1 << (uint(i) % 64)
		}
		if op.IsPush() {
			i += op.PushSize()
		}
	}
	return s
}

func (s *jumpdestSet) isSet(pos uint64) bool {
	word := pos / 64
	if int(word) >= len(s.bits) {
		return false
	}
	return s.bits[word]&(1<<(pos%64)) != 0
}
