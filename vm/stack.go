package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// stackLimit is the maximum number of words the operand stack may hold.
const stackLimit = 1024

// ErrStackOverflow and ErrStackUnderflow are returned unwrapped, as the bare
// sentinels, by the interpreter's stack-bounds check before an operation
// executes, never by Stack itself.
//
// Stack is a growable slice of 256-bit words (the interpreter keeps its
// depth within stackLimit) backed by uint256.Int
// so arithmetic opcodes get wrapping semantics for free; the teacher's
// stack used math/big.Int, which has no native wraparound.
type Stack struct {
	data []uint256.Int
}

// NewStack returns a new empty operand stack.
func NewStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

// Push appends val to the top of the stack. Callers must check Len()
// against stackLimit beforehand; Push itself does not bounds-check.
func (st *Stack) Push(val *uint256.Int) {
	st.data = append(st.data, *val)
}

// Pop removes and returns the top element.
func (st *Stack) Pop() uint256.Int {
	n := len(st.data) - 1
	v := st.data[n]
	st.data = st.data[:n]
	return v
}

// Peek returns a pointer to the top element without removing it.
func (st *Stack) Peek() *uint256.Int {
	return &st.data[len(st.data)-1]
}

// Back returns a pointer to the nth element from the top (0 = top).
func (st *Stack) Back(n int) *uint256.Int {
	return &st.data[len(st.data)-1-n]
}

// Swap exchanges the top element with the nth element from the top.
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top (1-indexed, as in DUPn) and
// pushes the copy.
func (st *Stack) Dup(n int) {
	v := st.data[len(st.data)-n]
	st.data = append(st.data, v)
}

// Len returns the number of items currently on the stack.
func (st *Stack) Len() int { return len(st.data) }

// PushWord pushes a types.Word.
func (st *Stack) PushWord(w types.Word) { st.Push(w.Uint256()) }

// PopWord pops and returns a types.Word.
func (st *Stack) PopWord() types.Word {
	v := st.Pop()
	return types.WordFromUint256(&v)
}
