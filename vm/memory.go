package vm

import "github.com/holiman/uint256"

// Memory is byte-addressable, word-aligned linear memory for one call
// frame. Expansion cost is charged by the interpreter before Resize is
// called; Memory itself never charges gas, but tracks the quadratic cost
// already paid so ExpansionCost only ever reports the next increment.
type Memory struct {
	store    []byte
	expander memoryExpander
}

// NewMemory returns empty memory.
func NewMemory() *Memory { return &Memory{} }

// ExpansionCost returns the incremental gas required to grow memory to
// cover newBytes, without mutating any state.
func (m *Memory) ExpansionCost(newBytes uint64) (uint64, error) {
	return m.expander.expansionCost(newBytes)
}

// Grow charges the expansion (via ExpansionCost, by the caller) and then
// both records the new cost baseline and resizes the backing store.
func (m *Memory) Grow(newBytes uint64) {
	m.expander.grow(newBytes)
	words := (newBytes + 31) / 32
	m.Resize(words * 32)
}

// Set copies value into memory at offset. The caller must have already
// grown memory to cover [offset, offset+size) via Resize.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a 32-byte word at offset, big-endian.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

// Resize grows memory to size bytes if it is currently smaller. size must
// already be a multiple of 32 (the interpreter rounds up before calling).
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Get returns a copy of memory in [offset, offset+size). Reads past the
// current length return zero bytes rather than panicking, matching the
// EVM's "memory reads never fail" semantics (the caller still pays
// expansion gas to extend memory up to the read window).
func (m *Memory) Get(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	if offset >= uint64(len(m.store)) {
		return out
	}
	end := offset + size
	if end > uint64(len(m.store)) {
		end = uint64(len(m.store))
	}
	copy(out, m.store[offset:end])
	return out
}

// GetPtr returns a direct slice into memory at [offset, offset+size),
// without copying. Callers must not retain it across further writes.
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Len returns the current size of memory in bytes.
func (m *Memory) Len() int { return len(m.store) }

// Data returns the backing slice (bottom to top, byte-addressed).
func (m *Memory) Data() []byte { return m.store }
