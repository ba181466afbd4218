package provider

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/crypto"
	"github.com/sbip-sg/tevm/types"
)

// mockProvider is a test double for Provider; it counts calls so tests can
// assert the cache actually memoizes instead of refetching.
type mockProvider struct {
	code    []byte
	balance uint64
	nonce   uint64
	storage map[types.Word]types.Word

	codeCalls    int
	balanceCalls int
}

func (m *mockProvider) GetCode(types.Address, uint64) ([]byte, error) {
	m.codeCalls++
	return m.code, nil
}

func (m *mockProvider) GetStorageAt(_ types.Address, key types.Word, _ uint64) (types.Word, error) {
	return m.storage[key], nil
}

func (m *mockProvider) GetBalance(types.Address, uint64) (*uint256.Int, error) {
	m.balanceCalls++
	return uint256.NewInt(m.balance), nil
}

func (m *mockProvider) GetTransactionCount(types.Address, uint64) (uint64, error) {
	return m.nonce, nil
}

func (m *mockProvider) BlockHeader(uint64) (BlockHeader, error) {
	return BlockHeader{Timestamp: 1000, BaseFee: new(uint256.Int)}, nil
}

func TestCacheGetAccountMemoizes(t *testing.T) {
	mp := &mockProvider{code: []byte{0x60, 0x00}, balance: 500, nonce: 2}
	c := New(1, 100, mp, nil)
	addr := types.HexToAddress("0x01")

	acc, ok, err := c.GetAccount(addr)
	if err != nil || !ok {
		t.Fatalf("first fetch failed: ok=%v err=%v", ok, err)
	}
	if acc.Nonce != 2 || acc.Balance.Uint64() != 500 {
		t.Fatalf("unexpected account: %+v", acc)
	}

	if _, _, err := c.GetAccount(addr); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if mp.balanceCalls != 1 {
		t.Errorf("expected the provider to be consulted exactly once, got %d calls", mp.balanceCalls)
	}
}

func TestCacheGetCodeMemoizes(t *testing.T) {
	mp := &mockProvider{code: []byte{0x60, 0x01, 0x60, 0x02}}
	c := New(1, 100, mp, nil)
	addr := types.HexToAddress("0x02")

	acc, _, err := c.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	code, err := c.GetCode(addr, acc.CodeHash)
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	if len(code) != len(mp.code) {
		t.Fatalf("unexpected code length: got %d want %d", len(code), len(mp.code))
	}
	calls := mp.codeCalls
	if _, err := c.GetCode(addr, acc.CodeHash); err != nil {
		t.Fatalf("second get code: %v", err)
	}
	if mp.codeCalls != calls {
		t.Errorf("expected code fetch to be memoized, codeCalls went from %d to %d", calls, mp.codeCalls)
	}
}

func TestCacheGetStorage(t *testing.T) {
	key := types.HexToWord("0x01")
	mp := &mockProvider{storage: map[types.Word]types.Word{key: types.HexToWord("0xbeef")}}
	c := New(1, 100, mp, nil)
	addr := types.HexToAddress("0x03")

	v, err := c.GetStorage(addr, key)
	if err != nil {
		t.Fatalf("get storage: %v", err)
	}
	if v != types.HexToWord("0xbeef") {
		t.Errorf("got %s, want 0xbeef", v.Hex())
	}
}

func TestFSBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFSBackend(dir)
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	key := crypto.Keccak256([]byte("key"))
	if _, ok, err := b.Get(key); err != nil || ok {
		t.Fatalf("expected a miss on an empty backend, got ok=%v err=%v", ok, err)
	}

	value := []byte("cached value")
	if err := b.Put(key, value); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := b.Get(key)
	if err != nil || !ok {
		t.Fatalf("get after put failed: ok=%v err=%v", ok, err)
	}
	if string(got) != string(value) {
		t.Errorf("got %q, want %q", got, value)
	}
}

func TestCacheUsesBackendBeforeProvider(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFSBackend(dir)
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	mp := &mockProvider{code: []byte{0x01}, balance: 10, nonce: 1}
	addr := types.HexToAddress("0x04")

	c1 := New(1, 100, mp, backend)
	if _, _, err := c1.GetAccount(addr); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	// A fresh Cache over the same backend must not need the provider at all.
	c2 := New(1, 100, nil, backend)
	acc, ok, err := c2.GetAccount(addr)
	if err != nil || !ok {
		t.Fatalf("expected backend hit without a provider: ok=%v err=%v", ok, err)
	}
	if acc.Nonce != 1 {
		t.Errorf("expected nonce 1 from backend, got %d", acc.Nonce)
	}
}
