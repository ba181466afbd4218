package crypto

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/sbip-sg/tevm/types"
)

func TestIdentityPrecompile(t *testing.T) {
	p := Precompiles()[precompileAddr(4)]
	input := []byte("round trip me")

	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("identity precompile changed its input: got %x want %x", out, input)
	}
	if got := p.RequiredGas(input); got == 0 {
		t.Errorf("expected non-zero gas for non-empty input")
	}
}

func TestSha256Precompile(t *testing.T) {
	p := Precompiles()[precompileAddr(2)]
	input := []byte("hash me")

	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := sha256.Sum256(input)
	if !bytes.Equal(out, want[:]) {
		t.Errorf("got %x, want %x", out, want)
	}
}

func TestPrecompilesCoversAllNineAddresses(t *testing.T) {
	precompiles := Precompiles()
	for i := byte(1); i <= 9; i++ {
		if _, ok := precompiles[precompileAddr(i)]; !ok {
			t.Errorf("missing precompile at address 0x%02x", i)
		}
	}
	if len(precompiles) != 9 {
		t.Errorf("expected exactly 9 precompiles, got %d", len(precompiles))
	}
}

func TestKeccak256Word(t *testing.T) {
	a := Keccak256Word([]byte("tevm"))
	b := Keccak256Word([]byte("tevm"))
	if a != b {
		t.Errorf("Keccak256Word must be deterministic")
	}
	c := Keccak256Word([]byte("different"))
	if a == c {
		t.Errorf("different inputs must not collide in this trivial check")
	}
}

func TestCreateAddressDeterministic(t *testing.T) {
	sender := types.HexToAddress("0x0000000000000000000000000000000000001234")
	a1 := CreateAddress(sender, 0)
	a2 := CreateAddress(sender, 0)
	if a1 != a2 {
		t.Errorf("CreateAddress must be deterministic for identical (sender, nonce)")
	}
	a3 := CreateAddress(sender, 1)
	if a1 == a3 {
		t.Errorf("different nonces must derive different addresses")
	}
}

func TestCreateAddress2Deterministic(t *testing.T) {
	sender := types.HexToAddress("0x0000000000000000000000000000000000005678")
	salt := types.HexToWord("0x01")
	codeHash := Keccak256([]byte{0x60, 0x00})

	a1 := CreateAddress2(sender, salt, codeHash)
	a2 := CreateAddress2(sender, salt, codeHash)
	if a1 != a2 {
		t.Errorf("CreateAddress2 must be deterministic for identical inputs")
	}
}
