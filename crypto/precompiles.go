package crypto

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for the 0x03 precompile, no alternative in the ecosystem

	"github.com/sbip-sg/tevm/types"
)

// PrecompiledContract is one of the fixed EVM precompiles at addresses
// 0x01 through 0x09. RequiredGas is computed before Run so the caller can
// charge gas and bail out without executing on an underfunded call.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// Precompiles returns the address -> implementation map for the precompiled
// contracts this executor supports (EIP-196/197 and EIP-152 included, so
// addresses 0x01 through 0x09 are all populated).
func Precompiles() map[types.Address]PrecompiledContract {
	return map[types.Address]PrecompiledContract{
		precompileAddr(1): ecrecoverPrecompile{},
		precompileAddr(2): sha256Precompile{},
		precompileAddr(3): ripemd160Precompile{},
		precompileAddr(4): identityPrecompile{},
		precompileAddr(5): modexpPrecompile{},
		precompileAddr(6): bn256AddPrecompile{},
		precompileAddr(7): bn256ScalarMulPrecompile{},
		precompileAddr(8): bn256PairingPrecompile{},
		precompileAddr(9): blake2fPrecompile{},
	}
}

func precompileAddr(n byte) types.Address {
	var a types.Address
	a[len(a)-1] = n
	return a
}

func wordPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// --- 0x01 ECRECOVER --------------------------------------------------------

type ecrecoverPrecompile struct{}

func (ecrecoverPrecompile) RequiredGas([]byte) uint64 { return 3000 }

func (ecrecoverPrecompile) Run(input []byte) ([]byte, error) {
	input = wordPad(input, 128)
	hash := input[0:32]
	v := input[63]
	r := input[64:96]
	s := input[96:128]

	if v != 27 && v != 28 {
		return make([]byte, 32), nil
	}
	sig := make([]byte, 65)
	copy(sig[0:32], r)
	copy(sig[32:64], s)
	sig[64] = v

	pub, err := Ecrecover(hash, sig)
	if err != nil {
		return make([]byte, 32), nil
	}
	addr := PubkeyToAddress(pub)
	out := make([]byte, 32)
	copy(out[12:], addr)
	return out, nil
}

// --- 0x02 SHA256 -----------------------------------------------------------

type sha256Precompile struct{}

func (sha256Precompile) RequiredGas(input []byte) uint64 {
	return 60 + 12*wordCount(len(input))
}

func (sha256Precompile) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// --- 0x03 RIPEMD160 ----------------------------------------------------------

type ripemd160Precompile struct{}

func (ripemd160Precompile) RequiredGas(input []byte) uint64 {
	return 600 + 120*wordCount(len(input))
}

func (ripemd160Precompile) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	sum := h.Sum(nil)
	out := make([]byte, 32)
	copy(out[12:], sum)
	return out, nil
}

// --- 0x04 IDENTITY -----------------------------------------------------------

type identityPrecompile struct{}

func (identityPrecompile) RequiredGas(input []byte) uint64 {
	return 15 + 3*wordCount(len(input))
}

func (identityPrecompile) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

func wordCount(n int) uint64 { return uint64((n + 31) / 32) }

// --- 0x05 MODEXP (EIP-2565) --------------------------------------------------

type modexpPrecompile struct{}

func (modexpPrecompile) RequiredGas(input []byte) uint64 {
	baseLen, expLen, modLen, _ := modexpLengths(input)
	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}
	words := (maxLen + 7) / 8
	gas := new(big.Int).Mul(big.NewInt(int64(words*words)), modexpExpCost(input, baseLen, expLen))
	gas.Div(gas, big.NewInt(3))
	if gas.Cmp(big.NewInt(200)) < 0 {
		return 200
	}
	if !gas.IsUint64() {
		return ^uint64(0)
	}
	return gas.Uint64()
}

func (modexpPrecompile) Run(input []byte) ([]byte, error) {
	baseLen, expLen, modLen, rest := modexpLengths(input)
	rest = wordPad(rest, baseLen+expLen+modLen)

	base := new(big.Int).SetBytes(rest[0:baseLen])
	exp := new(big.Int).SetBytes(rest[baseLen : baseLen+expLen])
	mod := new(big.Int).SetBytes(rest[baseLen+expLen : baseLen+expLen+modLen])

	out := make([]byte, modLen)
	if mod.Sign() == 0 {
		return out, nil
	}
	r := new(big.Int).Exp(base, exp, mod)
	rb := r.Bytes()
	copy(out[modLen-len(rb):], rb)
	return out, nil
}

// modexpLengths parses the 96-byte (baseLen, expLen, modLen) header and
// returns the remaining payload.
func modexpLengths(input []byte) (baseLen, expLen, modLen int, rest []byte) {
	header := wordPad(input, 96)
	baseLen = int(new(big.Int).SetBytes(header[0:32]).Uint64())
	expLen = int(new(big.Int).SetBytes(header[32:64]).Uint64())
	modLen = int(new(big.Int).SetBytes(header[64:96]).Uint64())
	if len(input) > 96 {
		rest = input[96:]
	}
	return
}

// modexpExpCost approximates EIP-2565's adjusted exponent cost: it takes
// the bit length of the most significant 32 bytes of the exponent (or the
// whole exponent if shorter).
func modexpExpCost(input []byte, baseLen, expLen int) *big.Int {
	if expLen == 0 {
		return big.NewInt(1)
	}
	_, _, _, rest := modexpLengths(input)
	rest = wordPad(rest, baseLen+expLen)
	expBytes := rest[baseLen : baseLen+expLen]

	window := expBytes
	if len(window) > 32 {
		window = window[:32]
	}
	expHead := new(big.Int).SetBytes(window)
	bitLen := expHead.BitLen()
	if bitLen == 0 {
		bitLen = 1
	}
	cost := big.NewInt(int64(bitLen - 1))
	if expLen > 32 {
		extra := big.NewInt(int64(8 * (expLen - 32)))
		cost.Add(cost, extra)
	}
	if cost.Sign() < 1 {
		cost.SetInt64(1)
	}
	return cost
}

// --- 0x06/0x07/0x08 BN254 (alt_bn128) ----------------------------------------

type bn256AddPrecompile struct{}

func (bn256AddPrecompile) RequiredGas([]byte) uint64 { return 150 }
func (bn256AddPrecompile) Run(input []byte) ([]byte, error) { return BN256Add(input) }

type bn256ScalarMulPrecompile struct{}

func (bn256ScalarMulPrecompile) RequiredGas([]byte) uint64 { return 6000 }
func (bn256ScalarMulPrecompile) Run(input []byte) ([]byte, error) { return BN256ScalarMul(input) }

type bn256PairingPrecompile struct{}

func (bn256PairingPrecompile) RequiredGas(input []byte) uint64 {
	k := uint64(len(input) / 192)
	return 45000 + 34000*k
}
func (bn256PairingPrecompile) Run(input []byte) ([]byte, error) { return BN256Pairing(input) }

// --- 0x09 BLAKE2F (EIP-152) --------------------------------------------------

type blake2fPrecompile struct{}

func (blake2fPrecompile) RequiredGas(input []byte) uint64 {
	rounds, _, _, _, _, ok := DecodeBlake2FInput(input)
	if !ok {
		return 0
	}
	return uint64(rounds)
}

func (blake2fPrecompile) Run(input []byte) ([]byte, error) {
	rounds, h, m, t, final, ok := DecodeBlake2FInput(input)
	if !ok {
		return nil, errInvalidBlake2FInput
	}
	out := Blake2F(rounds, h, m, t, final)
	return EncodeBlake2FOutput(out), nil
}

var errInvalidBlake2FInput = cryptoError("crypto: invalid blake2f input")
