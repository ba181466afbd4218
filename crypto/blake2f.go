package crypto

import "encoding/binary"

// Blake2F implements the BLAKE2b compression function F as specified in
// EIP-152. golang.org/x/crypto/blake2b does not export F as a standalone
// primitive, so this is hand-written from the EIP-152 IV and message
// permutation constants.
func Blake2F(rounds uint32, h [8]uint64, m [16]uint64, t [2]uint64, final bool) [8]uint64 {
	v := [16]uint64{
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7],
		iv[0], iv[1], iv[2], iv[3], iv[4], iv[5], iv[6], iv[7],
	}
	v[12] ^= t[0]
	v[13] ^= t[1]
	if final {
		v[14] = ^v[14]
	}

	for r := uint32(0); r < rounds; r++ {
		s := sigma[r%10]
		g(&v, 0, 4, 8, 12, m[s[0]], m[s[1]])
		g(&v, 1, 5, 9, 13, m[s[2]], m[s[3]])
		g(&v, 2, 6, 10, 14, m[s[4]], m[s[5]])
		g(&v, 3, 7, 11, 15, m[s[6]], m[s[7]])
		g(&v, 0, 5, 10, 15, m[s[8]], m[s[9]])
		g(&v, 1, 6, 11, 12, m[s[10]], m[s[11]])
		g(&v, 2, 7, 8, 13, m[s[12]], m[s[13]])
		g(&v, 3, 4, 9, 14, m[s[14]], m[s[15]])
	}

	var out [8]uint64
	for i := 0; i < 8; i++ {
		out[i] = h[i] ^ v[i] ^ v[i+8]
	}
	return out
}

func rotr64(x uint64, n uint) uint64 { return (x >> n) | (x << (64 - n)) }

func g(v *[16]uint64, a, b, c, d int, x, y uint64) {
	v[a] = v[a] + v[b] + x
	v[d] = rotr64(v[d]^v[a], 32)
	v[c] = v[c] + v[d]
	v[b] = rotr64(v[b]^v[c], 24)
	v[a] = v[a] + v[b] + y
	v[d] = rotr64(v[d]^v[a], 16)
	v[c] = v[c] + v[d]
	v[b] = rotr64(v[b]^v[c], 63)
}

var iv = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b,
	0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f,
	0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

var sigma = [10][16]byte{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{14, 10, 4, 8, 9, 15, 13, 6, 1, 12, 0, 2, 11, 7, 5, 3},
	{11, 8, 12, 0, 5, 2, 15, 13, 10, 14, 3, 6, 7, 1, 9, 4},
	{7, 9, 3, 1, 13, 12, 11, 14, 2, 6, 5, 10, 4, 0, 15, 8},
	{9, 0, 5, 7, 2, 4, 10, 15, 14, 1, 11, 12, 6, 8, 3, 13},
	{2, 12, 6, 10, 0, 11, 8, 3, 4, 13, 7, 5, 15, 14, 1, 9},
	{12, 5, 1, 15, 14, 13, 4, 10, 0, 7, 6, 3, 9, 2, 8, 11},
	{13, 11, 7, 14, 12, 1, 3, 9, 5, 0, 15, 4, 8, 6, 2, 10},
	{6, 15, 14, 9, 11, 3, 0, 8, 12, 2, 13, 7, 1, 4, 10, 5},
	{10, 2, 8, 4, 7, 6, 1, 5, 15, 11, 9, 14, 3, 12, 13, 0},
}

// DecodeBlake2FInput unpacks the 213-byte BLAKE2F precompile input per
// EIP-152: rounds(4) || h(64) || m(128) || t(16) || final(1).
func DecodeBlake2FInput(input []byte) (rounds uint32, h [8]uint64, m [16]uint64, t [2]uint64, final bool, ok bool) {
	if len(input) != 213 {
		return 0, h, m, t, false, false
	}
	rounds = binary.BigEndian.Uint32(input[0:4])
	for i := 0; i < 8; i++ {
		h[i] = binary.LittleEndian.Uint64(input[4+i*8 : 12+i*8])
	}
	for i := 0; i < 16; i++ {
		m[i] = binary.LittleEndian.Uint64(input[68+i*8 : 76+i*8])
	}
	t[0] = binary.LittleEndian.Uint64(input[196:204])
	t[1] = binary.LittleEndian.Uint64(input[204:212])
	switch input[212] {
	case 0:
		final = false
	case 1:
		final = true
	default:
		return 0, h, m, t, false, false
	}
	return rounds, h, m, t, final, true
}

// EncodeBlake2FOutput packs the 64-byte output state (little-endian u64 x8).
func EncodeBlake2FOutput(h [8]uint64) []byte {
	out := make([]byte, 64)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], h[i])
	}
	return out
}
