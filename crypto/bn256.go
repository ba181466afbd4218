package crypto

// BN254 (alt_bn128) elliptic curve arithmetic and optimal Ate pairing,
// backing the EIP-196/EIP-197 precompiles BN256ADD (0x06), BN256MUL (0x07)
// and BN256PAIRING (0x08).
//
// G1 lives on y^2 = x^3 + 3 over F_p. G2 lives on the sextic twist
// y^2 = x^3 + 3/(9+i) over F_p^2. The pairing target group G_T is F_p^12,
// built as the tower F_p -> F_p^2 -> F_p^6 -> F_p^12.

import (
	"errors"
	"math/big"
)

// --- base field F_p -------------------------------------------------------

var (
	bn254P, _ = new(big.Int).SetString("21888242871839275222246405745257275088696311157297823662689037894645226208583", 10)
	bn254N, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
	bn254B    = big.NewInt(3)
)

func fpAdd(a, b *big.Int) *big.Int { r := new(big.Int).Add(a, b); return r.Mod(r, bn254P) }
func fpSub(a, b *big.Int) *big.Int { r := new(big.Int).Sub(a, b); return r.Mod(r, bn254P) }
func fpMul(a, b *big.Int) *big.Int { r := new(big.Int).Mul(a, b); return r.Mod(r, bn254P) }
func fpSqr(a *big.Int) *big.Int    { r := new(big.Int).Mul(a, a); return r.Mod(r, bn254P) }
func fpExp(a, e *big.Int) *big.Int { return new(big.Int).Exp(a, e, bn254P) }
func fpInv(a *big.Int) *big.Int    { return new(big.Int).ModInverse(a, bn254P) }

func fpNeg(a *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(bn254P, new(big.Int).Mod(a, bn254P))
}

// --- extension field F_p^2 = F_p[i] / (i^2 + 1) ---------------------------

type fp2 struct{ a0, a1 *big.Int }

func newFp2(a0, a1 *big.Int) *fp2 { return &fp2{a0: new(big.Int).Set(a0), a1: new(big.Int).Set(a1)} }
func fp2Zero() *fp2               { return &fp2{a0: new(big.Int), a1: new(big.Int)} }
func fp2One() *fp2                { return &fp2{a0: big.NewInt(1), a1: new(big.Int)} }
func (e *fp2) isZero() bool       { return e.a0.Sign() == 0 && e.a1.Sign() == 0 }

func (e *fp2) equal(f *fp2) bool {
	a0 := new(big.Int).Mod(e.a0, bn254P)
	a1 := new(big.Int).Mod(e.a1, bn254P)
	b0 := new(big.Int).Mod(f.a0, bn254P)
	b1 := new(big.Int).Mod(f.a1, bn254P)
	return a0.Cmp(b0) == 0 && a1.Cmp(b1) == 0
}

func fp2Add(e, f *fp2) *fp2 { return &fp2{a0: fpAdd(e.a0, f.a0), a1: fpAdd(e.a1, f.a1)} }
func fp2Sub(e, f *fp2) *fp2 { return &fp2{a0: fpSub(e.a0, f.a0), a1: fpSub(e.a1, f.a1)} }

// fp2Mul is Karatsuba: (a0+a1*i)(b0+b1*i) = (a0b0-a1b1) + (a0b1+a1b0)*i.
func fp2Mul(e, f *fp2) *fp2 {
	v0 := fpMul(e.a0, f.a0)
	v1 := fpMul(e.a1, f.a1)
	return &fp2{
		a0: fpSub(v0, v1),
		a1: fpSub(fpMul(fpAdd(e.a0, e.a1), fpAdd(f.a0, f.a1)), fpAdd(v0, v1)),
	}
}

func fp2Sqr(e *fp2) *fp2 {
	ab := fpMul(e.a0, e.a1)
	return &fp2{
		a0: fpMul(fpAdd(e.a0, e.a1), fpSub(e.a0, e.a1)),
		a1: fpAdd(ab, ab),
	}
}

func fp2Neg(e *fp2) *fp2  { return &fp2{a0: fpNeg(e.a0), a1: fpNeg(e.a1)} }
func fp2Conj(e *fp2) *fp2 { return &fp2{a0: new(big.Int).Set(e.a0), a1: fpNeg(e.a1)} }

// fp2Inv: (a+bi)^-1 = (a-bi)/(a^2+b^2).
func fp2Inv(e *fp2) *fp2 {
	t := fpAdd(fpSqr(e.a0), fpSqr(e.a1))
	inv := fpInv(t)
	return &fp2{a0: fpMul(e.a0, inv), a1: fpMul(fpNeg(e.a1), inv)}
}

func fp2MulScalar(e *fp2, s *big.Int) *fp2 {
	return &fp2{a0: fpMul(e.a0, s), a1: fpMul(e.a1, s)}
}

// fp2MulByNonResidue multiplies by xi = 9+i, the non-residue used to build
// the sextic extension: (a+bi)(9+i) = (9a-b) + (a+9b)i.
func fp2MulByNonResidue(e *fp2) *fp2 {
	nine := big.NewInt(9)
	return &fp2{a0: fpSub(fpMul(e.a0, nine), e.a1), a1: fpAdd(fpMul(e.a1, nine), e.a0)}
}

// --- extension field F_p^6 = F_p^2[v] / (v^3 - xi) ------------------------

type fp6 struct{ c0, c1, c2 *fp2 }

func fp6Zero() *fp6 { return &fp6{c0: fp2Zero(), c1: fp2Zero(), c2: fp2Zero()} }
func fp6One() *fp6  { return &fp6{c0: fp2One(), c1: fp2Zero(), c2: fp2Zero()} }

func fp6Add(e, f *fp6) *fp6 {
	return &fp6{c0: fp2Add(e.c0, f.c0), c1: fp2Add(e.c1, f.c1), c2: fp2Add(e.c2, f.c2)}
}

func fp6Sub(e, f *fp6) *fp6 {
	return &fp6{c0: fp2Sub(e.c0, f.c0), c1: fp2Sub(e.c1, f.c1), c2: fp2Sub(e.c2, f.c2)}
}

func fp6Neg(e *fp6) *fp6 {
	return &fp6{c0: fp2Neg(e.c0), c1: fp2Neg(e.c1), c2: fp2Neg(e.c2)}
}

// fp6Mul is degree-2 Karatsuba over F_p^2, reducing v^3 -> xi.
func fp6Mul(e, f *fp6) *fp6 {
	t0 := fp2Mul(e.c0, f.c0)
	t1 := fp2Mul(e.c1, f.c1)
	t2 := fp2Mul(e.c2, f.c2)

	c0 := fp2Add(t0, fp2MulByNonResidue(
		fp2Sub(fp2Sub(fp2Mul(fp2Add(e.c1, e.c2), fp2Add(f.c1, f.c2)), t1), t2)))
	c1 := fp2Add(
		fp2Sub(fp2Sub(fp2Mul(fp2Add(e.c0, e.c1), fp2Add(f.c0, f.c1)), t0), t1),
		fp2MulByNonResidue(t2))
	c2 := fp2Add(
		fp2Sub(fp2Sub(fp2Mul(fp2Add(e.c0, e.c2), fp2Add(f.c0, f.c2)), t0), t2),
		t1)
	return &fp6{c0: c0, c1: c1, c2: c2}
}

func fp6Sqr(e *fp6) *fp6 {
	s0 := fp2Sqr(e.c0)
	ab := fp2Mul(e.c0, e.c1)
	s1 := fp2Add(ab, ab)
	s2 := fp2Sqr(fp2Sub(fp2Add(e.c0, e.c2), e.c1))
	bc := fp2Mul(e.c1, e.c2)
	s3 := fp2Add(bc, bc)
	s4 := fp2Sqr(e.c2)

	c0 := fp2Add(s0, fp2MulByNonResidue(s3))
	c1 := fp2Add(s1, fp2MulByNonResidue(s4))
	c2 := fp2Sub(fp2Sub(fp2Add(fp2Add(s1, s2), s3), s0), s4)
	return &fp6{c0: c0, c1: c1, c2: c2}
}

func fp6Inv(e *fp6) *fp6 {
	a := fp2Sub(fp2Sqr(e.c0), fp2MulByNonResidue(fp2Mul(e.c1, e.c2)))
	b := fp2Sub(fp2MulByNonResidue(fp2Sqr(e.c2)), fp2Mul(e.c0, e.c1))
	c := fp2Sub(fp2Sqr(e.c1), fp2Mul(e.c0, e.c2))

	f := fp2Add(fp2Mul(e.c0, a), fp2MulByNonResidue(fp2Add(fp2Mul(e.c2, b), fp2Mul(e.c1, c))))
	fInv := fp2Inv(f)
	return &fp6{c0: fp2Mul(a, fInv), c1: fp2Mul(b, fInv), c2: fp2Mul(c, fInv)}
}

func fp6MulByFp2(e *fp6, s *fp2) *fp6 {
	return &fp6{c0: fp2Mul(e.c0, s), c1: fp2Mul(e.c1, s), c2: fp2Mul(e.c2, s)}
}

// fp6MulByV multiplies by v: (c0+c1v+c2v^2)*v = c2*xi + c0*v + c1*v^2.
func fp6MulByV(e *fp6) *fp6 {
	return &fp6{c0: fp2MulByNonResidue(e.c2), c1: newFp2(e.c0.a0, e.c0.a1), c2: newFp2(e.c1.a0, e.c1.a1)}
}

// --- extension field F_p^12 = F_p^6[w] / (w^2 - v) ------------------------

type fp12 struct{ c0, c1 *fp6 }

func fp12Zero() *fp12 { return &fp12{c0: fp6Zero(), c1: fp6Zero()} }
func fp12One() *fp12  { return &fp12{c0: fp6One(), c1: fp6Zero()} }

func (e *fp12) isOne() bool {
	return e.c0.c0.a0.Cmp(big.NewInt(1)) == 0 && e.c0.c0.a1.Sign() == 0 &&
		e.c0.c1.isZero() && e.c0.c2.isZero() && e.c1.isZero()
}

func (e *fp6) isZero() bool { return e.c0.isZero() && e.c1.isZero() && e.c2.isZero() }

func fp12Mul(e, f *fp12) *fp12 {
	t1 := fp6Mul(e.c0, f.c0)
	t2 := fp6Mul(e.c1, f.c1)
	c0 := fp6Add(t1, fp6MulByV(t2))
	c1 := fp6Sub(fp6Sub(fp6Mul(fp6Add(e.c0, e.c1), fp6Add(f.c0, f.c1)), t1), t2)
	return &fp12{c0: c0, c1: c1}
}

func fp12Sqr(e *fp12) *fp12 {
	ab := fp6Mul(e.c0, e.c1)
	t := fp6Add(e.c0, e.c1)
	u := fp6Add(e.c0, fp6MulByV(e.c1))
	c0 := fp6Sub(fp6Sub(fp6Mul(t, u), ab), fp6MulByV(ab))
	c1 := fp6Add(ab, ab)
	return &fp12{c0: c0, c1: c1}
}

func fp12Inv(e *fp12) *fp12 {
	t := fp6Sub(fp6Sqr(e.c0), fp6MulByV(fp6Sqr(e.c1)))
	tInv := fp6Inv(t)
	return &fp12{c0: fp6Mul(e.c0, tInv), c1: fp6Neg(fp6Mul(e.c1, tInv))}
}

func fp12Conj(e *fp12) *fp12 {
	return &fp12{
		c0: &fp6{c0: newFp2(e.c0.c0.a0, e.c0.c0.a1), c1: newFp2(e.c0.c1.a0, e.c0.c1.a1), c2: newFp2(e.c0.c2.a0, e.c0.c2.a1)},
		c1: fp6Neg(e.c1),
	}
}

func fp12Exp(e *fp12, k *big.Int) *fp12 {
	if k.Sign() == 0 {
		return fp12One()
	}
	r := fp12One()
	base := &fp12{
		c0: &fp6{c0: newFp2(e.c0.c0.a0, e.c0.c0.a1), c1: newFp2(e.c0.c1.a0, e.c0.c1.a1), c2: newFp2(e.c0.c2.a0, e.c0.c2.a1)},
		c1: &fp6{c0: newFp2(e.c1.c0.a0, e.c1.c0.a1), c1: newFp2(e.c1.c1.a0, e.c1.c1.a1), c2: newFp2(e.c1.c2.a0, e.c1.c2.a1)},
	}
	for i := k.BitLen() - 1; i >= 0; i-- {
		r = fp12Sqr(r)
		if k.Bit(i) == 1 {
			r = fp12Mul(r, base)
		}
	}
	return r
}

// --- G1: y^2 = x^3 + 3 over F_p, Jacobian coordinates ---------------------

type g1Point struct{ x, y, z *big.Int }

func g1Infinity() *g1Point { return &g1Point{x: big.NewInt(1), y: big.NewInt(1), z: new(big.Int)} }
func (p *g1Point) isInfinity() bool { return p.z.Sign() == 0 }

func g1FromAffine(x, y *big.Int) *g1Point {
	if x.Sign() == 0 && y.Sign() == 0 {
		return g1Infinity()
	}
	return &g1Point{x: new(big.Int).Set(x), y: new(big.Int).Set(y), z: big.NewInt(1)}
}

func (p *g1Point) toAffine() (x, y *big.Int) {
	if p.isInfinity() {
		return new(big.Int), new(big.Int)
	}
	zInv := fpInv(p.z)
	zInv2 := fpSqr(zInv)
	zInv3 := fpMul(zInv2, zInv)
	return fpMul(p.x, zInv2), fpMul(p.y, zInv3)
}

// g1IsOnCurve also treats (0,0) as the identity.
func g1IsOnCurve(x, y *big.Int) bool {
	if x.Sign() == 0 && y.Sign() == 0 {
		return true
	}
	if x.Sign() < 0 || x.Cmp(bn254P) >= 0 || y.Sign() < 0 || y.Cmp(bn254P) >= 0 {
		return false
	}
	lhs := fpSqr(y)
	rhs := fpAdd(fpMul(fpSqr(x), x), bn254B)
	return lhs.Cmp(rhs) == 0
}

func g1Add(a, b *g1Point) *g1Point {
	if a.isInfinity() {
		return &g1Point{new(big.Int).Set(b.x), new(big.Int).Set(b.y), new(big.Int).Set(b.z)}
	}
	if b.isInfinity() {
		return &g1Point{new(big.Int).Set(a.x), new(big.Int).Set(a.y), new(big.Int).Set(a.z)}
	}
	z1sq := fpSqr(a.z)
	z2sq := fpSqr(b.z)
	u1 := fpMul(a.x, z2sq)
	u2 := fpMul(b.x, z1sq)
	s1 := fpMul(a.y, fpMul(b.z, z2sq))
	s2 := fpMul(b.y, fpMul(a.z, z1sq))

	if u1.Cmp(u2) == 0 {
		if s1.Cmp(s2) == 0 {
			return g1Double(a)
		}
		return g1Infinity()
	}

	h := fpSub(u2, u1)
	i := fpSqr(fpAdd(h, h))
	j := fpMul(h, i)
	r := fpAdd(fpSub(s2, s1), fpSub(s2, s1))
	v := fpMul(u1, i)

	x3 := fpSub(fpSub(fpSqr(r), j), fpAdd(v, v))
	y3 := fpSub(fpMul(r, fpSub(v, x3)), fpAdd(fpMul(s1, j), fpMul(s1, j)))
	z3 := fpMul(fpSub(fpSub(fpSqr(fpAdd(a.z, b.z)), z1sq), z2sq), h)
	return &g1Point{x: x3, y: y3, z: z3}
}

func g1Double(a *g1Point) *g1Point {
	if a.isInfinity() {
		return g1Infinity()
	}
	A := fpSqr(a.x)
	B := fpSqr(a.y)
	C := fpSqr(B)
	D := fpAdd(fpSub(fpSub(fpSqr(fpAdd(a.x, B)), A), C), fpSub(fpSub(fpSqr(fpAdd(a.x, B)), A), C))
	E := fpAdd(fpAdd(A, A), A)
	x3 := fpSub(fpSqr(E), fpAdd(D, D))
	eightC := fpAdd(fpAdd(fpAdd(C, C), fpAdd(C, C)), fpAdd(fpAdd(C, C), fpAdd(C, C)))
	y3 := fpSub(fpMul(E, fpSub(D, x3)), eightC)
	z3 := fpMul(fpAdd(a.y, a.y), a.z)
	return &g1Point{x: x3, y: y3, z: z3}
}

func g1ScalarMul(p *g1Point, k *big.Int) *g1Point {
	if k.Sign() == 0 || p.isInfinity() {
		return g1Infinity()
	}
	kMod := new(big.Int).Mod(k, bn254N)
	if kMod.Sign() == 0 {
		return g1Infinity()
	}
	r := g1Infinity()
	base := &g1Point{x: new(big.Int).Set(p.x), y: new(big.Int).Set(p.y), z: new(big.Int).Set(p.z)}
	for i := kMod.BitLen() - 1; i >= 0; i-- {
		r = g1Double(r)
		if kMod.Bit(i) == 1 {
			r = g1Add(r, base)
		}
	}
	return r
}

// --- G2: twisted curve y^2 = x^3 + 3/(9+i) over F_p^2 ---------------------

type g2Point struct{ x, y, z *fp2 }

var (
	twistBa0, _ = new(big.Int).SetString("19485874751759354771024239261021720505790618469301721065564631296452457478373", 10)
	twistBa1, _ = new(big.Int).SetString("266929791119991161246907387137283842545076965332900288569378510910307636690", 10)
	twistB      = &fp2{a0: twistBa0, a1: twistBa1}
)

func g2Infinity() *g2Point { return &g2Point{x: fp2One(), y: fp2One(), z: fp2Zero()} }
func (p *g2Point) isInfinity() bool { return p.z.isZero() }

func g2FromAffine(x, y *fp2) *g2Point {
	if x.isZero() && y.isZero() {
		return g2Infinity()
	}
	return &g2Point{x: newFp2(x.a0, x.a1), y: newFp2(y.a0, y.a1), z: fp2One()}
}

func (p *g2Point) toAffine() (x, y *fp2) {
	if p.isInfinity() {
		return fp2Zero(), fp2Zero()
	}
	zInv := fp2Inv(p.z)
	zInv2 := fp2Sqr(zInv)
	zInv3 := fp2Mul(zInv2, zInv)
	return fp2Mul(p.x, zInv2), fp2Mul(p.y, zInv3)
}

func g2IsOnCurve(x, y *fp2) bool {
	if x.isZero() && y.isZero() {
		return true
	}
	xr0 := new(big.Int).Mod(x.a0, bn254P)
	xr1 := new(big.Int).Mod(x.a1, bn254P)
	yr0 := new(big.Int).Mod(y.a0, bn254P)
	yr1 := new(big.Int).Mod(y.a1, bn254P)
	if xr0.Cmp(x.a0) != 0 || xr1.Cmp(x.a1) != 0 || yr0.Cmp(y.a0) != 0 || yr1.Cmp(y.a1) != 0 {
		return false
	}
	lhs := fp2Sqr(y)
	rhs := fp2Add(fp2Mul(fp2Sqr(x), x), twistB)
	return lhs.equal(rhs)
}

func g2Add(a, b *g2Point) *g2Point {
	if a.isInfinity() {
		return &g2Point{newFp2(b.x.a0, b.x.a1), newFp2(b.y.a0, b.y.a1), newFp2(b.z.a0, b.z.a1)}
	}
	if b.isInfinity() {
		return &g2Point{newFp2(a.x.a0, a.x.a1), newFp2(a.y.a0, a.y.a1), newFp2(a.z.a0, a.z.a1)}
	}
	z1sq := fp2Sqr(a.z)
	z2sq := fp2Sqr(b.z)
	u1 := fp2Mul(a.x, z2sq)
	u2 := fp2Mul(b.x, z1sq)
	s1 := fp2Mul(a.y, fp2Mul(b.z, z2sq))
	s2 := fp2Mul(b.y, fp2Mul(a.z, z1sq))

	if u1.equal(u2) {
		if s1.equal(s2) {
			return g2Double(a)
		}
		return g2Infinity()
	}

	h := fp2Sub(u2, u1)
	i := fp2Sqr(fp2Add(h, h))
	j := fp2Mul(h, i)
	r := fp2Add(fp2Sub(s2, s1), fp2Sub(s2, s1))
	v := fp2Mul(u1, i)

	x3 := fp2Sub(fp2Sub(fp2Sqr(r), j), fp2Add(v, v))
	y3 := fp2Sub(fp2Mul(r, fp2Sub(v, x3)), fp2Add(fp2Mul(s1, j), fp2Mul(s1, j)))
	z3 := fp2Mul(fp2Sub(fp2Sub(fp2Sqr(fp2Add(a.z, b.z)), z1sq), z2sq), h)
	return &g2Point{x: x3, y: y3, z: z3}
}

func g2Double(a *g2Point) *g2Point {
	if a.isInfinity() {
		return g2Infinity()
	}
	A := fp2Sqr(a.x)
	B := fp2Sqr(a.y)
	C := fp2Sqr(B)
	D := fp2Add(fp2Sub(fp2Sub(fp2Sqr(fp2Add(a.x, B)), A), C), fp2Sub(fp2Sub(fp2Sqr(fp2Add(a.x, B)), A), C))
	E := fp2Add(fp2Add(A, A), A)
	x3 := fp2Sub(fp2Sqr(E), fp2Add(D, D))
	eightC := fp2Add(fp2Add(fp2Add(C, C), fp2Add(C, C)), fp2Add(fp2Add(C, C), fp2Add(C, C)))
	y3 := fp2Sub(fp2Mul(E, fp2Sub(D, x3)), eightC)
	z3 := fp2Mul(fp2Add(a.y, a.y), a.z)
	return &g2Point{x: x3, y: y3, z: z3}
}

// --- Frobenius constants for the optimal Ate pairing ----------------------

func bigFromStr(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bn256: invalid field constant: " + s)
	}
	return v
}

var (
	frobC1_1 = &fp2{a0: bigFromStr("8376118865763821496583973867626364092589906065868298776909617916018768340080"), a1: bigFromStr("16469823323077808223889137241176536799009286646108169935659301613961712198316")}
	frobC1_2 = &fp2{a0: bigFromStr("21575463638280843010398324269430826099269044274347216827212613867836435027261"), a1: bigFromStr("10307601595873709700152284273816112264069230130616436755625194854815875713954")}
	frobC1_3 = &fp2{a0: bigFromStr("2821565182194536844548159561693502659359617185244120367078079554186484126554"), a1: bigFromStr("3505843767911556378687030309984248845540243509899259641013678093033130930403")}
	frobC1_4 = &fp2{a0: bigFromStr("2581911344467009335267311115468803099551665605076196740867805258568234346338"), a1: bigFromStr("19937756971775647987995932169929341994314640652964949448313374472400716661030")}
	frobC1_5 = &fp2{a0: bigFromStr("685108087231508774477564247770172212460312782337200605669322048753928464687"), a1: bigFromStr("8447204650696766136447902020341177575205426561248465145919723016860428151883")}

	frobC2_1 = &fp2{a0: bigFromStr("21888242871839275220042445260109153167277707414472061641714758635765020556617"), a1: new(big.Int)}
	frobC2_2 = &fp2{a0: bigFromStr("21888242871839275220042445260109153167277707414472061641714758635765020556616"), a1: new(big.Int)}
	frobC2_3 = &fp2{a0: bigFromStr("21888242871839275222246405745257275088696311157297823662689037894645226208582"), a1: new(big.Int)}
	frobC2_4 = &fp2{a0: bigFromStr("2203960485148121921418603742825762020974279258880205651966"), a1: new(big.Int)}
	frobC2_5 = &fp2{a0: bigFromStr("2203960485148121921418603742825762020974279258880205651967"), a1: new(big.Int)}

	frobC3_1 = &fp2{a0: bigFromStr("11697423496358154304825782922584725312912383441159505038794027105778954184319"), a1: bigFromStr("303847389135065887422783454877609941456349188919719272345083954437860409601")}
	frobC3_2 = &fp2{a0: bigFromStr("3772000881919853776433695186713858239009073593817195771773381919316419345261"), a1: bigFromStr("2236595495967245188281701248203181795121068902605861227855261137820944008926")}
	frobC3_3 = &fp2{a0: bigFromStr("19066677689644738377698246183563772429336693972053703295610958340458742082029"), a1: bigFromStr("18382399103927718843559375435273026243156067647398564021675359801612095278180")}
	frobC3_4 = &fp2{a0: bigFromStr("5324479202449903542726783395506214481928257762400643279780343368557297135718"), a1: bigFromStr("16208900380737693084919495127334387981393726419856888799917914180988844123039")}
	frobC3_5 = &fp2{a0: bigFromStr("8941241848238582420466759817324047081148088512956452953208002715982955420483"), a1: bigFromStr("10338197737521362862238855242243140895517409139741313354160881284257516364953")}
)

func fp12Frob(f *fp12) *fp12 {
	return &fp12{
		c0: &fp6{c0: fp2Conj(f.c0.c0), c1: fp2Mul(fp2Conj(f.c0.c1), frobC1_2), c2: fp2Mul(fp2Conj(f.c0.c2), frobC1_4)},
		c1: &fp6{c0: fp2Mul(fp2Conj(f.c1.c0), frobC1_1), c1: fp2Mul(fp2Conj(f.c1.c1), frobC1_3), c2: fp2Mul(fp2Conj(f.c1.c2), frobC1_5)},
	}
}

func fp12FrobSq(f *fp12) *fp12 {
	return &fp12{
		c0: &fp6{c0: newFp2(f.c0.c0.a0, f.c0.c0.a1), c1: fp2Mul(f.c0.c1, frobC2_2), c2: fp2Mul(f.c0.c2, frobC2_4)},
		c1: &fp6{c0: fp2Mul(f.c1.c0, frobC2_1), c1: fp2Mul(f.c1.c1, frobC2_3), c2: fp2Mul(f.c1.c2, frobC2_5)},
	}
}

func fp12Frob3(f *fp12) *fp12 {
	return &fp12{
		c0: &fp6{c0: fp2Conj(f.c0.c0), c1: fp2Mul(fp2Conj(f.c0.c1), frobC3_2), c2: fp2Mul(fp2Conj(f.c0.c2), frobC3_4)},
		c1: &fp6{c0: fp2Mul(fp2Conj(f.c1.c0), frobC3_1), c1: fp2Mul(fp2Conj(f.c1.c1), frobC3_3), c2: fp2Mul(fp2Conj(f.c1.c2), frobC3_5)},
	}
}

// --- optimal Ate Miller loop and final exponentiation ---------------------

// sixuPlus2NAF is 6u+2 in non-adjacent form, LSB first, for BN254.
var sixuPlus2NAF = []int8{
	0, 0, 0, 1, 0, 1, 0, -1, 0, 0, 1, -1, 0, 0, 1, 0,
	0, 1, 1, 0, -1, 0, 0, 1, 0, -1, 0, 0, 0, 0, 1, 1,
	1, 0, 0, -1, 0, 0, 1, 0, 0, 0, 0, 0, -1, 0, 0, 1,
	1, 0, 0, -1, 0, 0, 0, 1, 1, 0, -1, 0, 0, 1, 0, 1, 1,
}

var bn254U, _ = new(big.Int).SetString("4965661367192848881", 10)

var (
	xiToPMinus1Over3Twist = &fp2{a0: frobC1_2.a0, a1: frobC1_2.a1}
	xiToPMinus1Over2Twist = &fp2{a0: frobC1_3.a0, a1: frobC1_3.a1}
	xiToPSqMinus1Over3    = frobC2_2.a0
)

// twistPointJ is a G2 point in Jacobian coordinates carried through the
// Miller loop, with t = z^2 cached for the line-function formulas.
type twistPointJ struct{ x, y, z, t *fp2 }

func lineFunctionDouble(r *twistPointJ, qx, qy *big.Int) (a, b, c *fp2, rOut *twistPointJ) {
	A := fp2Sqr(r.x)
	B := fp2Sqr(r.y)
	C := fp2Sqr(B)

	D := fp2Sub(fp2Sub(fp2Sqr(fp2Add(r.x, B)), A), C)
	D = fp2Add(D, D)

	E := fp2Add(fp2Add(A, A), A)
	G := fp2Sqr(E)

	rOut = &twistPointJ{}
	rOut.x = fp2Sub(fp2Sub(G, D), D)

	rOut.z = fp2Sqr(fp2Add(r.y, r.z))
	rOut.z = fp2Sub(fp2Sub(rOut.z, B), r.t)

	rOut.y = fp2Mul(fp2Sub(D, rOut.x), E)
	t := fp2Add(fp2Add(C, C), fp2Add(C, C))
	t = fp2Add(t, t)
	rOut.y = fp2Sub(rOut.y, t)

	rOut.t = fp2Sqr(rOut.z)

	t = fp2Add(fp2Mul(E, r.t), fp2Mul(E, r.t))
	b = fp2MulScalar(fp2Neg(t), qx)

	a = fp2Sub(fp2Sub(fp2Sqr(fp2Add(r.x, E)), A), G)
	t = fp2Add(fp2Add(B, B), fp2Add(B, B))
	a = fp2Sub(a, t)

	c = fp2MulScalar(fp2Add(fp2Mul(rOut.z, r.t), fp2Mul(rOut.z, r.t)), qy)
	return
}

func lineFunctionAdd(r *twistPointJ, px, py *fp2, qx, qy *big.Int, r2 *fp2) (a, b, c *fp2, rOut *twistPointJ) {
	B := fp2Mul(px, r.t)

	D := fp2Sub(fp2Sub(fp2Sqr(fp2Add(py, r.z)), r2), r.t)
	D = fp2Mul(D, r.t)

	H := fp2Sub(B, r.x)
	I := fp2Sqr(H)
	E := fp2Add(fp2Add(I, I), fp2Add(I, I))
	J := fp2Mul(H, E)

	L1 := fp2Sub(fp2Sub(D, r.y), r.y)
	V := fp2Mul(r.x, E)

	rOut = &twistPointJ{}
	rOut.x = fp2Sub(fp2Sub(fp2Sqr(L1), J), fp2Add(V, V))

	rOut.z = fp2Sub(fp2Sub(fp2Sqr(fp2Add(r.z, H)), r.t), I)

	t := fp2Mul(fp2Sub(V, rOut.x), L1)
	t2 := fp2Add(fp2Mul(r.y, J), fp2Mul(r.y, J))
	rOut.y = fp2Sub(t, t2)

	rOut.t = fp2Sqr(rOut.z)

	t = fp2Sub(fp2Sub(fp2Sqr(fp2Add(py, rOut.z)), r2), rOut.t)
	t2 = fp2Add(fp2Mul(L1, px), fp2Mul(L1, px))
	a = fp2Sub(t2, t)

	c = fp2Add(fp2MulScalar(rOut.z, qy), fp2MulScalar(rOut.z, qy))
	b = fp2Add(fp2MulScalar(fp2Neg(L1), qx), fp2MulScalar(fp2Neg(L1), qx))
	return
}

// mulLine multiplies ret by the sparse line element c + (a*v + b*v^2)*w,
// using Karatsuba over the c0/c1 split of F_p^12.
func mulLine(ret *fp12, a, b, c *fp2) *fp12 {
	lineC1 := &fp6{c0: fp2Zero(), c1: a, c2: b}
	lineSum := &fp6{c0: c, c1: a, c2: fp2Add(b, c)}

	a2 := fp6Mul(lineC1, ret.c1)
	t3 := fp6MulByFp2(ret.c0, c)

	newC1 := fp6Sub(fp6Sub(fp6Mul(fp6Add(ret.c1, ret.c0), lineSum), a2), t3)
	newC0 := fp6Add(fp6MulByV(a2), t3)
	return &fp12{c0: newC0, c1: newC1}
}

func millerLoop(px, py *big.Int, qx, qy *fp2) *fp12 {
	ret := fp12One()

	one := fp2One()
	r := &twistPointJ{x: newFp2(qx.a0, qx.a1), y: newFp2(qy.a0, qy.a1), z: newFp2(one.a0, one.a1), t: newFp2(one.a0, one.a1)}

	minusQy := fp2Neg(qy)
	r2 := fp2Sqr(qy)

	for i := len(sixuPlus2NAF) - 1; i > 0; i-- {
		a, b, c, newR := lineFunctionDouble(r, px, py)
		if i != len(sixuPlus2NAF)-1 {
			ret = fp12Sqr(ret)
		}
		ret = mulLine(ret, a, b, c)
		r = newR

		switch sixuPlus2NAF[i-1] {
		case 1:
			a, b, c, newR = lineFunctionAdd(r, qx, qy, px, py, r2)
			ret = mulLine(ret, a, b, c)
			r = newR
		case -1:
			a, b, c, newR = lineFunctionAdd(r, qx, minusQy, px, py, r2)
			ret = mulLine(ret, a, b, c)
			r = newR
		}
	}

	q1x := fp2Mul(fp2Conj(qx), xiToPMinus1Over3Twist)
	q1y := fp2Mul(fp2Conj(qy), xiToPMinus1Over2Twist)

	r2 = fp2Sqr(q1y)
	a, b, c, newR := lineFunctionAdd(r, q1x, q1y, px, py, r2)
	ret = mulLine(ret, a, b, c)
	r = newR

	minusQ2x := fp2MulScalar(qx, xiToPSqMinus1Over3)
	minusQ2y := newFp2(qy.a0, qy.a1)

	r2 = fp2Sqr(minusQ2y)
	a, b, c, _ = lineFunctionAdd(r, minusQ2x, minusQ2y, px, py, r2)
	ret = mulLine(ret, a, b, c)

	return ret
}

func finalExp(f *fp12) *fp12 {
	fInv := fp12Inv(f)
	f1 := fp12Mul(fp12Conj(f), fInv)
	f2 := fp12Mul(fp12FrobSq(f1), f1)
	return finalExpHard(f2)
}

func finalExpHard(f *fp12) *fp12 {
	fu := fp12Exp(f, bn254U)
	fu2 := fp12Exp(fu, bn254U)
	fu3 := fp12Exp(fu2, bn254U)

	fp1 := fp12Frob(f)
	fp2_ := fp12FrobSq(f)
	fp3 := fp12Frob3(f)

	fup := fp12Frob(fu)
	fu2p := fp12Frob(fu2)
	fu3p := fp12Frob(fu3)
	fu2p2 := fp12FrobSq(fu2)

	y0 := fp12Mul(fp12Mul(fp1, fp2_), fp3)
	y1 := fp12Conj(f)
	y2 := fu2p2
	y3 := fp12Conj(fup)
	y4 := fp12Mul(fp12Conj(fu), fp12Conj(fu2p))
	y5 := fp12Conj(fu2)
	y6 := fp12Conj(fp12Mul(fu3, fu3p))

	t0 := fp12Mul(fp12Mul(fp12Sqr(y6), y4), y5)
	t1 := fp12Mul(fp12Mul(y3, y5), t0)
	t0 = fp12Mul(t0, y2)
	t1 = fp12Mul(fp12Sqr(t1), t0)
	t1 = fp12Sqr(t1)
	t0 = fp12Mul(t1, y1)
	t1 = fp12Mul(t1, y0)
	t0 = fp12Mul(fp12Sqr(t0), t1)
	return t0
}

func bn254MultiPairing(g1Points []*g1Point, g2Points []*g2Point) bool {
	f := fp12One()
	for i := range g1Points {
		if g1Points[i].isInfinity() || g2Points[i].isInfinity() {
			continue
		}
		px, py := g1Points[i].toAffine()
		qx, qy := g2Points[i].toAffine()
		f = fp12Mul(f, millerLoop(px, py, qx, qy))
	}
	return finalExp(f).isOne()
}

// --- EIP-196 / EIP-197 precompile entry points ----------------------------

var (
	errBN256InvalidPoint  = errors.New("bn256: invalid point")
	errBN256InvalidG2     = errors.New("bn256: invalid twist point")
	errBN256InvalidLength = errors.New("bn256: invalid input length")
)

// BN256Add implements precompile 0x06: G1 point addition. Input is 128
// bytes (x1, y1, x2, y2), short input right-padded with zeros. Output is
// 64 bytes (x3, y3).
func BN256Add(input []byte) ([]byte, error) {
	input = bn256PadRight(input, 128)

	x1 := new(big.Int).SetBytes(input[0:32])
	y1 := new(big.Int).SetBytes(input[32:64])
	x2 := new(big.Int).SetBytes(input[64:96])
	y2 := new(big.Int).SetBytes(input[96:128])

	if !g1IsOnCurve(x1, y1) || !g1IsOnCurve(x2, y2) {
		return nil, errBN256InvalidPoint
	}
	r := g1Add(g1FromAffine(x1, y1), g1FromAffine(x2, y2))
	rx, ry := r.toAffine()
	return bn256EncodeG1(rx, ry), nil
}

// BN256ScalarMul implements precompile 0x07: G1 scalar multiplication.
// Input is 96 bytes (x, y, s), short input right-padded with zeros.
func BN256ScalarMul(input []byte) ([]byte, error) {
	input = bn256PadRight(input, 96)

	x := new(big.Int).SetBytes(input[0:32])
	y := new(big.Int).SetBytes(input[32:64])
	s := new(big.Int).SetBytes(input[64:96])

	if !g1IsOnCurve(x, y) {
		return nil, errBN256InvalidPoint
	}
	r := g1ScalarMul(g1FromAffine(x, y), s)
	rx, ry := r.toAffine()
	return bn256EncodeG1(rx, ry), nil
}

// BN256Pairing implements precompile 0x08: the multi-pairing check. Input
// is a sequence of 192-byte chunks, each (G1_x, G1_y, G2_x_im, G2_x_re,
// G2_y_im, G2_y_re). Output is 32 bytes: 1 if the product of pairings is
// the identity in G_T, 0 otherwise.
func BN256Pairing(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, errBN256InvalidLength
	}
	k := len(input) / 192
	if k == 0 {
		return bn256PairingResult(true), nil
	}

	g1Points := make([]*g1Point, k)
	g2Points := make([]*g2Point, k)

	for i := 0; i < k; i++ {
		off := i * 192

		g1x := new(big.Int).SetBytes(input[off : off+32])
		g1y := new(big.Int).SetBytes(input[off+32 : off+64])
		if !g1IsOnCurve(g1x, g1y) {
			return nil, errBN256InvalidPoint
		}
		g1Points[i] = g1FromAffine(g1x, g1y)

		g2xIm := new(big.Int).SetBytes(input[off+64 : off+96])
		g2xRe := new(big.Int).SetBytes(input[off+96 : off+128])
		g2yIm := new(big.Int).SetBytes(input[off+128 : off+160])
		g2yRe := new(big.Int).SetBytes(input[off+160 : off+192])

		if g2xIm.Cmp(bn254P) >= 0 || g2xRe.Cmp(bn254P) >= 0 || g2yIm.Cmp(bn254P) >= 0 || g2yRe.Cmp(bn254P) >= 0 {
			return nil, errBN256InvalidG2
		}

		g2x := &fp2{a0: g2xRe, a1: g2xIm}
		g2y := &fp2{a0: g2yRe, a1: g2yIm}
		if g2x.isZero() && g2y.isZero() {
			g2Points[i] = g2Infinity()
			continue
		}
		if !g2IsOnCurve(g2x, g2y) {
			return nil, errBN256InvalidG2
		}
		g2Points[i] = g2FromAffine(g2x, g2y)
	}

	return bn256PairingResult(bn254MultiPairing(g1Points, g2Points)), nil
}

func bn256EncodeG1(x, y *big.Int) []byte {
	out := make([]byte, 64)
	xb, yb := x.Bytes(), y.Bytes()
	copy(out[32-len(xb):32], xb)
	copy(out[64-len(yb):64], yb)
	return out
}

func bn256PairingResult(ok bool) []byte {
	out := make([]byte, 32)
	if ok {
		out[31] = 1
	}
	return out
}

func bn256PadRight(data []byte, minLen int) []byte {
	if len(data) >= minLen {
		return data[:minLen]
	}
	padded := make([]byte, minLen)
	copy(padded, data)
	return padded
}
