// Package tt800 implements the TT800 twisted generalized feedback shift
// register (TGFSR) pseudo random number generator.
//
// A Generator is a small fixed-size state machine owned by the caller. Given
// the same seed and the same sequence of calls it produces the same words,
// bit for bit, on every platform. It is not safe for concurrent use and it is
// not suitable for anything security sensitive.
package tt800

// Algorithm parameters
const (
	N = 25 // state size in words
	M = 7  // feedback distance

	temperS = 7
	temperT = 15

	magicA   = 0x8ebfd028
	temperB  = 0x2b5b2500
	temperC  = 0xdb8b0000
	invWords = 1.0 / (1 << 32) // 2^-32

	seedMul = 1313
	seedAdd = 88897
)

// DefaultSeed is applied when a value is drawn from a generator that was
// never seeded.
const DefaultSeed uint32 = 1

var magic = [2]uint32{0, magicA}

// Generator is a TT800 generator. The zero value is an unseeded generator;
// the first draw from it seeds it with DefaultSeed.
type Generator struct {
	state  State
	seeded bool
}

// New returns a generator seeded with seed.
func New(seed uint32) *Generator {
	g := new(Generator)
	g.Seed(seed)
	return g
}

// Seed fills the register array from seed using a short linear congruential
// series. The cursor is parked on the last word so that the very next draw
// runs a full twist.
func (g *Generator) Seed(seed uint32) {
	for i := 0; i < N; i++ {
		g.state.Words[i] = seed
		seed = seed*seedMul + seedAdd
	}
	g.state.Cursor = N - 1
	g.seeded = true
}

// Seeded reports whether the generator has been seeded or had a state set.
func (g *Generator) Seeded() bool {
	return g.seeded
}

// twist regenerates all N words in one pass.
func (g *Generator) twist() {
	x := &g.state.Words
	i := 0
	for ; i < N-M; i++ {
		x[i] = x[i+M] ^ (x[i] >> 1) ^ magic[x[i]&1]
	}
	for ; i < N; i++ {
		x[i] = x[i+M-N] ^ (x[i] >> 1) ^ magic[x[i]&1]
	}
}

// NextWord returns the next tempered 32-bit word, in [0, 2^32).
func (g *Generator) NextWord() uint32 {
	if !g.seeded {
		g.Seed(DefaultSeed)
	}
	g.state.Cursor++
	if g.state.Cursor < 0 || g.state.Cursor >= N {
		g.twist()
		g.state.Cursor = 0
	}
	w := g.state.Words[g.state.Cursor]
	y := w ^ ((w << temperS) & temperB)
	y ^= (y << temperT) & temperC
	return y
}

// NextInt31 returns a non-negative int32, in [0, 2^31).
func (g *Generator) NextInt31() int32 {
	return int32(g.NextWord() & 0x7fffffff)
}

// NextFloat returns a float64 in [0.0, 1.0).
//
// The product is exact in a float64. Narrowing the result to a type with
// fewer than 32 bits of mantissa may round it up to 1.0.
func (g *Generator) NextFloat() float64 {
	return float64(g.NextWord()) * invWords
}

// GetState returns a copy of the register array and cursor.
func (g *Generator) GetState() State {
	return g.state
}

// SetState replaces the register array and cursor verbatim and marks the
// generator as seeded. The state is not validated; it should come from
// GetState or UnmarshalBinary. A cursor outside 0..N-1 makes the next draw
// run a full twist.
func (g *Generator) SetState(s State) {
	g.state = s
	g.seeded = true
}

// Dump renders the cursor and the register array for debugging.
func (g *Generator) Dump() string {
	return g.state.String()
}
