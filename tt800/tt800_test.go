package tt800

import (
	"testing"
)

func TestSeedOneGolden(t *testing.T) {
	if w := New(1).NextWord(); w != 3630909024 {
		t.Fatalf("expected 3630909024, got %d", w)
	}
	if v := New(1).NextInt31(); v != 1483425376 {
		t.Fatalf("expected 1483425376, got %d", v)
	}
	if f := New(1).NextFloat(); f != 0.8453868851065636 {
		t.Fatalf("expected 0.8453868851065636, got %v", f)
	}

	// same draws as the reference harness: word, int, float
	g := New(1)
	if w := g.NextWord(); w != 3630909024 {
		t.Fatalf("expected 3630909024, got %d", w)
	}
	if v := g.NextInt31(); v != 1696528056 {
		t.Fatalf("expected 1696528056, got %d", v)
	}
	if f := g.NextFloat(); f != 0.8699046492110938 {
		t.Fatalf("expected 0.8699046492110938, got %v", f)
	}
}

func TestSequence(t *testing.T) {
	tests := []struct {
		seed     uint32
		expected []uint32
	}{
		{1, []uint32{
			3630909024, 3844011704, 3736212019, 1046470185, 4142910214,
			597328222, 2363497749, 3050960267, 2101154492, 1752768740,
			4289456495, 252092917, 1629594074, 763766274, 4053736905,
			3673520863, 462648312, 1114935328, 2687559473, 3826474610,
			2792498609, 3131663666, 2998512693, 4256773618, 2415207153,
			536135355, 4199075808, 2724198741, 1557090387, 214124022,
		}},
		{0, []uint32{2022858599, 2166805504, 4139313176, 2119573651, 1865699401}},
		{42, []uint32{
			365398340, 824586191, 2577895957, 2322601850, 1258308834,
			4096634793, 3145917311, 3064247576, 2252462592, 549232011,
		}},
	}
	for _, tt := range tests {
		g := New(tt.seed)
		received := make([]uint32, len(tt.expected))
		for i := range received {
			received[i] = g.NextWord()
		}
		for i := range tt.expected {
			if tt.expected[i] != received[i] {
				t.Fatalf("seed %d, wrong sequence:\nexpected %v,\nreceived %v",
					tt.seed, tt.expected, received)
			}
		}
	}
}

func TestDeterminism(t *testing.T) {
	for _, seed := range []uint32{0, 1, 7, 0xdeadbeef, 0xffffffff} {
		a, b := New(seed), New(seed)
		for i := 0; i < 10000; i++ {
			if x, y := a.NextWord(), b.NextWord(); x != y {
				t.Fatalf("seed %d draw %d: %d != %d", seed, i, x, y)
			}
		}
	}
}

func TestSeedExpansion(t *testing.T) {
	for _, seed := range []uint32{0, 1, 0x80000000, 0xffffffff} {
		g := New(seed)
		st := g.GetState()
		if st.Cursor != N-1 {
			t.Fatalf("expected cursor %d, got %d", N-1, st.Cursor)
		}
		s := seed
		for i := 0; i < N; i++ {
			if st.Words[i] != s {
				t.Fatalf("seed %d word %d: expected %#x, got %#x",
					seed, i, s, st.Words[i])
			}
			s = s*1313 + 88897
		}
	}
	st := New(1).GetState()
	if st.Words[1] != 0x16062 || st.Words[24] != 0x38479f99 {
		t.Fatalf("unexpected expansion %#x %#x", st.Words[1], st.Words[24])
	}
}

func TestFirstCycleDistinct(t *testing.T) {
	g := New(1)
	initial := g.GetState().Words
	seen := make(map[uint32]bool)
	for i := 0; i < N; i++ {
		w := g.NextWord()
		if seen[w] {
			t.Fatalf("draw %d repeats word %#x", i+1, w)
		}
		seen[w] = true
	}
	if g.GetState().Words == initial {
		t.Fatal("twist left the register array unchanged")
	}
}

func TestTwistCadence(t *testing.T) {
	g := New(99)
	prev := g.GetState().Words
	for draw := 1; draw <= 5*N+3; draw++ {
		g.NextWord()
		cur := g.GetState()
		changed := cur.Words != prev
		expected := draw%N == 1
		if changed != expected {
			t.Fatalf("draw %d: words changed=%v, expected %v",
				draw, changed, expected)
		}
		if cur.Cursor != (draw-1)%N {
			t.Fatalf("draw %d: expected cursor %d, got %d",
				draw, (draw-1)%N, cur.Cursor)
		}
		prev = cur.Words
	}
}

func TestRoundTrip(t *testing.T) {
	a, b := New(2021), New(2021)
	for i := 0; i < 37; i++ {
		a.NextWord()
		b.NextWord()
	}
	b.SetState(b.GetState())
	for i := 0; i < 1000; i++ {
		if x, y := a.NextWord(), b.NextWord(); x != y {
			t.Fatalf("draw %d after round trip: %d != %d", i, x, y)
		}
	}

	// restore into a fresh generator
	st := a.GetState()
	c := new(Generator)
	c.SetState(st)
	if !c.Seeded() {
		t.Fatal("expected SetState to mark the generator seeded")
	}
	for i := 0; i < 100; i++ {
		if x, y := a.NextWord(), c.NextWord(); x != y {
			t.Fatalf("draw %d after restore: %d != %d", i, x, y)
		}
	}
}

func TestSetStateCursorOutOfRange(t *testing.T) {
	base := New(9).GetState()
	expected := New(9).NextWord()
	for _, cursor := range []int{-5, -1000, N, 1000} {
		st := base
		st.Cursor = cursor
		var g Generator
		g.SetState(st)
		if w := g.NextWord(); w != expected {
			t.Fatalf("cursor %d: expected %d, got %d", cursor, expected, w)
		}
		if c := g.GetState().Cursor; c != 0 {
			t.Fatalf("cursor %d: expected cursor 0 after twist, got %d",
				cursor, c)
		}
	}
}

func TestGetStateIsCopy(t *testing.T) {
	g := New(5)
	st := g.GetState()
	st.Words[0] ^= 0xffffffff
	st.Cursor = 3
	if g.GetState() == st {
		t.Fatal("mutating a snapshot changed the generator")
	}
}

func TestRangeBounds(t *testing.T) {
	for _, seed := range []uint32{1, 12345} {
		g := New(seed)
		for i := 0; i < 100000; i++ {
			if v := g.NextInt31(); v < 0 {
				t.Fatalf("NextInt31 out of range: %d", v)
			}
			if f := g.NextFloat(); f < 0 || f >= 1 {
				t.Fatalf("NextFloat out of range: %v", f)
			}
		}
	}
	if f := float64(uint32(0xffffffff)) * invWords; f >= 1 {
		t.Fatalf("largest word maps to %v", f)
	}
}

func TestUnseededUsesDefaultSeed(t *testing.T) {
	var g Generator
	if g.Seeded() {
		t.Fatal("zero generator should not be seeded")
	}
	if w := g.NextWord(); w != New(DefaultSeed).NextWord() {
		t.Fatalf("unexpected first word %d", w)
	}
	if !g.Seeded() {
		t.Fatal("expected generator to be seeded after a draw")
	}
}

func TestDerived(t *testing.T) {
	if v := New(1).Uint64(); v != 15594635516675290808 {
		t.Fatalf("expected 15594635516675290808, got %d", v)
	}
	if v := New(1).Int63(); v != 6371263479820515000 {
		t.Fatalf("expected 6371263479820515000, got %d", v)
	}
	if v := New(1).Int(); v < 0 {
		t.Fatalf("expected non-negative int, got %d", v)
	}
	p := make([]byte, 6)
	n, err := New(1).Read(p)
	if err != nil || n != 6 {
		t.Fatalf("read: %d %v", n, err)
	}
	expected := []byte{96, 70, 107, 216, 184, 246}
	for i := range expected {
		if p[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, p)
		}
	}
	// Read consumed two words
	g := New(1)
	g.Read(p)
	if w := g.NextWord(); w != 3736212019 {
		t.Fatalf("expected third word, got %d", w)
	}
}

func BenchmarkNextWord(b *testing.B) {
	g := New(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.NextWord()
	}
}

func BenchmarkNextFloat(b *testing.B) {
	g := New(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.NextFloat()
	}
}
