package tt800

import "encoding/binary"

// Uint32 returns the next word. Same as NextWord.
func (g *Generator) Uint32() uint32 {
	return g.NextWord()
}

// Int31 returns a non-negative int32. Same as NextInt31.
func (g *Generator) Int31() int32 {
	return g.NextInt31()
}

// Float64 returns a float64 in [0.0, 1.0). Same as NextFloat.
func (g *Generator) Float64() float64 {
	return g.NextFloat()
}

// Uint64 joins two words, the first one drawn being the high half.
func (g *Generator) Uint64() uint64 {
	return (uint64(g.NextWord()) << 32) | uint64(g.NextWord())
}

// Int63 returns a non-negative int64.
func (g *Generator) Int63() int64 {
	return int64(g.Uint64() << 1 >> 1)
}

// Int returns a non-negative int.
func (g *Generator) Int() int {
	return int(uint(g.Uint64()) << 1 >> 1)
}

// Read fills p with little-endian words. Bytes of the last word that do not
// fit in p are discarded. It always returns len(p), nil.
func (g *Generator) Read(p []byte) (n int, err error) {
	n = len(p)
	for len(p) >= 4 {
		binary.LittleEndian.PutUint32(p, g.NextWord())
		p = p[4:]
	}
	if len(p) > 0 {
		var last [4]byte
		binary.LittleEndian.PutUint32(last[:], g.NextWord())
		copy(p, last[:])
	}
	return n, nil
}
