package app

import (
	"strconv"

	"github.com/moontrade/tt800/tt800"
	"github.com/tidwall/redcon"
)

// MaxDrawCount limits the count argument of URAND, RAND and DRAND.
const MaxDrawCount = 1000000

// parseSeed accepts any integer in the uint32 range, or a negative int32
// which is reinterpreted as its two's complement word.
func parseSeed(s string) (uint32, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, ErrInvalidSeed
	}
	return uint32(int32(n)), nil
}

func parseCount(args []string) (count int, multi bool, err error) {
	switch len(args) {
	case 1:
		return 1, false, nil
	case 2:
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > MaxDrawCount {
			return 0, false, ErrInvalidCount
		}
		return n, true, nil
	default:
		return 0, false, ErrWrongNumArgs
	}
}

// draw runs next count times on the cluster generator. A draw without a
// count argument is returned as a scalar, otherwise as an array.
func (m *machine) draw(args []string, next func(g *tt800.Generator) interface{},
) (interface{}, error) {
	count, multi, err := parseCount(args)
	if err != nil {
		return nil, err
	}
	m.draws += uint64(count)
	if !multi {
		return next(&m.gen), nil
	}
	vals := make([]interface{}, count)
	for i := range vals {
		vals[i] = next(&m.gen)
	}
	return vals, nil
}

// SEED seed
// help: reseeds the cluster generator. The seed is any 32-bit integer.
func cmdSEED(m *machine, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, ErrWrongNumArgs
	}
	seed, err := parseSeed(args[1])
	if err != nil {
		return nil, err
	}
	m.gen.Seed(seed)
	m.lastSeed = seed
	return redcon.SimpleString("OK"), nil
}

// URAND [count]
// help: draws unsigned 32-bit words; int or []int
func cmdURAND(m *machine, args []string) (interface{}, error) {
	return m.draw(args, func(g *tt800.Generator) interface{} {
		return redcon.SimpleInt(g.NextWord())
	})
}

// RAND [count]
// help: draws non-negative 31-bit integers; int or []int
func cmdRAND(m *machine, args []string) (interface{}, error) {
	return m.draw(args, func(g *tt800.Generator) interface{} {
		return redcon.SimpleInt(g.NextInt31())
	})
}

// DRAND [count]
// help: draws floats in [0, 1) formatted as the shortest decimal that
//       round-trips; string or []string
func cmdDRAND(m *machine, args []string) (interface{}, error) {
	return m.draw(args, func(g *tt800.Generator) interface{} {
		return strconv.FormatFloat(g.NextFloat(), 'g', -1, 64)
	})
}

// GETSTATE
// help: returns the generator state as {"cursor":n,"words":[...]}; string
func cmdGETSTATE(m *machine, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, ErrWrongNumArgs
	}
	data, err := m.gen.GetState().MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// SETSTATE json
// help: replaces the generator state with one returned by GETSTATE
func cmdSETSTATE(m *machine, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, ErrWrongNumArgs
	}
	var st tt800.State
	if err := st.UnmarshalJSON([]byte(args[1])); err != nil {
		return nil, err
	}
	m.gen.SetState(st)
	return redcon.SimpleString("OK"), nil
}

// DUMPSTATE
// help: returns the cursor and register words in hex; string
func cmdDUMPSTATE(m *machine, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, ErrWrongNumArgs
	}
	return m.gen.Dump(), nil
}
