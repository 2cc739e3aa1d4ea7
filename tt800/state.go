package tt800

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

// StateSize is the size of a binary encoded State: N words followed by the
// cursor, all little-endian uint32.
const StateSize = (N + 1) * 4

// State is a snapshot of a generator.
type State struct {
	Words  [N]uint32 // register array
	Cursor int      // index of the last word drawn
}

// String renders the cursor on its own line followed by every word as eight
// hex digits. Zero words keep the 0x prefix.
func (s State) String() string {
	var sb strings.Builder
	sb.Grow(24 + N*11)
	sb.WriteString("counter: ")
	sb.WriteString(strconv.Itoa(s.Cursor))
	sb.WriteString("\nseeds:")
	for _, w := range s.Words {
		fmt.Fprintf(&sb, " 0x%08x", w)
	}
	sb.WriteByte('\n')
	return sb.String()
}

// MarshalBinary encodes the words followed by the cursor.
func (s State) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, StateSize)), nil
}

// AppendBinary appends the binary encoding of s to dst.
func (s State) AppendBinary(dst []byte) []byte {
	var b [4]byte
	for _, w := range s.Words {
		binary.LittleEndian.PutUint32(b[:], w)
		dst = append(dst, b[:]...)
	}
	binary.LittleEndian.PutUint32(b[:], uint32(s.Cursor))
	return append(dst, b[:]...)
}

// UnmarshalBinary decodes a state produced by MarshalBinary.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != StateSize {
		return ErrStateSize
	}
	var st State
	for i := range st.Words {
		st.Words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	cursor := binary.LittleEndian.Uint32(data[N*4:])
	if cursor >= N {
		return ErrCursorRange
	}
	st.Cursor = int(cursor)
	*s = st
	return nil
}

// MarshalEasyJSON writes {"cursor":c,"words":[...]}.
func (s State) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"cursor":`)
	w.Int(s.Cursor)
	w.RawString(`,"words":[`)
	for i, x := range s.Words {
		if i > 0 {
			w.RawByte(',')
		}
		w.Uint32(x)
	}
	w.RawString(`]}`)
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	s.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// UnmarshalJSON implements json.Unmarshaler. The document must hold exactly
// N unsigned 32-bit words and a cursor in 0..N-1.
func (s *State) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: malformed json", ErrInvalidState)
	}
	doc := gjson.ParseBytes(data)
	cursor := doc.Get("cursor")
	if cursor.Type != gjson.Number {
		return fmt.Errorf("%w: missing cursor", ErrInvalidState)
	}
	words := doc.Get("words")
	if !words.IsArray() {
		return fmt.Errorf("%w: missing words", ErrInvalidState)
	}
	arr := words.Array()
	if len(arr) != N {
		return fmt.Errorf("%w: want %d words, got %d",
			ErrInvalidState, N, len(arr))
	}
	var st State
	for i, w := range arr {
		if !isUint32(w) {
			return fmt.Errorf("%w: word %d is not a uint32: %s",
				ErrInvalidState, i, w.Raw)
		}
		st.Words[i] = uint32(w.Uint())
	}
	if !isUint32(cursor) || cursor.Uint() >= N {
		return ErrCursorRange
	}
	st.Cursor = int(cursor.Uint())
	*s = st
	return nil
}

func isUint32(r gjson.Result) bool {
	return r.Type == gjson.Number && r.Num >= 0 && r.Num <= math.MaxUint32 &&
		r.Num == math.Trunc(r.Num)
}
