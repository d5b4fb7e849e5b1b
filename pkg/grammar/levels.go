package grammar

import (
	"regexp"
	"strconv"
	"strings"
)

// Level is a marker sequence: (a), (1), (i), (A).
type Level int

const (
	LevelLower Level = iota // a ... z, aa ... zz
	LevelDigit              // 1, 2, 3
	LevelRoman              // i, ii, iii
	LevelUpper              // A ... Z
)

// Levels lists the sequences in nesting order for regulation text.
var Levels = []Level{LevelLower, LevelDigit, LevelRoman, LevelUpper}

func (l Level) String() string {
	switch l {
	case LevelLower:
		return "lower"
	case LevelDigit:
		return "digit"
	case LevelRoman:
		return "roman"
	case LevelUpper:
		return "upper"
	}
	return "unknown"
}

var lowerRomanPattern = regexp.MustCompile(`^m{0,3}(cm|cd|d?c{0,3})(xc|xl|l?x{0,3})(ix|iv|v?i{0,3})$`)

// Index returns the zero-based position of value in the level's sequence, or
// -1 when value does not belong to it.
func Index(level Level, value string) int {
	if value == "" {
		return -1
	}
	switch level {
	case LevelLower:
		return letterIndex(value, 'a')
	case LevelUpper:
		return letterIndex(value, 'A')
	case LevelDigit:
		if value[0] == '0' {
			return -1
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return -1
		}
		return n - 1
	case LevelRoman:
		if !lowerRomanPattern.MatchString(value) {
			return -1
		}
		return romanValue(value) - 1
	}
	return -1
}

// Classify returns every level value belongs to, in nesting order.
func Classify(value string) []Level {
	var levels []Level
	for _, level := range Levels {
		if Index(level, value) >= 0 {
			levels = append(levels, level)
		}
	}
	return levels
}

// letterIndex maps a..z to 0..25 and doubled letters aa..zz to 26..51.
func letterIndex(value string, base byte) int {
	c := value[0]
	if c < base || c > base+25 {
		return -1
	}
	if strings.Count(value, string(c)) != len(value) || len(value) > 2 {
		return -1
	}
	return int(c-base) + 26*(len(value)-1)
}

func romanValue(value string) int {
	values := map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	total := 0
	for i := 0; i < len(value); i++ {
		v := values[value[i]]
		if i+1 < len(value) && values[value[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

type pathEntry struct {
	level Level
	index int
}

// Tracker infers the depth of successive paragraph markers within one
// section. Depth 0 is a direct child of the section.
type Tracker struct {
	path []pathEntry
}

// NewTracker returns a tracker with an empty path.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Depth returns the depth of the most recent marker, or -1.
func (t *Tracker) Depth() int {
	return len(t.path) - 1
}

// Reset clears the path, e.g. at a new section.
func (t *Tracker) Reset() {
	t.path = t.path[:0]
}

// Next places value and returns its depth. The rules, in order: continue the
// sequence at the deepest level; open a new level when value is the first
// marker of a level not already on the path; continue the sequence at a
// shallower level. ok is false when none applies and the path is unchanged.
func (t *Tracker) Next(value string) (depth int, ok bool) {
	candidates := Classify(value)
	if len(candidates) == 0 {
		return -1, false
	}

	deepest := len(t.path) - 1
	if deepest >= 0 && t.continues(deepest, value) {
		t.path[deepest].index++
		return deepest, true
	}

	for _, level := range candidates {
		if Index(level, value) == 0 && !t.onPath(level) {
			t.path = append(t.path, pathEntry{level: level, index: 0})
			return len(t.path) - 1, true
		}
	}

	for d := deepest - 1; d >= 0; d-- {
		if t.continues(d, value) {
			t.path = t.path[:d+1]
			t.path[d].index++
			return d, true
		}
	}

	return -1, false
}

// NextAhead places value like Next, resolving the one case Next cannot: a
// value such as "i" that would open a roman level under the deepest marker
// but also continues a shallower letter level, as in (h)(1), (2), (i).
// following is called only then and returns the marker after value, or "".
// A following "ii" keeps the roman reading; anything else continues the
// letters.
func (t *Tracker) NextAhead(value string, following func() string) (depth int, ok bool) {
	if d := t.letterContinuation(value); d >= 0 && following != nil {
		if Index(LevelRoman, following()) != 1 {
			t.path = t.path[:d+1]
			t.path[d].index++
			return d, true
		}
	}
	return t.Next(value)
}

// letterContinuation returns the depth of the shallower letter level value
// continues when value is also the first marker of a roman level that Next
// would open, or -1.
func (t *Tracker) letterContinuation(value string) int {
	deepest := len(t.path) - 1
	if deepest < 1 || Index(LevelRoman, value) != 0 || t.onPath(LevelRoman) || t.continues(deepest, value) {
		return -1
	}
	for d := deepest - 1; d >= 0; d-- {
		if t.path[d].level == LevelLower && t.continues(d, value) {
			return d
		}
	}
	return -1
}

func (t *Tracker) continues(depth int, value string) bool {
	entry := t.path[depth]
	return Index(entry.level, value) == entry.index+1
}

func (t *Tracker) onPath(level Level) bool {
	for _, entry := range t.path {
		if entry.level == level {
			return true
		}
	}
	return false
}

// CommentDepth returns the nesting depth of an interpretation comment
// marker: 1. at 0, i. at 1, A. at 2.
func CommentDepth(value string) (int, bool) {
	switch {
	case Index(LevelDigit, value) >= 0:
		return 0, true
	case Index(LevelRoman, value) >= 0:
		return 1, true
	case Index(LevelUpper, value) >= 0:
		return 2, true
	}
	return -1, false
}
