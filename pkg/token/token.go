// Package token pairs grammar matches with the source offsets they were
// matched at, so later stages can locate text back in the source.
package token

import (
	"fmt"
)

// Wrapped carries a grammar result together with its half-open [Start, End)
// source range.
type Wrapped[T any] struct {
	Tokens T   `json:"tokens"`
	Start  int `json:"start"`
	End    int `json:"end"`
}

// Wrap pairs tokens with the source range of matched, which must occur in
// source at location. End is the offset immediately past the last matched
// character.
func Wrap[T any](source string, location int, matched string, tokens T) (Wrapped[T], error) {
	end := location + len(matched)
	if location < 0 || end > len(source) {
		return Wrapped[T]{}, fmt.Errorf("match %q at %d out of range for source of length %d", matched, location, len(source))
	}
	if source[location:end] != matched {
		return Wrapped[T]{}, fmt.Errorf("match %q not found at offset %d", matched, location)
	}
	return Wrapped[T]{Tokens: tokens, Start: location, End: end}, nil
}

// At builds a Wrapped from an already known range without consulting the
// source.
func At[T any](tokens T, start, end int) Wrapped[T] {
	return Wrapped[T]{Tokens: tokens, Start: start, End: end}
}

// Pos returns the (start, end) pair.
func (w Wrapped[T]) Pos() (int, int) {
	return w.Start, w.End
}

// Len returns the number of source bytes covered.
func (w Wrapped[T]) Len() int {
	return w.End - w.Start
}

// Text returns the covered slice of source.
func (w Wrapped[T]) Text(source string) string {
	if w.Validate(len(source)) != nil {
		return ""
	}
	return source[w.Start:w.End]
}

// Validate checks 0 <= Start <= End <= sourceLen.
func (w Wrapped[T]) Validate(sourceLen int) error {
	if w.Start < 0 || w.Start > w.End || w.End > sourceLen {
		return fmt.Errorf("invalid range [%d, %d) for source of length %d", w.Start, w.End, sourceLen)
	}
	return nil
}

// Span is a range with no tokens attached, used where only the location
// matters.
type Span = Wrapped[struct{}]

// NewSpan returns a Span covering [start, end).
func NewSpan(start, end int) Span {
	return At(struct{}{}, start, end)
}
