// Package label provides the hierarchical identifier shared by every node of a
// regulation tree.
package label

import (
	"encoding/json"
	"strings"
)

// Interpretations is the label part that marks the official interpretations
// subtree of a part.
const Interpretations = "Interpretations"

// separator joins label parts in a Key.
const separator = "-"

// Label is an ordered sequence of label parts, root first. The last part is
// the node's local identifier within its parent.
type Label struct {
	Parts []string
}

// New creates a Label from the given parts. The parts are copied.
func New(parts ...string) Label {
	copied := make([]string, len(parts))
	copy(copied, parts)
	return Label{Parts: copied}
}

// Parse splits a Key such as "1005-2-a" back into a Label.
func Parse(key string) Label {
	if key == "" {
		return Label{Parts: []string{}}
	}
	return Label{Parts: strings.Split(key, separator)}
}

// Len returns the number of parts.
func (l Label) Len() int {
	return len(l.Parts)
}

// IsEmpty reports whether the label has no parts.
func (l Label) IsEmpty() bool {
	return len(l.Parts) == 0
}

// Last returns the local identifier, or "" for an empty label.
func (l Label) Last() string {
	if len(l.Parts) == 0 {
		return ""
	}
	return l.Parts[len(l.Parts)-1]
}

// Key returns the dash-joined form used to key layer output, e.g. "1005-2-a".
func (l Label) Key() string {
	return strings.Join(l.Parts, separator)
}

// String implements fmt.Stringer.
func (l Label) String() string {
	return l.Key()
}

// Equal compares two labels part-wise.
func (l Label) Equal(other Label) bool {
	if len(l.Parts) != len(other.Parts) {
		return false
	}
	for i := range l.Parts {
		if l.Parts[i] != other.Parts[i] {
			return false
		}
	}
	return true
}

// HasPart reports whether part appears anywhere in the label.
func (l Label) HasPart(part string) bool {
	for _, p := range l.Parts {
		if p == part {
			return true
		}
	}
	return false
}

// IsInterpretation reports whether the label sits inside an interpretations
// subtree.
func (l Label) IsInterpretation() bool {
	return l.HasPart(Interpretations)
}

// Extend returns a new label with the given parts appended.
func (l Label) Extend(parts ...string) Label {
	out := make([]string, 0, len(l.Parts)+len(parts))
	out = append(out, l.Parts...)
	out = append(out, parts...)
	return Label{Parts: out}
}

// Prepend returns a new label with prefix placed before the existing parts.
func (l Label) Prepend(prefix Label) Label {
	return prefix.Extend(l.Parts...)
}

// Parent returns the label with its last part removed.
func (l Label) Parent() Label {
	if len(l.Parts) == 0 {
		return Label{Parts: []string{}}
	}
	return New(l.Parts[:len(l.Parts)-1]...)
}

// HasPrefix reports whether prefix is a (possibly equal) prefix of l.
func (l Label) HasPrefix(prefix Label) bool {
	if len(prefix.Parts) > len(l.Parts) {
		return false
	}
	for i := range prefix.Parts {
		if l.Parts[i] != prefix.Parts[i] {
			return false
		}
	}
	return true
}

// IsChildOf reports whether l extends parent by exactly one part.
func (l Label) IsChildOf(parent Label) bool {
	return len(l.Parts) == len(parent.Parts)+1 && l.HasPrefix(parent)
}

// MarshalJSON encodes the label as a plain array of parts.
func (l Label) MarshalJSON() ([]byte, error) {
	parts := l.Parts
	if parts == nil {
		parts = []string{}
	}
	return json.Marshal(parts)
}

// UnmarshalJSON decodes a plain array of parts.
func (l *Label) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if parts == nil {
		parts = []string{}
	}
	l.Parts = parts
	return nil
}
