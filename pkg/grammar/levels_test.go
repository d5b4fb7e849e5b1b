package grammar

import "testing"

func TestIndex(t *testing.T) {
	tests := []struct {
		level Level
		value string
		want  int
	}{
		{LevelLower, "a", 0},
		{LevelLower, "z", 25},
		{LevelLower, "aa", 26},
		{LevelLower, "ab", -1},
		{LevelLower, "A", -1},
		{LevelDigit, "1", 0},
		{LevelDigit, "12", 11},
		{LevelDigit, "0", -1},
		{LevelDigit, "01", -1},
		{LevelRoman, "i", 0},
		{LevelRoman, "iv", 3},
		{LevelRoman, "xii", 11},
		{LevelRoman, "iiii", -1},
		{LevelRoman, "a", -1},
		{LevelUpper, "A", 0},
		{LevelUpper, "C", 2},
		{LevelUpper, "a", -1},
	}

	for _, tt := range tests {
		if got := Index(tt.level, tt.value); got != tt.want {
			t.Errorf("Index(%s, %q) = %d, want %d", tt.level, tt.value, got, tt.want)
		}
	}
}

func TestClassifyAmbiguous(t *testing.T) {
	levels := Classify("i")
	if len(levels) != 2 || levels[0] != LevelLower || levels[1] != LevelRoman {
		t.Errorf("Classify(\"i\") = %v, want [lower roman]", levels)
	}
	if len(Classify("see")) != 0 {
		t.Error("Classify(\"see\") should be empty")
	}
}

func TestTrackerDepths(t *testing.T) {
	tests := []struct {
		name    string
		markers []string
		depths  []int
	}{
		{
			name:    "nested sequence",
			markers: []string{"a", "1", "i", "ii", "2", "b", "1", "A", "B", "c"},
			depths:  []int{0, 1, 2, 2, 1, 0, 1, 2, 2, 0},
		},
		{
			name:    "letter i after h",
			markers: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
			depths:  []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:    "roman i under digit",
			markers: []string{"a", "b", "c", "d", "e", "f", "g", "h", "1", "i", "ii"},
			depths:  []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 2},
		},
		{
			name:    "section starting with digits",
			markers: []string{"1", "2", "i"},
			depths:  []int{0, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker()
			for i, marker := range tt.markers {
				depth, ok := tracker.Next(marker)
				if !ok {
					t.Fatalf("Next(%q) not ok at step %d", marker, i)
				}
				if depth != tt.depths[i] {
					t.Errorf("Next(%q) at step %d = %d, want %d", marker, i, depth, tt.depths[i])
				}
			}
		})
	}
}

func TestTrackerNextAhead(t *testing.T) {
	lettersThroughH := []string{"a", "b", "c", "d", "e", "f", "g", "h", "1", "2"}

	tests := []struct {
		name      string
		following string
		want      int
	}{
		{"roman confirmed by ii", "ii", 2},
		{"letter before j", "j", 0},
		{"letter with nested digit", "1", 0},
		{"letter at end of section", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker()
			for _, marker := range lettersThroughH {
				if _, ok := tracker.Next(marker); !ok {
					t.Fatalf("Next(%q) not ok", marker)
				}
			}
			depth, ok := tracker.NextAhead("i", func() string { return tt.following })
			if !ok || depth != tt.want {
				t.Errorf("NextAhead(\"i\") = (%d, %v), want (%d, true)", depth, ok, tt.want)
			}
		})
	}
}

func TestTrackerNextAheadSkipsLookahead(t *testing.T) {
	tracker := NewTracker()
	tracker.Next("a")
	tracker.Next("1")

	called := false
	depth, ok := tracker.NextAhead("i", func() string {
		called = true
		return ""
	})
	if !ok || depth != 2 {
		t.Errorf("NextAhead(\"i\") = (%d, %v), want (2, true)", depth, ok)
	}
	if called {
		t.Error("lookahead consulted for an unambiguous marker")
	}
}

func TestTrackerRejectsOutOfSequence(t *testing.T) {
	tracker := NewTracker()
	if _, ok := tracker.Next("c"); ok {
		t.Error("Next(\"c\") on empty path should fail")
	}

	tracker.Next("a")
	tracker.Next("1")
	if _, ok := tracker.Next("a"); ok {
		t.Error("Next(\"a\") repeating a level should fail")
	}
	if tracker.Depth() != 1 {
		t.Errorf("Depth() = %d after rejected marker, want 1", tracker.Depth())
	}

	tracker.Reset()
	if tracker.Depth() != -1 {
		t.Errorf("Depth() = %d after Reset, want -1", tracker.Depth())
	}
}

func TestCommentDepth(t *testing.T) {
	tests := []struct {
		value string
		want  int
		ok    bool
	}{
		{"1", 0, true},
		{"ii", 1, true},
		{"B", 2, true},
		{"b", -1, false},
	}
	for _, tt := range tests {
		got, ok := CommentDepth(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CommentDepth(%q) = (%d, %v), want (%d, %v)", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}
