package layer

import (
	"testing"

	"github.com/coolbeans/regparser/pkg/tree"
)

func TestDefinedTermsProcess(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTerm  string
		wantLoc   int
		wantCount int
	}{
		{"term means", "(a) The term account means a demand deposit.", "account", 13, 1},
		{"quoted term", `(b) "Business day" means any day.`, "Business day", 5, 1},
		{"curly quotes", "(c) “Consumer” means a natural person.", "Consumer", 7, 1},
		{"no definition", "(d) Nothing to see here.", "", 0, 0},
	}

	layer := NewDefinedTerms()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := layer.Process(tree.NewNode(tt.text, "1005", "2", "a"))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("Process() = %+v, want %d annotations", got, tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Text != tt.wantTerm {
				t.Errorf("Text = %q, want %q", got[0].Text, tt.wantTerm)
			}
			if got[0].Locations[0] != tt.wantLoc {
				t.Errorf("Locations = %v, want [%d]", got[0].Locations, tt.wantLoc)
			}
		})
	}
}

func TestAppendLocation(t *testing.T) {
	locs := appendLocation(nil, 5)
	locs = appendLocation(locs, 1)
	locs = appendLocation(locs, 9)
	locs = appendLocation(locs, 5)

	want := []int{1, 5, 9}
	if len(locs) != len(want) {
		t.Fatalf("appendLocation() = %v, want %v", locs, want)
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("appendLocation() = %v, want %v", locs, want)
		}
	}
}
