package rating

import "testing"

func TestDecisiveEqualRatings(t *testing.T) {
	w, l := Decisive(1200, 1200)
	if w != 16 || l != -16 {
		t.Fatalf("equal ratings: got (%d,%d), want (16,-16)", w, l)
	}
}

func TestDecisiveFavoriteWins(t *testing.T) {
	w, l := Decisive(1400, 1200)
	// expected(1400,1200) ≈ 0.7597 → winner +8, loser -8
	if w != 8 || l != -8 {
		t.Fatalf("favorite wins: got (%d,%d), want (8,-8)", w, l)
	}
}

func TestDecisiveUpset(t *testing.T) {
	w, l := Decisive(1200, 1400)
	if w != 24 || l != -24 {
		t.Fatalf("upset: got (%d,%d), want (24,-24)", w, l)
	}
}

func TestDecisiveIndependentRounding(t *testing.T) {
	// each side's expectation is rounded on its own; deltas stay opposite
	// in sign but may differ in magnitude for some rating gaps
	for _, tc := range [][2]int{{1200, 1210}, {1000, 1830}, {1550, 1400}} {
		w, l := Decisive(tc[0], tc[1])
		if w < 0 || l > 0 {
			t.Fatalf("Decisive(%d,%d) signs wrong: (%d,%d)", tc[0], tc[1], w, l)
		}
		if w > K || -l > K {
			t.Fatalf("Decisive(%d,%d) exceeds K: (%d,%d)", tc[0], tc[1], w, l)
		}
	}
}

func TestDrawEqualRatings(t *testing.T) {
	a, b := Draw(1200, 1200)
	if a != 0 || b != 0 {
		t.Fatalf("equal draw: got (%d,%d), want (0,0)", a, b)
	}
}

func TestDrawUnequalRatings(t *testing.T) {
	// weaker first player gains on a draw, by exact negation on the other side
	a, b := Draw(1200, 1400)
	if a <= 0 {
		t.Fatalf("weaker player should gain on draw, got %d", a)
	}
	if b != -a {
		t.Fatalf("draw deltas must be exact negations: (%d,%d)", a, b)
	}

	// stronger first player loses points
	a2, b2 := Draw(1400, 1200)
	if a2 >= 0 || b2 != -a2 {
		t.Fatalf("stronger player draw: got (%d,%d)", a2, b2)
	}
}

func TestExpectedBounds(t *testing.T) {
	if e := Expected(1200, 1200); e != 0.5 {
		t.Fatalf("Expected(1200,1200) = %v, want 0.5", e)
	}
	if e := Expected(2400, 1200); e <= 0.5 || e >= 1 {
		t.Fatalf("Expected(2400,1200) = %v out of range", e)
	}
}
