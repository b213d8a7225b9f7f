package dynamo

import (
	"math"
	"testing"
)

func TestMinMax(t *testing.T) {
	lo, hi := State{3, -1, 7, 2}.MinMax()
	if lo != -1 || hi != 7 {
		t.Errorf("expected -1/7, got %g/%g", lo, hi)
	}
	lo, hi = State{}.MinMax()
	if !math.IsNaN(lo) || !math.IsNaN(hi) {
		t.Errorf("expected NaN for empty state, got %g/%g", lo, hi)
	}
}

func TestIsValid(t *testing.T) {
	if !(State{1, 2}).IsValid() {
		t.Error("finite state reported invalid")
	}
	if (State{1, math.NaN()}).IsValid() || (State{math.Inf(-1)}).IsValid() {
		t.Error("non-finite state reported valid")
	}
}

func TestToleranceScale(t *testing.T) {
	tol := Tolerance{Abs: 1e-3, Rel: 1e-2}
	if got := tol.Scale(-300, 200); math.Abs(got-3.001) > 1e-12 {
		t.Errorf("expected 3.001, got %g", got)
	}
	if got := (Tolerance{}).Scale(0, 0); got != 1e-12 {
		t.Errorf("expected floor 1e-12, got %g", got)
	}
}

func TestDerivativeCache(t *testing.T) {
	var c DerivativeCache
	x := State{1, 2}
	if _, ok := c.Get(x, 0); ok {
		t.Fatal("empty cache hit")
	}

	dx := State{-1, -2}
	c.Put(x, 0.5, dx)
	if got, ok := c.Get(x, 0.5); !ok || &got[0] != &dx[0] {
		t.Error("expected hit on the cached state")
	}
	if _, ok := c.Get(x.Clone(), 0.5); ok {
		t.Error("equal values in another slice must miss")
	}
	if _, ok := c.Get(x, 0.6); ok {
		t.Error("other time must miss")
	}

	c.Reset()
	if _, ok := c.Get(x, 0.5); ok {
		t.Error("hit after reset")
	}
}
