package band

import "testing"

func TestResponseArithmetic(t *testing.T) {
	a := NewResponseFrom([]float64{1, 2, 3, 4})
	b := NewResponseFrom([]float64{1, 1, 1, 1})

	sum := a.Add(b)
	for i := 0; i < sum.Len(); i++ {
		if got, want := sum.At(i), a.At(i)+1; got != want {
			t.Fatalf("Add[%d] = %v, want %v", i, got, want)
		}
	}

	inv := a.Div(a)
	for i := 0; i < inv.Len(); i++ {
		if got := inv.At(i); got != 1 {
			t.Fatalf("a/a[%d] = %v, want 1", i, got)
		}
	}
}

func TestResponseReductions(t *testing.T) {
	a := NewResponseFrom([]float64{1, 5, 2, 4})
	if got, want := a.Sum(), 12.0; got != want {
		t.Fatalf("Sum() = %v, want %v", got, want)
	}
	if got, want := a.Max(), 5.0; got != want {
		t.Fatalf("Max() = %v, want %v", got, want)
	}
}

func TestResponseNonNegative(t *testing.T) {
	a := NewResponseFrom([]float64{-1, 0, 2, -3})
	nn := a.NonNegative()
	for i := 0; i < nn.Len(); i++ {
		if nn.At(i) < 0 {
			t.Fatalf("NonNegative()[%d] = %v, want >= 0", i, nn.At(i))
		}
	}
}

func TestResponseAnyGreater(t *testing.T) {
	a := NewResponseFrom([]float64{1, 1, 1, 1})
	thresh := NewResponseFrom([]float64{2, 2, 0.5, 2})
	if !a.AnyGreater(thresh) {
		t.Fatalf("expected AnyGreater to find band 2 exceeding threshold")
	}
	thresh2 := NewResponseFrom([]float64{2, 2, 2, 2})
	if a.AnyGreater(thresh2) {
		t.Fatalf("expected AnyGreater to be false when no band exceeds threshold")
	}
}
