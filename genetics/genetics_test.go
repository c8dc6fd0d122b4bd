package genetics_test

import (
	"testing"

	"github.com/cryptomonkeys/go-monkeychain/genetics"
)

func TestMix(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a := genetics.Mix(1111111111111111, 2222222222222222, 7)
		b := genetics.Mix(1111111111111111, 2222222222222222, 7)
		if a != b {
			t.Errorf("same inputs produced %d and %d", a, b)
		}
	})

	t.Run("OrderInsensitive", func(t *testing.T) {
		a := genetics.Mix(1111111111111111, 2222222222222222, 7)
		b := genetics.Mix(2222222222222222, 1111111111111111, 7)
		if a != b {
			t.Errorf("swapped parents produced %d and %d", a, b)
		}
	})

	t.Run("DigitsComeFromParents", func(t *testing.T) {
		// With parents made of all 1s and all 2s, every child digit must
		// be a 1 or a 2.
		child := genetics.Mix(1111111111111111, 2222222222222222, 42)
		for i := 0; i < genetics.GeneDigits; i++ {
			digit := child % 10
			if digit != 1 && digit != 2 {
				t.Fatalf("digit %d of child %d is %d, want 1 or 2", i, child, digit)
			}
			child /= 10
		}
	})

	t.Run("WidthBounded", func(t *testing.T) {
		const max = uint64(9999999999999999)
		child := genetics.Mix(max, max-1, 0)
		if child > max {
			t.Errorf("child %d exceeds %d digits", child, genetics.GeneDigits)
		}
	})

	t.Run("EntropyVariesOutcome", func(t *testing.T) {
		// Not every entropy value must change the child, but across a
		// handful of seeds the outcomes cannot all collide.
		seen := make(map[uint64]bool)
		for e := uint64(0); e < 32; e++ {
			seen[genetics.Mix(1111111111111111, 2222222222222222, e)] = true
		}
		if len(seen) < 2 {
			t.Errorf("32 entropy seeds produced %d distinct children", len(seen))
		}
	})

	t.Run("IdenticalParents", func(t *testing.T) {
		if got := genetics.Mix(5555555555555555, 5555555555555555, 9); got != 5555555555555555 {
			t.Errorf("identical parents produced %d", got)
		}
	})
}

func TestChildGeneration(t *testing.T) {
	cases := []struct {
		a, b, want uint32
	}{
		{0, 0, 1},
		{0, 1, 2},
		{1, 0, 2},
		{2, 5, 6},
		{5, 2, 6},
	}
	for _, c := range cases {
		if got := genetics.ChildGeneration(c.a, c.b); got != c.want {
			t.Errorf("ChildGeneration(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
