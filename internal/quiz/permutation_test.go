package quiz

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func applySwaps(n int, plan []int) []int {
	cur := make([]int, n)
	for i := range cur {
		cur[i] = i
	}
	for _, p := range plan {
		cur[p], cur[p+1] = cur[p+1], cur[p]
	}
	return cur
}

func inversions(target []int) int {
	c := 0
	for i := range target {
		for j := i + 1; j < len(target); j++ {
			if target[i] > target[j] {
				c++
			}
		}
	}
	return c
}

func TestRepairPermutation(t *testing.T) {
	cases := []struct {
		orders []int
		n      int
		want   []int
	}{
		{[]int{2, 0, 1}, 3, []int{2, 0, 1}},
		{[]int{1, 1, 9}, 3, []int{1, 0, 2}},
		{nil, 3, []int{0, 1, 2}},
		{[]int{-1, 3, 3, 0}, 4, []int{3, 0, 1, 2}},
		{[]int{0, 1, 2, 3}, 2, []int{0, 1}},
		{nil, 0, []int{}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, RepairPermutation(tc.orders, tc.n)); diff != "" {
			t.Errorf("RepairPermutation(%v, %d) mismatch (-want +got):\n%s", tc.orders, tc.n, diff)
		}
	}
}

func TestRepairPermutationProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		orders := rapid.SliceOf(rapid.IntRange(-3, 15)).Draw(rt, "orders")

		got := RepairPermutation(orders, n)
		if !isPermutation(got, n) {
			rt.Fatalf("%v is not a permutation of %d", got, n)
		}
		if again := RepairPermutation(got, n); !cmp.Equal(got, again) {
			rt.Fatalf("repair is not idempotent: %v then %v", got, again)
		}
	})
}

func TestSwapPlan(t *testing.T) {
	assert.Empty(t, SwapPlan([]int{0, 1, 2}))
	assert.Equal(t, []int{1, 0, 2}, SwapPlan([]int{2, 0, 3, 1}))
	assert.Equal(t, []int{0}, SwapPlan([]int{1, 0}))
}

func TestSwapPlanProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(rt, "n")
		ident := make([]int, n)
		for i := range ident {
			ident[i] = i
		}
		target := rapid.Permutation(ident).Draw(rt, "target")

		plan := SwapPlan(target)
		if got := applySwaps(n, plan); !cmp.Equal(target, got) && n > 0 {
			rt.Fatalf("plan %v yields %v, want %v", plan, got, target)
		}
		if len(plan) != inversions(target) {
			rt.Fatalf("plan has %d swaps, target has %d inversions", len(plan), inversions(target))
		}
	})
}
