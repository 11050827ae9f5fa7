package quiz

import "sort"

// RepairPermutation turns a model-proposed order into a permutation of
// [0,n). Out-of-range and repeated indexes are dropped, keeping the first
// occurrence, and the missing indexes are appended in ascending order.
// Repairing a valid permutation returns it unchanged.
func RepairPermutation(orders []int, n int) []int {
	seen := make([]bool, n)
	out := make([]int, 0, n)
	for _, o := range orders {
		if o < 0 || o >= n || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

// SwapPlan returns the adjacent swaps that rearrange items from their
// original order into target, where target[k] is the original index of the
// item that ends at position k. Each entry p swaps positions p and p+1. The
// plan is an insertion sort, so its length equals the number of inversions.
func SwapPlan(target []int) []int {
	rank := make([]int, len(target))
	for pos, orig := range target {
		rank[orig] = pos
	}
	cur := make([]int, len(target))
	for i := range cur {
		cur[i] = i
	}
	var plan []int
	for i := 1; i < len(cur); i++ {
		for j := i; j > 0 && rank[cur[j-1]] > rank[cur[j]]; j-- {
			cur[j-1], cur[j] = cur[j], cur[j-1]
			plan = append(plan, j-1)
		}
	}
	return plan
}

func isPermutation(orders []int, n int) bool {
	if len(orders) != n {
		return false
	}
	s := append([]int(nil), orders...)
	sort.Ints(s)
	for i, v := range s {
		if v != i {
			return false
		}
	}
	return true
}
