package sparse

import "sort"

// RCM returns a reverse Cuthill-McKee ordering of the symmetric pattern of a,
// as perm[new] = old. Elimination in this order keeps fill close to the
// diagonal band of a mesh-like matrix.
func RCM(a *CSR) []int {
	n, _ := a.Dims()
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		a.Row(i, func(j int, _ float64) {
			if j != i {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		})
	}
	for i := range adj {
		adj[i] = dedup(adj[i])
	}

	byDegree := func(vs []int) {
		sort.SliceStable(vs, func(x, y int) bool { return len(adj[vs[x]]) < len(adj[vs[y]]) })
	}

	seeds := make([]int, n)
	for i := range seeds {
		seeds[i] = i
	}
	byDegree(seeds)

	perm := make([]int, 0, n)
	seen := make([]bool, n)
	for _, s := range seeds {
		if seen[s] {
			continue
		}
		// BFS from the lowest-degree unvisited node of each component.
		seen[s] = true
		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			perm = append(perm, v)
			var next []int
			for _, u := range adj[v] {
				if !seen[u] {
					seen[u] = true
					next = append(next, u)
				}
			}
			byDegree(next)
			queue = append(queue, next...)
		}
	}

	for i, j := 0, len(perm)-1; i < j; i, j = i+1, j-1 {
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

func dedup(vs []int) []int {
	if len(vs) < 2 {
		return vs
	}
	sort.Ints(vs)
	out := vs[:1]
	for _, v := range vs[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// invert returns the inverse of a permutation.
func invert(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
