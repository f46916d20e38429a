package board

// Distance returns the number of hops on the shortest path from start to target,
// ignoring transport tiers. ok is false when target cannot be reached.
func Distance(g *Graph, start, target int) (hops int, ok bool) {
	if start == target {
		return 0, true
	}
	if g == nil || !g.Has(start) {
		return 0, false
	}

	depth := map[int]int{start: 0}
	queue := []int{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.AllNeighbors(current) {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[current] + 1
			if next == target {
				return depth[next], true
			}
			queue = append(queue, next)
		}
	}
	return 0, false
}
