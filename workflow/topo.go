package workflow

// topoOrder returns node ids in Kahn topological order. Ready nodes are
// processed first-in first-out seeded in document order, so ties resolve to
// the order nodes appeared in the request. If the graph contains a cycle the
// unordered remainder is appended in document order; execution proceeds and
// the affected nodes surface their own errors rather than crashing the run.
func topoOrder(wf *Workflow) []string {
	indegree := make(map[string]int, len(wf.nodeOrder))
	succ := make(map[string][]string)
	for _, id := range wf.nodeOrder {
		indegree[id] = 0
	}
	for _, cid := range wf.connOrder {
		c := wf.Connections[cid]
		if c == nil {
			continue
		}
		if _, ok := indegree[c.Source]; !ok {
			continue
		}
		if _, ok := indegree[c.Target]; !ok {
			continue
		}
		succ[c.Source] = append(succ[c.Source], c.Target)
		indegree[c.Target]++
	}

	var queue []string
	for _, id := range wf.nodeOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(wf.nodeOrder))
	seen := make(map[string]bool, len(wf.nodeOrder))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		seen[id] = true
		for _, t := range succ[id] {
			indegree[t]--
			if indegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	if len(order) < len(wf.nodeOrder) {
		for _, id := range wf.nodeOrder {
			if !seen[id] {
				order = append(order, id)
			}
		}
	}
	return order
}

// successors returns the targets of all edges leaving id, in document order.
func successors(wf *Workflow, id string) []string {
	var out []string
	for _, cid := range wf.connOrder {
		c := wf.Connections[cid]
		if c != nil && c.Source == id {
			out = append(out, c.Target)
		}
	}
	return out
}

// predecessors returns the sources of all edges entering id, in document order.
func predecessors(wf *Workflow, id string) []string {
	var out []string
	for _, cid := range wf.connOrder {
		c := wf.Connections[cid]
		if c != nil && c.Target == id {
			out = append(out, c.Source)
		}
	}
	return out
}
